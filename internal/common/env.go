package common

import "os"

// Well-known environment variables.
const (
	// EnvJobID conveys the ambient job id into spawned processes so nested
	// executions attribute their work to the parent job without plumbing.
	EnvJobID = "LWFM_JOB_ID"

	// EnvServiceURL overrides the client-side service endpoint.
	EnvServiceURL = "LWFM_SERVICE_URL"
)

// AmbientJobID returns the job id carried in the process environment, or
// empty when this process was not spawned by a managed job.
func AmbientJobID() string {
	return os.Getenv(EnvJobID)
}
