// -----------------------------------------------------------------------
// Job status - one state observation of a job at a moment in time
// -----------------------------------------------------------------------

package models

import (
	"time"

	"github.com/ternarybob/lwfm/internal/common"
)

// JobStatus is a single observation of a job's state. Statuses are
// append-only; many are recorded per job, ordered by EmitTime.
type JobStatus struct {
	StatusID     string      `json:"status_id"`
	Context      *JobContext `json:"context"`
	Status       Status      `json:"status"`
	NativeStatus string      `json:"native_status,omitempty"` // free-form string from the site
	NativeInfo   string      `json:"native_info,omitempty"`   // opaque payload; serialized metasheet for INFO
	EmitTime     time.Time   `json:"emit_time"`
	ReceivedTime time.Time   `json:"received_time"`
}

// NewJobStatus creates a status observation stamped with the current time.
func NewJobStatus(ctx *JobContext, status Status) *JobStatus {
	now := time.Now().UTC()
	return &JobStatus{
		StatusID:     common.NewID(),
		Context:      ctx,
		Status:       status,
		NativeStatus: string(status),
		EmitTime:     now,
		ReceivedTime: now,
	}
}

// IsTerminal reports whether this observation ends the job's lifecycle.
func (s *JobStatus) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// JobID returns the owning job id, or empty when the context is missing.
func (s *JobStatus) JobID() string {
	if s.Context == nil {
		return ""
	}
	return s.Context.JobID
}

// WorkflowID returns the owning workflow id, or empty when the context is missing.
func (s *JobStatus) WorkflowID() string {
	if s.Context == nil {
		return ""
	}
	return s.Context.WorkflowID
}
