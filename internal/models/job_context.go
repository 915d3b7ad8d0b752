// -----------------------------------------------------------------------
// Job context - execution identity of a single job instance
// -----------------------------------------------------------------------

package models

import (
	"github.com/ternarybob/lwfm/internal/common"
)

// JobContext is the execution identity of one job instance. The jobId is
// immutable after creation; the workflowId self-roots to the jobId unless a
// parent context supplies one.
type JobContext struct {
	JobID       string `json:"job_id"`
	NativeID    string `json:"native_id"`             // site-local identifier, defaults to JobID
	ParentJobID string `json:"parent_job_id,omitempty"`
	WorkflowID  string `json:"workflow_id"`
	Name        string `json:"name,omitempty"`
	ComputeType string `json:"compute_type,omitempty"`
	SiteName    string `json:"site_name"`
}

// NewJobContext creates a self-rooted context for a freshly submitted job.
func NewJobContext(siteName string) *JobContext {
	id := common.NewID()
	return &JobContext{
		JobID:      id,
		NativeID:   id,
		WorkflowID: id,
		SiteName:   siteName,
	}
}

// NewChildContext creates the context for a job fired under a parent.
// The workflow identity is always inherited from the parent so that chains
// of triggered jobs stay in one workflow.
func NewChildContext(parent *JobContext, jobID, siteName string) *JobContext {
	ctx := &JobContext{
		JobID:    jobID,
		NativeID: jobID,
		SiteName: siteName,
	}
	if ctx.JobID == "" {
		ctx.JobID = common.NewID()
		ctx.NativeID = ctx.JobID
	}
	if parent != nil {
		ctx.WorkflowID = parent.WorkflowID
		ctx.ParentJobID = parent.JobID
		ctx.Name = parent.Name
	}
	if ctx.WorkflowID == "" {
		ctx.WorkflowID = ctx.JobID
	}
	return ctx
}

// WithWorkflow attaches an existing workflow identity to the context.
func (c *JobContext) WithWorkflow(workflowID string) *JobContext {
	if workflowID != "" {
		c.WorkflowID = workflowID
	}
	return c
}
