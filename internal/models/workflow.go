// -----------------------------------------------------------------------
// Workflow - a named grouping of jobs
// -----------------------------------------------------------------------

package models

import (
	"time"

	"github.com/ternarybob/lwfm/internal/common"
)

// Workflow groups related jobs under one immutable workflowId. Workflows
// are auto-created on the first emitted status carrying an unknown id.
type Workflow struct {
	WorkflowID  string            `json:"workflow_id"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Props       map[string]string `json:"props,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// NewWorkflow creates a workflow with a fresh id.
func NewWorkflow(name, description string) *Workflow {
	return &Workflow{
		WorkflowID: common.NewID(),
		Name:       name,
		Description: description,
		Props:      make(map[string]string),
		CreatedAt:  time.Now().UTC(),
	}
}

// NewWorkflowWithID creates a workflow record for an id minted elsewhere,
// used when auto-creating on first status emission.
func NewWorkflowWithID(workflowID string) *Workflow {
	return &Workflow{
		WorkflowID: workflowID,
		Props:      make(map[string]string),
		CreatedAt:  time.Now().UTC(),
	}
}
