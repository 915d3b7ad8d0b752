package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/lwfm/internal/models"
)

// WorkflowStorage persists workflow records. Updates append a new row;
// reads take the newest row per workflow id.
type WorkflowStorage interface {
	SaveWorkflow(ctx context.Context, wf *models.Workflow) error
	GetWorkflow(ctx context.Context, workflowID string) (*models.Workflow, error)
	FindWorkflows(ctx context.Context, query map[string]string) ([]*models.Workflow, error)
}

// StatusStorage persists the append-only job status history.
type StatusStorage interface {
	SaveStatus(ctx context.Context, status *models.JobStatus) error
	// GetStatuses returns all statuses for a job, newest first.
	GetStatuses(ctx context.Context, jobID string) ([]*models.JobStatus, error)
	// GetLatestStatus returns the newest status for a job, or nil when none exists.
	GetLatestStatus(ctx context.Context, jobID string) (*models.JobStatus, error)
	// GetWorkflowStatuses returns all statuses for all jobs of a workflow, newest first.
	GetWorkflowStatuses(ctx context.Context, workflowID string) ([]*models.JobStatus, error)
}

// EventStorage persists registered triggers.
type EventStorage interface {
	SaveEvent(ctx context.Context, event *models.WorkflowEvent) error
	GetEvents(ctx context.Context, eventType models.EventType) ([]*models.WorkflowEvent, error)
	GetAllEvents(ctx context.Context) ([]*models.WorkflowEvent, error)
	// DeleteEvent removes the event across all event buckets. The deleted
	// flag is the at-most-once fire gate: only the caller that observes
	// true may dispatch.
	DeleteEvent(ctx context.Context, eventID string) (bool, error)
}

// MetasheetStorage persists data-object metadata.
type MetasheetStorage interface {
	SaveMetasheet(ctx context.Context, sheet *models.Metasheet) error
	// FindMetasheets returns sheets whose props satisfy every query clause.
	// Clause values are regexes after wildcard translation.
	FindMetasheets(ctx context.Context, query map[string]string) ([]*models.Metasheet, error)
	GetWorkflowMetasheets(ctx context.Context, workflowID string) ([]*models.Metasheet, error)
}

// LogStorage persists framework log records.
type LogStorage interface {
	SaveLogRecord(ctx context.Context, record *models.LogRecord) error
	GetJobLogs(ctx context.Context, jobID string) ([]*models.LogRecord, error)
	GetWorkflowLogs(ctx context.Context, workflowID string) ([]*models.LogRecord, error)
	// PurgeOlderThan removes records older than the cutoff, returning the
	// number removed. Used by the maintenance sweep.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// StorageManager aggregates the per-bucket stores over one database.
type StorageManager interface {
	WorkflowStorage() WorkflowStorage
	StatusStorage() StatusStorage
	EventStorage() EventStorage
	MetasheetStorage() MetasheetStorage
	LogStorage() LogStorage
	Close() error
}
