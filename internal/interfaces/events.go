package interfaces

import (
	"github.com/ternarybob/lwfm/internal/models"
)

// EventProcessor is the singleton trigger scheduler.
type EventProcessor interface {
	Start() error
	Stop() error

	// Wake hints the processor to scan immediately. Wake-forced scans are
	// throttled; a storm of emissions collapses into one scan per window.
	Wake()

	// SetEvent persists the trigger and emits a READY status for the
	// pre-allocated future job, which it returns (nil for REMOTE events).
	SetEvent(event *models.WorkflowEvent) (*models.JobStatus, error)

	// UnsetEvent removes a registered trigger.
	UnsetEvent(eventID string) error

	// EvaluateDataEvents runs metadata triggers against a just-published
	// sheet. Called inline on INFO status emission, not from the timer.
	EvaluateDataEvents(sheet *models.Metasheet, origin *models.JobStatus)
}
