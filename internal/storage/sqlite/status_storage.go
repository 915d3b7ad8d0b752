package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lwfm/internal/interfaces"
	"github.com/ternarybob/lwfm/internal/models"
)

// StatusStorage implements the append-only job status bucket.
type StatusStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewStatusStorage creates a new status storage instance
func NewStatusStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.StatusStorage {
	return &StatusStorage{db: db, logger: logger}
}

// SaveStatus appends one status observation.
func (s *StatusStorage) SaveStatus(ctx context.Context, status *models.JobStatus) error {
	if status == nil || status.Context == nil {
		return fmt.Errorf("status requires a job context")
	}

	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to serialize status: %w", err)
	}

	rec := newRecord(status.Context.SiteName, pillarStatus, status.Context.JobID, string(data))
	// ts carries the emitter's clock so readers order by emit time.
	rec.ts = status.EmitTime.UTC().UnixNano()
	return s.db.putRecord(ctx, rec)
}

// GetStatuses returns all statuses for a job, newest first.
func (s *StatusStorage) GetStatuses(ctx context.Context, jobID string) ([]*models.JobStatus, error) {
	records, err := s.db.queryRecords(ctx, pillarStatus, jobID, 0)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to read statuses")
		return nil, err
	}
	return decodeStatuses(records)
}

// GetLatestStatus returns the newest status for a job, or nil when none exists.
func (s *StatusStorage) GetLatestStatus(ctx context.Context, jobID string) (*models.JobStatus, error) {
	records, err := s.db.queryRecords(ctx, pillarStatus, jobID, 1)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to read latest status")
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	statuses, err := decodeStatuses(records)
	if err != nil {
		return nil, err
	}
	return statuses[0], nil
}

// GetWorkflowStatuses returns all statuses for all jobs of a workflow,
// newest first. The workflow id is filtered at the SQL layer against the
// JSON payload, then verified after decode.
func (s *StatusStorage) GetWorkflowStatuses(ctx context.Context, workflowID string) ([]*models.JobStatus, error) {
	pattern := `%"workflow_id":"` + workflowID + `"%`
	records, err := s.db.queryRecordsLike(ctx, pillarStatus, pattern)
	if err != nil {
		s.logger.Error().Err(err).Str("workflow_id", workflowID).Msg("Failed to read workflow statuses")
		return nil, err
	}
	statuses, err := decodeStatuses(records)
	if err != nil {
		return nil, err
	}
	filtered := make([]*models.JobStatus, 0, len(statuses))
	for _, status := range statuses {
		if status.WorkflowID() == workflowID {
			filtered = append(filtered, status)
		}
	}
	return filtered, nil
}

func decodeStatuses(records []*record) ([]*models.JobStatus, error) {
	statuses := make([]*models.JobStatus, 0, len(records))
	for _, rec := range records {
		status := &models.JobStatus{}
		if err := json.Unmarshal([]byte(rec.data), status); err != nil {
			return nil, fmt.Errorf("failed to deserialize status %s: %w", rec.id, err)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
