package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lwfm/internal/interfaces"
	"github.com/ternarybob/lwfm/internal/models"
)

// LogStorage implements the append-only framework log buckets, one per level.
type LogStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewLogStorage creates a new log storage instance
func NewLogStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.LogStorage {
	return &LogStorage{db: db, logger: logger}
}

// SaveLogRecord appends one log record.
func (s *LogStorage) SaveLogRecord(ctx context.Context, record *models.LogRecord) error {
	if record == nil {
		return fmt.Errorf("log record is nil")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize log record: %w", err)
	}

	pillar := pillarLogPrefix + string(record.Level)
	rec := newRecord(record.SiteName, pillar, record.JobID, string(data))
	rec.ts = record.Timestamp.UTC().UnixNano()
	return s.db.putRecord(ctx, rec)
}

// GetJobLogs returns log records attributed to a job, newest first.
func (s *LogStorage) GetJobLogs(ctx context.Context, jobID string) ([]*models.LogRecord, error) {
	records, err := s.db.queryRecordsLike(ctx, pillarLogPrefix+"%", `%"job_id":"`+jobID+`"%`)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to read job logs")
		return nil, err
	}
	return decodeLogRecords(records)
}

// GetWorkflowLogs returns log records attributed to a workflow, newest first.
func (s *LogStorage) GetWorkflowLogs(ctx context.Context, workflowID string) ([]*models.LogRecord, error) {
	records, err := s.db.queryRecordsLike(ctx, pillarLogPrefix+"%", `%"workflow_id":"`+workflowID+`"%`)
	if err != nil {
		s.logger.Error().Err(err).Str("workflow_id", workflowID).Msg("Failed to read workflow logs")
		return nil, err
	}
	return decodeLogRecords(records)
}

// PurgeOlderThan removes log records older than the cutoff.
func (s *LogStorage) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.db.deleteOlderThan(ctx, pillarLogPrefix+"%", cutoff)
}

func decodeLogRecords(records []*record) ([]*models.LogRecord, error) {
	logs := make([]*models.LogRecord, 0, len(records))
	for _, rec := range records {
		lr := &models.LogRecord{}
		if err := json.Unmarshal([]byte(rec.data), lr); err != nil {
			return nil, fmt.Errorf("failed to deserialize log record %s: %w", rec.id, err)
		}
		logs = append(logs, lr)
	}
	return logs, nil
}
