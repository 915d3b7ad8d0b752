package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lwfm/internal/interfaces"
	"github.com/ternarybob/lwfm/internal/models"
)

// EventStorage implements the trigger buckets, one per event variant.
type EventStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewEventStorage creates a new event storage instance
func NewEventStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.EventStorage {
	return &EventStorage{db: db, logger: logger}
}

// SaveEvent persists a registered trigger into its variant bucket.
func (s *EventStorage) SaveEvent(ctx context.Context, event *models.WorkflowEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	site := ""
	if event.Context != nil {
		site = event.Context.SiteName
	}
	pillar := pillarEventPrefix + string(event.Type)
	return s.db.putRecord(ctx, newRecord(site, pillar, event.EventID, string(data)))
}

// GetEvents returns registered triggers of one variant, newest first.
func (s *EventStorage) GetEvents(ctx context.Context, eventType models.EventType) ([]*models.WorkflowEvent, error) {
	records, err := s.db.queryRecords(ctx, pillarEventPrefix+string(eventType), "", 0)
	if err != nil {
		s.logger.Error().Err(err).Str("type", string(eventType)).Msg("Failed to read events")
		return nil, err
	}
	return decodeEvents(records)
}

// GetAllEvents returns all registered triggers, newest first.
func (s *EventStorage) GetAllEvents(ctx context.Context) ([]*models.WorkflowEvent, error) {
	records, err := s.db.queryRecordsLike(ctx, pillarEventPrefix+"%", "")
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read events")
		return nil, err
	}
	return decodeEvents(records)
}

// DeleteEvent removes the event across all event buckets. The returned
// flag tells the caller whether it won the delete; the single-writer
// engine makes this the at-most-once fire gate.
func (s *EventStorage) DeleteEvent(ctx context.Context, eventID string) (bool, error) {
	n, err := s.db.deleteByKey(ctx, pillarEventPrefix+"%", eventID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func decodeEvents(records []*record) ([]*models.WorkflowEvent, error) {
	events := make([]*models.WorkflowEvent, 0, len(records))
	for _, rec := range records {
		event := &models.WorkflowEvent{}
		if err := json.Unmarshal([]byte(rec.data), event); err != nil {
			return nil, fmt.Errorf("failed to deserialize event %s: %w", rec.id, err)
		}
		events = append(events, event)
	}
	return events, nil
}
