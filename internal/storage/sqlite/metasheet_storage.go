package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lwfm/internal/interfaces"
	"github.com/ternarybob/lwfm/internal/models"
)

// MetasheetStorage implements the data-metadata bucket. The key column
// carries the JSON-serialized props map so workflow tagging is visible to
// SQL-level filters; regex clause matching happens after decode.
type MetasheetStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewMetasheetStorage creates a new metasheet storage instance
func NewMetasheetStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.MetasheetStorage {
	return &MetasheetStorage{db: db, logger: logger}
}

// SaveMetasheet appends a metasheet. Notation is append-only; repeated
// puts of the same object yield distinct sheets.
func (s *MetasheetStorage) SaveMetasheet(ctx context.Context, sheet *models.Metasheet) error {
	if sheet == nil || sheet.SheetID == "" {
		return fmt.Errorf("metasheet requires an id")
	}

	data, err := json.Marshal(sheet)
	if err != nil {
		return fmt.Errorf("failed to serialize metasheet: %w", err)
	}
	key, err := json.Marshal(sheet.Props)
	if err != nil {
		return fmt.Errorf("failed to serialize metasheet props: %w", err)
	}

	return s.db.putRecord(ctx, newRecord(sheet.SiteName, pillarMetasheet, string(key), string(data)))
}

// FindMetasheets returns sheets whose props satisfy every query clause,
// newest first. Clause values are regexes after wildcard translation.
func (s *MetasheetStorage) FindMetasheets(ctx context.Context, query map[string]string) ([]*models.Metasheet, error) {
	compiled, err := models.CompileQuery(query, false)
	if err != nil {
		return nil, fmt.Errorf("invalid metasheet query: %w", err)
	}

	records, err := s.db.queryRecords(ctx, pillarMetasheet, "", 0)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to scan metasheets")
		return nil, err
	}

	var results []*models.Metasheet
	for _, rec := range records {
		sheet := &models.Metasheet{}
		if err := json.Unmarshal([]byte(rec.data), sheet); err != nil {
			s.logger.Error().Err(err).Str("id", rec.id).Msg("Skipping undecodable metasheet row")
			continue
		}
		if models.MatchProps(sheet.Props, compiled) {
			results = append(results, sheet)
		}
	}
	return results, nil
}

// GetWorkflowMetasheets returns all sheets tagged with the workflow id,
// newest first, filtered at the SQL layer against the serialized key.
func (s *MetasheetStorage) GetWorkflowMetasheets(ctx context.Context, workflowID string) ([]*models.Metasheet, error) {
	pattern := `%"` + models.PropWorkflowID + `":"` + workflowID + `"%`
	records, err := s.db.queryRecordsLike(ctx, pillarMetasheet, pattern)
	if err != nil {
		s.logger.Error().Err(err).Str("workflow_id", workflowID).Msg("Failed to read workflow metasheets")
		return nil, err
	}

	var results []*models.Metasheet
	for _, rec := range records {
		sheet := &models.Metasheet{}
		if err := json.Unmarshal([]byte(rec.data), sheet); err != nil {
			s.logger.Error().Err(err).Str("id", rec.id).Msg("Skipping undecodable metasheet row")
			continue
		}
		if sheet.Props[models.PropWorkflowID] == workflowID {
			results = append(results, sheet)
		}
	}
	return results, nil
}
