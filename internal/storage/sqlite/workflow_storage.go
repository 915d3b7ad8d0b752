package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lwfm/internal/interfaces"
	"github.com/ternarybob/lwfm/internal/models"
)

// WorkflowStorage implements the workflow bucket. Puts append a new row;
// reads take the newest row per workflow id, so history is retained.
type WorkflowStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewWorkflowStorage creates a new workflow storage instance
func NewWorkflowStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.WorkflowStorage {
	return &WorkflowStorage{db: db, logger: logger}
}

// SaveWorkflow appends a workflow row.
func (s *WorkflowStorage) SaveWorkflow(ctx context.Context, wf *models.Workflow) error {
	if wf == nil || wf.WorkflowID == "" {
		return fmt.Errorf("workflow requires an id")
	}

	data, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("failed to serialize workflow: %w", err)
	}

	return s.db.putRecord(ctx, newRecord("", pillarWorkflow, wf.WorkflowID, string(data)))
}

// GetWorkflow returns the newest row for the id, or nil when unknown.
func (s *WorkflowStorage) GetWorkflow(ctx context.Context, workflowID string) (*models.Workflow, error) {
	records, err := s.db.queryRecords(ctx, pillarWorkflow, workflowID, 1)
	if err != nil {
		s.logger.Error().Err(err).Str("workflow_id", workflowID).Msg("Failed to read workflow")
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	wf := &models.Workflow{}
	if err := json.Unmarshal([]byte(records[0].data), wf); err != nil {
		return nil, fmt.Errorf("failed to deserialize workflow: %w", err)
	}
	return wf, nil
}

// FindWorkflows returns workflows whose props satisfy every query clause,
// newest row per workflow id. Clause values are regexes after wildcard
// translation.
func (s *WorkflowStorage) FindWorkflows(ctx context.Context, query map[string]string) ([]*models.Workflow, error) {
	compiled, err := models.CompileQuery(query, false)
	if err != nil {
		return nil, fmt.Errorf("invalid workflow query: %w", err)
	}

	records, err := s.db.queryRecords(ctx, pillarWorkflow, "", 0)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to scan workflows")
		return nil, err
	}

	seen := make(map[string]bool)
	var results []*models.Workflow
	for _, rec := range records {
		if seen[rec.key] {
			continue
		}
		seen[rec.key] = true

		wf := &models.Workflow{}
		if err := json.Unmarshal([]byte(rec.data), wf); err != nil {
			s.logger.Error().Err(err).Str("id", rec.id).Msg("Skipping undecodable workflow row")
			continue
		}
		if models.MatchProps(wf.Props, compiled) {
			results = append(results, wf)
		}
	}
	return results, nil
}
