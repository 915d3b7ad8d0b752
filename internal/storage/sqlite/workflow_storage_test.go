package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lwfm/internal/models"
)

func TestWorkflowNewestRowWins(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewWorkflowStorage(db, arbor.NewLogger())
	ctx := context.Background()

	wf := models.NewWorkflow("pipeline", "first save")
	require.NoError(t, storage.SaveWorkflow(ctx, wf))

	// Updates append; the read surfaces the newest row.
	wf.Description = "second save"
	wf.Props["owner"] = "alice"
	require.NoError(t, storage.SaveWorkflow(ctx, wf))

	loaded, err := storage.GetWorkflow(ctx, wf.WorkflowID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "second save", loaded.Description)
	assert.Equal(t, "alice", loaded.Props["owner"])
}

func TestGetWorkflowUnknown(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewWorkflowStorage(db, arbor.NewLogger())

	loaded, err := storage.GetWorkflow(context.Background(), "no-such-workflow")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestFindWorkflowsDedupesAndMatches(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewWorkflowStorage(db, arbor.NewLogger())
	ctx := context.Background()

	tagged := models.NewWorkflow("nightly", "")
	tagged.Props["project"] = "fusion"
	require.NoError(t, storage.SaveWorkflow(ctx, tagged))
	require.NoError(t, storage.SaveWorkflow(ctx, tagged)) // appended update

	other := models.NewWorkflow("adhoc", "")
	other.Props["project"] = "astro"
	require.NoError(t, storage.SaveWorkflow(ctx, other))

	found, err := storage.FindWorkflows(ctx, map[string]string{"project": "fus*"})
	require.NoError(t, err)
	require.Len(t, found, 1, "duplicate rows of one workflow collapse to one result")
	assert.Equal(t, tagged.WorkflowID, found[0].WorkflowID)
}
