package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lwfm/internal/common"
	"github.com/ternarybob/lwfm/internal/models"
)

// setupTestDB creates a file-backed SQLite database under a test temp dir.
func setupTestDB(t *testing.T) (*SQLiteDB, func()) {
	t.Helper()
	tempDir := t.TempDir()

	config := &common.StoreConfig{
		Path:          tempDir + "/test.db",
		WALMode:       false, // simpler cleanup in tests
		BusyTimeoutMS: 5000,
		CacheSizeMB:   16,
	}

	db, err := NewSQLiteDB(arbor.NewLogger(), config)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	return db, func() { db.Close() }
}

func statusAt(ctx *models.JobContext, status models.Status, emit time.Time) *models.JobStatus {
	s := models.NewJobStatus(ctx, status)
	s.EmitTime = emit
	s.ReceivedTime = emit
	return s
}

func TestStatusHistoryNewestFirst(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewStatusStorage(db, arbor.NewLogger())
	jobCtx := models.NewJobContext("local")

	base := time.Now().UTC()
	sequence := []models.Status{models.StatusReady, models.StatusPending, models.StatusRunning, models.StatusComplete}
	for i, status := range sequence {
		err := storage.SaveStatus(context.Background(), statusAt(jobCtx, status, base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	history, err := storage.GetStatuses(context.Background(), jobCtx.JobID)
	require.NoError(t, err)
	require.Len(t, history, 4)

	assert.Equal(t, models.StatusComplete, history[0].Status)
	assert.Equal(t, models.StatusRunning, history[1].Status)
	assert.Equal(t, models.StatusPending, history[2].Status)
	assert.Equal(t, models.StatusReady, history[3].Status)

	latest, err := storage.GetLatestStatus(context.Background(), jobCtx.JobID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, models.StatusComplete, latest.Status)
}

func TestGetLatestStatusUnknownJob(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewStatusStorage(db, arbor.NewLogger())

	latest, err := storage.GetLatestStatus(context.Background(), "no-such-job")
	require.NoError(t, err)
	assert.Nil(t, latest)

	history, err := storage.GetStatuses(context.Background(), "no-such-job")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestGetWorkflowStatusesSpansJobs(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewStatusStorage(db, arbor.NewLogger())

	parent := models.NewJobContext("local")
	child := models.NewChildContext(parent, "", "local")
	stranger := models.NewJobContext("local")

	base := time.Now().UTC()
	require.NoError(t, storage.SaveStatus(context.Background(), statusAt(parent, models.StatusComplete, base)))
	require.NoError(t, storage.SaveStatus(context.Background(), statusAt(child, models.StatusRunning, base.Add(time.Second))))
	require.NoError(t, storage.SaveStatus(context.Background(), statusAt(stranger, models.StatusComplete, base.Add(2*time.Second))))

	statuses, err := storage.GetWorkflowStatuses(context.Background(), parent.WorkflowID)
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	// Newest first, both jobs of the workflow, stranger excluded.
	assert.Equal(t, child.JobID, statuses[0].JobID())
	assert.Equal(t, parent.JobID, statuses[1].JobID())
	for _, s := range statuses {
		assert.Equal(t, parent.WorkflowID, s.WorkflowID())
	}
}
