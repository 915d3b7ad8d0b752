package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lwfm/internal/common"
	"github.com/ternarybob/lwfm/internal/interfaces"
	"github.com/ternarybob/lwfm/internal/models"
	"github.com/ternarybob/lwfm/internal/sites"
	"github.com/ternarybob/lwfm/internal/sites/local"
	"github.com/ternarybob/lwfm/internal/storage/sqlite"
)

// fakeProcessor persists triggers like the real processor but records data
// evaluations instead of firing them, keeping façade tests single-threaded.
type fakeProcessor struct {
	storage   interfaces.StorageManager
	evaluated []*models.Metasheet
	wakes     int
}

func (f *fakeProcessor) Start() error { return nil }
func (f *fakeProcessor) Stop() error  { return nil }
func (f *fakeProcessor) Wake()        { f.wakes++ }

func (f *fakeProcessor) SetEvent(event *models.WorkflowEvent) (*models.JobStatus, error) {
	if event == nil {
		return nil, assert.AnError
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if err := f.storage.EventStorage().SaveEvent(context.Background(), event); err != nil {
		return nil, err
	}
	if event.Type == models.EventTypeRemote {
		return nil, nil
	}
	futureCtx := models.NewChildContext(event.Context, event.FireJobID, event.FireSite)
	return models.NewJobStatus(futureCtx, models.StatusReady), nil
}

func (f *fakeProcessor) UnsetEvent(eventID string) error {
	deleted, err := f.storage.EventStorage().DeleteEvent(context.Background(), eventID)
	if err != nil {
		return err
	}
	if !deleted {
		return assert.AnError
	}
	return nil
}

func (f *fakeProcessor) EvaluateDataEvents(sheet *models.Metasheet, origin *models.JobStatus) {
	f.evaluated = append(f.evaluated, sheet)
}

func newTestManager(t *testing.T) (*LwfManager, *fakeProcessor, interfaces.StorageManager) {
	t.Helper()
	logger := arbor.NewLogger()

	storage, err := sqlite.NewManager(logger, &common.StoreConfig{
		Path:          t.TempDir() + "/test.db",
		BusyTimeoutMS: 5000,
		CacheSizeMB:   16,
	})
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	registry := sites.NewRegistry(map[string]common.SiteConfig{
		"local": {Class: "local"},
	}, logger)
	registry.RegisterClass(local.Class, local.New)
	bridge := sites.NewBridge(registry, logger)

	processor := &fakeProcessor{storage: storage}
	manager := New(storage, bridge, processor, logger)
	registry.BindRuntime(manager)

	return manager, processor, storage
}

// mustEmit emits a bare status observation, failing the test on rejection.
func mustEmit(t *testing.T, manager *LwfManager, jobCtx *models.JobContext, status models.Status) {
	t.Helper()
	_, err := manager.EmitStatus(jobCtx, status, "", "")
	require.NoError(t, err)
}

func TestEmitStatusAutoCreatesWorkflow(t *testing.T) {
	manager, processor, storage := newTestManager(t)
	ctx := context.Background()

	jobCtx := models.NewJobContext("local")
	_, err := manager.EmitStatus(jobCtx, models.StatusRunning, "native-r", "")
	require.NoError(t, err)

	latest := manager.GetStatus(jobCtx.JobID)
	require.NotNil(t, latest)
	assert.Equal(t, models.StatusRunning, latest.Status)
	assert.Equal(t, "native-r", latest.NativeStatus)

	wf, err := storage.WorkflowStorage().GetWorkflow(ctx, jobCtx.WorkflowID)
	require.NoError(t, err)
	assert.NotNil(t, wf, "first emission creates the workflow record")

	assert.Greater(t, processor.wakes, 0, "emission wakes the processor")
}

func TestEmitStatusReturnsPersistedRecord(t *testing.T) {
	manager, _, _ := newTestManager(t)

	jobCtx := models.NewJobContext("local")
	emitted, err := manager.EmitStatus(jobCtx, models.StatusRunning, "", "")
	require.NoError(t, err)
	require.NotNil(t, emitted)

	// The caller's handle is the stored observation, not a lookalike.
	stored := manager.GetStatus(jobCtx.JobID)
	require.NotNil(t, stored)
	assert.Equal(t, stored.StatusID, emitted.StatusID)
	assert.True(t, stored.EmitTime.Equal(emitted.EmitTime))
}

func TestEmitStatusRejectsBadInput(t *testing.T) {
	manager, _, _ := newTestManager(t)

	_, err := manager.EmitStatus(nil, models.StatusRunning, "", "")
	assert.Error(t, err)
	_, err = manager.EmitStatus(&models.JobContext{}, models.StatusRunning, "", "")
	assert.Error(t, err)
	_, err = manager.EmitStatus(models.NewJobContext("local"), models.Status("WEDGED"), "", "")
	assert.Error(t, err)
}

func TestEmitInfoEvaluatesDataEvents(t *testing.T) {
	manager, processor, _ := newTestManager(t)

	jobCtx := models.NewJobContext("local")
	sheet := models.NewMetasheet(jobCtx.JobID, "/tmp/a", "/store/a", map[string]string{"case": "put1"})
	serialized, err := models.Serialize(sheet)
	require.NoError(t, err)

	_, err = manager.EmitStatus(jobCtx, models.StatusInfo, "INFO", serialized)
	require.NoError(t, err)
	require.Len(t, processor.evaluated, 1)
	assert.Equal(t, "put1", processor.evaluated[0].Props["case"])

	// INFO without a payload carries nothing to evaluate.
	_, err = manager.EmitStatus(jobCtx, models.StatusInfo, "INFO", "")
	require.NoError(t, err)
	assert.Len(t, processor.evaluated, 1)
}

func TestSubmitLocalJobCompletes(t *testing.T) {
	manager, _, storage := newTestManager(t)
	ctx := context.Background()

	pending := manager.Submit(models.NewJobDefn("echo hello"), nil, "", nil)
	require.NotNil(t, pending)
	assert.Equal(t, models.StatusPending, pending.Status)

	jobID := pending.JobID()
	require.Eventually(t, func() bool {
		latest := manager.GetStatus(jobID)
		return latest != nil && latest.Status == models.StatusComplete
	}, 15*time.Second, 100*time.Millisecond)

	// Full lifecycle is on record, newest first.
	history, err := storage.StatusStorage().GetStatuses(ctx, jobID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(history), 4)
	assert.Equal(t, models.StatusReady, history[len(history)-1].Status)

	// The returned PENDING handle is one of the stored observations.
	ids := make([]string, 0, len(history))
	for _, s := range history {
		ids = append(ids, s.StatusID)
	}
	assert.Contains(t, ids, pending.StatusID)
}

func TestSubmitFailingJobEmitsFailed(t *testing.T) {
	manager, _, _ := newTestManager(t)

	pending := manager.Submit(models.NewJobDefn("exit 3"), nil, "", nil)
	require.NotNil(t, pending)

	require.Eventually(t, func() bool {
		latest := manager.GetStatus(pending.JobID())
		return latest != nil && latest.Status == models.StatusFailed
	}, 15*time.Second, 100*time.Millisecond)
}

func TestSubmitRejectsInvalidDefn(t *testing.T) {
	manager, _, _ := newTestManager(t)

	assert.Nil(t, manager.Submit(nil, nil, "", nil))
	assert.Nil(t, manager.Submit(models.NewJobDefn(""), nil, "", nil))
}

func TestSubmitChildJoinsParentWorkflow(t *testing.T) {
	manager, _, _ := newTestManager(t)

	parent := models.NewJobContext("local")
	pending := manager.Submit(models.NewJobDefn("echo child"), parent, "", nil)
	require.NotNil(t, pending)

	assert.Equal(t, parent.WorkflowID, pending.WorkflowID())
	assert.Equal(t, parent.JobID, pending.Context.ParentJobID)
}

func TestWaitReturnsTerminalStatus(t *testing.T) {
	manager, _, _ := newTestManager(t)

	jobCtx := models.NewJobContext("local")
	mustEmit(t, manager, jobCtx, models.StatusRunning)

	done := make(chan *models.JobStatus, 1)
	go func() { done <- manager.Wait(jobCtx.JobID) }()

	time.Sleep(200 * time.Millisecond)
	mustEmit(t, manager, jobCtx, models.StatusComplete)

	select {
	case status := <-done:
		require.NotNil(t, status)
		assert.Equal(t, models.StatusComplete, status.Status)
	case <-time.After(10 * time.Second):
		t.Fatal("Wait never observed the terminal status")
	}
}

func TestCancelUnknownJob(t *testing.T) {
	manager, _, _ := newTestManager(t)
	assert.False(t, manager.Cancel("no-such-job"))
}

func TestNotatePutStripsCallerReservedProps(t *testing.T) {
	manager, _, storage := newTestManager(t)
	ctx := context.Background()

	jobCtx := models.NewJobContext("local")
	sheet := manager.NotatePut(jobCtx, "/tmp/data.bin", "/store/data.bin", map[string]string{
		"case":       "put1",
		"_direction": "get", // caller attempt to spoof a reserved key
	})
	require.NotNil(t, sheet)

	assert.Equal(t, models.DirectionPut, sheet.Props[models.PropDirection])
	assert.Equal(t, jobCtx.WorkflowID, sheet.Props[models.PropWorkflowID])
	assert.Equal(t, jobCtx.JobID, sheet.Props[models.PropJobID])
	assert.Equal(t, "/tmp/data.bin", sheet.Props[models.PropLocalPath])

	// The notation rides an INFO status carrying the serialized sheet.
	latest := manager.GetStatus(jobCtx.JobID)
	require.NotNil(t, latest)
	require.Equal(t, models.StatusInfo, latest.Status)
	decoded, err := models.Deserialize[models.Metasheet](latest.NativeInfo)
	require.NoError(t, err)
	assert.Equal(t, sheet.SheetID, decoded.SheetID)

	found, err := storage.MetasheetStorage().FindMetasheets(ctx, map[string]string{"case": "put1"})
	require.NoError(t, err)
	require.Len(t, found, 1)
}

func TestFindUsesWildcardQuery(t *testing.T) {
	manager, _, _ := newTestManager(t)

	jobCtx := models.NewJobContext("local")
	manager.NotatePut(jobCtx, "/tmp/a", "/store/a", map[string]string{"case": "put1"})
	manager.NotateGet(jobCtx, "/tmp/b", "/store/b", map[string]string{"case": "get1"})

	sheets := manager.Find(map[string]string{"case": "*1"})
	assert.Len(t, sheets, 2)

	sheets = manager.Find(map[string]string{"case": "put*"})
	require.Len(t, sheets, 1)
	assert.Equal(t, models.DirectionPut, sheets[0].Props[models.PropDirection])
}

func TestExecSiteEndpointListComputeTypes(t *testing.T) {
	manager, _, _ := newTestManager(t)

	jobCtx := models.NewJobContext("local")
	defn := models.NewSiteJobDefn("spin.listComputeTypes")

	out, err := manager.ExecSiteEndpoint(defn, jobCtx, true)
	require.NoError(t, err)

	types, err := models.Deserialize[[]string](out)
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, *types)

	// Managed mode brackets the call with a terminal status.
	latest := manager.GetStatus(jobCtx.JobID)
	require.NotNil(t, latest)
	assert.Equal(t, models.StatusComplete, latest.Status)
}

func TestExecSiteEndpointNestedSubmit(t *testing.T) {
	manager, _, _ := newTestManager(t)

	defn := models.NewSiteJobDefn("run.submit", "echo nested")
	out, err := manager.ExecSiteEndpoint(defn, nil, false)
	require.NoError(t, err)

	status, err := models.Deserialize[models.JobStatus](out)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, status.Status)

	require.Eventually(t, func() bool {
		latest := manager.GetStatus(status.JobID())
		return latest != nil && latest.Status == models.StatusComplete
	}, 15*time.Second, 100*time.Millisecond)
}

func TestExecSiteEndpointRejectsShellDefn(t *testing.T) {
	manager, _, _ := newTestManager(t)

	_, err := manager.ExecSiteEndpoint(models.NewJobDefn("echo hi"), nil, false)
	assert.Error(t, err)
}

func TestGetJobContextFromEnv(t *testing.T) {
	manager, _, _ := newTestManager(t)

	t.Run("Outside a managed job", func(t *testing.T) {
		t.Setenv(common.EnvJobID, "")
		assert.Nil(t, manager.GetJobContextFromEnv())
	})

	t.Run("Ambient id without history", func(t *testing.T) {
		t.Setenv(common.EnvJobID, "ambient-job")
		ctx := manager.GetJobContextFromEnv()
		require.NotNil(t, ctx)
		assert.Equal(t, "ambient-job", ctx.JobID)
		assert.Equal(t, "ambient-job", ctx.WorkflowID)
	})

	t.Run("Ambient id with recorded context", func(t *testing.T) {
		rich := models.NewJobContext("local")
		rich.Name = "stage-two"
		mustEmit(t, manager, rich, models.StatusRunning)

		t.Setenv(common.EnvJobID, rich.JobID)
		ctx := manager.GetJobContextFromEnv()
		require.NotNil(t, ctx)
		assert.Equal(t, "stage-two", ctx.Name)
		assert.Equal(t, rich.WorkflowID, ctx.WorkflowID)
	})
}

func TestLogStreamPublishesOnEmit(t *testing.T) {
	manager, _, _ := newTestManager(t)

	sub := manager.Stream().Subscribe()
	defer manager.Stream().Unsubscribe(sub)

	jobCtx := models.NewJobContext("local")
	mustEmit(t, manager, jobCtx, models.StatusRunning)

	select {
	case record := <-sub:
		assert.Equal(t, jobCtx.JobID, record.JobID)
	case <-time.After(2 * time.Second):
		t.Fatal("no log record reached the stream")
	}
}
