package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lwfm/internal/common"
	"github.com/ternarybob/lwfm/internal/interfaces"
	"github.com/ternarybob/lwfm/internal/models"
	"github.com/ternarybob/lwfm/internal/services/middleware"
	"github.com/ternarybob/lwfm/internal/sites"
	"github.com/ternarybob/lwfm/internal/sites/local"
	"github.com/ternarybob/lwfm/internal/storage/sqlite"
)

// inertProcessor persists triggers without a timer loop.
type inertProcessor struct {
	storage interfaces.StorageManager
}

func (p *inertProcessor) Start() error { return nil }
func (p *inertProcessor) Stop() error  { return nil }
func (p *inertProcessor) Wake()        {}

func (p *inertProcessor) SetEvent(event *models.WorkflowEvent) (*models.JobStatus, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if err := p.storage.EventStorage().SaveEvent(context.Background(), event); err != nil {
		return nil, err
	}
	if event.Type == models.EventTypeRemote {
		return nil, nil
	}
	futureCtx := models.NewChildContext(event.Context, event.FireJobID, event.FireSite)
	return models.NewJobStatus(futureCtx, models.StatusReady), nil
}

func (p *inertProcessor) UnsetEvent(eventID string) error {
	deleted, err := p.storage.EventStorage().DeleteEvent(context.Background(), eventID)
	if err != nil {
		return err
	}
	if !deleted {
		return assert.AnError
	}
	return nil
}

func (p *inertProcessor) EvaluateDataEvents(sheet *models.Metasheet, origin *models.JobStatus) {}

func newTestHandler(t *testing.T) *VerbHandler {
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

	manager := middleware.New(storage, bridge, &inertProcessor{storage: storage}, logger)
	registry.BindRuntime(manager)

	return NewVerbHandler(manager, logger)
}

func postForm(t *testing.T, handler http.HandlerFunc, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

// payload extracts the opaque serialized payload from a verb response.
func payload(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	return body["payload"]
}

func TestEmitAndGetStatusRoundTrip(t *testing.T) {
	handler := newTestHandler(t)

	jobCtx := models.NewJobContext("local")
	serCtx, err := models.Serialize(jobCtx)
	require.NoError(t, err)

	rec := postForm(t, handler.EmitStatusHandler, "/api/emit", url.Values{
		"context": {serCtx},
		"status":  {"RUNNING"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest("GET", "/api/status?jobId="+jobCtx.JobID, nil)
	rec = httptest.NewRecorder()
	handler.GetStatusHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	status, err := models.Deserialize[models.JobStatus](payload(t, rec))
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, status.Status)
	assert.Equal(t, jobCtx.JobID, status.JobID())
}

func TestEmitRejectsMalformedContext(t *testing.T) {
	handler := newTestHandler(t)

	rec := postForm(t, handler.EmitStatusHandler, "/api/emit", url.Values{
		"context": {"not json"},
		"status":  {"RUNNING"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEmitRequiresPost(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/emit", nil)
	rec := httptest.NewRecorder()
	handler.EmitStatusHandler(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGetStatusUnknownJob(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/status?jobId=no-such-job", nil)
	rec := httptest.NewRecorder()
	handler.GetStatusHandler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitHandler(t *testing.T) {
	handler := newTestHandler(t)

	serDefn, err := models.Serialize(models.NewJobDefn("echo hi"))
	require.NoError(t, err)

	rec := postForm(t, handler.SubmitHandler, "/api/submit", url.Values{
		"defn": {serDefn},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	status, err := models.Deserialize[models.JobStatus](payload(t, rec))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, status.Status)
}

func TestSubmitRejectsMalformedDefn(t *testing.T) {
	handler := newTestHandler(t)

	rec := postForm(t, handler.SubmitHandler, "/api/submit", url.Values{
		"defn": {"{{{"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventSetUnsetHandlers(t *testing.T) {
	handler := newTestHandler(t)

	event := models.NewJobEvent("job-a", models.StatusComplete, models.NewJobDefn("echo fired"), "local")
	serEvent, err := models.Serialize(event)
	require.NoError(t, err)

	rec := postForm(t, handler.SetEventHandler, "/api/event/set", url.Values{
		"event": {serEvent},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	ready, err := models.Deserialize[models.JobStatus](payload(t, rec))
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, ready.Status)
	assert.Equal(t, event.FireJobID, ready.JobID())

	rec = postForm(t, handler.UnsetEventHandler, "/api/event/unset", url.Values{
		"eventId": {event.EventID},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// A second unset finds nothing.
	rec = postForm(t, handler.UnsetEventHandler, "/api/event/unset", url.Values{
		"eventId": {event.EventID},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotateAndFindHandlers(t *testing.T) {
	handler := newTestHandler(t)

	jobCtx := models.NewJobContext("local")
	serCtx, err := models.Serialize(jobCtx)
	require.NoError(t, err)
	serProps, err := models.Serialize(map[string]string{"case": "put1"})
	require.NoError(t, err)

	rec := postForm(t, handler.NotatePutHandler, "/api/notate/put", url.Values{
		"context":     {serCtx},
		"localPath":   {"/tmp/data"},
		"siteObjPath": {"/store/data"},
		"props":       {serProps},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	sheet, err := models.Deserialize[models.Metasheet](payload(t, rec))
	require.NoError(t, err)
	assert.Equal(t, jobCtx.JobID, sheet.JobID)

	serQuery, err := models.Serialize(map[string]string{"case": "put*"})
	require.NoError(t, err)
	rec = postForm(t, handler.FindHandler, "/api/find", url.Values{
		"query": {serQuery},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	sheets, err := models.Deserialize[[]*models.Metasheet](payload(t, rec))
	require.NoError(t, err)
	require.Len(t, *sheets, 1)
	assert.Equal(t, sheet.SheetID, (*sheets)[0].SheetID)
}

func TestDumpWorkflowHandler(t *testing.T) {
	handler := newTestHandler(t)

	jobCtx := models.NewJobContext("local")
	serCtx, err := models.Serialize(jobCtx)
	require.NoError(t, err)
	postForm(t, handler.EmitStatusHandler, "/api/emit", url.Values{
		"context": {serCtx},
		"status":  {"COMPLETE"},
	})

	req := httptest.NewRequest("GET", "/api/workflow/dump?workflowId="+jobCtx.WorkflowID, nil)
	rec := httptest.NewRecorder()
	handler.DumpWorkflowHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	dump, err := models.Deserialize[middleware.WorkflowDump](payload(t, rec))
	require.NoError(t, err)
	require.Len(t, dump.Jobs, 1)
	assert.Equal(t, models.StatusComplete, dump.Jobs[0].Status)

	req = httptest.NewRequest("GET", "/api/workflow/dump?workflowId=nope", nil)
	rec = httptest.NewRecorder()
	handler.DumpWorkflowHandler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelHandlerUnknownJob(t *testing.T) {
	handler := newTestHandler(t)

	rec := postForm(t, handler.CancelHandler, "/api/cancel", url.Values{
		"jobId": {"no-such-job"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}
