// -----------------------------------------------------------------------
// Verb handlers - one endpoint per middleware façade verb
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lwfm/internal/models"
	"github.com/ternarybob/lwfm/internal/services/middleware"
)

// VerbHandler exposes the façade verbs over form-encoded opaque payloads.
// Payload fields are serialized domain objects; the transport never sees
// their internals.
type VerbHandler struct {
	manager *middleware.LwfManager
	logger  arbor.ILogger
}

// NewVerbHandler creates the verb handler over the façade.
func NewVerbHandler(manager *middleware.LwfManager, logger arbor.ILogger) *VerbHandler {
	return &VerbHandler{manager: manager, logger: logger}
}

// EmitStatusHandler handles POST /api/emit
func (h *VerbHandler) EmitStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	jobCtx, err := models.Deserialize[models.JobContext](r.FormValue("context"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "malformed job context")
		return
	}
	status := models.ParseStatus(r.FormValue("status"))

	persisted, err := h.manager.EmitStatus(jobCtx, status, r.FormValue("nativeStatus"), r.FormValue("nativeInfo"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeSerialized(w, persisted)
}

// SubmitHandler handles POST /api/submit
func (h *VerbHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	defn, err := models.Deserialize[models.JobDefn](r.FormValue("defn"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "malformed job definition")
		return
	}

	var parent *models.JobContext
	if raw := r.FormValue("parent"); raw != "" {
		parent, err = models.Deserialize[models.JobContext](raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "malformed parent context")
			return
		}
	}

	var runArgs []string
	if raw := r.FormValue("runArgs"); raw != "" {
		args, err := models.Deserialize[[]string](raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "malformed run args")
			return
		}
		runArgs = *args
	}

	status := h.manager.Submit(defn, parent, r.FormValue("computeType"), runArgs)
	if status == nil {
		WriteError(w, http.StatusBadRequest, "submit rejected")
		return
	}
	h.writeSerialized(w, status)
}

// SetEventHandler handles POST /api/event/set
func (h *VerbHandler) SetEventHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	event, err := models.Deserialize[models.WorkflowEvent](r.FormValue("event"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "malformed event")
		return
	}

	status := h.manager.SetEvent(event)
	if status == nil {
		WriteError(w, http.StatusBadRequest, "setEvent rejected")
		return
	}
	h.writeSerialized(w, status)
}

// UnsetEventHandler handles POST /api/event/unset
func (h *VerbHandler) UnsetEventHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := h.manager.UnsetEvent(r.FormValue("eventId")); err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetStatusHandler handles GET /api/status?jobId=
func (h *VerbHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	status := h.manager.GetStatus(r.URL.Query().Get("jobId"))
	if status == nil {
		WriteError(w, http.StatusNotFound, "unknown job")
		return
	}
	h.writeSerialized(w, status)
}

// GetAllStatusesHandler handles GET /api/statuses?jobId=
func (h *VerbHandler) GetAllStatusesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	h.writeSerialized(w, h.manager.GetAllStatuses(r.URL.Query().Get("jobId")))
}

// CancelHandler handles POST /api/cancel
func (h *VerbHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if !h.manager.Cancel(r.FormValue("jobId")) {
		WriteError(w, http.StatusConflict, "cancel refused")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// FindHandler handles POST /api/find
func (h *VerbHandler) FindHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	query, err := models.Deserialize[map[string]string](r.FormValue("query"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "malformed query")
		return
	}
	h.writeSerialized(w, h.manager.Find(*query))
}

// FindWorkflowsHandler handles POST /api/workflows/find
func (h *VerbHandler) FindWorkflowsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	query, err := models.Deserialize[map[string]string](r.FormValue("query"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "malformed query")
		return
	}
	h.writeSerialized(w, h.manager.FindWorkflows(*query))
}

// NotatePutHandler handles POST /api/notate/put
func (h *VerbHandler) NotatePutHandler(w http.ResponseWriter, r *http.Request) {
	h.notate(w, r, h.manager.NotatePut)
}

// NotateGetHandler handles POST /api/notate/get
func (h *VerbHandler) NotateGetHandler(w http.ResponseWriter, r *http.Request) {
	h.notate(w, r, h.manager.NotateGet)
}

func (h *VerbHandler) notate(w http.ResponseWriter, r *http.Request, verb func(*models.JobContext, string, string, map[string]string) *models.Metasheet) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var jobCtx *models.JobContext
	if raw := r.FormValue("context"); raw != "" {
		parsed, err := models.Deserialize[models.JobContext](raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "malformed job context")
			return
		}
		jobCtx = parsed
	}

	props := map[string]string{}
	if raw := r.FormValue("props"); raw != "" {
		parsed, err := models.Deserialize[map[string]string](raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "malformed props")
			return
		}
		props = *parsed
	}

	sheet := verb(jobCtx, r.FormValue("localPath"), r.FormValue("siteObjPath"), props)
	if sheet == nil {
		WriteError(w, http.StatusBadRequest, "notate rejected")
		return
	}
	h.writeSerialized(w, sheet)
}

// DumpWorkflowHandler handles GET /api/workflow/dump?workflowId=
func (h *VerbHandler) DumpWorkflowHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	dump := h.manager.DumpWorkflow(r.URL.Query().Get("workflowId"))
	if dump == nil {
		WriteError(w, http.StatusNotFound, "unknown workflow")
		return
	}
	h.writeSerialized(w, dump)
}

// LogsHandler handles GET /api/logs?jobId=
func (h *VerbHandler) LogsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	h.writeSerialized(w, h.manager.Logs(r.URL.Query().Get("jobId")))
}

func (h *VerbHandler) writeSerialized(w http.ResponseWriter, v interface{}) {
	payload, err := models.Serialize(v)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to serialize response payload")
		WriteError(w, http.StatusInternalServerError, "serialization failed")
		return
	}
	WritePayload(w, payload)
}
