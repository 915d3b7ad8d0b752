package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route - live log stream
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - status verbs
	mux.HandleFunc("/api/emit", s.app.VerbHandler.EmitStatusHandler)         // POST - emit a job status
	mux.HandleFunc("/api/status", s.app.VerbHandler.GetStatusHandler)        // GET - latest status for a job
	mux.HandleFunc("/api/statuses", s.app.VerbHandler.GetAllStatusesHandler) // GET - full status history

	// API routes - job control
	mux.HandleFunc("/api/submit", s.app.VerbHandler.SubmitHandler) // POST - submit a job definition
	mux.HandleFunc("/api/cancel", s.app.VerbHandler.CancelHandler) // POST - cancel a running job

	// API routes - workflow events
	mux.HandleFunc("/api/event/set", s.app.VerbHandler.SetEventHandler)     // POST - register an event rule
	mux.HandleFunc("/api/event/unset", s.app.VerbHandler.UnsetEventHandler) // POST - remove an event rule

	// API routes - data notation and search
	mux.HandleFunc("/api/notate/put", s.app.VerbHandler.NotatePutHandler) // POST - record a put notation
	mux.HandleFunc("/api/notate/get", s.app.VerbHandler.NotateGetHandler) // POST - record a get notation
	mux.HandleFunc("/api/find", s.app.VerbHandler.FindHandler)            // POST - metasheet search
	mux.HandleFunc("/api/workflows/find", s.app.VerbHandler.FindWorkflowsHandler)

	// API routes - reporting
	mux.HandleFunc("/api/workflow/dump", s.app.VerbHandler.DumpWorkflowHandler) // GET - workflow aggregate
	mux.HandleFunc("/api/logs", s.app.VerbHandler.LogsHandler)                  // GET - job log records

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}
