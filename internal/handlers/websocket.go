// -----------------------------------------------------------------------
// WebSocket handler - live log record stream
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lwfm/internal/services/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The service binds loopback by default; cross-origin GUI clients are allowed.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler streams live log records to connected clients.
type WSHandler struct {
	stream *middleware.LogStream
	logger arbor.ILogger
}

// NewWSHandler creates the websocket handler over the log stream.
func NewWSHandler(stream *middleware.LogStream, logger arbor.ILogger) *WSHandler {
	return &WSHandler{stream: stream, logger: logger}
}

// HandleWebSocket upgrades the connection and forwards log records until
// the client disconnects.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := h.stream.Subscribe()
	defer h.stream.Unsubscribe(sub)

	// Reader goroutine detects client disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case record, ok := <-sub:
			if !ok {
				return
			}
			if err := conn.WriteJSON(record); err != nil {
				return
			}
		}
	}
}
