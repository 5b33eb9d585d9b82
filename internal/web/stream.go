package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/light-orchestra/internal/logger"
	"github.com/sweeney/light-orchestra/internal/status"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 4096,
}

// handleStream pushes a compact status frame immediately and then every
// interval until the client goes away or the server shuts down.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.DebugKV(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Reads only detect the close; clients send nothing we act on.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		frame := status.FormatStatusEvent(s.tracker.Snapshot(), "", "")
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}

		select {
		case <-ticker.C:
		case <-gone:
			return
		case <-s.closing:
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
			conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
	}
}
