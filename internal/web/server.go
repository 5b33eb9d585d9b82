// Package web provides the HTTP status page, the command API, a websocket
// status stream and the Prometheus endpoint.
package web

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/light-orchestra/internal/command"
	"github.com/sweeney/light-orchestra/internal/logger"
	"github.com/sweeney/light-orchestra/internal/status"
)

// DefaultStreamInterval is how often /ws pushes a status frame.
const DefaultStreamInterval = time.Second

// Server serves status and accepts commands over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	commands   *command.Mailbox
	interval   time.Duration

	closeOnce sync.Once
	closing   chan struct{}
}

// New creates a Server that reads state from tracker and posts commands to
// commands. streamInterval <= 0 selects DefaultStreamInterval.
func New(addr string, tracker *status.Tracker, commands *command.Mailbox, streamInterval time.Duration) *Server {
	if streamInterval <= 0 {
		streamInterval = DefaultStreamInterval
	}
	s := &Server{
		tracker:  tracker,
		commands: commands,
		interval: streamInterval,
		closing:  make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /index.html", s.handleIndex)
	mux.HandleFunc("GET /index.json", s.handleJSON)
	mux.HandleFunc("GET /ws", s.handleStream)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /play_note", s.handlePlayNote)
	mux.HandleFunc("POST /tone", s.handleTone)
	mux.HandleFunc("POST /stop", s.handleSimple(command.KindStop, "All sounds stopped."))
	mux.HandleFunc("POST /start", s.handleSimple(command.KindStart, "Light trigger armed."))
	mux.HandleFunc("POST /calibrate", s.handleSimple(command.KindCalibrate, "Calibration started."))

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server and ends open streams.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		logger.WarnKV(r.Context(), "render status page", "error", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}
