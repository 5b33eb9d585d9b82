package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sweeney/light-orchestra/internal/command"
	"github.com/sweeney/light-orchestra/internal/logger"
)

const maxBodyBytes = 4 << 10

type okResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// playNoteRequest is the body of POST /play_note. Duration is in seconds.
type playNoteRequest struct {
	Frequency float64 `json:"frequency"`
	Duration  float64 `json:"duration"`
}

// toneRequest is the body of POST /tone.
type toneRequest struct {
	Freq float64 `json:"freq"`
	Ms   float64 `json:"ms"`
	Duty float64 `json:"duty"`
}

func (s *Server) handlePlayNote(w http.ResponseWriter, r *http.Request) {
	var req playNoteRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := command.Play(req.Frequency, time.Duration(req.Duration*float64(time.Second)), 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.submit(w, r, c, "Note playing started.")
}

func (s *Server) handleTone(w http.ResponseWriter, r *http.Request) {
	var req toneRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := command.Play(req.Freq, time.Duration(req.Ms*float64(time.Millisecond)), req.Duty)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.submit(w, r, c, fmt.Sprintf("Tone %d Hz for %v started.", c.FrequencyHz, c.Duration))
}

func (s *Server) handleSimple(kind command.Kind, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.submit(w, r, command.Command{Kind: kind, Text: string(kind)}, message)
	}
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, c command.Command, message string) {
	c.Source = command.SourceHTTP
	if s.commands.Offer(c) {
		logger.DebugKV(r.Context(), "pending command superseded", "by", c.String())
	}
	logger.InfoKV(r.Context(), "http command", "command", c.String(), "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, okResponse{Status: "ok", Message: message})
}

// decode reads a JSON body into v, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
