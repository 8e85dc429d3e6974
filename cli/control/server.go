package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"newshub/app"
	"newshub/domain"
)

var ErrAlreadyRunning = errors.New("already running")

// TryListen tries to bind the control address. If it's already in use, we assume an instance is running.
func TryListen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, ErrAlreadyRunning
	}
	return ln, nil
}

type Server struct {
	agg domain.Aggregator
	log *slog.Logger
}

func NewServer(agg domain.Aggregator, log *slog.Logger) *Server {
	return &Server{agg: agg, log: log}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/trigger":
		s.handleTrigger(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/set-interval":
		s.handleSetInterval(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/set-workers":
		s.handleSetWorkers(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	sum, err := s.agg.Trigger(r.Context())
	if err != nil {
		s.log.Warn("manual trigger failed", "error", err)
		code := http.StatusBadGateway
		if errors.Is(err, app.ErrRunInProgress) {
			code = http.StatusConflict
		}
		writeJSON(w, code, map[string]any{"ok": false, "error": err.Error(), "summary": sum})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "summary": sum})
}

func (s *Server) handleSetInterval(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Duration string `json:"duration"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	d, err := time.ParseDuration(req.Duration)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid duration: %v", err), http.StatusBadRequest)
		return
	}

	old := s.agg.CurrentSchedule()
	if err := s.agg.SetInterval(d); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "old": old, "new": s.agg.CurrentSchedule()})
}

func (s *Server) handleSetWorkers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Workers int `json:"workers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	old := s.agg.CurrentWorkers()
	if err := s.agg.Resize(req.Workers); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "old": old, "new": req.Workers})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
