// Package httpapi serves the read-only article API.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"newshub/app"
	"newshub/domain"
)

type Server struct {
	query *app.QueryService
	log   *slog.Logger
}

func NewServer(query *app.QueryService, log *slog.Logger) *Server {
	return &Server{query: query, log: log}
}

// Handler returns the API wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var h http.HandlerFunc
	switch r.URL.Path {
	case "/articles":
		h = s.handleArticles
	case "/filters":
		h = s.handleFilters
	case "/status":
		h = s.handleStatus
	default:
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h(w, r)
}

type articlesResponse struct {
	Success bool `json:"success"`
	domain.ArticleList
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	q := parseArticleQuery(r.URL.Query())
	list, err := s.query.ListArticles(r.Context(), q)
	if err != nil {
		s.log.Error("list articles failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, articlesResponse{Success: true, ArticleList: list})
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	opts, err := s.query.FilterOptions(r.Context())
	if err != nil {
		s.log.Error("load filter options failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "filters": opts})
}

type statusResponse struct {
	Success bool `json:"success"`
	domain.StoreStatus
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.query.Status(r.Context())
	if err != nil {
		s.log.Error("status failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{Success: true, StoreStatus: st})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]any{"success": false, "error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"query", r.URL.RawQuery,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
