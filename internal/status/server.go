// internal/status/server.go
package status

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/user/pulsebot/internal/eventlog"
	"github.com/user/pulsebot/internal/metrics"
	"github.com/user/pulsebot/internal/types"
)

// Server exposes health and telemetry introspection endpoints. It sits
// outside the export path; a failing handler is logged and never touches
// the pipeline.
type Server struct {
	collector *metrics.Collector
	events    *eventlog.Log
	mux       *http.ServeMux
}

// NewServer creates a status Server over the given metrics collector and
// event log.
func NewServer(collector *metrics.Collector, events *eventlog.Log) *Server {
	s := &Server{
		collector: collector,
		events:    events,
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.HandleFunc("GET /events", s.handleEvents)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		http.Error(w, `{"error":"metrics not configured"}`, http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.collector.Snapshot())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		http.Error(w, `{"error":"event log not configured"}`, http.StatusServiceUnavailable)
		return
	}

	limit := 100
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := s.events.Tail(limit)
	if err != nil {
		slog.Error("tail event log failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []*types.Event{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}
