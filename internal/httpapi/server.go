// Package httpapi exposes the read-only query surface over C10's store:
// signal history, aggregate stats, session history, and CSV/JSON export.
// The live feed travels over the WebSocket hub, not this API.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"orderflow-engine/cache"
	"orderflow-engine/model"
	"orderflow-engine/store"
)

// statsCacheKey and statsCacheTTL bound how stale the /api/stats
// aggregate can be when a cache is configured; the underlying GROUP BY
// query is the single most expensive one this API serves.
const (
	statsCacheKey = "httpapi:stats:v1"
	statsCacheTTL = 5 * time.Second
)

// Server is the HTTP query API over one Store. cache may be nil.
type Server struct {
	store *store.Store
	cache *cache.Cache
}

// NewServer builds a query API server over st, optionally read-through
// cached via c (pass nil to disable caching).
func NewServer(st *store.Store, c *cache.Cache) *Server {
	return &Server{store: st, cache: c}
}

// Handler returns the fully wired http.Handler: routes plus the
// CORS/logging middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/signals", s.handleSignals)
	mux.HandleFunc("GET /api/signals/export", s.handleExport)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("GET /health", s.handleHealth)
	return s.corsMiddleware(s.loggingMiddleware(mux))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSignals serves GET /api/signals?signal_type=&direction=&outcome=&start_date=&end_date=&limit=&offset=
func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	signals, err := s.store.QuerySignals(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, signals)
}

// handleExport serves GET /api/signals/export?format=csv|json, sharing
// the same filter query params as handleSignals.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	signals, err := s.store.QuerySignals(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "json", "":
		data, err := store.ExportJSON(signals)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	case "csv":
		data, err := store.ExportCSV(signals)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="signals.csv"`)
		w.Write(data)
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unsupported format %q", r.URL.Query().Get("format")))
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var stats []store.TypeStat
	if err := s.cache.Get(r.Context(), statsCacheKey, &stats); err == nil {
		writeJSON(w, http.StatusOK, stats)
		return
	}

	stats, err := s.store.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.cache.Set(r.Context(), statsCacheKey, stats, statsCacheTTL); err != nil {
		log.Printf("cache: set stats: %v", err)
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleSessions serves GET /api/sessions?limit=
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("bad limit: %w", err))
			return
		}
		limit = n
	}
	sessions, err := s.store.QuerySessions(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func parseFilter(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	var f store.Filter
	f.Type = model.SignalType(q.Get("signal_type"))
	f.Direction = model.Direction(q.Get("direction"))
	f.Outcome = model.Outcome(q.Get("outcome"))

	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("bad start_date: %w", err)
		}
		f.Start = t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("bad end_date: %w", err)
		}
		f.End = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("bad limit: %w", err)
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("bad offset: %w", err)
		}
		f.Offset = n
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
