// Package api is the agent's read API: a small stdlib net/http server
// exposing the state store's spikes, RCAs, and telemetry, grounded on
// engine.MetricsStore's http.Handler pattern and cmd/root.go's
// http.Server wiring.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ftahirops/tracewatch/logging"
	"github.com/ftahirops/tracewatch/state"
)

var allowedOrigins = map[string]bool{
	"http://localhost:5173":  true,
	"http://127.0.0.1:5173": true,
}

// Server exposes the agent's read API over HTTP.
type Server struct {
	store *state.Store
	log   logging.Logger
}

// NewServer constructs a Server backed by store.
func NewServer(store *state.Store, log logging.Logger) *Server {
	return &Server{store: store, log: log}
}

// Handler returns the full routed http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/spikes", s.handleSpikes)
	mux.HandleFunc("/api/spikes/", s.handleSpikeByID)
	mux.HandleFunc("/api/latest-rca", s.handleLatestRCA)
	mux.HandleFunc("/api/telemetry/latest", s.handleTelemetryLatest)
	mux.HandleFunc("/api/telemetry/window", s.handleTelemetryWindow)
	return withCORS(mux)
}

// withCORS allows only the dashboard's two local dev origins, with
// credentials, per spec.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSpikes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"spikes": s.store.Spikes()})
}

func (s *Server) handleSpikeByID(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/spikes/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "spike id must be an integer")
		return
	}
	spike, ok := s.store.Spike(id)
	if !ok {
		writePlainText(w, http.StatusNotFound, fmt.Sprintf("Spike with id=%d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, spike)
}

func (s *Server) handleLatestRCA(w http.ResponseWriter, r *http.Request) {
	latest, ok := s.store.LatestRCA()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"latest_rca": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"latest_rca": latest})
}

func (s *Server) handleTelemetryLatest(w http.ResponseWriter, r *http.Request) {
	sample, ok := s.store.LatestTelemetry()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"telemetry": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"telemetry": sample})
}

func (s *Server) handleTelemetryWindow(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("seconds")
	if raw == "" {
		writeError(w, http.StatusUnprocessableEntity, "seconds is required")
		return
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 1 || seconds > 600 {
		writeError(w, http.StatusUnprocessableEntity, "seconds must be an integer in [1, 600]")
		return
	}
	samples := s.store.TelemetryWindow(seconds)
	writeJSON(w, http.StatusOK, map[string]any{
		"window_seconds": seconds,
		"samples":        samples,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writePlainText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
