package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/ftahirops/tracewatch/clock"
	"github.com/ftahirops/tracewatch/logging"
	"github.com/ftahirops/tracewatch/model"
	"github.com/ftahirops/tracewatch/state"
)

func newTestServer() (*Server, *state.Store) {
	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := state.New(state.Config{TelemetryRingSize: 10, SpikeRingSize: 10, MaxAttachedEvents: 10}, fc)
	return NewServer(store, logging.New(nil)), store
}

func TestHandleSpikesEmpty(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/spikes", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got struct {
		Spikes []model.SpikeRecord `json:"spikes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Spikes) != 0 {
		t.Errorf("expected empty spike list, got %d", len(got.Spikes))
	}
}

func TestHandleSpikeByIDNotFound(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/spikes/999", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if got := rec.Body.String(); got != "Spike with id=999 not found" {
		t.Errorf("body = %q, want exact spec wording", got)
	}
}

func TestHandleSpikeByIDInvalid(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/spikes/not-a-number", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestHandleSpikeByIDFound(t *testing.T) {
	s, store := newTestServer()
	spike := store.AddSpike(model.SpikeInfo{SpikeType: model.SpikeCPU, SeverityScore: 5}, "test")

	req := httptest.NewRequest(http.MethodGet, "/api/spikes/"+strconv.FormatInt(spike.ID, 10), nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandleLatestRCANullUntilAttached(t *testing.T) {
	s, store := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/latest-rca", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even with no rca yet", rec.Code)
	}
	var before struct {
		LatestRCA *model.RCA `json:"latest_rca"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &before); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if before.LatestRCA != nil {
		t.Error("expected latest_rca to be null before any rca attached")
	}

	spike := store.AddSpike(model.SpikeInfo{}, "test")
	store.AttachRCA(spike.ID, &model.RCA{CauseSummary: "x", Confidence: 0.5, Recs: []string{"a"}})

	rec2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec2, req)
	var after struct {
		LatestRCA *model.RCA `json:"latest_rca"`
	}
	if err := json.Unmarshal(rec2.Body.Bytes(), &after); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if after.LatestRCA == nil {
		t.Error("expected latest_rca to be populated after attach")
	}
}

func TestHandleTelemetryWindowRejectsOutOfRangeSeconds(t *testing.T) {
	tests := []string{"0", "601", "-1", "not-a-number"}
	for _, seconds := range tests {
		s, _ := newTestServer()
		req := httptest.NewRequest(http.MethodGet, "/api/telemetry/window?seconds="+seconds, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("seconds=%s: status = %d, want 422", seconds, rec.Code)
		}
	}
}

func TestHandleTelemetryWindowReturnsEnvelope(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/telemetry/window?seconds=60", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got struct {
		WindowSeconds int                      `json:"window_seconds"`
		Samples       []model.TelemetrySample  `json:"samples"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.WindowSeconds != 60 {
		t.Errorf("window_seconds = %d, want 60", got.WindowSeconds)
	}
}

func TestCORSAllowsOnlyConfiguredOrigins(t *testing.T) {
	s, _ := newTestServer()

	req := httptest.NewRequest(http.MethodOptions, "/api/spikes", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Error("expected allowed origin to be echoed back")
	}

	req2 := httptest.NewRequest(http.MethodOptions, "/api/spikes", nil)
	req2.Header.Set("Origin", "http://evil.example.com")
	rec2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec2, req2)
	if rec2.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("expected disallowed origin to receive no CORS header")
	}
}
