package rca

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ftahirops/tracewatch/logging"
	"github.com/ftahirops/tracewatch/model"
)

func TestHTTPClientAnalyzeSucceedsAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(model.RCA{
			CauseSummary:  "runaway GC",
			Confidence:    0.8,
			SeverityScore: 0.6,
			Recs:          []string{"a", "b", "c"},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(Config{Endpoint: srv.URL, Retries: 5, BackoffBase: time.Millisecond}, logging.New(nil))
	result := client.Analyze(context.Background(), Evidence{CollectedAt: "now"})

	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected exactly 3 attempts before success, got %d", calls)
	}
	if result.CauseSummary != "runaway GC" {
		t.Errorf("cause_summary = %q, want the endpoint's response to survive post-processing", result.CauseSummary)
	}
}

func TestHTTPClientAnalyzeFallsBackAfterExhaustingRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(Config{Endpoint: srv.URL, Retries: 3, BackoffBase: time.Millisecond}, logging.New(nil))
	result := client.Analyze(context.Background(), Evidence{CollectedAt: "now"})

	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected exactly cfg.Retries attempts, got %d", calls)
	}
	if err := Validate(result); err != nil {
		t.Errorf("fallback result should still pass validation, got: %v", err)
	}
	if result.Confidence != 0.40 {
		t.Errorf("confidence = %v, want fallback confidence 0.40", result.Confidence)
	}
}

func TestHTTPClientAnalyzeFallsBackWithoutEndpoint(t *testing.T) {
	client := NewHTTPClient(Config{Retries: 3, BackoffBase: time.Millisecond}, logging.New(nil))
	result := client.Analyze(context.Background(), Evidence{CollectedAt: "now"})
	if err := Validate(result); err != nil {
		t.Errorf("fallback result should pass validation, got: %v", err)
	}
}
