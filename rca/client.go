// Package rca is the agent's RCA Client adapter: it builds the evidence
// prompt, calls the external root-cause-analysis service, validates and
// safety-normalizes the response, and guarantees a non-empty result even
// when the call never succeeds. Ported from
// original_source/gemini_client/gemini_client.py's analyze_root_cause.
package rca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ftahirops/tracewatch/logging"
	"github.com/ftahirops/tracewatch/model"
)

const functionSchemaName = "report_root_cause_analysis"

// Client analyzes a spike's evidence and returns an RCA. Implementations
// must never return an error — callers get a guaranteed, if degraded,
// result via Fallback.
type Client interface {
	Analyze(ctx context.Context, ev Evidence) model.RCA
}

// Config holds the client's retry tunables.
type Config struct {
	Endpoint    string
	Retries     int
	BackoffBase time.Duration
}

// HTTPClient posts the evidence prompt to an external RCA endpoint (e.g. a
// hosted LLM function-calling proxy) as JSON and parses its response into
// an RCA, retrying with exponential backoff the way the original retries
// Gemini calls.
type HTTPClient struct {
	cfg    Config
	http   *http.Client
	log    logging.Logger
}

// NewHTTPClient constructs an HTTPClient with a 10s per-attempt timeout,
// generous enough for a hosted model call without blocking the 1Hz
// orchestrator loop indefinitely.
func NewHTTPClient(cfg Config, log logging.Logger) *HTTPClient {
	return &HTTPClient{
		cfg:  cfg,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  log,
	}
}

type wireRequest struct {
	SchemaName string `json:"schema_name"`
	Prompt     string `json:"prompt"`
}

// Analyze calls the RCA endpoint up to cfg.Retries times with
// BackoffBase*2^(attempt-1) delays between attempts, matching the
// original's `2.0 * 2 ** (attempt-1)` backoff. On exhausted retries (or an
// unconfigured endpoint) it returns the guaranteed Fallback response.
func (c *HTTPClient) Analyze(ctx context.Context, ev Evidence) model.RCA {
	if c.cfg.Endpoint == "" {
		return Fallback("no RCA endpoint configured")
	}

	prompt := buildPrompt(functionSchemaName, ev)
	corrID := uuid.NewString()

	var lastErr error
	retries := c.cfg.Retries
	if retries < 1 {
		retries = 1
	}

	for attempt := 1; attempt <= retries; attempt++ {
		result, err := c.attempt(ctx, corrID, prompt)
		if err == nil {
			return PostProcess(result)
		}
		lastErr = err
		c.log.WarnCtx(ctx, "rca attempt failed",
			"correlation_id", corrID, "attempt", attempt, "retries", retries, "error", err)

		if attempt < retries {
			delay := time.Duration(float64(c.cfg.BackoffBase) * math.Pow(2, float64(attempt-1)))
			select {
			case <-ctx.Done():
				return Fallback(ctx.Err().Error())
			case <-time.After(delay):
			}
		}
	}

	c.log.ErrorCtx(ctx, "rca failed after retries", "correlation_id", corrID, "error", lastErr)
	return Fallback(lastErr.Error())
}

func (c *HTTPClient) attempt(ctx context.Context, corrID, prompt string) (model.RCA, error) {
	body, err := json.Marshal(wireRequest{SchemaName: functionSchemaName, Prompt: prompt})
	if err != nil {
		return model.RCA{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return model.RCA{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-ID", corrID)

	resp, err := c.http.Do(req)
	if err != nil {
		return model.RCA{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return model.RCA{}, fmt.Errorf("rca endpoint returned status %d", resp.StatusCode)
	}

	var out model.RCA
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.RCA{}, fmt.Errorf("decode rca response: %w", err)
	}
	if err := Validate(out); err != nil {
		return model.RCA{}, fmt.Errorf("schema validation error: %w", err)
	}
	return out, nil
}
