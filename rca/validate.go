package rca

import (
	"fmt"
	"math"
	"strings"

	"github.com/ftahirops/tracewatch/model"
)

// Validate checks an RCA response against the function-call schema's
// required shape. No JSON-schema library exists anywhere in this agent's
// dependency pack, so validation is hand-written against the same fields
// original_source's gemini_schema.json constrains: cause_summary must be
// non-empty, confidence and severity_score must be finite and in [0,1],
// and recs must be present.
func Validate(r model.RCA) error {
	if strings.TrimSpace(r.CauseSummary) == "" {
		return fmt.Errorf("cause_summary is required")
	}
	if math.IsNaN(r.Confidence) || r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0,1]", r.Confidence)
	}
	if math.IsNaN(r.SeverityScore) || r.SeverityScore < 0 || r.SeverityScore > 1 {
		return fmt.Errorf("severity_score %v out of range [0,1]", r.SeverityScore)
	}
	if r.Recs == nil {
		return fmt.Errorf("recs is required")
	}
	return nil
}
