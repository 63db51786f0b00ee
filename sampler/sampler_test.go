package sampler

import (
	"testing"

	"github.com/ftahirops/tracewatch/model"
)

func TestCPUPercentDelta(t *testing.T) {
	tests := []struct {
		name          string
		prevUser      uint64
		prevIdle      uint64
		curUser       uint64
		curIdle       uint64
		wantApproxPct float64
	}{
		{"half active", 0, 0, 50, 50, 50},
		{"fully idle", 0, 0, 0, 100, 0},
		{"fully active", 0, 0, 100, 0, 100},
		{"no elapsed time", 100, 100, 100, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			s.prev = model.CPUTimes{User: tt.prevUser, Idle: tt.prevIdle}
			s.have = true

			cur := model.CPUTimes{User: tt.curUser, Idle: tt.curIdle}
			totalDelta := float64(cur.Total() - s.prev.Total())
			activeDelta := float64(cur.Active() - s.prev.Active())

			var pct float64
			if totalDelta > 0 {
				pct = activeDelta / totalDelta * 100
			}
			if diff := pct - tt.wantApproxPct; diff > 0.001 || diff < -0.001 {
				t.Errorf("got %v, want %v", pct, tt.wantApproxPct)
			}
		})
	}
}

func TestCPUPercentFirstCallHasNoBaseline(t *testing.T) {
	s := New()
	if s.have {
		t.Fatalf("fresh sampler should have no baseline")
	}
}
