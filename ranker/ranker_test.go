package ranker

import (
	"testing"

	"github.com/ftahirops/tracewatch/model"
	"github.com/ftahirops/tracewatch/procinfo"
)

type stubIdentity map[int32]procinfo.Info

func (s stubIdentity) Lookup(pid int32) (procinfo.Info, bool) {
	info, ok := s[pid]
	return info, ok
}

func pidPtr(v int32) *int32 { return &v }

func TestRankOrdersHighestCPUFirst(t *testing.T) {
	events := []model.Event{
		{PID: pidPtr(100), EventType: "syscall", Task: "CPU", EventName: "sched"},
		{PID: pidPtr(100), EventType: "syscall", Task: "CPU", EventName: "sched"},
		{PID: pidPtr(200), EventType: "syscall", Task: "CPU", EventName: "sched"},
	}
	ids := stubIdentity{
		100: {PID: 100, Name: "hog", CPUPct: 95, RAMPct: 10},
		200: {PID: 200, Name: "idle-ish", CPUPct: 5, RAMPct: 5},
	}

	out := Rank(Config{Ridge: 1e-3, TopK: 15}, ids, events, 90, 50, nil, nil)

	if len(out) != 2 {
		t.Fatalf("expected 2 ranked candidates, got %d", len(out))
	}
	if out[0].PID != 100 {
		t.Errorf("expected pid 100 to rank first, got %d", out[0].PID)
	}
	if out[0].FinalScore < out[1].FinalScore {
		t.Errorf("expected descending final score, got %v then %v", out[0].FinalScore, out[1].FinalScore)
	}
}

func TestRankEmptyWithNoPIDEvents(t *testing.T) {
	events := []model.Event{{EventType: "syscall"}}
	out := Rank(Config{Ridge: 1e-3, TopK: 15}, stubIdentity{}, events, 90, 50, nil, nil)
	if out != nil {
		t.Errorf("expected nil result for pidless events, got %v", out)
	}
}

func TestRankTruncatesToTopK(t *testing.T) {
	var events []model.Event
	ids := stubIdentity{}
	for pid := int32(1); pid <= 20; pid++ {
		events = append(events, model.Event{PID: pidPtr(pid), EventType: "x"})
		ids[pid] = procinfo.Info{PID: pid, Name: "p", CPUPct: float64(pid)}
	}
	out := Rank(Config{Ridge: 1e-3, TopK: 15}, ids, events, 90, 50, nil, nil)
	if len(out) != 15 {
		t.Errorf("expected top-15 truncation, got %d", len(out))
	}
}

func TestCosineSimilarityZeroNorm(t *testing.T) {
	if got := cosineSimilarity([]float64{0, 0}, []float64{1, 1}); got != 0 {
		t.Errorf("expected 0 for zero-norm vector, got %v", got)
	}
}

func TestMedianOddEven(t *testing.T) {
	tests := []struct {
		name string
		vals []float64
		want float64
	}{
		{"odd", []float64{3, 1, 2}, 2},
		{"even", []float64{1, 2, 3, 4}, 2.5},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := median(tt.vals); got != tt.want {
				t.Errorf("median(%v) = %v, want %v", tt.vals, got, tt.want)
			}
		})
	}
}
