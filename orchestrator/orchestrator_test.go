package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/ftahirops/tracewatch/clock"
	"github.com/ftahirops/tracewatch/config"
	"github.com/ftahirops/tracewatch/detector"
	"github.com/ftahirops/tracewatch/logging"
	"github.com/ftahirops/tracewatch/model"
	"github.com/ftahirops/tracewatch/procinfo"
	"github.com/ftahirops/tracewatch/rca"
	"github.com/ftahirops/tracewatch/state"
)

type fakeSampler struct{ cpu, ram float64 }

func (f fakeSampler) Sample() (float64, float64) { return f.cpu, f.ram }

type fakeEvents struct{ events []model.Event }

func (f fakeEvents) RecentEvents(limit int) []model.Event { return f.events }

type fakeIdentity struct{}

func (fakeIdentity) Lookup(pid int32) (procinfo.Info, bool) { return procinfo.Info{}, false }

type fakeRCA struct{ called int }

func (f *fakeRCA) Analyze(ctx context.Context, ev rca.Evidence) model.RCA {
	f.called++
	return rca.Fallback("test stub")
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.SampleInterval = time.Second
	cfg.BaselineWindow = 10 * time.Second
	cfg.ConfirmSeconds = 2 * time.Second
	cfg.DerivativeLen = 2
	cfg.CPUThreshold = 75
	cfg.RAMThreshold = 80
	cfg.ZScore = 2.5
	cfg.CooldownSeconds = 30 * time.Second
	return cfg
}

func TestTickAttachesRCAOnConfirmedSpike(t *testing.T) {
	cfg := testConfig()
	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	log := logging.New(nil)
	store := state.New(state.Config{TelemetryRingSize: 10, SpikeRingSize: 10, MaxAttachedEvents: 10}, fc)
	det := detector.New(detector.Config{
		BaselineWindow: cfg.BaselineWindow, SampleInterval: cfg.SampleInterval,
		ZScore: cfg.ZScore, DerivativeThreshold: cfg.DerivativeThreshold, DerivativeLen: cfg.DerivativeLen,
		ConfirmSeconds: cfg.ConfirmSeconds, CPUThreshold: cfg.CPUThreshold, RAMThreshold: cfg.RAMThreshold,
		CooldownSeconds: cfg.CooldownSeconds,
	}, fc)
	rcaFake := &fakeRCA{}

	o := New(cfg, fc, log, fakeSampler{cpu: 10, ram: 10}, det, store, fakeEvents{}, fakeIdentity{}, rcaFake)

	for i := 0; i < 15; i++ {
		o.tick(context.Background())
		fc.Advance(time.Second)
	}

	o2 := New(cfg, fc, log, fakeSampler{cpu: 95, ram: 95}, det, store, fakeEvents{}, fakeIdentity{}, rcaFake)
	for i := 0; i < 3; i++ {
		o2.tick(context.Background())
		fc.Advance(time.Second)
	}

	spikes := store.Spikes()
	if len(spikes) == 0 {
		t.Fatal("expected at least one confirmed spike")
	}
	if spikes[0].RCA == nil {
		t.Error("expected the confirmed spike to have an RCA attached")
	}
	if rcaFake.called == 0 {
		t.Error("expected the rca client to be invoked")
	}
}
