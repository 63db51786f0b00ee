package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ftahirops/tracewatch/api"
	"github.com/ftahirops/tracewatch/clock"
	"github.com/ftahirops/tracewatch/collector"
	"github.com/ftahirops/tracewatch/config"
	"github.com/ftahirops/tracewatch/detector"
	"github.com/ftahirops/tracewatch/logging"
	"github.com/ftahirops/tracewatch/orchestrator"
	"github.com/ftahirops/tracewatch/procinfo"
	"github.com/ftahirops/tracewatch/rca"
	"github.com/ftahirops/tracewatch/sampler"
	"github.com/ftahirops/tracewatch/state"
	"github.com/ftahirops/tracewatch/util"
)

// run wires the agent's collaborators and blocks until SIGINT/SIGTERM.
func run() error {
	cfg := config.FromEnv()
	log := logging.New(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
	sysClock := clock.System{}

	if _, err := os.Stat(cfg.TracerPath); err != nil {
		return fmt.Errorf("tracer executable %s not found: %w", cfg.TracerPath, err)
	}

	identity := procinfo.NewReader(totalRAMKB())

	col := collector.New(collector.Config{
		TracerPath:       cfg.TracerPath,
		GlobalRingSize:   cfg.GlobalRingSize,
		PerPIDRingSize:   cfg.PerPIDRingSize,
		RetentionSeconds: cfg.RetentionSeconds,
	}, sysClock, log)
	col.OnPIDEvicted(identity.Forget)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collectorDone := make(chan error, 1)
	go func() { collectorDone <- col.Start(ctx) }()

	store := state.New(state.Config{
		TelemetryRingSize: cfg.TelemetryRingSize,
		SpikeRingSize:     cfg.SpikeRingSize,
		MaxAttachedEvents: cfg.MaxAttachedEvents,
	}, sysClock)

	det := detector.New(detector.Config{
		BaselineWindow:      cfg.BaselineWindow,
		SampleInterval:      cfg.SampleInterval,
		ZScore:              cfg.ZScore,
		DerivativeThreshold: cfg.DerivativeThreshold,
		DerivativeLen:       cfg.DerivativeLen,
		ConfirmSeconds:      cfg.ConfirmSeconds,
		CPUThreshold:        cfg.CPUThreshold,
		RAMThreshold:        cfg.RAMThreshold,
		CooldownSeconds:     cfg.CooldownSeconds,
	}, sysClock)

	rcaClient := rca.NewHTTPClient(rca.Config{
		Endpoint:    cfg.RCAEndpoint,
		Retries:     cfg.RCARetries,
		BackoffBase: time.Duration(cfg.RCABackoffSec * float64(time.Second)),
	}, log)

	orch := orchestrator.New(cfg, sysClock, log, sampler.New(), det, store, col, identity, rcaClient)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewServer(store, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.ErrorCtx(ctx, "api server failed", "error", err)
		}
	}()
	log.InfoCtx(ctx, "read api listening", "addr", cfg.ListenAddr)

	orchErr := orch.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = col.Stop()

	if err := <-collectorDone; err != nil && !strings.Contains(err.Error(), "context canceled") {
		log.WarnCtx(ctx, "collector exited with error", "error", err)
	}

	return orchErr
}

func totalRAMKB() uint64 {
	kv, err := util.ParseKeyValueFile("/proc/meminfo")
	if err != nil {
		return 0
	}
	fields := strings.Fields(kv["MemTotal"])
	if len(fields) == 0 {
		return 0
	}
	return util.ParseUint64(fields[0])
}
