// Package config holds the agent's tunables, following xtop's config
// package in shape (a Default() struct plus an overlay loader) but sourced
// from the environment instead of a JSON file on disk, since this agent is
// meant to run as a supervised daemon/container rather than an interactive
// TUI with a user-editable config file.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every tunable the agent's components read at startup.
type Config struct {
	TracerPath  string // env TRACER_PATH
	GeminiModel string // env GEMINI_MODEL
	RCAEndpoint string // env RCA_ENDPOINT
	ListenAddr  string // env TRACEWATCH_LISTEN

	SampleInterval time.Duration // env SAMPLE_INTERVAL_SECONDS

	RetentionSeconds  int // env COLLECTOR_RETENTION_SECONDS
	GlobalRingSize    int // env COLLECTOR_GLOBAL_RING_SIZE
	PerPIDRingSize    int // env COLLECTOR_PER_PID_RING_SIZE
	TelemetryRingSize int // env STATE_TELEMETRY_RING_SIZE
	SpikeRingSize     int // env STATE_SPIKE_RING_SIZE
	MaxAttachedEvents int // env STATE_MAX_ATTACHED_EVENTS

	BaselineWindow      time.Duration // env DETECTOR_BASELINE_WINDOW_SECONDS
	ZScore              float64       // env DETECTOR_Z_SCORE
	DerivativeThreshold float64       // env DETECTOR_DERIVATIVE_THRESHOLD
	DerivativeLen       int           // env DETECTOR_DERIVATIVE_LEN
	ConfirmSeconds      time.Duration // env DETECTOR_CONFIRM_SECONDS
	CPUThreshold        float64       // env DETECTOR_CPU_THRESHOLD
	RAMThreshold        float64       // env DETECTOR_RAM_THRESHOLD
	CooldownSeconds     time.Duration // env DETECTOR_COOLDOWN_SECONDS

	RankerRidge   float64 // env RANKER_RIDGE
	RankerTopN    int     // env RANKER_TOP_N
	RCARetries    int     // env RCA_RETRIES
	RCABackoffSec float64 // env RCA_BACKOFF_BASE_SECONDS
}

// Default returns the agent's built-in defaults, matching spec.md's
// parameter tables exactly.
func Default() Config {
	return Config{
		TracerPath:  "./tracer",
		GeminiModel: "gemini-2.5-flash",
		RCAEndpoint: "",
		ListenAddr:  ":8090",

		SampleInterval: time.Second,

		RetentionSeconds:  100,
		GlobalRingSize:    10000,
		PerPIDRingSize:    2000,
		TelemetryRingSize: 300,
		SpikeRingSize:     2000,
		MaxAttachedEvents: 500,

		BaselineWindow:      300 * time.Second,
		ZScore:              2.5,
		DerivativeThreshold: 5.0,
		DerivativeLen:       3,
		ConfirmSeconds:      20 * time.Second,
		CPUThreshold:        75.0,
		RAMThreshold:        80.0,
		CooldownSeconds:     45 * time.Second,

		RankerRidge:   1e-3,
		RankerTopN:    15,
		RCARetries:    3,
		RCABackoffSec: 2.0,
	}
}

// FromEnv returns Default() overlaid with any of the recognized environment
// variables that are set. Malformed values are ignored and the default is
// kept, matching the original's tolerance for a bad config rather than
// refusing to start.
func FromEnv() Config {
	cfg := Default()

	str(&cfg.TracerPath, "TRACER_PATH")
	str(&cfg.GeminiModel, "GEMINI_MODEL")
	str(&cfg.RCAEndpoint, "RCA_ENDPOINT")
	str(&cfg.ListenAddr, "TRACEWATCH_LISTEN")

	seconds(&cfg.SampleInterval, "SAMPLE_INTERVAL_SECONDS")

	intVal(&cfg.RetentionSeconds, "COLLECTOR_RETENTION_SECONDS")
	intVal(&cfg.GlobalRingSize, "COLLECTOR_GLOBAL_RING_SIZE")
	intVal(&cfg.PerPIDRingSize, "COLLECTOR_PER_PID_RING_SIZE")
	intVal(&cfg.TelemetryRingSize, "STATE_TELEMETRY_RING_SIZE")
	intVal(&cfg.SpikeRingSize, "STATE_SPIKE_RING_SIZE")
	intVal(&cfg.MaxAttachedEvents, "STATE_MAX_ATTACHED_EVENTS")

	seconds(&cfg.BaselineWindow, "DETECTOR_BASELINE_WINDOW_SECONDS")
	floatVal(&cfg.ZScore, "DETECTOR_Z_SCORE")
	floatVal(&cfg.DerivativeThreshold, "DETECTOR_DERIVATIVE_THRESHOLD")
	intVal(&cfg.DerivativeLen, "DETECTOR_DERIVATIVE_LEN")
	seconds(&cfg.ConfirmSeconds, "DETECTOR_CONFIRM_SECONDS")
	floatVal(&cfg.CPUThreshold, "DETECTOR_CPU_THRESHOLD")
	floatVal(&cfg.RAMThreshold, "DETECTOR_RAM_THRESHOLD")
	seconds(&cfg.CooldownSeconds, "DETECTOR_COOLDOWN_SECONDS")

	floatVal(&cfg.RankerRidge, "RANKER_RIDGE")
	intVal(&cfg.RankerTopN, "RANKER_TOP_N")
	intVal(&cfg.RCARetries, "RCA_RETRIES")
	floatVal(&cfg.RCABackoffSec, "RCA_BACKOFF_BASE_SECONDS")

	return cfg
}

func str(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func intVal(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func floatVal(dst *float64, env string) {
	if v := os.Getenv(env); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func seconds(dst *time.Duration, env string) {
	if v := os.Getenv(env); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = time.Duration(f * float64(time.Second))
		}
	}
}
