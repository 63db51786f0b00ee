// Package logging is the agent's single structured-logging entry point,
// wrapping log/slog the way 99souls-ariadne's telemetry/logging package
// wraps it, minus the trace/span injection this agent has no tracer for.
package logging

import (
	"context"
	"log/slog"
	"os"
)

// Logger is the narrow interface every package in this agent logs through.
type Logger interface {
	InfoCtx(ctx context.Context, msg string, attrs ...any)
	WarnCtx(ctx context.Context, msg string, attrs ...any)
	ErrorCtx(ctx context.Context, msg string, attrs ...any)
	DebugCtx(ctx context.Context, msg string, attrs ...any)
	// Tracer returns a child logger that tags every record with
	// source=tracer_stderr so lines read from the tracer subprocess's stderr
	// are visibly distinct from the agent's own logs.
	Tracer() Logger
}

type logger struct{ base *slog.Logger }

// New wraps base, or builds a JSON handler on stderr at info level if base
// is nil.
func New(base *slog.Logger) Logger {
	if base == nil {
		base = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &logger{base: base}
}

func (l *logger) InfoCtx(ctx context.Context, msg string, attrs ...any) {
	l.base.InfoContext(ctx, msg, attrs...)
}

func (l *logger) WarnCtx(ctx context.Context, msg string, attrs ...any) {
	l.base.WarnContext(ctx, msg, attrs...)
}

func (l *logger) ErrorCtx(ctx context.Context, msg string, attrs ...any) {
	l.base.ErrorContext(ctx, msg, attrs...)
}

func (l *logger) DebugCtx(ctx context.Context, msg string, attrs ...any) {
	l.base.DebugContext(ctx, msg, attrs...)
}

func (l *logger) Tracer() Logger {
	return &logger{base: l.base.With(slog.String("source", "tracer_stderr"))}
}
