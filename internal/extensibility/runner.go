// Package extensibility provides pluggable host-side components for saga
// engines: handler runners, event sources and delivery filters.
package extensibility

import (
	"context"
	"log/slog"
	"time"

	"github.com/comalice/sagax/internal/core"
)

// DefaultRunner invokes the handler call as is.
type DefaultRunner struct{}

// Run executes call.
func (r *DefaultRunner) Run(ctx context.Context, inv core.Invocation, call func(context.Context) error) error {
	return call(ctx)
}

// LoggingRunner wraps a Runner and logs around each handler call.
type LoggingRunner struct {
	inner  core.Runner
	logger *slog.Logger
}

// NewLoggingRunner creates a LoggingRunner. A nil inner runner defaults to
// DefaultRunner and a nil logger to slog.Default().
func NewLoggingRunner(inner core.Runner, logger *slog.Logger) *LoggingRunner {
	if inner == nil {
		inner = &DefaultRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingRunner{inner: inner, logger: logger}
}

// Run logs before and after delegating to the inner runner.
func (r *LoggingRunner) Run(ctx context.Context, inv core.Invocation, call func(context.Context) error) error {
	attrs := []any{
		"instance", inv.InstanceID,
		"state", inv.State,
		"event", inv.Event.Type,
		"stage", inv.Stage,
		"index", inv.Index,
	}
	r.logger.DebugContext(ctx, "running handler", attrs...)
	start := time.Now()
	err := r.inner.Run(ctx, inv, call)
	attrs = append(attrs, "elapsed", time.Since(start))
	if err != nil {
		r.logger.ErrorContext(ctx, "handler failed", append(attrs, "error", err)...)
		return err
	}
	r.logger.DebugContext(ctx, "handler completed", attrs...)
	return nil
}

var (
	_ core.Runner = (*DefaultRunner)(nil)
	_ core.Runner = (*LoggingRunner)(nil)
)
