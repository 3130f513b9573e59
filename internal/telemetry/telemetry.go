// Package telemetry carries analytics events out of the hand-off pipeline.
// Emit is fire-and-forget: sinks never return errors to the caller.
package telemetry

import (
	"context"

	"github.com/cassiomorais/payauth/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// Event names shared by every payment method. Method-scoped names are built
// with Name.
const (
	TokenizeSelected  = "tokenize:selected"
	TokenizeStarted   = "tokenize:started"
	TokenizeSucceeded = "tokenize:succeeded"
	TokenizeFailed    = "tokenize:failed"
	TokenizeCanceled  = "tokenize:canceled"
	HandoffStarted    = "handoff:started"
	HandoffFailed     = "handoff:failed"
	ReturnIgnored     = "return:ignored"
	VaultSucceeded    = "vault:succeeded"
	VaultFailed       = "vault:failed"
)

// Name scopes event to a payment method, e.g. "paypal:tokenize:started".
func Name(method, event string) string {
	return method + ":" + event
}

// Sink receives analytics events.
type Sink interface {
	Emit(ctx context.Context, name, correlationID string)
}

type Nop struct{}

func (Nop) Emit(context.Context, string, string) {}

// LogSink writes each event as a debug log line.
type LogSink struct {
	Logger zerolog.Logger
}

func (s LogSink) Emit(_ context.Context, name, correlationID string) {
	s.Logger.Debug().Str("event", name).Str("correlation_id", correlationID).Msg("telemetry event")
}

// MetricsSink counts events by name.
type MetricsSink struct {
	Metrics *observability.Metrics
}

func (s MetricsSink) Emit(_ context.Context, name, _ string) {
	s.Metrics.TelemetryEvents.WithLabelValues(name).Inc()
}

// Multi fans an event out to every sink.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, name, correlationID string) {
	for _, s := range m {
		s.Emit(ctx, name, correlationID)
	}
}
