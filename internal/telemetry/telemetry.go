// Package telemetry defines the call event stream written to external
// sinks: structured logs, PostgreSQL, or an MQTT broker.
package telemetry

import (
	"log/slog"
	"time"
)

// Event is one call lifecycle occurrence.
type Event struct {
	Time    time.Time         `json:"time"`
	Kind    string            `json:"kind"`
	CallID  string            `json:"call_id,omitempty"`
	Address string            `json:"address,omitempty"`
	State   string            `json:"state,omitempty"`
	Cause   string            `json:"cause,omitempty"`
	Detail  map[string]string `json:"detail,omitempty"`
}

// Sink consumes events. Implementations must not block the caller for
// long; the tracker emits from its event loop.
type Sink interface {
	Write(evt Event) error
}

// LogSink writes events as structured log records.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Write(evt Event) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"kind", evt.Kind}
	if evt.CallID != "" {
		attrs = append(attrs, "call_id", evt.CallID)
	}
	if evt.Address != "" {
		attrs = append(attrs, "address", evt.Address)
	}
	if evt.State != "" {
		attrs = append(attrs, "state", evt.State)
	}
	if evt.Cause != "" {
		attrs = append(attrs, "cause", evt.Cause)
	}
	for k, v := range evt.Detail {
		attrs = append(attrs, k, v)
	}
	logger.Info("call event", attrs...)
	return nil
}

// Multi fans an event out to several sinks, logging write failures
// instead of propagating them.
type Multi struct {
	Sinks  []Sink
	Logger *slog.Logger
}

func (m Multi) Write(evt Event) error {
	for _, s := range m.Sinks {
		if err := s.Write(evt); err != nil {
			logger := m.Logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.Warn("telemetry sink write failed", "kind", evt.Kind, "error", err)
		}
	}
	return nil
}
