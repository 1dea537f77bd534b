package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/imstrack/imstrack/internal/telemetry"
)

// EventSink publishes call events as JSON, one topic per event kind
// under a common prefix, e.g. "imstrack/events/terminated".
type EventSink struct {
	pub     Publisher
	prefix  string
	timeout time.Duration
}

// NewEventSink wraps pub as a telemetry.Sink publishing under prefix.
func NewEventSink(pub Publisher, prefix string) *EventSink {
	if prefix == "" {
		prefix = "imstrack/events"
	}
	return &EventSink{pub: pub, prefix: prefix, timeout: 5 * time.Second}
}

// Write publishes one event.
func (s *EventSink) Write(evt telemetry.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.pub.Publish(ctx, s.prefix+"/"+evt.Kind, payload)
}
