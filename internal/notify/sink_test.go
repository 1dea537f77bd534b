package notify

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/imstrack/imstrack/internal/telemetry"
)

func TestEventSinkPublishes(t *testing.T) {
	pub := NewMockPublisher()
	sink := NewEventSink(pub, "test/events")

	evt := telemetry.Event{
		Time:    time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC),
		Kind:    "terminated",
		CallID:  "call-1",
		Address: "1001",
		Cause:   "normal",
	}
	if err := sink.Write(evt); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	msgs := pub.Messages()
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if msgs[0].Topic != "test/events/terminated" {
		t.Errorf("topic = %q, want test/events/terminated", msgs[0].Topic)
	}

	var got telemetry.Event
	if err := json.Unmarshal(msgs[0].Payload, &got); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if got.CallID != "call-1" || got.Cause != "normal" {
		t.Errorf("payload = %+v", got)
	}
}

func TestEventSinkDefaultPrefix(t *testing.T) {
	pub := NewMockPublisher()
	sink := NewEventSink(pub, "")

	if err := sink.Write(telemetry.Event{Kind: "incoming"}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	msgs := pub.Messages()
	if len(msgs) != 1 || msgs[0].Topic != "imstrack/events/incoming" {
		t.Errorf("topic = %v, want imstrack/events/incoming", msgs)
	}
}

func TestEventSinkPublishError(t *testing.T) {
	pub := NewMockPublisher()
	pub.SetError(errors.New("broker down"))
	sink := NewEventSink(pub, "")

	if err := sink.Write(telemetry.Event{Kind: "incoming"}); err == nil {
		t.Fatal("expected publish error")
	}
}
