package telemetry

import (
	"errors"
	"testing"
	"time"
)

type recordSink struct {
	events []Event
	err    error
}

func (s *recordSink) Write(evt Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, evt)
	return nil
}

func TestMultiFansOut(t *testing.T) {
	a := &recordSink{}
	b := &recordSink{}
	m := Multi{Sinks: []Sink{a, b}}

	evt := Event{Time: time.Now(), Kind: "terminated", CallID: "c1"}
	if err := m.Write(evt); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("events = %d/%d, want 1/1", len(a.events), len(b.events))
	}
}

func TestMultiSwallowsSinkErrors(t *testing.T) {
	bad := &recordSink{err: errors.New("down")}
	good := &recordSink{}
	m := Multi{Sinks: []Sink{bad, good}}

	if err := m.Write(Event{Kind: "incoming"}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if len(good.events) != 1 {
		t.Errorf("good sink events = %d, want 1", len(good.events))
	}
}

func TestLogSinkWrites(t *testing.T) {
	// LogSink must accept a nil logger and not panic.
	s := LogSink{}
	if err := s.Write(Event{Kind: "dial", Address: "1001"}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
}
