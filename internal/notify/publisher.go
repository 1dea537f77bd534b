// Package notify publishes call events to an MQTT broker for external
// consumers such as dialer UIs and monitoring dashboards.
package notify

import "context"

// Publisher defines the interface for publishing messages.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}
