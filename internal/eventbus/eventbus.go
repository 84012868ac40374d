// Package eventbus publishes domain notifications (stream.truncated,
// report.generated) that downstream estate tooling can subscribe to,
// independent of the medallion store itself.
package eventbus

import "context"

// Event is a small, serialisable domain notification.
type Event struct {
	Topic   string
	Key     string
	Payload map[string]interface{}
}

// Publisher is the boundary ingestion and reporting depend on to emit
// domain events; NoOp is the default, Kafka is the production backend.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoOp drops every event. Safe zero-value default when no broker is
// configured.
type NoOp struct{}

func (NoOp) Publish(ctx context.Context, event Event) error { return nil }
