package nats

import (
	"context"
	"fmt"

	"github.com/avargas/gestock/pkg/messaging"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher sends domain events to JetStream, one message per event, on the
// subject the event names.
type Publisher struct {
	js jetstream.JetStream
}

func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

func (p *Publisher) Publish(ctx context.Context, event messaging.Event) error {
	data, err := event.Payload()
	if err != nil {
		return fmt.Errorf("failed to encode event for %s: %w", event.Subject(), err)
	}
	if _, err := p.js.Publish(ctx, event.Subject(), data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", event.Subject(), err)
	}
	return nil
}
