package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/avargas/gestock/pkg/messaging"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

func NewClient(url string, timeout time.Duration) (*nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Timeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// NewOrdersJetStream wraps the connection in a JetStream context and makes
// sure the stream carrying order events exists. Both the server and the
// notifier go through here so neither depends on the other having run first.
func NewOrdersJetStream(ctx context.Context, nc *nats.Conn) (jetstream.JetStream, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     messaging.OrdersStream,
		Subjects: []string{messaging.OrdersSubjects},
	}); err != nil {
		return nil, fmt.Errorf("failed to ensure stream %s: %w", messaging.OrdersStream, err)
	}
	return js, nil
}
