// Package notify consumes order availability events and notifies customers
// that their orders are ready.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/avargas/gestock/pkg/config"
	"github.com/avargas/gestock/pkg/messaging/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"
)

// Start initializes the JetStream consumer and starts multiple worker goroutines to process messages.
func Start(ctx context.Context, js jetstream.JetStream, subscriberCfg config.SubscriberConfig, logger *slog.Logger) error {
	cfg := jetstream.ConsumerConfig{
		FilterSubject: subscriberCfg.Subject,
		Durable:       subscriberCfg.Consumer,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}
	consumer, err := js.CreateOrUpdateConsumer(ctx, subscriberCfg.Stream, cfg)
	if err != nil {
		return err
	}
	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < subscriberCfg.Workers; i++ {
		g.Go(func() error {
			return runWorker(gCtx, consumer, subscriberCfg.Timeout, subscriberCfg.Interval, logger)
		})
	}
	return g.Wait()
}

// runWorker fetches messages from the JetStream consumer and processes them.
func runWorker(ctx context.Context, consumer jetstream.Consumer, timeout time.Duration, interval time.Duration, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			// ctx was cancelled or timed out (e.g., application shutdown)
			return ctx.Err()
		default:
			batch, err := consumer.Fetch(1, jetstream.FetchMaxWait(timeout))
			if err != nil {
				// if the error is a timeout, we can just continue to the next iteration
				if errors.Is(err, nats.ErrTimeout) {
					continue
				}
				logger.Error("failed to fetch messages", "error", err)
				// for other errors, we can log and retry
				time.Sleep(interval)
				continue
			}
			for msg := range batch.Messages() {
				handleMessage(msg, logger)
			}
		}
	}
}

// handleMessage processes a single availability event.
func handleMessage(msg jetstream.Msg, logger *slog.Logger) {
	if msg == nil {
		logger.Error("received nil message")
		return
	}
	var event events.OrdersAvailableEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		logger.Error("failed to unmarshal message", "error", err, "subject", msg.Subject())
		if err := msg.Nak(); err != nil {
			logger.Error("failed to nack message", "error", err)
		}
		return
	}

	for _, order := range event.Orders {
		logger.Info("order is ready for delivery",
			slog.String("subject", msg.Subject()),
			slog.String("order_id", order.OrderID.String()),
			slog.String("customer_id", order.CustomerID.String()),
			slog.String("customer_name", order.CustomerName),
			slog.String("requested_at", order.RequestedAt.Format(time.RFC3339)))
		notificationJob()
	}

	if err := msg.Ack(); err != nil {
		logger.Error("failed to ack message", "error", err)
	}
}

// notificationJob simulates delivering the notification to the customer.
func notificationJob() {
	// simulate some processing time
	time.Sleep(100 * time.Millisecond)
}
