package messaging

import (
	"context"
)

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subjects used on the orders stream.
const (
	OrdersStream           = "ORDERS"
	OrdersSubjects         = "orders.>"
	OrdersAvailableSubject = "orders.available"
)
