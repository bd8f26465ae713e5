// Package events defines the wire format of the events published on the
// orders stream.
package events

import (
	"encoding/json"
	"time"

	"github.com/avargas/gestock/pkg/messaging"
	"github.com/google/uuid"
)

// AvailableOrder is one order that transitioned to AVAILABLE during a sweep.
type AvailableOrder struct {
	OrderID      uuid.UUID `json:"order_id"`
	CustomerID   uuid.UUID `json:"customer_id"`
	CustomerName string    `json:"customer_name,omitempty"`
	RequestedAt  time.Time `json:"requested_at"`
}

// OrdersAvailableEvent carries every order satisfied by one reconciliation
// sweep, for user-facing notification. Purely informational.
type OrdersAvailableEvent struct {
	Orders     []AvailableOrder `json:"orders"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func (e OrdersAvailableEvent) Subject() string {
	return messaging.OrdersAvailableSubject
}

func (e OrdersAvailableEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
