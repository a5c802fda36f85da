package ports

import (
	"context"
	"time"
)

// OrderOutcomeEvent is published after a callback changed an order
type OrderOutcomeEvent struct {
	EventID            string    `json:"event_id"`
	OrderNo            string    `json:"order_no"`
	CustomerID         string    `json:"customer_id,omitempty"`
	Decision           string    `json:"decision"`
	OrderStatus        string    `json:"order_status"`
	ConfirmationStatus string    `json:"confirmation_status"`
	TransactionID      string    `json:"transaction_id,omitempty"`
	TransactionStatus  string    `json:"transaction_status,omitempty"`
	Amount             string    `json:"amount,omitempty"`
	Currency           string    `json:"currency,omitempty"`
	OccurredAt         time.Time `json:"occurred_at"`
}

// EventPublisher publishes order outcome events to downstream consumers
type EventPublisher interface {
	PublishOrderOutcome(ctx context.Context, event *OrderOutcomeEvent) error
	Close() error
}
