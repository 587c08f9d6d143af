package events

import (
	"context"
	"time"
)

const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
	PaymentSucceeded   = "payment.succeeded"
)

type Event struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards events. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
