package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dwikikusuma/marketplace-core/internal/payment/domain"
)

type SessionRequest struct {
	AmountMinor int64
	Currency    string
	ExternalID  string
	Description string
	CallbackURL string
}

type Session struct {
	ProviderID  string
	CheckoutURL string
}

// Gateway opens a hosted checkout session at the payment provider.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}

type CallbackUpdate struct {
	PaymentID  string
	Status     string
	Payload    json.RawMessage
	ReceivedAt time.Time
}

type CallbackResult struct {
	// Duplicate is set when this (payment, status) pair was already applied.
	Duplicate bool
	OrderID   string
	// MarkedPaid is set when the order's payment status moved to paid.
	MarkedPaid bool
}

type PaymentRepo interface {
	Create(ctx context.Context, p domain.Payment) error
	Get(ctx context.Context, id string) (domain.Payment, error)
	// ApplyCallbackTx records the callback, updates the payment and, for
	// successful payments, the owning order, all in one transaction.
	// Unknown payments return ErrNotFound and leave nothing behind.
	ApplyCallbackTx(ctx context.Context, u CallbackUpdate) (CallbackResult, error)
}
