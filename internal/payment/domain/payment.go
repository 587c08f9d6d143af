package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending = "pending"
	// StatusSuccess is the provider status that marks the order as paid.
	StatusSuccess = "success"
)

var ErrInvalidAmount = errors.New("amount must be positive with at most two decimal places")

// Payment is the local record of one provider checkout session. ID is also
// sent to the provider as external_id.
type Payment struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"order_id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	ProviderID *string         `json:"provider_id"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  *time.Time      `json:"updated_at"`
}

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts an amount to kopecks. Amounts that are not positive
// or carry sub-kopeck precision are rejected rather than rounded.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrInvalidAmount
	}
	minor := amount.Mul(hundred)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, ErrInvalidAmount
	}
	if !minor.BigInt().IsInt64() {
		return 0, ErrInvalidAmount
	}
	return minor.IntPart(), nil
}
