package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"

	DefaultPaymentMethod = "cash"
)

// Order is an immutable snapshot of a checkout. Only Status, PaymentStatus
// and UpdatedAt change after creation.
type Order struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Items         []OrderItem     `json:"items"`
	Shipping      ShippingAddress `json:"shipping"`
	Status        Status          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	PaymentStatus string          `json:"payment_status"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	ShippingCost  decimal.Decimal `json:"shipping_cost"`
	Total         decimal.Decimal `json:"total"`
	Notes         *string         `json:"notes"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     *time.Time      `json:"updated_at"`
}

// OrderItem records price and name as they were at purchase time.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int32           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Name      string          `json:"name"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt32(i.Quantity))
}

type ShippingAddress struct {
	FullName     string  `json:"full_name"`
	Phone        string  `json:"phone"`
	City         string  `json:"city"`
	Address      string  `json:"address"`
	PostalCode   *string `json:"postal_code"`
	NPDepartment *string `json:"np_department"`
	Notes        *string `json:"notes"`
}

// OrderWithUser is the admin listing row. UserName and UserEmail are nil when
// the owning user no longer exists.
type OrderWithUser struct {
	Order
	UserName  *string `json:"user_name"`
	UserEmail *string `json:"user_email"`
}

// Subtotal sums line totals.
func Subtotal(items []OrderItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}
