package app

import (
	"context"

	"github.com/shopspring/decimal"

	orderdomain "github.com/dwikikusuma/marketplace-core/internal/order/domain"
)

type CartItem struct {
	ProductID string
	Quantity  int32
}

// CartReader returns the caller's cart lines in cart order. A missing cart is
// an empty slice, not an error.
type CartReader interface {
	GetCart(ctx context.Context, userID string) ([]CartItem, error)
}

type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// CatalogReader returns ErrProductNotFound for unknown products.
type CatalogReader interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
}

// OrderWriter persists an order built from snapshot in one transaction: it
// checks the stored cart still equals snapshot, bumps product sales counters,
// inserts the order and clears the cart. It returns ErrEmptyCart or
// ErrCartChanged when the cart moved underneath the checkout.
type OrderWriter interface {
	PlaceOrderTx(ctx context.Context, order orderdomain.Order, snapshot []CartItem) (orderdomain.Order, error)
}

// Locker serialises checkouts of one user across instances.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(context.Context) error, error)
}
