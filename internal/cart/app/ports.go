package app

import (
	"context"

	"github.com/dwikikusuma/marketplace-core/internal/cart/domain"
)

type CartRepo interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	// Update loads (creating if needed) and locks the user's cart, applies fn
	// and persists the result atomically.
	Update(ctx context.Context, userID string, fn func(c *domain.Cart) error) (domain.Cart, error)
}
