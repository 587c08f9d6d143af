package app

import (
	"context"

	"github.com/dwikikusuma/marketplace-core/internal/order/domain"
)

type OrderRepo interface {
	Get(ctx context.Context, id string) (domain.Order, error)
	// ListByUser returns the user's orders newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Order, error)
	// ListAll returns orders of every user newest first, optionally filtered
	// by status.
	ListAll(ctx context.Context, status *domain.Status, limit int) ([]domain.OrderWithUser, error)
	// UpdateStatus locks the order, passes its current status to allow and
	// writes the new status only when allow returns nil. Setting the current
	// status again leaves the row untouched.
	UpdateStatus(ctx context.Context, id string, to domain.Status, allow func(from domain.Status) error) (domain.Order, error)
}
