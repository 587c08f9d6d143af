package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dwikikusuma/marketplace-core/internal/auth"
	"github.com/dwikikusuma/marketplace-core/internal/order/domain"
	"github.com/dwikikusuma/marketplace-core/pkg/events"
	"github.com/dwikikusuma/marketplace-core/pkg/logger"
)

var (
	ErrNotFound     = errors.New("order not found")
	ErrInvalidInput = errors.New("invalid input")
)

const (
	OwnOrdersLimit = 100
	AdminListLimit = 500
)

type Options struct {
	// Transitions defaults to domain.ForwardOnly.
	Transitions domain.TransitionPolicy
	Events      events.Publisher
	Logger      *slog.Logger
}

type Service struct {
	repo        OrderRepo
	transitions domain.TransitionPolicy
	events      events.Publisher
	log         *slog.Logger
}

func NewService(repo OrderRepo, opts Options) *Service {
	if opts.Transitions == nil {
		opts.Transitions = domain.ForwardOnly{}
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	return &Service{
		repo:        repo,
		transitions: opts.Transitions,
		events:      opts.Events,
		log:         logger.OrDiscard(opts.Logger),
	}
}

func (s *Service) GetOwnOrders(ctx context.Context, caller auth.Caller) ([]domain.Order, error) {
	if caller.ID == "" {
		return nil, auth.ErrUnauthenticated
	}
	return s.repo.ListByUser(ctx, caller.ID, OwnOrdersLimit)
}

// GetOrder returns the order to its owner or to an admin.
func (s *Service) GetOrder(ctx context.Context, caller auth.Caller, orderID string) (domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, ErrInvalidInput
	}

	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !caller.CanAccess(order.UserID) {
		return domain.Order{}, auth.ErrForbidden
	}
	return order, nil
}

func (s *Service) ListAllOrders(ctx context.Context, caller auth.Caller, status *domain.Status) ([]domain.OrderWithUser, error) {
	if err := caller.RequireAdmin(); err != nil {
		return nil, err
	}
	return s.repo.ListAll(ctx, status, AdminListLimit)
}

func (s *Service) UpdateStatus(ctx context.Context, caller auth.Caller, orderID, status string) (domain.Order, error) {
	if err := caller.RequireAdmin(); err != nil {
		return domain.Order{}, err
	}
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, ErrInvalidInput
	}
	to, err := domain.ParseStatus(status)
	if err != nil {
		return domain.Order{}, err
	}

	var from domain.Status
	order, err := s.repo.UpdateStatus(ctx, orderID, to, func(current domain.Status) error {
		from = current
		return s.transitions.Allow(current, to)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if from == to {
		return order, nil
	}

	s.log.InfoContext(ctx, "order status changed",
		slog.String("order_id", orderID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("by", caller.ID))

	ev := events.Event{
		Type: events.OrderStatusChanged,
		Key:  orderID,
		Payload: map[string]any{
			"order_id": orderID,
			"from":     from,
			"to":       to,
		},
	}
	if order.UpdatedAt != nil {
		ev.OccurredAt = *order.UpdatedAt
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.WarnContext(ctx, "publish status event", slog.String("order_id", orderID), slog.Any("err", err))
	}
	return order, nil
}

// ParseStatusFilter turns an optional query value into a status filter.
func ParseStatusFilter(raw string) (*domain.Status, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	st, err := domain.ParseStatus(raw)
	if err != nil {
		return nil, fmt.Errorf("status filter: %w", err)
	}
	return &st, nil
}
