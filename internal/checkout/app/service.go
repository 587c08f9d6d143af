package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/dwikikusuma/marketplace-core/internal/auth"
	"github.com/dwikikusuma/marketplace-core/internal/checkout/domain"
	orderdomain "github.com/dwikikusuma/marketplace-core/internal/order/domain"
	"github.com/dwikikusuma/marketplace-core/pkg/events"
	"github.com/dwikikusuma/marketplace-core/pkg/logger"
	"github.com/dwikikusuma/marketplace-core/pkg/redislock"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrNoValidItems       = errors.New("no valid items in cart")
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product in cart is no longer available")
	ErrCartChanged        = errors.New("cart changed during checkout")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrInvalidShipping    = errors.New("invalid shipping address")
	ErrInvalidQuantity    = errors.New("cart item quantity must be positive")
)

type Options struct {
	Policy        domain.MissingProductPolicy
	MaxConcurrent int
	// Locker is optional; without it the cart row lock alone guards checkout.
	Locker Locker
	Events events.Publisher
	Logger *slog.Logger
}

type Service struct {
	Cart    CartReader
	Catalog CatalogReader
	Orders  OrderWriter

	locker        Locker
	events        events.Publisher
	log           *slog.Logger
	policy        domain.MissingProductPolicy
	maxConcurrent int

	now   func() time.Time
	newID func() string
}

func NewService(cart CartReader, catalog CatalogReader, orders OrderWriter, opts Options) *Service {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 10
	}
	if opts.Policy == "" {
		opts.Policy = domain.PolicySkip
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}

	return &Service{
		Cart:          cart,
		Catalog:       catalog,
		Orders:        orders,
		locker:        opts.Locker,
		events:        opts.Events,
		log:           logger.OrDiscard(opts.Logger),
		policy:        opts.Policy,
		maxConcurrent: opts.MaxConcurrent,
		now:           time.Now,
		newID:         uuid.NewString,
	}
}

func (s *Service) Quote(ctx context.Context, userID string) (domain.Quote, error) {
	items, err := s.Cart.GetCart(ctx, userID)
	if err != nil {
		return domain.Quote{}, err
	}
	if len(items) == 0 {
		return domain.Quote{}, ErrEmptyCart
	}
	return s.price(ctx, userID, items)
}

// price looks up every line concurrently and keeps the result in cart order.
func (s *Service) price(ctx context.Context, userID string, items []CartItem) (domain.Quote, error) {
	lines := make([]domain.QuoteLine, len(items))
	found := make([]bool, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for idx := range items {
		idx := idx
		g.Go(func() error {
			it := items[idx]
			if it.Quantity <= 0 {
				return fmt.Errorf("%w: %s has quantity %d", ErrInvalidQuantity, it.ProductID, it.Quantity)
			}

			product, err := s.Catalog.GetProduct(gctx, it.ProductID)
			if errors.Is(err, ErrProductNotFound) {
				if s.policy == domain.PolicyReject {
					return fmt.Errorf("%w: %s", ErrProductUnavailable, it.ProductID)
				}
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to get product %s: %w", it.ProductID, err)
			}

			lines[idx] = domain.QuoteLine{
				ProductID: it.ProductID,
				Name:      product.Name,
				Quantity:  it.Quantity,
				UnitPrice: product.Price,
				LineTotal: product.Price.Mul(decimal.NewFromInt32(it.Quantity)),
			}
			found[idx] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return domain.Quote{}, err
	}

	quote := domain.Quote{UserID: userID, Subtotal: decimal.Zero}
	for idx, line := range lines {
		if !found[idx] {
			quote.Skipped = append(quote.Skipped, items[idx].ProductID)
			continue
		}
		quote.Lines = append(quote.Lines, line)
		quote.Subtotal = quote.Subtotal.Add(line.LineTotal)
	}

	if len(quote.Lines) == 0 {
		return domain.Quote{}, ErrNoValidItems
	}
	return quote, nil
}

type CreateOrderInput struct {
	Shipping      orderdomain.ShippingAddress
	PaymentMethod string
	Notes         string
}

// CreateOrder turns the caller's cart into a pending order and empties the
// cart. A given cart state produces at most one order.
func (s *Service) CreateOrder(ctx context.Context, caller auth.Caller, in CreateOrderInput) (orderdomain.Order, error) {
	if caller.ID == "" {
		return orderdomain.Order{}, auth.ErrUnauthenticated
	}
	shipping, err := normalizeShipping(in.Shipping)
	if err != nil {
		return orderdomain.Order{}, err
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, caller.ID)
		switch {
		case errors.Is(err, redislock.ErrNotAcquired):
			return orderdomain.Order{}, ErrCheckoutInProgress
		case err != nil:
			s.log.WarnContext(ctx, "checkout lock unavailable, relying on cart row lock",
				slog.String("user_id", caller.ID), slog.Any("err", err))
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					s.log.WarnContext(ctx, "release checkout lock", slog.String("user_id", caller.ID), slog.Any("err", err))
				}
			}()
		}
	}

	items, err := s.Cart.GetCart(ctx, caller.ID)
	if err != nil {
		return orderdomain.Order{}, err
	}
	if len(items) == 0 {
		return orderdomain.Order{}, ErrEmptyCart
	}

	quote, err := s.price(ctx, caller.ID, items)
	if err != nil {
		return orderdomain.Order{}, err
	}
	if len(quote.Skipped) > 0 {
		s.log.InfoContext(ctx, "dropped unavailable products from checkout",
			slog.String("user_id", caller.ID), slog.Any("product_ids", quote.Skipped))
	}

	order := buildOrder(s.newID(), caller.ID, quote, shipping, in, s.now().UTC())

	placed, err := s.Orders.PlaceOrderTx(ctx, order, items)
	if err != nil {
		return orderdomain.Order{}, err
	}

	s.log.InfoContext(ctx, "order created",
		slog.String("order_id", placed.ID),
		slog.String("user_id", placed.UserID),
		slog.String("total", placed.Total.StringFixed(2)),
		slog.Int("items", len(placed.Items)))

	ev := events.Event{
		Type:       events.OrderCreated,
		Key:        placed.ID,
		OccurredAt: placed.CreatedAt,
		Payload: map[string]any{
			"order_id": placed.ID,
			"user_id":  placed.UserID,
			"total":    placed.Total,
			"items":    len(placed.Items),
		},
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.WarnContext(ctx, "publish order event", slog.String("order_id", placed.ID), slog.Any("err", err))
	}

	return placed, nil
}

func buildOrder(id, userID string, q domain.Quote, shipping orderdomain.ShippingAddress, in CreateOrderInput, now time.Time) orderdomain.Order {
	items := make([]orderdomain.OrderItem, 0, len(q.Lines))
	for _, l := range q.Lines {
		items = append(items, orderdomain.OrderItem{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.UnitPrice,
			Name:      l.Name,
		})
	}

	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		method = orderdomain.DefaultPaymentMethod
	}

	var notes *string
	if n := strings.TrimSpace(in.Notes); n != "" {
		notes = &n
	}

	shippingCost := decimal.Zero
	return orderdomain.Order{
		ID:            id,
		UserID:        userID,
		Items:         items,
		Shipping:      shipping,
		Status:        orderdomain.StatusPending,
		PaymentMethod: method,
		PaymentStatus: orderdomain.PaymentStatusPending,
		Subtotal:      q.Subtotal,
		ShippingCost:  shippingCost,
		Total:         q.Subtotal.Add(shippingCost),
		Notes:         notes,
		CreatedAt:     now,
	}
}

func normalizeShipping(a orderdomain.ShippingAddress) (orderdomain.ShippingAddress, error) {
	a.FullName = strings.TrimSpace(a.FullName)
	a.Phone = strings.TrimSpace(a.Phone)
	a.City = strings.TrimSpace(a.City)
	a.Address = strings.TrimSpace(a.Address)

	var missing []string
	for _, f := range []struct{ name, v string }{
		{"full_name", a.FullName}, {"phone", a.Phone}, {"city", a.City}, {"address", a.Address},
	} {
		if f.v == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return a, fmt.Errorf("%w: missing %s", ErrInvalidShipping, strings.Join(missing, ", "))
	}
	return a, nil
}
