package app

import (
	"context"
	"errors"
	"strings"

	"github.com/dwikikusuma/marketplace-core/internal/cart/domain"
)

var (
	ErrNotFound     = errors.New("cart not found")
	ErrInvalidInput = errors.New("invalid input")
)

type Service struct {
	repo CartRepo
}

func NewService(repo CartRepo) *Service {
	return &Service{
		repo: repo,
	}
}

func (s *Service) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	return s.repo.Get(ctx, userID)
}

// GetOrEmpty returns an empty cart instead of ErrNotFound.
func (s *Service) GetOrEmpty(ctx context.Context, userID string) (domain.Cart, error) {
	cart, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return domain.Cart{UserID: userID}, nil
	}
	return cart, err
}

func (s *Service) AddItemToCart(ctx context.Context, userID string, item domain.CartItem) (domain.Cart, error) {
	if strings.TrimSpace(item.ProductID) == "" || item.Quantity <= 0 {
		return domain.Cart{}, ErrInvalidInput
	}
	return s.repo.Update(ctx, userID, func(c *domain.Cart) error {
		return c.Add(item)
	})
}

func (s *Service) SetItemQuantity(ctx context.Context, userID string, item domain.CartItem) (domain.Cart, error) {
	if strings.TrimSpace(item.ProductID) == "" || item.Quantity < 0 {
		return domain.Cart{}, ErrInvalidInput
	}
	return s.repo.Update(ctx, userID, func(c *domain.Cart) error {
		return c.SetQuantity(item)
	})
}

func (s *Service) RemoveItemFromCart(ctx context.Context, userID, productID string) (domain.Cart, error) {
	if strings.TrimSpace(productID) == "" {
		return domain.Cart{}, ErrInvalidInput
	}
	return s.repo.Update(ctx, userID, func(c *domain.Cart) error {
		c.Remove(productID)
		return nil
	})
}
