package app

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/marketplace-core/internal/catalog/domain"
)

type fakeRepo struct {
	products map[string]domain.Product
}

func (f fakeRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return domain.Product{}, ErrNotFound
	}
	return p, nil
}

func TestGetProduct(t *testing.T) {
	svc := NewService(fakeRepo{products: map[string]domain.Product{
		"p1": {ID: "p1", Name: "Widget", Price: decimal.RequireFromString("10.00")},
	}})

	t.Run("empty id -> invalid", func(t *testing.T) {
		_, err := svc.GetProduct(context.Background(), "   ")
		if err != ErrInvalidInput {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("unknown id -> not found", func(t *testing.T) {
		_, err := svc.GetProduct(context.Background(), "gone")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("found", func(t *testing.T) {
		p, err := svc.GetProduct(context.Background(), "p1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Name != "Widget" || !p.Price.Equal(decimal.NewFromInt(10)) {
			t.Fatalf("unexpected product: %+v", p)
		}
	})
}
