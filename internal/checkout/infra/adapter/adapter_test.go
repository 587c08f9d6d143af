package adapter

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartapp "github.com/dwikikusuma/marketplace-core/internal/cart/app"
	cartdomain "github.com/dwikikusuma/marketplace-core/internal/cart/domain"
	catalogapp "github.com/dwikikusuma/marketplace-core/internal/catalog/app"
	catalogdomain "github.com/dwikikusuma/marketplace-core/internal/catalog/domain"
	checkoutapp "github.com/dwikikusuma/marketplace-core/internal/checkout/app"
)

type cartRepo struct {
	carts map[string]cartdomain.Cart
}

func (r cartRepo) Get(_ context.Context, userID string) (cartdomain.Cart, error) {
	c, ok := r.carts[userID]
	if !ok {
		return cartdomain.Cart{}, cartapp.ErrNotFound
	}
	return c, nil
}

func (r cartRepo) Update(context.Context, string, func(*cartdomain.Cart) error) (cartdomain.Cart, error) {
	panic("not used")
}

type productRepo struct {
	products map[string]catalogdomain.Product
}

func (r productRepo) Get(_ context.Context, id string) (catalogdomain.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return catalogdomain.Product{}, catalogapp.ErrNotFound
	}
	return p, nil
}

func TestCartServiceReader(t *testing.T) {
	repo := cartRepo{carts: map[string]cartdomain.Cart{
		"u-1": {UserID: "u-1", Items: []cartdomain.CartItem{{ProductID: "p2", Quantity: 1}, {ProductID: "p1", Quantity: 3}}},
	}}
	r := NewCartServiceReader(cartapp.NewService(repo))

	items, err := r.GetCart(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, []checkoutapp.CartItem{{ProductID: "p2", Quantity: 1}, {ProductID: "p1", Quantity: 3}}, items)

	items, err = r.GetCart(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCatalogServiceReader(t *testing.T) {
	repo := productRepo{products: map[string]catalogdomain.Product{
		"p1": {ID: "p1", Name: "Widget", Price: decimal.RequireFromString("12.50")},
	}}
	r := NewCatalogServiceReader(catalogapp.NewService(repo))

	p, err := r.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Widget", p.Name)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("12.5")))

	_, err = r.GetProduct(context.Background(), "gone")
	assert.ErrorIs(t, err, checkoutapp.ErrProductNotFound)
}
