package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dwikikusuma/marketplace-core/internal/cart/app"
	"github.com/dwikikusuma/marketplace-core/internal/cart/domain"
	"github.com/dwikikusuma/marketplace-core/pkg/postgres"
)

type CartRepo struct {
	db *sql.DB
}

func NewCartRepo(db *sql.DB) *CartRepo {
	return &CartRepo{db: db}
}

// itemJSON is the stored shape of one cart line inside carts.items.
type itemJSON struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

func EncodeItems(items []domain.CartItem) ([]byte, error) {
	rows := make([]itemJSON, 0, len(items))
	for _, it := range items {
		rows = append(rows, itemJSON{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return json.Marshal(rows)
}

func DecodeItems(raw []byte) ([]domain.CartItem, error) {
	var rows []itemJSON
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("decode cart items: %w", err)
		}
	}
	items := make([]domain.CartItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, domain.CartItem{ProductID: r.ProductID, Quantity: r.Quantity})
	}
	return items, nil
}

const selectCart = `SELECT user_id, items, created_at, updated_at FROM carts WHERE user_id = $1`

func scanCart(row *sql.Row) (domain.Cart, error) {
	var (
		c   domain.Cart
		raw []byte
	)
	if err := row.Scan(&c.UserID, &raw, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return domain.Cart{}, err
	}
	items, err := DecodeItems(raw)
	if err != nil {
		return domain.Cart{}, err
	}
	c.Items = items
	return c, nil
}

func (r *CartRepo) Get(ctx context.Context, userID string) (domain.Cart, error) {
	cart, err := scanCart(r.db.QueryRowContext(ctx, selectCart, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Cart{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

func (r *CartRepo) Update(ctx context.Context, userID string, fn func(c *domain.Cart) error) (domain.Cart, error) {
	var updated domain.Cart

	err := postgres.ExecTx(ctx, r.db, func(tx *sql.Tx) error {
		// one cart per user: concurrent first writes collapse onto the same row
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO carts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
			return fmt.Errorf("ensure cart: %w", err)
		}

		cart, err := scanCart(tx.QueryRowContext(ctx, selectCart+` FOR UPDATE`, userID))
		if err != nil {
			return fmt.Errorf("lock cart: %w", err)
		}

		if err := fn(&cart); err != nil {
			return err
		}

		raw, err := EncodeItems(cart.Items)
		if err != nil {
			return err
		}

		err = tx.QueryRowContext(ctx,
			`UPDATE carts SET items = $2, updated_at = now() WHERE user_id = $1 RETURNING updated_at`,
			userID, string(raw),
		).Scan(&cart.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update cart: %w", err)
		}

		updated = cart
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return updated, nil
}
