package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	cartdomain "github.com/dwikikusuma/marketplace-core/internal/cart/domain"
	cartpg "github.com/dwikikusuma/marketplace-core/internal/cart/infra/postgres"
	checkoutapp "github.com/dwikikusuma/marketplace-core/internal/checkout/app"
	"github.com/dwikikusuma/marketplace-core/internal/order/app"
	"github.com/dwikikusuma/marketplace-core/internal/order/domain"
	"github.com/dwikikusuma/marketplace-core/pkg/postgres"
)

type OrderRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db, now: time.Now}
}

const orderColumns = `o.id, o.user_id, o.items, o.shipping, o.status, o.payment_method, o.payment_status,
	o.subtotal, o.shipping_cost, o.total, o.notes, o.created_at, o.updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner, extra ...any) (domain.Order, error) {
	var (
		o         domain.Order
		items     []byte
		shipping  []byte
		status    string
		notes     sql.NullString
		updatedAt sql.NullTime
	)

	dest := []any{
		&o.ID, &o.UserID, &items, &shipping, &status, &o.PaymentMethod, &o.PaymentStatus,
		&o.Subtotal, &o.ShippingCost, &o.Total, &notes, &o.CreatedAt, &updatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return domain.Order{}, err
	}

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return domain.Order{}, fmt.Errorf("decode order %s items: %w", o.ID, err)
	}
	if err := json.Unmarshal(shipping, &o.Shipping); err != nil {
		return domain.Order{}, fmt.Errorf("decode order %s shipping: %w", o.ID, err)
	}
	o.Status = domain.Status(status)
	if notes.Valid {
		o.Notes = &notes.String
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		o.UpdatedAt = &t
	}
	return o, nil
}

func (r *OrderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *OrderRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *OrderRepo) ListAll(ctx context.Context, status *domain.Status, limit int) ([]domain.OrderWithUser, error) {
	var filter any
	if status != nil {
		filter = string(*status)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`, u.full_name, u.email
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		WHERE ($1::text IS NULL OR o.status = $1::text)
		ORDER BY o.created_at DESC
		LIMIT $2`, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("list all orders: %w", err)
	}
	defer rows.Close()

	out := []domain.OrderWithUser{}
	for rows.Next() {
		var name, email sql.NullString
		o, err := scanOrder(rows, &name, &email)
		if err != nil {
			return nil, err
		}
		row := domain.OrderWithUser{Order: o}
		if name.Valid {
			row.UserName = &name.String
		}
		if email.Valid {
			row.UserEmail = &email.String
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, to domain.Status, allow func(from domain.Status) error) (domain.Order, error) {
	var updated domain.Order

	err := postgres.ExecTx(ctx, r.db, func(tx *sql.Tx) error {
		o, err := scanOrder(tx.QueryRowContext(ctx,
			`SELECT `+orderColumns+` FROM orders o WHERE o.id = $1 FOR UPDATE`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return app.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}

		if err := allow(o.Status); err != nil {
			return err
		}
		if o.Status == to {
			updated = o
			return nil
		}

		at := r.now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`, id, string(to), at); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		o.Status = to
		o.UpdatedAt = &at
		updated = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

// PlaceOrderTx implements checkoutapp.OrderWriter. The cart row lock makes
// concurrent checkouts of the same cart serialise; only the first one sees
// the snapshot it priced.
func (r *OrderRepo) PlaceOrderTx(ctx context.Context, order domain.Order, snapshot []checkoutapp.CartItem) (domain.Order, error) {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return domain.Order{}, fmt.Errorf("encode order items: %w", err)
	}
	shipping, err := json.Marshal(order.Shipping)
	if err != nil {
		return domain.Order{}, fmt.Errorf("encode shipping: %w", err)
	}

	err = postgres.ExecTx(ctx, r.db, func(tx *sql.Tx) error {
		var raw []byte
		err := tx.QueryRowContext(ctx,
			`SELECT items FROM carts WHERE user_id = $1 FOR UPDATE`, order.UserID).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return checkoutapp.ErrEmptyCart
		}
		if err != nil {
			return fmt.Errorf("lock cart: %w", err)
		}

		current, err := cartpg.DecodeItems(raw)
		if err != nil {
			return err
		}
		if len(current) == 0 {
			return checkoutapp.ErrEmptyCart
		}
		if !cartdomain.SameItems(current, toCartItems(snapshot)) {
			return checkoutapp.ErrCartChanged
		}

		for _, it := range order.Items {
			if _, err := tx.ExecContext(ctx,
				`UPDATE products SET sales_count = sales_count + $2 WHERE id = $1`,
				it.ProductID, int64(it.Quantity)); err != nil {
				return fmt.Errorf("increment sales for %s: %w", it.ProductID, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO orders (id, user_id, items, shipping, status, payment_method, payment_status,
				subtotal, shipping_cost, total, notes, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			order.ID, order.UserID, string(items), string(shipping), string(order.Status), order.PaymentMethod, order.PaymentStatus,
			order.Subtotal, order.ShippingCost, order.Total, order.Notes, order.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE carts SET items = '[]'::jsonb, updated_at = now() WHERE user_id = $1`, order.UserID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func toCartItems(in []checkoutapp.CartItem) []cartdomain.CartItem {
	out := make([]cartdomain.CartItem, 0, len(in))
	for _, it := range in {
		out = append(out, cartdomain.CartItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}
