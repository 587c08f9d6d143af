package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dwikikusuma/marketplace-core/internal/payment/app"
	"github.com/dwikikusuma/marketplace-core/internal/payment/domain"
	"github.com/dwikikusuma/marketplace-core/pkg/postgres"
)

type PaymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

func (r *PaymentRepo) Create(ctx context.Context, p domain.Payment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, amount, status, provider_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.OrderID, p.Amount, p.Status, p.ProviderID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *PaymentRepo) Get(ctx context.Context, id string) (domain.Payment, error) {
	var (
		p          domain.Payment
		providerID sql.NullString
		updatedAt  sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, amount, status, provider_id, created_at, updated_at
		FROM payments
		WHERE id = $1`, id,
	).Scan(&p.ID, &p.OrderID, &p.Amount, &p.Status, &providerID, &p.CreatedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Payment{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Payment{}, err
	}

	if providerID.Valid {
		p.ProviderID = &providerID.String
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		p.UpdatedAt = &t
	}
	return p, nil
}

// ApplyCallbackTx logs every delivery and applies it unless the payment
// already holds the incoming status, in which case it is a redelivery.
func (r *PaymentRepo) ApplyCallbackTx(ctx context.Context, u app.CallbackUpdate) (app.CallbackResult, error) {
	var res app.CallbackResult

	err := postgres.ExecTx(ctx, r.db, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT order_id, status FROM payments WHERE id = $1 FOR UPDATE`, u.PaymentID).Scan(&res.OrderID, &current)
		if errors.Is(err, sql.ErrNoRows) {
			return app.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock payment: %w", err)
		}
		res.Duplicate = current == u.Status

		var payload any
		if len(u.Payload) > 0 {
			payload = string(u.Payload)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO payment_events (payment_id, status, payload, received_at, applied)
			VALUES ($1, $2, $3, $4, $5)`,
			u.PaymentID, u.Status, payload, u.ReceivedAt, !res.Duplicate); err != nil {
			return fmt.Errorf("record payment event: %w", err)
		}
		if res.Duplicate {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1`,
			u.PaymentID, u.Status, u.ReceivedAt); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}

		if u.Status == domain.StatusSuccess {
			upd, err := tx.ExecContext(ctx,
				`UPDATE orders SET payment_status = 'paid' WHERE id = $1 AND payment_status <> 'paid'`, res.OrderID)
			if err != nil {
				return fmt.Errorf("mark order paid: %w", err)
			}
			n, err := upd.RowsAffected()
			if err != nil {
				return err
			}
			res.MarkedPaid = n > 0
		}
		return nil
	})
	if err != nil {
		return app.CallbackResult{}, err
	}
	return res, nil
}
