package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dwikikusuma/marketplace-core/internal/catalog/app"
	"github.com/dwikikusuma/marketplace-core/internal/catalog/domain"
)

type ProductRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) *ProductRepo {
	return &ProductRepo{db: db}
}

func (r *ProductRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, price, sales_count, created_at, updated_at
		FROM products
		WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.SalesCount, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}
