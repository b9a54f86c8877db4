package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"expiry-tracker/internal/products"
)

const healthCheckTimeout = 2 * time.Second

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p products.Product) (products.Product, error) {
	query := `
		INSERT INTO products (name, production_date, shelf_life_days, expiry_date, calendar_event_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	if err := r.db.QueryRowContext(ctx, query,
		p.Name, p.ProductionDate, p.ShelfLifeDays, p.ExpiryDate, nullEventID(p.CalendarEventID),
	).Scan(&p.ID); err != nil {
		return products.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (products.Product, error) {
	query := `
		SELECT id, name, production_date, shelf_life_days, expiry_date, calendar_event_id
		FROM products
		WHERE id = $1
	`

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return products.Product{}, products.ErrNotFound
	}
	if err != nil {
		return products.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

func (r *PostgresRepository) Update(ctx context.Context, p products.Product) error {
	query := `
		UPDATE products
		SET name = $2, production_date = $3, shelf_life_days = $4, expiry_date = $5, calendar_event_id = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.ProductionDate, p.ShelfLifeDays, p.ExpiryDate, nullEventID(p.CalendarEventID),
	)
	if err != nil {
		return fmt.Errorf("update product %d: %w", p.ID, err)
	}
	return requireAffected(result)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM products WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	return requireAffected(result)
}

// List returns every product ordered by expiry date, oldest insert first on ties.
func (r *PostgresRepository) List(ctx context.Context) ([]products.Product, error) {
	query := `
		SELECT id, name, production_date, shelf_life_days, expiry_date, calendar_event_id
		FROM products
		ORDER BY expiry_date ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	return scanProducts(rows)
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return total, nil
}

func (r *PostgresRepository) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	return r.db.PingContext(ctx)
}
