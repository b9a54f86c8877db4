package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"expiry-tracker/internal/products"

	"github.com/go-sql-driver/mysql"
)

const mysqlURLPrefix = "mysql://"

type MySQLRepository struct {
	db *sql.DB
}

func NewMySQL(db *sql.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

// MySQLDSN turns a migrate-style mysql:// URL into a driver DSN. Dates are
// parsed into time.Time and UPDATE reports matched rows, so an update that
// changes nothing is not mistaken for a missing product.
func MySQLDSN(databaseURL string) (string, error) {
	cfg, err := mysql.ParseDSN(strings.TrimPrefix(databaseURL, mysqlURLPrefix))
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}

func (r *MySQLRepository) Create(ctx context.Context, p products.Product) (products.Product, error) {
	query := `
		INSERT INTO products (name, production_date, shelf_life_days, expiry_date, calendar_event_id)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		p.Name, p.ProductionDate, p.ShelfLifeDays, p.ExpiryDate, nullEventID(p.CalendarEventID),
	)
	if err != nil {
		return products.Product{}, fmt.Errorf("insert product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return products.Product{}, fmt.Errorf("last insert id: %w", err)
	}
	p.ID = id
	return p, nil
}

func (r *MySQLRepository) Get(ctx context.Context, id int64) (products.Product, error) {
	query := `
		SELECT id, name, production_date, shelf_life_days, expiry_date, calendar_event_id
		FROM products
		WHERE id = ?
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

func (r *MySQLRepository) Update(ctx context.Context, p products.Product) error {
	query := `
		UPDATE products
		SET name = ?, production_date = ?, shelf_life_days = ?, expiry_date = ?, calendar_event_id = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		p.Name, p.ProductionDate, p.ShelfLifeDays, p.ExpiryDate, nullEventID(p.CalendarEventID), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product %d: %w", p.ID, err)
	}
	return requireAffected(result)
}

func (r *MySQLRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	return requireAffected(result)
}

func (r *MySQLRepository) List(ctx context.Context) ([]products.Product, error) {
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

func (r *MySQLRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return total, nil
}

func (r *MySQLRepository) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	return r.db.PingContext(ctx)
}
