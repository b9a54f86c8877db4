package repository

import (
	"database/sql"
	"fmt"

	"expiry-tracker/internal/products"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (products.Product, error) {
	var (
		p       products.Product
		eventID sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.ProductionDate, &p.ShelfLifeDays, &p.ExpiryDate, &eventID); err != nil {
		return products.Product{}, err
	}
	if eventID.Valid {
		id := eventID.Int64
		p.CalendarEventID = &id
	}
	return p, nil
}

func scanProducts(rows *sql.Rows) ([]products.Product, error) {
	defer rows.Close()

	list := make([]products.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		list = append(list, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return list, nil
}

func nullEventID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return products.ErrNotFound
	}
	return nil
}
