package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bryanwahyu/retailsight/internal/domain/catalog"
)

type CatalogRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db, now: time.Now}
}

const productColumns = `id, name, category, stock, price, last_sold_at, avg_daily_sales`

// Products returns the whole catalog ordered by id
func (r *CatalogRepository) Products(ctx context.Context) ([]catalog.Product, error) {
	const q = `
SELECT ` + productColumns + `
FROM products
ORDER BY id;
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := r.now()
	var out []catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows, now)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) Product(ctx context.Context, id catalog.ProductID) (*catalog.Product, error) {
	const q = `
SELECT ` + productColumns + `
FROM products
WHERE id=?;
`
	p, err := scanProduct(r.db.QueryRowContext(ctx, q, string(id)), r.now())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &catalog.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// WeeklySales returns the last seven days, oldest first
func (r *CatalogRepository) WeeklySales(ctx context.Context) ([]catalog.SalesData, error) {
	const q = `
SELECT day_name, sales, revenue
FROM weekly_sales
ORDER BY day_index;
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.SalesData
	for rows.Next() {
		var s catalog.SalesData
		if err := rows.Scan(&s.Name, &s.Sales, &s.Revenue); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Ping serves the readiness check.
func (r *CatalogRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner, now time.Time) (catalog.Product, error) {
	var (
		p        catalog.Product
		id       string
		lastSold sql.NullTime
		avg      sql.NullFloat64
	)
	if err := s.Scan(&id, &p.Name, &p.Category, &p.Stock, &p.Price, &lastSold, &avg); err != nil {
		return catalog.Product{}, err
	}
	p.ID = catalog.ProductID(id)
	p.AvgDailySales = avg.Float64
	p.LastSold = catalog.LastSoldLabel(lastSold.Time, now)
	return p, nil
}

var _ catalog.Repository = (*CatalogRepository)(nil)
