// Package memory serves the built-in demo catalog.
package memory

import (
	"context"

	"github.com/bryanwahyu/retailsight/internal/domain/catalog"
)

var demoProducts = []catalog.Product{
	{ID: "1", Name: "Organic Bananas", Category: "Produce", Stock: 120, Price: 0.99, LastSold: "10 mins ago", AvgDailySales: 42},
	{ID: "2", Name: "Whole Milk", Category: "Dairy", Stock: 15, Price: 3.49, LastSold: "2 mins ago", AvgDailySales: 35},
	{ID: "3", Name: "Sourdough Bread", Category: "Bakery", Stock: 0, Price: 4.99, LastSold: "1 hour ago", AvgDailySales: 18},
	{ID: "4", Name: "Chicken Breast", Category: "Meat", Stock: 45, Price: 8.99, LastSold: "15 mins ago", AvgDailySales: 27},
	{ID: "5", Name: "Avocados", Category: "Produce", Stock: 8, Price: 1.50, LastSold: "5 mins ago", AvgDailySales: 22},
}

var demoWeeklySales = []catalog.SalesData{
	{Name: "Mon", Sales: 4000, Revenue: 2400},
	{Name: "Tue", Sales: 3000, Revenue: 1398},
	{Name: "Wed", Sales: 2000, Revenue: 9800},
	{Name: "Thu", Sales: 2780, Revenue: 3908},
	{Name: "Fri", Sales: 1890, Revenue: 4800},
	{Name: "Sat", Sales: 2390, Revenue: 3800},
	{Name: "Sun", Sales: 3490, Revenue: 4300},
}

// CatalogRepo is read-only; every call returns fresh copies.
type CatalogRepo struct {
	products []catalog.Product
	sales    []catalog.SalesData
}

// NewCatalogRepo returns the demo tables.
func NewCatalogRepo() *CatalogRepo {
	return &CatalogRepo{products: demoProducts, sales: demoWeeklySales}
}

// NewCatalogRepoWith serves the given rows, for tests and fixtures.
func NewCatalogRepoWith(products []catalog.Product, sales []catalog.SalesData) *CatalogRepo {
	return &CatalogRepo{
		products: append([]catalog.Product(nil), products...),
		sales:    append([]catalog.SalesData(nil), sales...),
	}
}

func (r *CatalogRepo) Products(ctx context.Context) ([]catalog.Product, error) {
	return append([]catalog.Product(nil), r.products...), nil
}

func (r *CatalogRepo) Product(ctx context.Context, id catalog.ProductID) (*catalog.Product, error) {
	for _, p := range r.products {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, &catalog.NotFoundError{ID: id}
}

func (r *CatalogRepo) WeeklySales(ctx context.Context) ([]catalog.SalesData, error) {
	return append([]catalog.SalesData(nil), r.sales...), nil
}

func (r *CatalogRepo) Ping(ctx context.Context) error { return nil }

var _ catalog.Repository = (*CatalogRepo)(nil)
