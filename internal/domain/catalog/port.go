package catalog

import "context"

// Repository is a read-only view of the store catalog and sales history.
type Repository interface {
	Products(ctx context.Context) ([]Product, error)
	Product(ctx context.Context, id ProductID) (*Product, error)
	WeeklySales(ctx context.Context) ([]SalesData, error)
}
