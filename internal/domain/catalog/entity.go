package catalog

import (
	"fmt"
	"time"
)

// StockStatus is derived from the on-hand quantity.
type StockStatus string

const (
	StatusInStock    StockStatus = "In Stock"
	StatusLowStock   StockStatus = "Low Stock"
	StatusOutOfStock StockStatus = "Out of Stock"
)

// LowStockThreshold is the quantity under which a product counts as low.
const LowStockThreshold = 20

// ProductID identifies a product in the store catalog.
type ProductID string

// Product is a catalog row as read from the store POS.
type Product struct {
	ID            ProductID `json:"id"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	Stock         int       `json:"stock"`
	Price         float64   `json:"price"`
	LastSold      string    `json:"lastSold"`
	AvgDailySales float64   `json:"avgDailySales"`
}

// Status derives the stock badge of the inventory table.
func (p Product) Status() StockStatus {
	switch {
	case p.Stock <= 0:
		return StatusOutOfStock
	case p.Stock < LowStockThreshold:
		return StatusLowStock
	}
	return StatusInStock
}

// SalesData is one day of the weekly sales chart.
type SalesData struct {
	Name    string  `json:"name"`
	Sales   float64 `json:"sales"`
	Revenue float64 `json:"revenue"`
}

// ProductSnapshot is the forecast input embedded into the prompt.
type ProductSnapshot struct {
	Product            string  `json:"product"`
	CurrentStock       int     `json:"currentStock"`
	AvgDailySales      float64 `json:"avgDailySales"`
	SeasonalFactor     float64 `json:"seasonalFactor"`
	UpcomingPromotions bool    `json:"upcomingPromotions"`
}

// DefaultSeasonalFactor is applied when the caller gives none.
const DefaultSeasonalFactor = 1.2

// Snapshot builds the forecast input for p.
func (p Product) Snapshot(seasonal float64, promotions bool) ProductSnapshot {
	if seasonal <= 0 {
		seasonal = DefaultSeasonalFactor
	}
	return ProductSnapshot{
		Product:            p.Name,
		CurrentStock:       p.Stock,
		AvgDailySales:      p.AvgDailySales,
		SeasonalFactor:     seasonal,
		UpcomingPromotions: promotions,
	}
}

// NotFoundError is returned when a product ID is unknown.
type NotFoundError struct{ ID ProductID }

func (e *NotFoundError) Error() string { return fmt.Sprintf("product %s not found", e.ID) }

// LastSoldLabel renders a sale time the way the inventory table shows it
// ("2 mins ago"). A zero time renders as "-".
func LastSoldLabel(at, now time.Time) string {
	if at.IsZero() {
		return "-"
	}
	d := now.Sub(at)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "min")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	}
	return plural(int(d/(24*time.Hour)), "day")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
