package core

import (
	"errors"
	"strings"
	"time"
)

type (
	// Transaction is one sale record as served by the API and stored in the
	// transactions table.
	Transaction struct {
		ID          int64     `json:"id"`
		Title       string    `json:"title"`
		Price       float64   `json:"price"`
		Description string    `json:"description"`
		Category    string    `json:"category"`
		Image       string    `json:"image"`
		Sold        bool      `json:"sold"`
		DateOfSale  time.Time `json:"dateOfSale"`
	}

	// Statistics is the monthly sales summary.
	Statistics struct {
		TotalSaleAmount   float64 `json:"totalSaleAmount"`
		TotalSoldItems    int     `json:"totalSoldItems"`
		TotalNotSoldItems int     `json:"totalNotSoldItems"`
	}

	// PriceRangeCount is one histogram bucket.
	PriceRangeCount struct {
		Range string `json:"range"`
		Count int    `json:"count"`
	}

	// BarChart holds the ten price buckets in ascending order.
	BarChart struct {
		Data []PriceRangeCount `json:"barChartData"`
	}

	// CategoryCount is one slice of the category breakdown.
	CategoryCount struct {
		Category string `json:"category"`
		Count    int    `json:"count"`
	}

	// Combined merges the three analytics views for one month.
	Combined struct {
		Statistics Statistics      `json:"statistics"`
		BarChart   BarChart        `json:"barChart"`
		PieChart   []CategoryCount `json:"pieChart"`
	}
)

var (
	ErrNoTransactions    = errors.New("no transactions found for the specified month")
	ErrInvalidID         = errors.New("invalid id")
	ErrEmptyTitle        = errors.New("empty title")
	ErrEmptyDescription  = errors.New("empty description")
	ErrInvalidPrice      = errors.New("invalid price")
	ErrMissingDateOfSale = errors.New("missing date of sale")
	ErrDuplicateID       = errors.New("duplicate id")
)

// Validate checks the required attributes of a record.
func (t Transaction) Validate() error {
	if t.ID <= 0 {
		return ErrInvalidID
	}
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if t.Price < 0 {
		return ErrInvalidPrice
	}
	if t.DateOfSale.IsZero() {
		return ErrMissingDateOfSale
	}
	return nil
}

// SaleMonth returns the calendar month of the sale, evaluated in UTC.
func (t Transaction) SaleMonth() time.Month {
	return t.DateOfSale.UTC().Month()
}
