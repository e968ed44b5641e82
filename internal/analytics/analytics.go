// Package analytics computes the monthly views served by the product API:
// sales statistics, a fixed-bucket price histogram and a category breakdown.
//
// Every function takes the whole collection and the requested month name and
// does its own month filtering, so callers can run them independently.
package analytics

import (
	"math"

	"github.com/shopspring/decimal"

	"salestats/internal/core"
)

type priceRange struct {
	label    string
	min, max float64
}

// Inclusive on both ends. A price between two buckets (100.5) lands in none.
var priceRanges = []priceRange{
	{"0-100", 0, 100},
	{"101-200", 101, 200},
	{"201-300", 201, 300},
	{"301-400", 301, 400},
	{"401-500", 401, 500},
	{"501-600", 501, 600},
	{"601-700", 601, 700},
	{"701-800", 701, 800},
	{"801-900", 801, 900},
	{"901-above", 901, math.Inf(1)},
}

// Statistics sums price and counts sold/unsold records for the month.
// An empty month yields the zero value.
func Statistics(txs []core.Transaction, month string) core.Statistics {
	filtered := core.FilterByMonth(txs, month)

	total := decimal.Zero
	sold := 0
	for _, t := range filtered {
		total = total.Add(decimal.NewFromFloat(t.Price))
		if t.Sold {
			sold++
		}
	}

	return core.Statistics{
		TotalSaleAmount:   total.InexactFloat64(),
		TotalSoldItems:    sold,
		TotalNotSoldItems: len(filtered) - sold,
	}
}

// BarChart counts the month's records per price bucket. All ten buckets are
// returned in ascending order; a month without records is ErrNoTransactions.
func BarChart(txs []core.Transaction, month string) (core.BarChart, error) {
	filtered := core.FilterByMonth(txs, month)
	if len(filtered) == 0 {
		return core.BarChart{}, core.ErrNoTransactions
	}

	data := make([]core.PriceRangeCount, len(priceRanges))
	for i, r := range priceRanges {
		data[i].Range = r.label
		for _, t := range filtered {
			if t.Price >= r.min && t.Price <= r.max {
				data[i].Count++
			}
		}
	}
	return core.BarChart{Data: data}, nil
}

// PieChart tallies categories across the entire collection. The month only
// gates the result: a month without records is ErrNoTransactions, otherwise
// the counts ignore it. Categories are listed in order of first appearance.
func PieChart(txs []core.Transaction, month string) ([]core.CategoryCount, error) {
	if len(core.FilterByMonth(txs, month)) == 0 {
		return nil, core.ErrNoTransactions
	}

	index := make(map[string]int)
	var out []core.CategoryCount
	for _, t := range txs {
		i, ok := index[t.Category]
		if !ok {
			i = len(out)
			index[t.Category] = i
			out = append(out, core.CategoryCount{Category: t.Category})
		}
		out[i].Count++
	}
	return out, nil
}
