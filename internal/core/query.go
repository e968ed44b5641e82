package core

import (
	"math"
	"strconv"
	"strings"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// ListQuery describes a transactions listing request.
type ListQuery struct {
	Search  string
	Page    int
	PerPage int
	Month   string // optional English month name
}

// Normalize applies defaults to missing or out-of-range paging values.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	return q
}

// Offset is the number of matching records skipped before the page starts.
func (q ListQuery) Offset() int {
	q = q.Normalize()
	return (q.Page - 1) * q.PerPage
}

// PriceTerm reports whether the search term is numeric, in which case the
// listing matches on exact price instead of text.
func (q ListQuery) PriceTerm() (float64, bool) {
	s := strings.TrimSpace(q.Search)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
