// This file implements parsing of the product API query parameters.

package http

import (
	"net/url"
	"strconv"
	"strings"

	"salestats/internal/core"
)

// ParseListQuery reads search, page, perPage and month. Missing or
// malformed paging values fall back to the defaults.
func ParseListQuery(query url.Values) core.ListQuery {
	q := core.ListQuery{
		Search:  sanitizeInput(query.Get("search")),
		Page:    parsePositiveInt(query.Get("page")),
		PerPage: parsePositiveInt(query.Get("perPage")),
		Month:   ParseMonthParam(query),
	}
	return q.Normalize()
}

// ParseMonthParam returns the month query parameter untouched. Names match
// exactly, so " March" is as unknown as "Smarch" and selects no record.
func ParseMonthParam(query url.Values) string {
	return query.Get("month")
}

func parsePositiveInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0
	}
	return n
}

// sanitizeInput drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
