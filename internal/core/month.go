package core

import "time"

// ParseMonth resolves an English month name ("January" … "December").
// Matching is case-sensitive and exact; anything else reports false.
func ParseMonth(name string) (time.Month, bool) {
	for m := time.January; m <= time.December; m++ {
		if m.String() == name {
			return m, true
		}
	}
	return 0, false
}

// FilterByMonth keeps the records whose sale date falls in the named month.
// An unknown name matches no record.
func FilterByMonth(txs []Transaction, name string) []Transaction {
	month, ok := ParseMonth(name)
	if !ok {
		return nil
	}
	var out []Transaction
	for _, t := range txs {
		if t.SaleMonth() == month {
			out = append(out, t)
		}
	}
	return out
}
