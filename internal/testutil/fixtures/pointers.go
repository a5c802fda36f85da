// Package fixtures provides test data builders and helpers.
package fixtures

import "github.com/shopspring/decimal"

// StringPtr returns a pointer to the given string.
func StringPtr(s string) *string {
	return &s
}

// Dec parses a decimal literal and panics on bad input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
