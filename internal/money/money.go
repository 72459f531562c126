// Package money converts between the two representations spec.md names for
// monetary values: a 2-decimal float64 during extraction, and an unsigned
// integer number of cents at the persistence boundary, with half-to-even
// rounding applied exactly once, at that boundary.
package money

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Cents is an amount of money expressed as an integer number of cents.
type Cents uint64

// ToCents rounds a float64 dollar amount to the nearest cent using
// round-half-to-even (banker's rounding), as required at the storage
// boundary. Negative inputs (discount rows) are rejected by the caller
// before reaching persistence; ToCents itself takes the absolute value so
// sign handling stays an explicit, visible step in the caller.
func ToCents(dollars float64) Cents {
	scaled := dollars * 100
	rounded := math.RoundToEven(scaled)
	if rounded < 0 {
		rounded = -rounded
	}
	return Cents(rounded)
}

// ToFloat converts a cents value back to a 2-decimal dollar float64.
func ToFloat(c Cents) float64 {
	return float64(c) / 100
}

// RoundTrip reports whether converting dollars to cents and back yields the
// same float64, the invariant spec.md's testable properties require.
func RoundTrip(dollars float64) bool {
	return ToFloat(ToCents(dollars)) == math.Round(dollars*100)/100
}

// amountTokenPattern recognizes an OCR word token that reads as money: an
// optional leading "$", digits with optional thousands separators, a
// mandatory two-decimal fraction (receipts never print bare integers as
// prices), and an optional trailing minus sign for discount/refund rows
// printed "12.34-" instead of "-12.34" (spec §3 TextBlock: "amount ...
// signed if text carries a trailing minus").
var amountTokenPattern = regexp.MustCompile(`^\$?(\d{1,3}(?:,\d{3})*|\d+)\.(\d{2})(-)?$`)

// ParseAmountToken reports whether text reads as a money amount and, if so,
// its signed value — the `is_amount`/`amount` detection every OCR provider
// adapter performs on each block before handing it to rowsplit (spec §3).
func ParseAmountToken(text string) (amount float64, isAmount bool) {
	trimmed := strings.TrimSpace(text)
	m := amountTokenPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return 0, false
	}
	whole := strings.ReplaceAll(m[1], ",", "")
	v, err := strconv.ParseFloat(whole+"."+m[2], 64)
	if err != nil {
		return 0, false
	}
	if m[3] == "-" {
		v = -v
	}
	return v, true
}
