// Package validate implements the math validator, sum checker, conflict
// resolver, and package-promotion detector (spec §§4.6-4.7), grounded on
// processors/core/math_validator.py and sum_checker.py.
package validate

import (
	"math"
	"regexp"
	"strconv"
)

// MathTolerance is the per-item quantity*unit_price ≈ line_total tolerance.
const MathTolerance = 0.02

// SumTolerance is the items-sum/totals-sum tolerance.
const SumTolerance = 0.03

var numberPattern = regexp.MustCompile(`\d+\.?\d*`)

// ItemMath holds the per-item validation result: confirmed or recovered
// quantity/unit_price plus a confidence score.
type ItemMath struct {
	Quantity    float64
	HasQuantity bool
	UnitPrice   float64
	HasUnitPrice bool
	Confidence  float64
}

// ValidateItemMath checks quantity*unit_price == line_total within
// MathTolerance. If quantity/unit_price are absent it tries every ordered
// pair of numbers extracted from rowText, accepting the first pair whose
// product matches lineTotal.
func ValidateItemMath(hasQuantity bool, quantity float64, hasUnitPrice bool, unitPrice float64, lineTotal float64, rowText string) ItemMath {
	if hasQuantity && hasUnitPrice {
		calculated := quantity * unitPrice
		if math.Abs(calculated-lineTotal) < MathTolerance {
			return ItemMath{Quantity: quantity, HasQuantity: true, UnitPrice: unitPrice, HasUnitPrice: true, Confidence: 1.0}
		}
	}

	numbers := extractAllNumbers(rowText)
	if len(numbers) < 2 {
		return ItemMath{Quantity: quantity, HasQuantity: hasQuantity, UnitPrice: unitPrice, HasUnitPrice: hasUnitPrice, Confidence: 0.5}
	}

	for i, a := range numbers {
		for j, b := range numbers {
			if i == j {
				continue
			}
			if math.Abs(a*b-lineTotal) < MathTolerance {
				return ItemMath{Quantity: a, HasQuantity: true, UnitPrice: b, HasUnitPrice: true, Confidence: 1.0}
			}
		}
	}

	return ItemMath{Quantity: quantity, HasQuantity: hasQuantity, UnitPrice: unitPrice, HasUnitPrice: hasUnitPrice, Confidence: 0.5}
}

func extractAllNumbers(text string) []float64 {
	matches := numberPattern.FindAllString(text, -1)
	numbers := make([]float64, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseFloat(m, 64)
		if err != nil {
			continue
		}
		numbers = append(numbers, v)
	}
	return numbers
}
