package validate

import (
	"math"

	"receiptcore/internal/geometry"
)

// FeeLine is a named fee amount contributing to the totals or items region
// (deposits, environmental fees).
type FeeLine struct {
	Label  string
	Amount float64
}

// CheckResult mirrors a single named sum check's pass/fail detail.
type CheckResult struct {
	Passed     bool
	Calculated float64
	Expected   float64
	Difference float64
	Note       string
}

// TotalsValidation is the outcome of ValidateTotals.
type TotalsValidation struct {
	Passed          bool
	ItemsSumCheck   *CheckResult
	TotalsSumCheck  *CheckResult
	NeedsReview     bool
	ReviewReason    string
}

// ValidateTotals checks items-sum against subtotal, and subtotal+fees+tax
// against total (spec §4.6). feesFromItemsRegion contributes only in
// grocery mode (no subtotal), mirroring validate_totals's BC handling of
// bottle-deposit/environmental-fee item rows.
func ValidateTotals(items []geometry.ExtractedItem, totals geometry.TotalsSequence, fees []FeeLine, tax float64, feesFromItemsRegion []FeeLine) TotalsValidation {
	itemsSum := 0.0
	for _, it := range items {
		itemsSum += it.LineTotal
	}

	if !totals.HasSubtotal {
		if !totals.HasTotal {
			return TotalsValidation{Passed: false, NeedsReview: true, ReviewReason: "subtotal and total both missing"}
		}
		feesFromItemsSum := sumFees(feesFromItemsRegion)
		calculated := round2(itemsSum + feesFromItemsSum)
		diff := round2(math.Abs(calculated - totals.Total))
		passed := diff <= SumTolerance
		note := "grocery: items sum = total (no subtotal)"
		check := &CheckResult{Passed: passed, Calculated: calculated, Expected: totals.Total, Difference: diff, Note: note}
		return TotalsValidation{Passed: passed, ItemsSumCheck: check, TotalsSumCheck: check}
	}

	itemsDiff := round2(math.Abs(itemsSum - totals.Subtotal))
	itemsPassed := itemsDiff <= SumTolerance
	itemsCheck := &CheckResult{Passed: itemsPassed, Calculated: itemsSum, Expected: totals.Subtotal, Difference: itemsDiff}

	if !totals.HasTotal {
		return TotalsValidation{Passed: itemsPassed, ItemsSumCheck: itemsCheck, NeedsReview: true, ReviewReason: "total missing"}
	}

	feesSum := sumFees(fees)
	calculatedTotal := round2(totals.Subtotal + feesSum + tax)
	totalsDiff := round2(math.Abs(calculatedTotal - totals.Total))
	totalsPassed := totalsDiff <= SumTolerance
	totalsCheck := &CheckResult{Passed: totalsPassed, Calculated: calculatedTotal, Expected: totals.Total, Difference: totalsDiff}

	return TotalsValidation{
		Passed:         itemsPassed && totalsPassed,
		ItemsSumCheck:  itemsCheck,
		TotalsSumCheck: totalsCheck,
	}
}

func sumFees(fees []FeeLine) float64 {
	var sum float64
	for _, f := range fees {
		sum += f.Amount
	}
	return sum
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
