package validate

import (
	"math"
	"strconv"
)

// ReceiptFields is the typed replacement for the Python llm_result["receipt"]
// dict (spec §9).
type ReceiptFields struct {
	MerchantName   string
	HasSubtotal    bool
	Subtotal       float64
	HasTax         bool
	Tax            float64
	HasTotal       bool
	Total          float64
	PurchaseDate   string
	PurchaseTime   string
	Currency       string
	PaymentMethod  string
	CardLast4      string

	// MembershipNumber is populated only by CleanTNTItems, for
	// chains (T&T) that print a loyalty card number as a $0.00 line item.
	MembershipNumber string
}

// LlmItem is the typed replacement for an entry of llm_result["items"].
type LlmItem struct {
	ProductName string
	HasLineTotal bool
	LineTotal   float64
	OnSale      bool
}

// FieldConflict records a single disagreement between the raw-text parse
// and a trusted OCR hint for one receipt field (replaces a tbd.field_conflicts
// entry).
type FieldConflict struct {
	FromRawText      string
	FromTrustedHints string
	HasTrustedHints  bool
}

// ResolvedConflict records a conflict that was resolved in favor of the
// trusted hint.
type ResolvedConflict struct {
	Field    string
	OldValue string
	NewValue string
	Source   string
}

// ResolutionReport is the typed replacement for the Python "tbd" dict
// (spec §9): it carries both the unresolved field conflicts surfaced by the
// LLM and, after apply_field_conflicts_resolution, the resolved ones.
type ResolutionReport struct {
	FieldConflicts    map[string]FieldConflict
	ResolvedConflicts []ResolvedConflict
}

// LlmResult is the typed replacement for the full llm_result dict threaded
// through workflow_processor.py.
type LlmResult struct {
	Receipt    ReceiptFields
	Items      []LlmItem
	Resolution ResolutionReport
}

// SumCheckDetail mirrors one of check_receipt_sums's two named checks.
type SumCheckDetail struct {
	Passed     bool
	Reason     string
	Calculated float64
	Expected   float64
	HasExpected bool
	Difference float64
}

// SumCheckReport is the typed result of CheckReceiptSums.
type SumCheckReport struct {
	LineTotalSum        float64
	LineTotalSumCheck   SumCheckDetail
	SubtotalTaxSumCheck SumCheckDetail
	Errors              []string
	Valid               bool
}

// CheckReceiptSums verifies sum(line_total) ≈ subtotal and subtotal+tax ≈
// total within SumTolerance (spec §4.7 core, grounded on
// sum_checker.check_receipt_sums). A missing subtotal fails immediately and
// is reported via the "subtotal_is_null" reason, signaling the caller to run
// the backup-OCR/backup-LLM ladder rather than silently downgrading.
func CheckReceiptSums(result LlmResult) SumCheckReport {
	report := SumCheckReport{}

	tax := 0.0
	if result.Receipt.HasTax {
		tax = result.Receipt.Tax
	}

	var lineTotalSum float64
	for _, item := range result.Items {
		if item.HasLineTotal {
			lineTotalSum += item.LineTotal
		}
	}
	report.LineTotalSum = round2(lineTotalSum)

	if !result.Receipt.HasSubtotal {
		msg := "Subtotal is null, cannot perform sum check. Requires backup check."
		report.Errors = append(report.Errors, msg)
		report.LineTotalSumCheck = SumCheckDetail{Passed: false, Reason: "subtotal_is_null", Calculated: lineTotalSum}
		report.Valid = false
		return report
	}

	subtotal := result.Receipt.Subtotal
	lineTotalDiff := math.Abs(lineTotalSum - subtotal)
	lineTotalPassed := lineTotalDiff <= SumTolerance
	report.LineTotalSumCheck = SumCheckDetail{
		Passed: lineTotalPassed, Calculated: round2(lineTotalSum), Expected: round2(subtotal), HasExpected: true,
		Difference: round2(lineTotalDiff),
	}
	if !lineTotalPassed {
		report.Errors = append(report.Errors, "line total sum mismatch")
	}

	if !result.Receipt.HasTotal {
		report.Errors = append(report.Errors, "Total is null, cannot perform sum check.")
		report.SubtotalTaxSumCheck = SumCheckDetail{Passed: false, Reason: "total_is_null", Calculated: subtotal + tax}
		report.Valid = false
		return report
	}

	total := result.Receipt.Total
	subtotalPlusTax := subtotal + tax
	totalDiff := math.Abs(subtotalPlusTax - total)
	totalPassed := totalDiff <= SumTolerance
	report.SubtotalTaxSumCheck = SumCheckDetail{
		Passed: totalPassed, Calculated: round2(subtotalPlusTax), Expected: round2(total), HasExpected: true,
		Difference: round2(totalDiff),
	}
	if !totalPassed {
		report.Errors = append(report.Errors, "total sum mismatch")
	}

	report.Valid = lineTotalPassed && totalPassed
	return report
}

// conflictFieldMap mirrors _map_conflict_field_to_receipt_field: every
// tbd.field_conflicts key names a receipt field directly, so the mapping is
// an identity allowlist rather than a rename table.
var conflictFieldMap = map[string]bool{
	"merchant_name": true, "total": true, "subtotal": true, "tax": true,
	"purchase_date": true, "purchase_time": true, "currency": true,
	"payment_method": true, "card_last4": true,
}

// ApplyFieldConflictsResolution overwrites receipt fields with their
// trusted-hint values wherever a conflict was recorded, moving each
// resolved field from FieldConflicts into ResolvedConflicts (spec §4.7,
// grounded on apply_field_conflicts_resolution).
func ApplyFieldConflictsResolution(result LlmResult) LlmResult {
	if len(result.Resolution.FieldConflicts) == 0 {
		return result
	}

	var resolved []ResolvedConflict
	for field, conflict := range result.Resolution.FieldConflicts {
		if !conflict.HasTrustedHints || !conflictFieldMap[field] {
			continue
		}
		old := setReceiptField(&result.Receipt, field, conflict.FromTrustedHints)
		resolved = append(resolved, ResolvedConflict{
			Field: field, OldValue: old, NewValue: conflict.FromTrustedHints, Source: "trusted_hints",
		})
	}

	if len(resolved) > 0 {
		result.Resolution.ResolvedConflicts = append(result.Resolution.ResolvedConflicts, resolved...)
		result.Resolution.FieldConflicts = map[string]FieldConflict{}
	}
	return result
}

func setReceiptField(r *ReceiptFields, field, value string) (old string) {
	switch field {
	case "merchant_name":
		old = r.MerchantName
		r.MerchantName = value
	case "purchase_date":
		old = r.PurchaseDate
		r.PurchaseDate = value
	case "purchase_time":
		old = r.PurchaseTime
		r.PurchaseTime = value
	case "currency":
		old = r.Currency
		r.Currency = value
	case "payment_method":
		old = r.PaymentMethod
		r.PaymentMethod = value
	case "card_last4":
		old = r.CardLast4
		r.CardLast4 = value
	case "subtotal":
		old = formatAmount(r.Subtotal)
		if v, err := parseAmount(value); err == nil {
			r.Subtotal, r.HasSubtotal = v, true
		}
	case "tax":
		old = formatAmount(r.Tax)
		if v, err := parseAmount(value); err == nil {
			r.Tax, r.HasTax = v, true
		}
	case "total":
		old = formatAmount(r.Total)
		if v, err := parseAmount(value); err == nil {
			r.Total, r.HasTotal = v, true
		}
	}
	return old
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func parseAmount(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
