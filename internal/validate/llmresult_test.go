package validate

import "testing"

func TestCheckReceiptSumsValidReceipt(t *testing.T) {
	result := LlmResult{
		Receipt: ReceiptFields{
			HasSubtotal: true, Subtotal: 10.00,
			HasTax: true, Tax: 1.30,
			HasTotal: true, Total: 11.30,
		},
		Items: []LlmItem{
			{ProductName: "A", HasLineTotal: true, LineTotal: 6.00},
			{ProductName: "B", HasLineTotal: true, LineTotal: 4.00},
		},
	}

	report := CheckReceiptSums(result)

	if !report.Valid {
		t.Fatalf("expected a balanced receipt to be valid, got %+v", report)
	}
	if !report.LineTotalSumCheck.Passed || !report.SubtotalTaxSumCheck.Passed {
		t.Fatalf("expected both sum checks to pass, got %+v", report)
	}
}

func TestCheckReceiptSumsMissingSubtotalFailsImmediately(t *testing.T) {
	result := LlmResult{
		Receipt: ReceiptFields{HasTotal: true, Total: 10.00},
		Items:   []LlmItem{{HasLineTotal: true, LineTotal: 10.00}},
	}

	report := CheckReceiptSums(result)

	if report.Valid {
		t.Fatal("expected missing subtotal to invalidate the report")
	}
	if report.LineTotalSumCheck.Reason != "subtotal_is_null" {
		t.Errorf("reason = %q, want subtotal_is_null", report.LineTotalSumCheck.Reason)
	}
}

func TestCheckReceiptSumsMissingTotalFailsAfterSubtotalCheck(t *testing.T) {
	result := LlmResult{
		Receipt: ReceiptFields{HasSubtotal: true, Subtotal: 10.00},
		Items:   []LlmItem{{HasLineTotal: true, LineTotal: 10.00}},
	}

	report := CheckReceiptSums(result)

	if report.Valid {
		t.Fatal("expected missing total to invalidate the report")
	}
	if !report.LineTotalSumCheck.Passed {
		t.Errorf("expected the line-total/subtotal check to still run and pass, got %+v", report.LineTotalSumCheck)
	}
	if report.SubtotalTaxSumCheck.Reason != "total_is_null" {
		t.Errorf("reason = %q, want total_is_null", report.SubtotalTaxSumCheck.Reason)
	}
}

func TestCheckReceiptSumsOutOfToleranceMismatch(t *testing.T) {
	result := LlmResult{
		Receipt: ReceiptFields{
			HasSubtotal: true, Subtotal: 10.00,
			HasTotal: true, Total: 10.00,
		},
		Items: []LlmItem{{HasLineTotal: true, LineTotal: 5.00}},
	}

	report := CheckReceiptSums(result)

	if report.Valid {
		t.Fatal("expected a 5.00 vs 10.00 line-total mismatch to fail")
	}
	if len(report.Errors) == 0 {
		t.Error("expected at least one error message recorded")
	}
}

func TestApplyFieldConflictsResolutionOverwritesFromTrustedHints(t *testing.T) {
	result := LlmResult{
		Receipt: ReceiptFields{MerchantName: "COSTCO WHSE #123"},
		Resolution: ResolutionReport{
			FieldConflicts: map[string]FieldConflict{
				"merchant_name": {FromRawText: "COSTCO WHSE #123", FromTrustedHints: "Costco Wholesale", HasTrustedHints: true},
			},
		},
	}

	resolved := ApplyFieldConflictsResolution(result)

	if resolved.Receipt.MerchantName != "Costco Wholesale" {
		t.Errorf("MerchantName = %q, want trusted hint value", resolved.Receipt.MerchantName)
	}
	if len(resolved.Resolution.FieldConflicts) != 0 {
		t.Errorf("expected FieldConflicts drained, got %+v", resolved.Resolution.FieldConflicts)
	}
	if len(resolved.Resolution.ResolvedConflicts) != 1 {
		t.Fatalf("expected exactly one resolved conflict, got %+v", resolved.Resolution.ResolvedConflicts)
	}
	rc := resolved.Resolution.ResolvedConflicts[0]
	if rc.OldValue != "COSTCO WHSE #123" || rc.NewValue != "Costco Wholesale" {
		t.Errorf("unexpected resolved conflict: %+v", rc)
	}
}

func TestApplyFieldConflictsResolutionSkipsConflictsWithoutTrustedHints(t *testing.T) {
	result := LlmResult{
		Receipt: ReceiptFields{MerchantName: "COSTCO WHSE #123"},
		Resolution: ResolutionReport{
			FieldConflicts: map[string]FieldConflict{
				"merchant_name": {FromRawText: "COSTCO WHSE #123", HasTrustedHints: false},
			},
		},
	}

	resolved := ApplyFieldConflictsResolution(result)

	if resolved.Receipt.MerchantName != "COSTCO WHSE #123" {
		t.Errorf("expected merchant name untouched without a trusted hint, got %q", resolved.Receipt.MerchantName)
	}
}
