package validate

import "receiptcore/internal/geometry"

import "testing"

func TestValidateTotalsGroceryModeWithoutSubtotal(t *testing.T) {
	items := []geometry.ExtractedItem{{ProductName: "A", LineTotal: 3.00}, {ProductName: "B", LineTotal: 2.00}}
	totals := geometry.TotalsSequence{HasTotal: true, Total: 5.25}
	deposit := []FeeLine{{Label: "bottle deposit", Amount: 0.25}}

	v := ValidateTotals(items, totals, nil, 0, deposit)

	if !v.Passed {
		t.Fatalf("expected grocery-mode total to balance, got %+v", v.TotalsSumCheck)
	}
	if v.ItemsSumCheck != v.TotalsSumCheck {
		t.Error("expected a single shared check object in grocery mode")
	}
}

func TestValidateTotalsMissingBothFailsNeedsReview(t *testing.T) {
	v := ValidateTotals(nil, geometry.TotalsSequence{}, nil, 0, nil)

	if v.Passed {
		t.Fatal("expected failure when both subtotal and total are missing")
	}
	if !v.NeedsReview {
		t.Error("expected NeedsReview=true")
	}
}

func TestValidateTotalsMissingTotalStillChecksItemsSum(t *testing.T) {
	items := []geometry.ExtractedItem{{ProductName: "A", LineTotal: 10.00}}
	totals := geometry.TotalsSequence{HasSubtotal: true, Subtotal: 10.00}

	v := ValidateTotals(items, totals, nil, 0, nil)

	if !v.NeedsReview {
		t.Error("expected NeedsReview=true when total is missing")
	}
	if v.ItemsSumCheck == nil || !v.ItemsSumCheck.Passed {
		t.Fatalf("expected the items-sum check to still run and pass, got %+v", v.ItemsSumCheck)
	}
}

// TestValidateTotalsScenario6MissingSubtotalFeesInItems grounds spec.md §8
// scenario 6: no subtotal line, deposit/fee rows live in the items region,
// and the grocery-mode check must pass 53.99+0.11 against total 54.10.
func TestValidateTotalsScenario6MissingSubtotalFeesInItems(t *testing.T) {
	items := []geometry.ExtractedItem{
		{ProductName: "ITEM A", LineTotal: 53.99},
		{ProductName: "Bottle deposit", LineTotal: 0.10},
		{ProductName: "Env fee (CRF)", LineTotal: 0.01},
	}
	totals := geometry.TotalsSequence{HasTotal: true, Total: 54.10}

	v := ValidateTotals(items, totals, nil, 0, nil)

	if !v.Passed {
		t.Fatalf("expected grocery-mode total to balance, got %+v", v.TotalsSumCheck)
	}
	if v.TotalsSumCheck.Calculated != 54.10 {
		t.Errorf("Calculated = %v, want 54.10", v.TotalsSumCheck.Calculated)
	}
}

func TestValidateTotalsFullChainWithFeesAndTax(t *testing.T) {
	items := []geometry.ExtractedItem{{ProductName: "A", LineTotal: 10.00}}
	totals := geometry.TotalsSequence{HasSubtotal: true, Subtotal: 10.00, HasTotal: true, Total: 11.80}
	fees := []FeeLine{{Label: "env fee", Amount: 0.50}}

	v := ValidateTotals(items, totals, fees, 1.30, nil)

	if !v.Passed {
		t.Fatalf("expected subtotal+fee+tax to reconcile with total, got %+v", v.TotalsSumCheck)
	}
}
