package costcocadigital

import (
	"testing"

	"receiptcore/internal/geometry"
	"receiptcore/internal/storeconfig"
)

func block(text string) geometry.TextBlock {
	return geometry.TextBlock{Text: text}
}

func amtBlock(text string, amount float64) geometry.TextBlock {
	return geometry.TextBlock{Text: text, IsAmount: true, HasAmount: true, Amount: amount, BlockID: text}
}

func row(text string, blocks ...geometry.TextBlock) geometry.PhysicalRow {
	return geometry.PhysicalRow{Blocks: blocks, Text: text}
}

// TestExtractTotalsReconcilesHSTAgainstTotalTax grounds spec.md §8 scenario 4
// ("Costco CA tax reconciliation"): HST 13.00 and GST 5.00 disagree with
// TOTAL TAX 19.00 by more than tolerance, so the discrepancy is folded into
// HST (14.00), leaving GST untouched.
func TestExtractTotalsReconcilesHSTAgainstTotalTax(t *testing.T) {
	rows := []geometry.PhysicalRow{
		row("(A)HST 13.00", amtBlock("13.00", 13.00)),
		row("(B)5%GST 5.00", amtBlock("5.00", 5.00)),
		row("TOTAL TAX 19.00", amtBlock("19.00", 19.00)),
		row("TOTAL 119.00", amtBlock("119.00", 119.00)),
	}

	usage := geometry.NewAmountUsageTracker()
	totals := extractTotals(rows, usage)

	if len(totals.Middle) != 2 {
		t.Fatalf("expected 2 middle amounts (HST, GST), got %d: %+v", len(totals.Middle), totals.Middle)
	}
	if totals.Middle[0].Label != "HST" || totals.Middle[0].Amount != 14.00 {
		t.Errorf("HST = %+v, want {HST 14.00}", totals.Middle[0])
	}
	if totals.Middle[1].Label != "GST" || totals.Middle[1].Amount != 5.00 {
		t.Errorf("GST = %+v, want {GST 5.00}", totals.Middle[1])
	}
	if !totals.HasTotal || totals.Total != 119.00 {
		t.Errorf("Total = %+v, want 119.00", totals)
	}
}

func TestExtractTotalsLeavesHSTAloneWithinTolerance(t *testing.T) {
	rows := []geometry.PhysicalRow{
		row("(A)HST 13.00", amtBlock("13.00", 13.00)),
		row("(B)5%GST 5.00", amtBlock("5.00", 5.00)),
		row("TOTAL TAX 18.01", amtBlock("18.01", 18.01)),
	}

	usage := geometry.NewAmountUsageTracker()
	totals := extractTotals(rows, usage)

	if totals.Middle[0].Amount != 13.00 {
		t.Errorf("HST adjusted despite being within tolerance: got %v, want 13.00", totals.Middle[0].Amount)
	}
}

func TestIsTPDRowAndTargetSKU(t *testing.T) {
	text := "990123 TPD/887766"
	if !isTPDRow(text) {
		t.Fatalf("expected TPD row to be detected")
	}
	if got := tpdTargetSKU(text); got != "887766" {
		t.Errorf("target SKU = %q, want 887766", got)
	}

	if isTPDRow("990123 ITEM A 10.00") {
		t.Errorf("a plain item row must not be treated as a TPD discount row")
	}
}

func TestExtractItemsAttachesTPDDiscountBySKU(t *testing.T) {
	rows := []geometry.PhysicalRow{
		row("887766 ITEM A", block("887766 ITEM A"), amtBlock("10.00", 10.00)),
		row("887766 TPD/887766", block("887766 TPD/887766"), amtBlock("-3.00", -3.00)),
	}

	usage := geometry.NewAmountUsageTracker()
	items := extractItems(rows, storeconfig.Config{}, usage)

	if len(items) != 1 {
		t.Fatalf("expected exactly one item (TPD row consumed), got %d: %+v", len(items), items)
	}
	got := items[0]
	if got.LineTotal != 7.00 {
		t.Errorf("LineTotal = %v, want 7.00", got.LineTotal)
	}
	if !got.HasUnitPrice || got.UnitPrice != 10.00 {
		t.Errorf("UnitPrice = %v (has=%v), want 10.00", got.UnitPrice, got.HasUnitPrice)
	}
	if !got.OnSale {
		t.Errorf("expected OnSale = true")
	}
}

func TestParseScenario4CostcoCATaxReconciliation(t *testing.T) {
	blocks := []geometry.TextBlock{
		{Text: "Member 1234567890", CenterY: 0.05},
		{Text: "887766 ITEM A", CenterY: 0.10},
		{Text: "10.00", CenterY: 0.10, IsAmount: true, HasAmount: true, Amount: 10.00, BlockID: "a1"},
		{Text: "SUBTOTAL", CenterY: 0.15},
		{Text: "10.00", CenterY: 0.15, IsAmount: true, HasAmount: true, Amount: 10.00, BlockID: "sub1"},
		{Text: "(A)HST", CenterY: 0.20},
		{Text: "13.00", CenterY: 0.20, IsAmount: true, HasAmount: true, Amount: 13.00, BlockID: "hst1"},
		{Text: "(B)5%GST", CenterY: 0.25},
		{Text: "5.00", CenterY: 0.25, IsAmount: true, HasAmount: true, Amount: 5.00, BlockID: "gst1"},
		{Text: "TOTAL TAX", CenterY: 0.30},
		{Text: "19.00", CenterY: 0.30, IsAmount: true, HasAmount: true, Amount: 19.00, BlockID: "tt1"},
		{Text: "TOTAL", CenterY: 0.35},
		{Text: "29.00", CenterY: 0.35, IsAmount: true, HasAmount: true, Amount: 29.00, BlockID: "tot1"},
	}

	cfg := storeconfig.Config{ChainID: ChainID}
	result := New().Parse(blocks, cfg, "Costco Wholesale")

	if !result.Success {
		t.Fatalf("expected success, got error_log=%v", result.ErrorLog)
	}
	if len(result.Totals.Middle) != 2 {
		t.Fatalf("expected 2 middle tax amounts, got %d: %+v", len(result.Totals.Middle), result.Totals.Middle)
	}
	if result.Totals.Middle[0].Label != "HST" || result.Totals.Middle[0].Amount != 14.00 {
		t.Errorf("HST = %+v, want {HST 14.00}", result.Totals.Middle[0])
	}
	if result.Totals.Middle[1].Label != "GST" || result.Totals.Middle[1].Amount != 5.00 {
		t.Errorf("GST = %+v, want {GST 5.00}", result.Totals.Middle[1])
	}
}
