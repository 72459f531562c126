package costcousphysical

import (
	"testing"

	"receiptcore/internal/geometry"
	"receiptcore/internal/storeconfig"
)

func block(text string) geometry.TextBlock {
	return geometry.TextBlock{Text: text}
}

func amtBlock(text string, amount float64, centerX float64) geometry.TextBlock {
	return geometry.TextBlock{Text: text, IsAmount: true, HasAmount: true, Amount: amount, CenterX: centerX, BlockID: text}
}

func row(text string, blocks ...geometry.TextBlock) geometry.PhysicalRow {
	return geometry.PhysicalRow{Blocks: blocks, Text: text}
}

func TestExtractItemsAttachesDiscountByTrailingSKU(t *testing.T) {
	rows := []geometry.PhysicalRow{
		row("887766 ITEM A", block("887766 ITEM A"), amtBlock("10.00", 10.00, 0.9)),
		row("2.00- TPD/887766", amtBlock("2.00-", 2.00, 0.9), block("TPD/887766")),
	}

	usage := geometry.NewAmountUsageTracker()
	items := extractItems(rows, usage)

	if len(items) != 1 {
		t.Fatalf("expected one item (discount row consumed), got %d: %+v", len(items), items)
	}
	got := items[0]
	if got.LineTotal != 8.00 {
		t.Errorf("LineTotal = %v, want 8.00", got.LineTotal)
	}
	if !got.HasUnitPrice || got.UnitPrice != 10.00 {
		t.Errorf("UnitPrice = %v (has=%v), want 10.00", got.UnitPrice, got.HasUnitPrice)
	}
	if !got.OnSale {
		t.Errorf("expected OnSale = true")
	}
}

func TestTrailingMinusAmountNegatesSuffixedDash(t *testing.T) {
	r := row("2.00-", amtBlock("2.00-", 2.00, 0.9))
	if got := trailingMinusAmount(r); got != -2.00 {
		t.Errorf("trailingMinusAmount = %v, want -2.00", got)
	}

	positive := row("2.00", amtBlock("2.00", 2.00, 0.9))
	if got := trailingMinusAmount(positive); got != 2.00 {
		t.Errorf("trailingMinusAmount = %v, want 2.00 (no trailing dash)", got)
	}
}

func TestSplitMultiAmountRowMatchesNearestNameByY(t *testing.T) {
	r := geometry.PhysicalRow{
		Text: "887766 ITEM A 10.00 990011 ITEM B 5.00",
		Blocks: []geometry.TextBlock{
			{Text: "887766 ITEM A", CenterX: 0.1, CenterY: 0.10},
			{Text: "10.00", IsAmount: true, HasAmount: true, Amount: 10.00, CenterX: 0.8, CenterY: 0.10, BlockID: "a1"},
			{Text: "990011 ITEM B", CenterX: 0.1, CenterY: 0.10 + lineYEpsilon*3},
			{Text: "5.00", IsAmount: true, HasAmount: true, Amount: 5.00, CenterX: 0.8, CenterY: 0.10 + lineYEpsilon*3, BlockID: "a2"},
		},
	}

	items := splitMultiAmountRow(r)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d: %+v", len(items), items)
	}
	if items[0].SKU != "887766" || items[0].LineTotal != 10.00 {
		t.Errorf("item[0] = %+v, want SKU=887766 LineTotal=10.00", items[0])
	}
	if items[1].SKU != "990011" || items[1].LineTotal != 5.00 {
		t.Errorf("item[1] = %+v, want SKU=990011 LineTotal=5.00", items[1])
	}
}

func TestStripNoiseRemovesShortNonLatinWords(t *testing.T) {
	noisy := "ITEM АБ NAME"
	if got := stripNoise(noisy); got != "ITEM NAME" {
		t.Errorf("stripNoise(%q) = %q, want %q", noisy, got, "ITEM NAME")
	}

	clean := "ITEM NAME"
	if got := stripNoise(clean); got != clean {
		t.Errorf("stripNoise must not touch clean text: got %q", got)
	}
}

func TestExtractTotalsIgnoresItemsSoldRow(t *testing.T) {
	rows := []geometry.PhysicalRow{
		row("ITEMS SOLD 3", amtBlock("3", 3, 0.9)),
		row("SUBTOTAL 53.99", amtBlock("53.99", 53.99, 0.9)),
		row("TAX 0.00", amtBlock("0.00", 0.00, 0.9)),
		row("TOTAL 53.99", amtBlock("53.99", 53.99, 0.9)),
	}

	totals := extractTotals(rows)

	if !totals.HasSubtotal || totals.Subtotal != 53.99 {
		t.Errorf("Subtotal = %+v, want 53.99 (ITEMS SOLD must not be read as subtotal)", totals)
	}
	if !totals.HasTotal || totals.Total != 53.99 {
		t.Errorf("Total = %+v, want 53.99", totals)
	}
}

func TestParseScenario6MissingSubtotalFeesAsItems(t *testing.T) {
	blocks := []geometry.TextBlock{
		{Text: "Member 1234567890", CenterY: 0.05},
		{Text: "887766 ITEM A", CenterY: 0.10},
		{Text: "50.00", CenterY: 0.10, IsAmount: true, HasAmount: true, Amount: 50.00, CenterX: 0.9, BlockID: "a1"},
		{Text: "Bottle deposit", CenterY: 0.15},
		{Text: "0.10", CenterY: 0.15, IsAmount: true, HasAmount: true, Amount: 0.10, CenterX: 0.9, BlockID: "dep1"},
		{Text: "Env fee (CRF)", CenterY: 0.20},
		{Text: "0.01", CenterY: 0.20, IsAmount: true, HasAmount: true, Amount: 0.01, CenterX: 0.9, BlockID: "fee1"},
		{Text: "TOTAL", CenterY: 0.25},
		{Text: "50.11", CenterY: 0.25, IsAmount: true, HasAmount: true, Amount: 50.11, CenterX: 0.9, BlockID: "tot1"},
	}

	cfg := storeconfig.Config{ChainID: ChainID}
	result := New().Parse(blocks, cfg, "Costco Wholesale")

	if !result.Success {
		t.Fatalf("expected success, got error_log=%v", result.ErrorLog)
	}
	if result.Validation.HasSubtotal {
		t.Errorf("expected no literal subtotal (grocery mode)")
	}
	if len(result.Items) != 3 {
		t.Fatalf("expected 3 items (product, deposit, fee), got %d: %+v", len(result.Items), result.Items)
	}
	if !result.Totals.HasTotal || result.Totals.Total != 50.11 {
		t.Errorf("Total = %+v, want 50.11", result.Totals)
	}
}
