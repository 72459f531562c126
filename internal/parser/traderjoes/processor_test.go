package traderjoes

import (
	"testing"

	"receiptcore/internal/geometry"
	"receiptcore/internal/storeconfig"
)

func textBlock(text string) geometry.TextBlock {
	return geometry.TextBlock{Text: text}
}

func amountBlock(text string, amount float64) geometry.TextBlock {
	return geometry.TextBlock{Text: text, IsAmount: true, HasAmount: true, Amount: amount, BlockID: text}
}

func itemRow(name, amountText string, amount float64) geometry.PhysicalRow {
	blocks := []geometry.TextBlock{textBlock(name), amountBlock(amountText, amount)}
	return geometry.PhysicalRow{Blocks: blocks, Text: name + " " + amountText}
}

// TestExtractItemsStripsTaxablePrefix grounds spec.md §8 scenario 2's
// taxable-prefix half: a leading "T " marks the item taxable and must be
// stripped from the product name, not treated as part of it.
func TestExtractItemsStripsTaxablePrefix(t *testing.T) {
	rows := []geometry.PhysicalRow{
		itemRow("T SPARKL FRENCH PINK LEMAD", "3.99", 3.99),
	}

	usage := geometry.NewAmountUsageTracker()
	items := extractItems(rows, usage)

	if len(items) != 1 {
		t.Fatalf("expected one item, got %d", len(items))
	}
	got := items[0]
	if got.ProductName != "SPARKL FRENCH PINK LEMAD" {
		t.Errorf("ProductName = %q, want %q", got.ProductName, "SPARKL FRENCH PINK LEMAD")
	}
	if !got.Taxable {
		t.Errorf("expected Taxable = true")
	}
	if got.LineTotal != 3.99 {
		t.Errorf("LineTotal = %v, want 3.99", got.LineTotal)
	}
}

// TestExtractItemsParsesEmbeddedQuantity grounds scenario 2's quantity half:
// "2@ $3.99 BANANAS" for $7.98 must yield quantity=2, unit_price=3.99,
// line_total=7.98, with the leading "N@ $P.PP" token stripped from the name.
func TestExtractItemsParsesEmbeddedQuantity(t *testing.T) {
	rows := []geometry.PhysicalRow{
		itemRow("2@ $3.99 BANANAS", "7.98", 7.98),
	}

	usage := geometry.NewAmountUsageTracker()
	items := extractItems(rows, usage)

	if len(items) != 1 {
		t.Fatalf("expected one item, got %d", len(items))
	}
	got := items[0]
	if got.ProductName != "BANANAS" {
		t.Errorf("ProductName = %q, want BANANAS", got.ProductName)
	}
	if !got.HasQuantity || got.Quantity != 2 {
		t.Errorf("Quantity = %v (has=%v), want 2", got.Quantity, got.HasQuantity)
	}
	if !got.HasUnitPrice || got.UnitPrice != 3.99 {
		t.Errorf("UnitPrice = %v (has=%v), want 3.99", got.UnitPrice, got.HasUnitPrice)
	}
	if got.LineTotal != 7.98 {
		t.Errorf("LineTotal = %v, want 7.98", got.LineTotal)
	}
}

func TestExtractTotalsAcceptsTotalPurchaseNotBalanceToPay(t *testing.T) {
	rows := []geometry.PhysicalRow{
		{Blocks: []geometry.TextBlock{textBlock("Balance to pay"), amountBlock("11.97", 11.97)}, Text: "Balance to pay 11.97"},
		{Blocks: []geometry.TextBlock{textBlock("TAX"), amountBlock("0.80", 0.80)}, Text: "TAX 0.80"},
		{Blocks: []geometry.TextBlock{textBlock("TOTAL PURCHASE"), amountBlock("11.97", 11.97)}, Text: "TOTAL PURCHASE 11.97"},
	}

	usage := geometry.NewAmountUsageTracker()
	totals := extractTotals(rows, usage)

	if !totals.HasTotal || totals.Total != 11.97 {
		t.Errorf("Total = %+v, want 11.97 from TOTAL PURCHASE", totals)
	}
	if totals.HasSubtotal {
		t.Errorf("Trader Joe's has no literal subtotal line; HasSubtotal must stay false")
	}
}

func TestExtractTotalsMissingTotalPurchaseLeavesHasTotalFalse(t *testing.T) {
	rows := []geometry.PhysicalRow{
		{Blocks: []geometry.TextBlock{textBlock("Balance to pay"), amountBlock("11.97", 11.97)}, Text: "Balance to pay 11.97"},
	}

	usage := geometry.NewAmountUsageTracker()
	totals := extractTotals(rows, usage)

	if totals.HasTotal {
		t.Errorf("expected HasTotal = false when TOTAL PURCHASE is absent, got Total=%v", totals.Total)
	}
}

func TestParseScenario2TraderJoesTaxableAndQuantity(t *testing.T) {
	blocks := []geometry.TextBlock{
		{Text: "SALE TRANSACTION", CenterY: 0.05},
		{Text: "T SPARKL FRENCH PINK LEMAD", CenterY: 0.10},
		{Text: "3.99", CenterY: 0.10, IsAmount: true, HasAmount: true, Amount: 3.99, BlockID: "a1"},
		{Text: "2@ $3.99 BANANAS", CenterY: 0.15},
		{Text: "7.98", CenterY: 0.15, IsAmount: true, HasAmount: true, Amount: 7.98, BlockID: "a2"},
		{Text: "TAX", CenterY: 0.20},
		{Text: "0.80", CenterY: 0.20, IsAmount: true, HasAmount: true, Amount: 0.80, BlockID: "tax1"},
		{Text: "TOTAL PURCHASE", CenterY: 0.25},
		{Text: "12.77", CenterY: 0.25, IsAmount: true, HasAmount: true, Amount: 12.77, BlockID: "tot1"},
		{Text: "Balance to pay", CenterY: 0.30},
		{Text: "12.77", CenterY: 0.30, IsAmount: true, HasAmount: true, Amount: 12.77, BlockID: "bal1"},
	}

	cfg := storeconfig.Config{ChainID: ChainID}
	result := New().Parse(blocks, cfg, "Trader Joe's")

	if !result.Success {
		t.Fatalf("expected success, got error_log=%v", result.ErrorLog)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d: %+v", len(result.Items), result.Items)
	}
	if !result.Items[1].HasQuantity || result.Items[1].Quantity != 2 || result.Items[1].UnitPrice != 3.99 {
		t.Errorf("second item = %+v, want quantity=2 unit_price=3.99", result.Items[1])
	}
	if !result.Totals.HasTotal || result.Totals.Total != 12.77 {
		t.Errorf("Total = %+v, want 12.77 from TOTAL PURCHASE, not Balance to pay", result.Totals)
	}
}
