package costcousdigital

import (
	"testing"

	"receiptcore/internal/geometry"
	"receiptcore/internal/storeconfig"
)

func plainBlock(text string) geometry.TextBlock {
	return geometry.TextBlock{Text: text}
}

func amountBlock(text string, amount float64) geometry.TextBlock {
	return geometry.TextBlock{Text: text, IsAmount: true, HasAmount: true, Amount: amount, BlockID: text}
}

func joinedRow(blocks ...geometry.TextBlock) geometry.PhysicalRow {
	text := ""
	for i, b := range blocks {
		if i > 0 {
			text += " "
		}
		text += b.Text
	}
	return geometry.PhysicalRow{Blocks: blocks, Text: text}
}

// TestExtractItemsAttachesDiscountBySKU grounds spec.md §8 scenario 3
// ("Costco US digital discount"). §4.4 states the discount row's target SKU
// is "the last SKU in the row"; the discount row here is a single SKU block
// "369985/990929" followed by its own negative amount block, reproducing the
// scenario's joined row shape "369985/990929 -2.00-" where the amount token
// trails the SKU fragment — the exact shape that defeated the old
// whole-row-text regex.
func TestExtractItemsAttachesDiscountBySKU(t *testing.T) {
	rows := []geometry.PhysicalRow{
		{
			Blocks: []geometry.TextBlock{{Text: "990929 ITEM A 10.00 N"}},
			Text:   "990929 ITEM A 10.00 N",
		},
		joinedRow(plainBlock("369985/990929"), amountBlock("-2.00-", -2.00)),
	}

	usage := geometry.NewAmountUsageTracker()
	items := extractItems(rows, usage)

	if len(items) != 1 {
		t.Fatalf("expected exactly one item (discount row consumed, not emitted), got %d: %+v", len(items), items)
	}
	got := items[0]
	if got.SKU != "990929" {
		t.Fatalf("setup error: item SKU = %q, want 990929", got.SKU)
	}
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

func TestIsDiscountRowRequiresNegativeAmountAndSlash(t *testing.T) {
	discount := joinedRow(plainBlock("369985/990929"), amountBlock("-2.00-", -2.00))
	if !isDiscountRow(discount) {
		t.Errorf("expected negative amount + '/' row to be detected as a discount row")
	}

	positive := joinedRow(plainBlock("369985/990929"), amountBlock("2.00", 2.00))
	if isDiscountRow(positive) {
		t.Errorf("a positive amount must not be treated as a discount row")
	}

	noSlash := joinedRow(plainBlock("369985"), amountBlock("-2.00-", -2.00))
	if isDiscountRow(noSlash) {
		t.Errorf("a negative amount without '/' must not be treated as a discount row")
	}
}

func TestDiscountTargetSKUReadsIndividualBlockNotJoinedText(t *testing.T) {
	// The joined row text ends in the amount token, so the end-anchored
	// regex must be applied to the SKU block alone.
	row := joinedRow(plainBlock("369985/990929"), amountBlock("-2.00-", -2.00))

	sku, ok := discountTargetSKU(row)
	if !ok {
		t.Fatalf("expected a target SKU to be found")
	}
	if sku != "990929" {
		t.Errorf("target SKU = %q, want 990929", sku)
	}
}

func TestParseScenario3CostcoUSDigitalDiscount(t *testing.T) {
	blocks := []geometry.TextBlock{
		{Text: "Member 1234567890", CenterY: 0.05},
		{Text: "990929 ITEM A 10.00 N", CenterY: 0.10},
		{Text: "369985/990929", CenterY: 0.15},
		{Text: "-2.00-", CenterY: 0.15, IsAmount: true, HasAmount: true, Amount: -2.00, BlockID: "disc1"},
		{Text: "SUBTOTAL", CenterY: 0.20},
		{Text: "8.00", CenterY: 0.20, IsAmount: true, HasAmount: true, Amount: 8.00, BlockID: "sub1"},
		{Text: "TOTAL", CenterY: 0.25},
		{Text: "8.00", CenterY: 0.25, IsAmount: true, HasAmount: true, Amount: 8.00, BlockID: "tot1"},
	}

	cfg := storeconfig.Config{ChainID: ChainID}
	result := New().Parse(blocks, cfg, "Costco Wholesale")

	if !result.Success {
		t.Fatalf("expected success, got error_log=%v", result.ErrorLog)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected exactly one item, got %d: %+v", len(result.Items), result.Items)
	}
	item := result.Items[0]
	if item.LineTotal != 8.00 || !item.OnSale || item.UnitPrice != 10.00 {
		t.Errorf("item = %+v, want LineTotal=8.00 OnSale=true UnitPrice=10.00", item)
	}
}
