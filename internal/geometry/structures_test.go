package geometry

import (
	"math"
	"testing"
)

func TestWithDerivedCenterFillsFromBoxAndDefaultsPage(t *testing.T) {
	b := TextBlock{X: 0.1, Y: 0.2, Width: 0.04, Height: 0.02}.WithDerivedCenter()

	if math.Abs(b.CenterX-0.12) > 1e-9 {
		t.Errorf("CenterX = %v, want 0.12", b.CenterX)
	}
	if math.Abs(b.CenterY-0.21) > 1e-9 {
		t.Errorf("CenterY = %v, want 0.21", b.CenterY)
	}
	if b.PageNumber != 1 {
		t.Errorf("PageNumber = %d, want 1", b.PageNumber)
	}
}

func TestSortBlocksOrdersByPageThenYThenX(t *testing.T) {
	blocks := []TextBlock{
		{BlockID: "c", PageNumber: 1, CenterY: 0.5, CenterX: 0.9},
		{BlockID: "a", PageNumber: 1, CenterY: 0.1, CenterX: 0.2},
		{BlockID: "b", PageNumber: 1, CenterY: 0.1, CenterX: 0.1},
		{BlockID: "d", PageNumber: 2, CenterY: 0.0, CenterX: 0.0},
	}
	SortBlocks(blocks)

	want := []string{"b", "a", "c", "d"}
	for i, id := range want {
		if blocks[i].BlockID != id {
			t.Fatalf("position %d: got %q, want %q (order: %v)", i, blocks[i].BlockID, id, blocks)
		}
	}
}

func TestPhysicalRowAmountAndTextBlocksPartition(t *testing.T) {
	row := PhysicalRow{Blocks: []TextBlock{
		{Text: "BANANA", IsAmount: false},
		{Text: "2.99", IsAmount: true, Amount: 2.99},
		{Text: "ORGANIC", IsAmount: false},
	}}

	if got := len(row.AmountBlocks()); got != 1 {
		t.Errorf("AmountBlocks() len = %d, want 1", got)
	}
	if got := len(row.TextBlocks()); got != 2 {
		t.Errorf("TextBlocks() len = %d, want 2", got)
	}
}

func TestReceiptRegionsAllRowsPreservesOrder(t *testing.T) {
	h := PhysicalRow{RowID: "h"}
	i1 := PhysicalRow{RowID: "i1"}
	tRow := PhysicalRow{RowID: "t"}
	p := PhysicalRow{RowID: "p"}
	regions := ReceiptRegions{
		Header:  []PhysicalRow{h},
		Items:   []PhysicalRow{i1},
		Totals:  []PhysicalRow{tRow},
		Payment: []PhysicalRow{p},
	}

	all := regions.AllRows()
	want := []string{"h", "i1", "t", "p"}
	if len(all) != len(want) {
		t.Fatalf("AllRows() len = %d, want %d", len(all), len(want))
	}
	for i, id := range want {
		if all[i].RowID != id {
			t.Errorf("position %d: got %q, want %q", i, all[i].RowID, id)
		}
	}
}

func TestAmountColumnIsInColumn(t *testing.T) {
	col := AmountColumn{CenterX: 0.8, Tolerance: 0.03}

	if !col.IsInColumn(0.81) {
		t.Error("expected 0.81 to fall within tolerance of 0.8")
	}
	if col.IsInColumn(0.9) {
		t.Error("expected 0.9 to fall outside tolerance of 0.8")
	}
}

func TestAmountUsageTrackerMarksOnceAndReportsRole(t *testing.T) {
	tr := NewAmountUsageTracker()

	if tr.IsUsed("blk-1") {
		t.Fatal("fresh tracker should report unused")
	}

	tr.MarkUsed("blk-1", RoleSubtotal)
	tr.MarkUsed("blk-1", RoleTotal) // no-op, first role sticks

	if !tr.IsUsed("blk-1") {
		t.Fatal("expected blk-1 to be used after MarkUsed")
	}
	role, ok := tr.GetRole("blk-1")
	if !ok || role != RoleSubtotal {
		t.Errorf("GetRole = (%v, %v), want (%v, true)", role, ok, RoleSubtotal)
	}

	summary := tr.UsageSummary()
	if summary[RoleSubtotal] != 1 {
		t.Errorf("UsageSummary()[RoleSubtotal] = %d, want 1", summary[RoleSubtotal])
	}
}

func TestExtractedItemMathConsistent(t *testing.T) {
	consistent := ExtractedItem{HasQuantity: true, Quantity: 2, HasUnitPrice: true, UnitPrice: 1.50, LineTotal: 3.00}
	if !consistent.MathConsistent(0.02) {
		t.Error("expected 2*1.50 == 3.00 to be math consistent")
	}

	inconsistent := ExtractedItem{HasQuantity: true, Quantity: 2, HasUnitPrice: true, UnitPrice: 1.50, LineTotal: 5.00}
	if inconsistent.MathConsistent(0.02) {
		t.Error("expected 2*1.50 != 5.00 to fail math consistency")
	}

	unknown := ExtractedItem{LineTotal: 5.00}
	if !unknown.MathConsistent(0.02) {
		t.Error("expected vacuous true when quantity/unit price are absent")
	}
}

func TestTotalsSequenceCalculatedTotal(t *testing.T) {
	seq := TotalsSequence{
		HasSubtotal: true,
		Subtotal:    10.00,
		Middle:      []LabeledAmount{{Label: "tax", Amount: 1.30}, {Label: "deposit", Amount: 0.25}},
	}

	if got := seq.CalculatedTotal(); got != 11.55 {
		t.Errorf("CalculatedTotal() = %v, want 11.55", got)
	}
}

func TestRowTypeString(t *testing.T) {
	cases := map[RowType]string{
		RowHeader:  "header",
		RowItem:    "item",
		RowTotals:  "totals",
		RowPayment: "payment",
		RowUnknown: "unknown",
		RowType(99): "unknown",
	}
	for rt, want := range cases {
		if got := rt.String(); got != want {
			t.Errorf("RowType(%d).String() = %q, want %q", rt, got, want)
		}
	}
}
