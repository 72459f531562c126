package rowsplit

import (
	"regexp"
	"testing"

	"receiptcore/internal/geometry"
)

func testMarkers() RegionMarkers {
	return RegionMarkers{
		Member:           regexp.MustCompile(`(?i)member`),
		Subtotal:         regexp.MustCompile(`SUBTOTAL`),
		Total:            regexp.MustCompile(`TOTAL`),
		ExcludeFromTotal: regexp.MustCompile(`ITEMSSOLD`),
	}
}

func row(text string, hasAmount bool) geometry.PhysicalRow {
	blocks := []geometry.TextBlock{{Text: text}}
	if hasAmount {
		blocks = append(blocks, geometry.TextBlock{Text: "1.00", IsAmount: true})
	}
	return geometry.PhysicalRow{Text: text, Blocks: blocks}
}

func TestSplitRegionsFullStateMachine(t *testing.T) {
	rows := []geometry.PhysicalRow{
		row("SOME STORE", false),
		row("Member: 12345", false),
		row("BANANA", true),
		row("APPLE", true),
		row("SUBTOTAL", true),
		row("TAX", true),
		row("TOTAL", true),
		row("VISA ****1234", false),
	}

	regions := SplitRegions(rows, testMarkers())

	if len(regions.Header) != 2 {
		t.Errorf("Header len = %d, want 2", len(regions.Header))
	}
	if len(regions.Items) != 2 {
		t.Errorf("Items len = %d, want 2", len(regions.Items))
	}
	if len(regions.Totals) != 3 {
		t.Errorf("Totals len = %d, want 3", len(regions.Totals))
	}
	if len(regions.Payment) != 1 {
		t.Errorf("Payment len = %d, want 1", len(regions.Payment))
	}
}

func TestSplitRegionsFallsBackWhenNoMemberMarker(t *testing.T) {
	rows := []geometry.PhysicalRow{
		row("SOME STORE", false),
		row("BANANA", true), // first amount-bearing row closes the header
		row("TOTAL", true),
	}

	regions := SplitRegions(rows, testMarkers())

	if len(regions.Header) != 1 {
		t.Fatalf("expected header to close at the first amount row, got %d header rows", len(regions.Header))
	}
	if len(regions.Items) != 1 || regions.Items[0].Text != "BANANA" {
		t.Errorf("expected BANANA to land in items, got %+v", regions.Items)
	}
}

func TestSplitRegionsExcludesItemsSoldFromTotalMarker(t *testing.T) {
	rows := []geometry.PhysicalRow{
		row("Member: 1", false),
		row("BANANA", true),
		row("TOTAL ITEMS SOLD: 1", true),
		row("TOTAL", true),
	}

	regions := SplitRegions(rows, testMarkers())

	if len(regions.Items) != 2 {
		t.Fatalf("expected the items-sold line to stay in the items region, got %d items: %+v", len(regions.Items), regions.Items)
	}
	if len(regions.Totals) != 1 {
		t.Errorf("expected exactly one totals row (the real TOTAL), got %+v", regions.Totals)
	}
}
