package validate

import (
	"testing"

	"receiptcore/internal/geometry"
)

// TestDetectPackagePromotionsScenario5 grounds spec.md §8 scenario 5
// ("package promotion"): a "2/$9.00" package promotion with two on-sale
// items at $4.50 each must be detected and marked valid.
func TestDetectPackagePromotionsScenario5(t *testing.T) {
	items := []geometry.ExtractedItem{
		{ProductName: "ITEM A", LineTotal: 4.50, OnSale: true},
		{ProductName: "ITEM B", LineTotal: 4.50, OnSale: true},
	}
	rawText := "ITEM A 4.50\nITEM B 4.50\n2/$9.00"

	promos := DetectPackagePromotions(rawText, items)

	if len(promos) != 1 {
		t.Fatalf("expected exactly one detected promotion, got %d: %+v", len(promos), promos)
	}
	got := promos[0]
	if got.Count != 2 || got.PackagePrice != 9.00 {
		t.Fatalf("promotion = %+v, want Count=2 PackagePrice=9.00", got)
	}
	if !got.Valid {
		t.Errorf("expected promotion to be valid (4.50+4.50=9.00)")
	}
	if len(got.MatchedItems) != 2 {
		t.Errorf("expected 2 matched items, got %d: %+v", len(got.MatchedItems), got.MatchedItems)
	}
}

func TestDetectPackagePromotionsNoOnSaleItemsSkipsDetection(t *testing.T) {
	items := []geometry.ExtractedItem{{ProductName: "ITEM A", LineTotal: 4.50}}
	rawText := "ITEM A 4.50\n2/$9.00"

	promos := DetectPackagePromotions(rawText, items)

	if promos != nil {
		t.Errorf("expected no promotions when no items are on sale, got %+v", promos)
	}
}

func TestDetectPackagePromotionsMismatchedSumIsInvalid(t *testing.T) {
	items := []geometry.ExtractedItem{
		{ProductName: "ITEM A", LineTotal: 4.50, OnSale: true},
		{ProductName: "ITEM B", LineTotal: 3.00, OnSale: true},
	}
	rawText := "ITEM A 4.50\nITEM B 3.00\n2/$9.00"

	promos := DetectPackagePromotions(rawText, items)

	if len(promos) != 1 {
		t.Fatalf("expected one promotion entry, got %d", len(promos))
	}
	if promos[0].Valid {
		t.Errorf("4.50+3.00=7.50 must not satisfy a 9.00 package price")
	}
}

func TestDetectPackagePromotionsFallsBackToCombinatoricSubset(t *testing.T) {
	// Three on-sale items; only two of them (not the first two in order)
	// actually sum to the package price.
	items := []geometry.ExtractedItem{
		{ProductName: "ITEM A", LineTotal: 1.00, OnSale: true},
		{ProductName: "ITEM B", LineTotal: 4.50, OnSale: true},
		{ProductName: "ITEM C", LineTotal: 4.50, OnSale: true},
	}
	rawText := "ITEM A 1.00\nITEM B 4.50\nITEM C 4.50\n2/$9.00"

	promos := DetectPackagePromotions(rawText, items)

	if len(promos) != 1 {
		t.Fatalf("expected one promotion entry, got %d", len(promos))
	}
	if !promos[0].Valid {
		t.Errorf("expected the combinatoric fallback to find items B+C summing to 9.00")
	}
}
