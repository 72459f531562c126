package validate

import (
	"math"
	"regexp"
	"strconv"

	"receiptcore/internal/geometry"
)

// packagePromoPattern matches "N/$X", "N for $X", "N for X" package-price
// promotions (spec §4.7, glossary "Package discount").
var packagePromoPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:/|for)\s*\$?(\d+(?:\.\d+)?)`)

// PackagePromotion records one detected "N for $X" promotion and the
// on-sale items whose sum accounts for it.
type PackagePromotion struct {
	Count           int
	PackagePrice    float64
	MatchedItems    []int // indices into the items slice supplied to the detector
	Valid           bool
}

// DetectPackagePromotions scans rawText for package-price promotions and
// tries to find a subset of on-sale items whose line totals sum to the
// package price within SumTolerance. Per the recorded Open Question
// decision, detection always runs and only annotates a report — it never
// mutates items.
func DetectPackagePromotions(rawText string, items []geometry.ExtractedItem) []PackagePromotion {
	var onSaleIdx []int
	for i, it := range items {
		if it.OnSale {
			onSaleIdx = append(onSaleIdx, i)
		}
	}
	if len(onSaleIdx) == 0 {
		return nil
	}

	var promotions []PackagePromotion
	for _, m := range packagePromoPattern.FindAllStringSubmatch(rawText, -1) {
		count, err := strconv.Atoi(m[1])
		if err != nil || count <= 0 {
			continue
		}
		price, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}

		matched, ok := findSubsetSummingTo(items, onSaleIdx, count, price)
		promotions = append(promotions, PackagePromotion{
			Count: count, PackagePrice: price, MatchedItems: matched, Valid: ok,
		})
	}
	return promotions
}

// findSubsetSummingTo locates exactly `count` on-sale items whose line
// totals sum to price within tolerance. It first tries the first `count`
// on-sale items in order (the common case); for small counts (≤3) it falls
// back to trying every combination, per spec §4.7's "for small N (≤3), try
// combinatoric subsets" rule.
func findSubsetSummingTo(items []geometry.ExtractedItem, candidates []int, count int, price float64) ([]int, bool) {
	if count > len(candidates) {
		return nil, false
	}

	if ok := subsetMatches(items, candidates[:count], price); ok {
		return append([]int(nil), candidates[:count]...), true
	}

	if count <= 3 {
		result := make([]int, 0, count)
		if combos(candidates, count, func(combo []int) bool {
			if subsetMatches(items, combo, price) {
				result = append(result, combo...)
				return true
			}
			return false
		}) {
			return result, true
		}
	}

	return nil, false
}

func subsetMatches(items []geometry.ExtractedItem, idx []int, price float64) bool {
	var sum float64
	for _, i := range idx {
		sum += items[i].LineTotal
	}
	return math.Abs(sum-price) <= SumTolerance
}

// combos enumerates every size-k combination of candidates, calling visit
// on each; it stops and returns true on the first visit that returns true.
func combos(candidates []int, k int, visit func([]int) bool) bool {
	n := len(candidates)
	if k > n {
		return false
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		combo := make([]int, k)
		for i, v := range idx {
			combo[i] = candidates[v]
		}
		if visit(combo) {
			return true
		}

		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return false
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
