// Package amountcolumn detects the vertical band where monetary values
// cluster within a slice of rows (spec §4.3).
package amountcolumn

import (
	"sort"

	"receiptcore/internal/geometry"
)

// Defaults is the store-configured fallback used when fewer than 3 distinct
// x values are available to cluster.
type Defaults struct {
	CenterX   float64
	Tolerance float64
}

// Detect clusters the center_x of every non-discount block across rows by
// locating the two largest gaps in the sorted x distribution. The
// rightmost resulting cluster's mean is the amount column's CenterX;
// tolerance is half the gap preceding it. Rows holding a negative amount
// block (discount rows) are excluded from the clustering sample; a row is
// not excluded for carrying a ratio-like sign in its text.
func Detect(rows []geometry.PhysicalRow, fallback Defaults) geometry.AmountColumn {
	var xs []float64
	seen := make(map[float64]bool)

	for _, row := range rows {
		if isDiscountRow(row) {
			continue
		}
		for _, b := range row.Blocks {
			if !seen[b.CenterX] {
				seen[b.CenterX] = true
				xs = append(xs, b.CenterX)
			}
		}
	}

	if len(xs) < 3 {
		return geometry.AmountColumn{
			CenterX:    fallback.CenterX,
			Tolerance:  fallback.Tolerance,
			Confidence: 0.4,
			BlockCount: len(xs),
		}
	}

	sort.Float64s(xs)

	type gap struct {
		size     float64
		lo, hi   float64
	}
	var gaps []gap
	for i := 0; i < len(xs)-1; i++ {
		gaps = append(gaps, gap{size: xs[i+1] - xs[i], lo: xs[i], hi: xs[i+1]})
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i].size > gaps[j].size })

	if len(gaps) < 2 {
		return geometry.AmountColumn{
			CenterX:    fallback.CenterX,
			Tolerance:  fallback.Tolerance,
			Confidence: 0.4,
			BlockCount: len(xs),
		}
	}

	b1 := (gaps[0].lo + gaps[0].hi) / 2
	b2 := (gaps[1].lo + gaps[1].hi) / 2

	rightBoundary := b1
	rightGap := gaps[0]
	if b2 > b1 {
		rightBoundary = b2
		rightGap = gaps[1]
	}

	// Count how many x values fall at or beyond the rightmost boundary —
	// that cluster's population.
	var clusterXs []float64
	for _, x := range xs {
		if x >= rightBoundary {
			clusterXs = append(clusterXs, x)
		}
	}
	if len(clusterXs) == 0 {
		return geometry.AmountColumn{
			CenterX:    fallback.CenterX,
			Tolerance:  fallback.Tolerance,
			Confidence: 0.4,
			BlockCount: len(xs),
		}
	}

	var sum float64
	for _, x := range clusterXs {
		sum += x
	}
	centerX := sum / float64(len(clusterXs))

	return geometry.AmountColumn{
		CenterX:    centerX,
		Tolerance:  rightGap.size / 2,
		Confidence: 0.9,
		BlockCount: len(clusterXs),
	}
}

func isDiscountRow(row geometry.PhysicalRow) bool {
	for _, b := range row.Blocks {
		if b.IsAmount && b.HasAmount && b.Amount < 0 {
			return true
		}
	}
	return false
}
