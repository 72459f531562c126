package amountcolumn

import (
	"testing"

	"receiptcore/internal/geometry"
)

func rowAt(xs ...float64) geometry.PhysicalRow {
	blocks := make([]geometry.TextBlock, len(xs))
	for i, x := range xs {
		blocks[i] = geometry.TextBlock{CenterX: x}
	}
	return geometry.PhysicalRow{Blocks: blocks}
}

func TestDetectFallsBackBelowThreeDistinctX(t *testing.T) {
	rows := []geometry.PhysicalRow{rowAt(0.1, 0.2)}
	fallback := Defaults{CenterX: 0.8, Tolerance: 0.03}

	col := Detect(rows, fallback)

	if col.CenterX != fallback.CenterX || col.Confidence != 0.4 {
		t.Errorf("expected fallback column, got %+v", col)
	}
}

func TestDetectFindsRightmostCluster(t *testing.T) {
	// Names cluster around x=0.1-0.15, amounts cluster around x=0.8-0.85 —
	// the largest gap separates the two, so the rightmost cluster wins.
	rows := []geometry.PhysicalRow{
		rowAt(0.10, 0.80),
		rowAt(0.12, 0.82),
		rowAt(0.15, 0.85),
	}
	fallback := Defaults{CenterX: 0.5, Tolerance: 0.1}

	col := Detect(rows, fallback)

	if col.CenterX < 0.75 || col.CenterX > 0.9 {
		t.Errorf("expected the amount column centered around ~0.82, got %v", col.CenterX)
	}
	if col.Confidence != 0.9 {
		t.Errorf("expected high confidence once a cluster is found, got %v", col.Confidence)
	}
}

func TestDetectExcludesDiscountRowsFromSample(t *testing.T) {
	discountRow := geometry.PhysicalRow{Blocks: []geometry.TextBlock{
		{CenterX: 0.5, IsAmount: true, HasAmount: true, Amount: -1.00},
	}}
	rows := []geometry.PhysicalRow{
		rowAt(0.10, 0.80),
		rowAt(0.12, 0.82),
		rowAt(0.15, 0.85),
		discountRow,
	}
	fallback := Defaults{CenterX: 0.5, Tolerance: 0.1}

	col := Detect(rows, fallback)

	// If the discount row's x=0.5 had been included, BlockCount would grow
	// or the cluster would shift toward the middle; it should not.
	if col.CenterX < 0.75 {
		t.Errorf("expected the discount row excluded from clustering, got CenterX=%v", col.CenterX)
	}
}
