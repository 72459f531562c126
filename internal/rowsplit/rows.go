// Package rowsplit reconstructs physical rows from a flat list of OCR text
// blocks and partitions those rows into header/items/totals/payment regions.
package rowsplit

import (
	"sort"
	"strings"

	"receiptcore/internal/geometry"
)

// ReconstructRows groups blocks into PhysicalRow values by y-band.
//
// Blocks are consumed in (PageNumber, CenterY, CenterX) order. The row
// reference y is the y of the first block accumulated into the row, not
// the previous block seen — this is deliberate: anchoring to the previous
// block lets a skewed line drift the row boundary upward row by row, which
// is the behavior store-parser regression testing flagged against the
// original Python implementation. allowAmountSplit, when true, starts a new
// row whenever an amount block would join a row that already has a
// rightmost amount block — two prices on one band are almost always two
// separate items in compact layouts; this is a store-config opt-in, not a
// universal rule.
func ReconstructRows(blocks []geometry.TextBlock, epsilon float64, allowAmountSplit bool) []geometry.PhysicalRow {
	if len(blocks) == 0 {
		return nil
	}

	derived := make([]geometry.TextBlock, len(blocks))
	for i, b := range blocks {
		derived[i] = b.WithDerivedCenter()
	}
	geometry.SortBlocks(derived)

	var rows []geometry.PhysicalRow
	var current []geometry.TextBlock
	var referenceY float64
	havePage := derived[0].PageNumber

	flush := func() {
		if len(current) == 0 {
			return
		}
		rows = append(rows, buildRow(current, havePage))
		current = nil
	}

	for _, b := range derived {
		if len(current) == 0 {
			current = append(current, b)
			referenceY = b.CenterY
			havePage = b.PageNumber
			continue
		}

		sameBand := b.PageNumber == havePage && absf(b.CenterY-referenceY) <= epsilon
		if sameBand && allowAmountSplit && b.IsAmount && rowHasRightmostAmount(current, b) {
			sameBand = false
		}

		if !sameBand {
			flush()
			current = append(current, b)
			referenceY = b.CenterY
			havePage = b.PageNumber
			continue
		}

		current = append(current, b)
	}
	flush()

	return rows
}

// rowHasRightmostAmount reports whether row already contains an amount
// block positioned at or left of candidate — used by the opt-in
// same-band-amount split rule.
func rowHasRightmostAmount(row []geometry.TextBlock, candidate geometry.TextBlock) bool {
	for _, b := range row {
		if b.IsAmount && b.CenterX <= candidate.CenterX {
			return true
		}
	}
	return false
}

func buildRow(blocks []geometry.TextBlock, page int) geometry.PhysicalRow {
	sorted := make([]geometry.TextBlock, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CenterX < sorted[j].CenterX })

	yTop, yBottom := sorted[0].CenterY, sorted[0].CenterY
	texts := make([]string, 0, len(sorted))
	var ySum float64
	for _, b := range sorted {
		if b.CenterY < yTop {
			yTop = b.CenterY
		}
		if b.CenterY > yBottom {
			yBottom = b.CenterY
		}
		ySum += b.CenterY
		if b.Text != "" {
			texts = append(texts, b.Text)
		}
	}

	return geometry.PhysicalRow{
		Blocks:     sorted,
		YTop:       yTop,
		YBottom:    yBottom,
		YCenter:    ySum / float64(len(sorted)),
		PageNumber: page,
		Text:       strings.Join(texts, " "),
		RowType:    geometry.RowUnknown,
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
