package rowsplit

import (
	"regexp"
	"strings"

	"receiptcore/internal/geometry"
)

// RegionMarkers holds the compiled regexes a store config resolves to,
// used to drive the header/items/totals/payment state machine. Regex
// contracts are preserved literally per store layout and compiled once;
// store parsers own the canonical instances and pass them in here.
type RegionMarkers struct {
	Member  *regexp.Regexp
	Subtotal *regexp.Regexp
	Tax      *regexp.Regexp
	Total    *regexp.Regexp
	// ExcludeFromTotal matches rows that superficially look like a TOTAL
	// line but must never close the totals region (e.g. "TOTAL NUMBER OF
	// ITEMS SOLD").
	ExcludeFromTotal *regexp.Regexp
}

var normalizeMarkerText = regexp.MustCompile(`[.\s\-_]`)

func normalize(text string) string {
	return normalizeMarkerText.ReplaceAllString(strings.ToUpper(text), "")
}

// SplitRegions walks rows top-to-bottom through the Header -> Items ->
// Totals -> Payment state machine described in spec §4.2.
//
// If no Member marker is ever found, the header is closed at the first row
// that looks like a plausible item row (heuristically: the first row
// carrying an amount block), matching the "fallback: header ends at first
// plausible item row" rule.
func SplitRegions(rows []geometry.PhysicalRow, markers RegionMarkers) geometry.ReceiptRegions {
	var out geometry.ReceiptRegions
	state := geometry.RowHeader
	sawMember := false

	for _, row := range rows {
		norm := normalize(row.Text)

		switch state {
		case geometry.RowHeader:
			if markers.Member != nil && markers.Member.MatchString(row.Text) {
				sawMember = true
				row.RowType = geometry.RowHeader
				out.Header = append(out.Header, row)
				state = geometry.RowItem
				continue
			}
			if !sawMember && len(row.AmountBlocks()) > 0 {
				// Fallback: no Member marker ever matched; this row looks
				// like an item, so the header closes here without
				// consuming this row as header.
				state = geometry.RowItem
				row.RowType = geometry.RowItem
				out.Items = append(out.Items, row)
				continue
			}
			row.RowType = geometry.RowHeader
			out.Header = append(out.Header, row)

		case geometry.RowItem:
			if markers.Subtotal != nil && markers.Subtotal.MatchString(norm) {
				row.RowType = geometry.RowTotals
				out.Totals = append(out.Totals, row)
				state = geometry.RowTotals
				continue
			}
			if isTotalMarker(norm, markers) {
				row.RowType = geometry.RowTotals
				out.Totals = append(out.Totals, row)
				state = geometry.RowPayment
				continue
			}
			row.RowType = geometry.RowItem
			out.Items = append(out.Items, row)

		case geometry.RowTotals:
			if isTotalMarker(norm, markers) {
				row.RowType = geometry.RowTotals
				out.Totals = append(out.Totals, row)
				state = geometry.RowPayment
				continue
			}
			row.RowType = geometry.RowTotals
			out.Totals = append(out.Totals, row)

		case geometry.RowPayment:
			row.RowType = geometry.RowPayment
			out.Payment = append(out.Payment, row)
		}
	}

	return out
}

// isTotalMarker reports whether norm looks like a TOTAL line, excluding
// SUBTOTAL and any store-configured exclusion pattern (e.g. "ITEMS SOLD").
func isTotalMarker(norm string, markers RegionMarkers) bool {
	if markers.Total == nil || !markers.Total.MatchString(norm) {
		return false
	}
	if strings.Contains(norm, "SUB") {
		return false
	}
	if markers.ExcludeFromTotal != nil && markers.ExcludeFromTotal.MatchString(norm) {
		return false
	}
	return true
}
