// Package tnt implements the T&T Supermarket (Canada and US variants)
// layout family (spec §4.4).
//
// Unlike the other four families, this parser has no 1:1 grounding in
// original_source — the Python implementation only has a post-LLM item
// cleaner (processors/merchants/implementations/tt_supermarket.py), not a
// geometric parser. This package is built directly from spec.md's §4.4
// contract, following the row/region/SKU-mapping idiom shared by the other
// four layout families as its structural template (see DESIGN.md).
package tnt

import (
	"regexp"
	"strconv"
	"strings"

	"receiptcore/internal/geometry"
	"receiptcore/internal/parser"
	"receiptcore/internal/rowsplit"
	"receiptcore/internal/storeconfig"
)

const (
	ChainIDCanada = "tnt_ca"
	ChainIDUS     = "tnt_us"
)

const method = "tnt"

var (
	sectionHeaderDefault = []string{"GROCERY", "PRODUCE", "DELI"}
	weightLinePattern    = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*(lb|kg)\s*@\s*\$(\d+\.\d{2})\s*/\s*(?:lb|kg)\s*$`)
	fpAmountPattern      = regexp.MustCompile(`(?i)\bFP\s*\$?(\d+\.\d{2})`)
	membershipPattern    = regexp.MustCompile(`^\*{3,}(\d{4,})\s*$`)
	pointsPattern        = regexp.MustCompile(`(?i)\bPoints\b`)
	totalMarker          = regexp.MustCompile(`TOTAL`)
	subtotalMarker       = regexp.MustCompile(`SUBTOTAL`)
	taxMarker            = regexp.MustCompile(`TAX|GST|PST|HST`)
	memberHeaderMarker   = regexp.MustCompile(`(?i)Member\s*(\d{6,12})`)
)

// Parser implements both the Canada and US T&T variants. The chain's store
// config supplies row epsilon, section headers and fee-row patterns, and the
// chain id selects the currency; pipeline.skew_correction is not read, so no
// skew correction is applied for either variant.
type Parser struct{}

func New() Parser { return Parser{} }

func (Parser) ChainIDs() []string { return []string{ChainIDCanada, ChainIDUS} }

func (Parser) Parse(blocks []geometry.TextBlock, cfg storeconfig.Config, merchantName string) parser.ParsedReceipt {
	if len(blocks) == 0 {
		return parser.Fail(cfg.ChainID, method, "no OCR blocks supplied")
	}

	eps := cfg.Pipeline.RowEpsilon
	if eps == 0 {
		eps = 0.012
	}
	rows := rowsplit.ReconstructRows(blocks, eps, false)

	regions := rowsplit.SplitRegions(rows, rowsplit.RegionMarkers{
		Member:   memberHeaderMarker,
		Subtotal: subtotalMarker,
		Tax:      taxMarker,
		Total:    totalMarker,
	})

	sectionHeaders := cfg.Items.SectionHeaders
	if len(sectionHeaders) == 0 {
		sectionHeaders = sectionHeaderDefault
	}

	usage := geometry.NewAmountUsageTracker()
	items, membershipID := extractItems(regions.Items, sectionHeaders, usage)
	if len(items) == 0 {
		return parser.Fail(cfg.ChainID, method, "no items identified in items region")
	}

	feePatterns := cfg.WashData.FeeRowPatterns
	itemsRegionFees := sumFeeRows(items, feePatterns)

	totals := extractTotals(regions.Totals, usage)
	// Grocery mode (no literal subtotal line, either variant): fold the items
	// region's deposit/environmental fees into the synthesized total basis
	// per spec §4.4's "fees from the items region contribute to the
	// grocery-mode total" rule.
	if !totals.HasSubtotal && itemsRegionFees != 0 {
		totals.Middle = append(totals.Middle, geometry.LabeledAmount{Label: "ITEM_FEES", Amount: itemsRegionFees})
	}

	currency := "CAD"
	if cfg.ChainID == ChainIDUS {
		currency = "USD"
	}

	return parser.ParsedReceipt{
		Success:      true,
		Method:       method,
		ChainID:      cfg.ChainID,
		MerchantName: merchantName,
		Currency:     currency,
		MembershipID: membershipID,
		Items:        items,
		Totals:       totals,
		Validation: parser.ValidationBlock{
			HasItems:    true,
			HasSubtotal: totals.HasSubtotal,
			HasTotal:    totals.HasTotal,
			GroceryMode: !totals.HasSubtotal,
		},
		ErrorLog: []string{},
		Usage:    usage,
	}
}

// extractItems walks item rows, merging a weight/unit-price line with the
// following FP-suffixed amount line into one item, suppressing
// membership/points rows, and keeping fee rows (Env fee, Bottle deposit) as
// ordinary items so grocery-mode validation can sum them in.
//
// T&T prints a weight item's product name on the plain row immediately
// preceding the weight line ("GOLDEN DEW PEAR" / "0.92 lb @ $8.39/lb" /
// "FP $7.72"), not between the weight line and the FP line. A trailing
// amount-less row is therefore held back (bufferedName) instead of being
// emitted immediately, so it can be adopted as the name if the next row
// turns out to be a weight line; it is flushed as an ordinary item only once
// something other than a weight line follows.
func extractItems(itemRows []geometry.PhysicalRow, sectionHeaders []string, usage *geometry.AmountUsageTracker) ([]geometry.ExtractedItem, string) {
	var items []geometry.ExtractedItem
	var membershipID string

	var pendingWeight *weightLine
	var bufferedName, bufferedRawText string
	haveBuffered := false

	flushBuffered := func() {
		if !haveBuffered {
			return
		}
		items = append(items, geometry.ExtractedItem{
			ProductName: bufferedName,
			RawText:     bufferedRawText,
			Confidence:  1.0,
		})
		haveBuffered = false
		bufferedName, bufferedRawText = "", ""
	}

	for _, row := range itemRows {
		text := strings.TrimSpace(row.Text)
		if text == "" {
			continue
		}
		if isSectionHeader(text, sectionHeaders) {
			continue
		}

		if m := membershipPattern.FindStringSubmatch(text); m != nil {
			flushBuffered()
			membershipID = m[1]
			continue
		}
		if pointsPattern.MatchString(text) && firstAmount(row, usage) == 0 {
			flushBuffered()
			continue
		}

		if m := weightLinePattern.FindStringSubmatch(text); m != nil {
			qty, _ := strconv.ParseFloat(m[1], 64)
			unitPrice, _ := strconv.ParseFloat(m[3], 64)
			name := ""
			if haveBuffered {
				name = bufferedName
				haveBuffered = false
				bufferedName, bufferedRawText = "", ""
			}
			pendingWeight = &weightLine{name: name, quantity: qty, unit: strings.ToLower(m[2]), unitPrice: unitPrice}
			continue
		}

		if m := fpAmountPattern.FindStringSubmatch(text); m != nil && pendingWeight != nil {
			lineTotal, _ := strconv.ParseFloat(m[1], 64)
			markRowAmountUsed(row, usage, geometry.RoleLineTotal)
			items = append(items, geometry.ExtractedItem{
				ProductName:  pendingWeight.name,
				Quantity:     pendingWeight.quantity,
				HasQuantity:  true,
				Unit:         pendingWeight.unit,
				UnitPrice:    pendingWeight.unitPrice,
				HasUnitPrice: true,
				LineTotal:    lineTotal,
				RawText:      text,
				Confidence:   1.0,
			})
			pendingWeight = nil
			continue
		}

		if pendingWeight != nil && pendingWeight.name == "" {
			// Fallback layout: the name appears between the weight line and
			// the FP line instead of before the weight line.
			pendingWeight.name = text
			continue
		}

		amt := firstAmount(row, usage)
		name := strings.TrimSpace(strings.Join(namesOnly(row), " "))
		if name == "" {
			continue
		}

		if amt == 0 {
			flushBuffered()
			bufferedName, bufferedRawText = name, text
			haveBuffered = true
			continue
		}

		flushBuffered()
		items = append(items, geometry.ExtractedItem{
			ProductName: name,
			LineTotal:   amt,
			RawText:     text,
			Confidence:  1.0,
		})
	}

	flushBuffered()
	return items, membershipID
}

type weightLine struct {
	name      string
	quantity  float64
	unit      string
	unitPrice float64
}

func isSectionHeader(text string, headers []string) bool {
	upper := strings.ToUpper(text)
	for _, h := range headers {
		if upper == strings.ToUpper(h) {
			return true
		}
	}
	return false
}

func namesOnly(row geometry.PhysicalRow) []string {
	var parts []string
	for _, b := range row.TextBlocks() {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return parts
}

// firstAmount returns the row's first parsed amount block, marking it
// consumed as a line total in usage (spec §3's "each amount block consumed
// at most once"). firstAmountAs does the same under a caller-chosen role.
func firstAmount(row geometry.PhysicalRow, usage *geometry.AmountUsageTracker) float64 {
	return firstAmountAs(row, usage, geometry.RoleLineTotal)
}

func firstAmountAs(row geometry.PhysicalRow, usage *geometry.AmountUsageTracker, role geometry.AmountRole) float64 {
	for _, b := range row.AmountBlocks() {
		if !b.HasAmount {
			continue
		}
		if !usage.IsUsed(b.BlockID) {
			usage.MarkUsed(b.BlockID, role)
		}
		return b.Amount
	}
	return 0
}

// markRowAmountUsed records the row's first amount block under role without
// returning its value, for call sites (e.g. the FP line) that already parsed
// the amount from the row's text directly.
func markRowAmountUsed(row geometry.PhysicalRow, usage *geometry.AmountUsageTracker, role geometry.AmountRole) {
	for _, b := range row.AmountBlocks() {
		if !b.HasAmount {
			continue
		}
		if !usage.IsUsed(b.BlockID) {
			usage.MarkUsed(b.BlockID, role)
		}
		return
	}
}

// sumFeeRows totals the deposit/environmental-fee items described by
// feePatterns, for grocery-mode validation ("fees from the items region
// contribute to the grocery-mode total").
func sumFeeRows(items []geometry.ExtractedItem, feePatterns []string) float64 {
	if len(feePatterns) == 0 {
		feePatterns = []string{"Env fee (CRF)", "Bottle deposit"}
	}
	var sum float64
	for _, item := range items {
		for _, pat := range feePatterns {
			if strings.Contains(strings.ToLower(item.ProductName), strings.ToLower(pat)) {
				sum += item.LineTotal
				break
			}
		}
	}
	return sum
}

func extractTotals(totalsRows []geometry.PhysicalRow, usage *geometry.AmountUsageTracker) geometry.TotalsSequence {
	var subtotal, total float64
	var haveSubtotal, haveTotal bool
	var middle []geometry.LabeledAmount

	for _, row := range totalsRows {
		norm := strings.ToUpper(row.Text)

		switch {
		case strings.Contains(norm, "SUBTOTAL"):
			subtotal, haveSubtotal = firstAmountAs(row, usage, geometry.RoleSubtotal), true
		case strings.Contains(norm, "GST"):
			middle = append(middle, geometry.LabeledAmount{Label: "GST", Amount: firstAmountAs(row, usage, geometry.RoleTax)})
		case strings.Contains(norm, "PST"):
			middle = append(middle, geometry.LabeledAmount{Label: "PST", Amount: firstAmountAs(row, usage, geometry.RoleTax)})
		case strings.Contains(norm, "HST"):
			middle = append(middle, geometry.LabeledAmount{Label: "HST", Amount: firstAmountAs(row, usage, geometry.RoleTax)})
		case strings.Contains(norm, "TOTAL"):
			total, haveTotal = firstAmountAs(row, usage, geometry.RoleTotal), true
		}
	}

	return geometry.TotalsSequence{HasSubtotal: haveSubtotal, Subtotal: subtotal, Middle: middle, HasTotal: haveTotal, Total: total}
}
