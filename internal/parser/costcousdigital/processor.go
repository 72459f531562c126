// Package costcousdigital implements the Costco US digital-receipt layout
// family (spec §4.4), grounded on
// original_source/backend/app/processors/stores/costco_us/digital/processor.py.
package costcousdigital

import (
	"regexp"
	"strconv"
	"strings"

	"receiptcore/internal/geometry"
	"receiptcore/internal/parser"
	"receiptcore/internal/rowsplit"
	"receiptcore/internal/storeconfig"
)

const ChainID = "costco_us_digital"
const method = "costco_us_digital"

var (
	memberPattern = regexp.MustCompile(`(?i)Member\s*(\d{10,12})`)
	subtotalMarker = regexp.MustCompile(`SUBTOTAL`)
	taxMarker      = regexp.MustCompile(`TAX`)
	// OCR-degraded "TOTAL" ("TOTA") is accepted, but rows that also mention
	// ITEMS SOLD must never close the totals region.
	totalMarker          = regexp.MustCompile(`TOTA`)
	excludeItemsSold     = regexp.MustCompile(`ITEMSSOLD`)
	validPrice           = regexp.MustCompile(`(\d+\.\d{2})`)
	discountSkuSuffix    = regexp.MustCompile(`/\s*(\d{4,7})\s*$`)
	// composite single-block "SKU NAME AMOUNT" rows
	compositeLine = regexp.MustCompile(`^(\d{4,7})\s+(.+?)\s+(\d+\.\d{2})\s*[NY]?\s*$`)
)

type Parser struct{}

func New() Parser { return Parser{} }

func (Parser) ChainIDs() []string { return []string{ChainID} }

func (Parser) Parse(blocks []geometry.TextBlock, cfg storeconfig.Config, merchantName string) parser.ParsedReceipt {
	if len(blocks) == 0 {
		return parser.Fail(ChainID, method, "no OCR blocks supplied")
	}

	eps := cfg.Pipeline.RowEpsilon
	if eps == 0 {
		eps = 0.02
	}
	rows := rowsplit.ReconstructRows(blocks, eps, false)

	regions := rowsplit.SplitRegions(rows, rowsplit.RegionMarkers{
		Member:           memberPattern,
		Subtotal:         subtotalMarker,
		Tax:              taxMarker,
		Total:            totalMarker,
		ExcludeFromTotal: excludeItemsSold,
	})

	membershipID := extractMembershipID(regions.Header)

	usage := geometry.NewAmountUsageTracker()
	items := extractItems(regions.Items, usage)
	if len(items) == 0 {
		return parser.Fail(ChainID, method, "no items identified in items region")
	}

	totals := extractTotals(regions.Totals)

	return parser.ParsedReceipt{
		Success:      true,
		Method:       method,
		ChainID:      ChainID,
		MerchantName: merchantName,
		Currency:     "USD",
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

func extractMembershipID(headerRows []geometry.PhysicalRow) string {
	for _, row := range headerRows {
		if m := memberPattern.FindStringSubmatch(row.Text); m != nil {
			return m[1]
		}
	}
	return ""
}

func extractItems(itemRows []geometry.PhysicalRow, usage *geometry.AmountUsageTracker) []geometry.ExtractedItem {
	var items []geometry.ExtractedItem
	skuToIdx := make(map[string]int)

	for _, row := range itemRows {
		text := row.Text

		if isDiscountRow(row) {
			if rawSKU, ok := discountTargetSKU(row); ok {
				targetSKU := splitConcatenatedSku(rawSKU)
				discount := extractValidAmount(row)
				if discount < 0 {
					if idx, ok := skuToIdx[targetSKU]; ok {
						items[idx].UnitPrice = items[idx].LineTotal
						items[idx].HasUnitPrice = true
						items[idx].LineTotal += discount
						items[idx].OnSale = true
					} else {
						parser.AttachDiscount(items, targetSKU, discount)
					}
				}
			}
			continue
		}

		if m := compositeLine.FindStringSubmatch(text); m != nil {
			sku := m[1]
			name := strings.TrimSpace(m[2])
			amt, _ := strconv.ParseFloat(m[3], 64)
			item := geometry.ExtractedItem{ProductName: name, LineTotal: amt, SKU: sku, RawText: text, Confidence: 1.0}
			parser.FillMissingProductName(&item)
			items = append(items, item)
			skuToIdx[sku] = len(items) - 1
			continue
		}

		sku, name := splitLeadingSku(text)
		amt := extractValidAmount(row)
		if sku == "" && name == "" {
			continue
		}
		item := geometry.ExtractedItem{ProductName: strings.TrimSpace(name), LineTotal: amt, SKU: sku, RawText: text, Confidence: 1.0}
		parser.FillMissingProductName(&item)
		items = append(items, item)
		if sku != "" {
			skuToIdx[sku] = len(items) - 1
		}
	}

	_ = usage
	return items
}

// isDiscountRow mirrors _is_discount_row: a discount line is identified by a
// negative amount block together with a "/" somewhere in the row, not by
// whether the target-SKU regex happens to match.
func isDiscountRow(row geometry.PhysicalRow) bool {
	hasNegative := false
	for _, b := range row.AmountBlocks() {
		if b.HasAmount && b.Amount < 0 {
			hasNegative = true
			break
		}
	}
	if !hasNegative {
		return false
	}
	return strings.Contains(row.Text, "/")
}

// discountTargetSKU mirrors _get_discount_target_sku: the end-anchored
// "/NNNN" pattern is applied to each block's own text individually, never to
// the row's joined text, since the joined text ends with the amount token
// (e.g. "369985/990929 -2.00-") and would never match there.
func discountTargetSKU(row geometry.PhysicalRow) (string, bool) {
	for _, b := range row.Blocks {
		if m := discountSkuSuffix.FindStringSubmatch(strings.TrimSpace(b.Text)); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// splitConcatenatedSku mirrors _get_discount_target_sku: a run of 10-14
// concatenated digits is split by length into a source/target SKU pair;
// the target (last) SKU is what the discount attaches to.
func splitConcatenatedSku(token string) string {
	n := len(token)
	switch {
	case n >= 12:
		return token[n-7:]
	case n == 11:
		return token[n-6:]
	case n >= 8:
		return token[n-5:]
	default:
		return token
	}
}

func splitLeadingSku(text string) (sku, name string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", ""
	}
	if len(fields[0]) >= 4 && len(fields[0]) <= 7 && isDigits(fields[0]) {
		return fields[0], strings.Join(fields[1:], " ")
	}
	return "", text
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// extractValidAmount rejects amount candidates not in X.XX form, preventing
// a misread SKU fragment (e.g. "371") from being treated as a dollar value.
func extractValidAmount(row geometry.PhysicalRow) float64 {
	for _, b := range row.AmountBlocks() {
		if !b.HasAmount {
			continue
		}
		if !validPrice.MatchString(b.Text) {
			continue
		}
		return b.Amount
	}
	if m := validPrice.FindStringSubmatch(row.Text); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		if strings.Contains(row.Text, m[1]+"-") {
			v = -v
		}
		return v
	}
	return 0
}

func extractTotals(totalsRows []geometry.PhysicalRow) geometry.TotalsSequence {
	var subtotal, tax, total float64
	var haveSubtotal, haveTax, haveTotal bool

	for _, row := range totalsRows {
		norm := strings.ToUpper(row.Text)
		if strings.Contains(norm, "ITEMS SOLD") {
			continue
		}
		amt := extractValidAmount(row)

		switch {
		case strings.Contains(norm, "SUBTOTAL"):
			subtotal, haveSubtotal = amt, true
		case strings.Contains(norm, "TAX"):
			tax, haveTax = amt, true
		case strings.Contains(norm, "TOTA"):
			total, haveTotal = amt, true
		}
	}

	seq := geometry.TotalsSequence{HasSubtotal: haveSubtotal, Subtotal: subtotal, HasTotal: haveTotal, Total: total}
	if haveTax {
		seq.Middle = append(seq.Middle, geometry.LabeledAmount{Label: "TAX", Amount: tax})
	}
	return seq
}
