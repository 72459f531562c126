// Package costcocadigital implements the Costco Canada digital-receipt
// layout family (spec §4.4), grounded on
// original_source/backend/app/processors/stores/costco_ca/digital/processor.py.
package costcocadigital

import (
	"regexp"
	"strconv"
	"strings"

	"receiptcore/internal/amountcolumn"
	"receiptcore/internal/geometry"
	"receiptcore/internal/parser"
	"receiptcore/internal/rowsplit"
	"receiptcore/internal/storeconfig"
)

const ChainID = "costco_ca_digital"

const method = "costco_ca_digital"

var (
	skuPattern    = regexp.MustCompile(`^(\d{4,7})(?:\s+(.+))?$`)
	tpdPattern    = regexp.MustCompile(`(?i)\d{4,7}\s+TPD/(\d{4,7})`)
	memberPattern = regexp.MustCompile(`(?i)Member\s*(\d{10,12})`)
	subtotalMarker = regexp.MustCompile(`SUBTOTAL`)
	taxMarker      = regexp.MustCompile(`TAX`)
	totalMarker    = regexp.MustCompile(`TOTAL`)
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
		Member:   memberPattern,
		Subtotal: subtotalMarker,
		Tax:      taxMarker,
		Total:    totalMarker,
	})

	membershipID := extractMembershipID(regions.Header)

	usage := geometry.NewAmountUsageTracker()
	items := extractItems(regions.Items, cfg, usage)
	if len(items) == 0 {
		return parser.Fail(ChainID, method, "no items identified in items region")
	}

	totals := extractTotals(regions.Totals, usage)

	result := parser.ParsedReceipt{
		Success:      true,
		Method:       method,
		ChainID:      ChainID,
		MerchantName: merchantName,
		Currency:     "CAD",
		MembershipID: membershipID,
		Items:        items,
		Totals:       totals,
		Validation: parser.ValidationBlock{
			HasItems:    len(items) > 0,
			HasSubtotal: totals.HasSubtotal,
			HasTotal:    totals.HasTotal,
			GroceryMode: !totals.HasSubtotal,
		},
		ErrorLog: []string{},
		Usage:    usage,
	}
	return result
}

func extractMembershipID(headerRows []geometry.PhysicalRow) string {
	for _, row := range headerRows {
		if m := memberPattern.FindStringSubmatch(row.Text); m != nil {
			return m[1]
		}
	}
	return ""
}

func extractItems(itemRows []geometry.PhysicalRow, cfg storeconfig.Config, usage *geometry.AmountUsageTracker) []geometry.ExtractedItem {
	fallbackSku := cfg.Items.Layout.SkuNameFallback
	if fallbackSku == 0 {
		fallbackSku = 0.48
	}
	fallbackAmt := cfg.Items.Layout.NameAmountFallback
	if fallbackAmt == 0 {
		fallbackAmt = 0.65
	}

	col := amountcolumn.Detect(itemRows, amountcolumn.Defaults{CenterX: fallbackAmt, Tolerance: 0.1})

	var items []geometry.ExtractedItem
	skuToIdx := make(map[string]int)

	for _, row := range itemRows {
		if isTPDRow(row.Text) {
			targetSKU := tpdTargetSKU(row.Text)
			discount := rowAmount(row, col, usage)
			if targetSKU != "" && discount < 0 {
				if idx, ok := skuToIdx[targetSKU]; ok {
					items[idx].UnitPrice = items[idx].LineTotal
					items[idx].HasUnitPrice = true
					items[idx].LineTotal += discount
					items[idx].OnSale = true
				} else {
					parser.AttachDiscount(items, targetSKU, discount)
				}
			}
			continue
		}

		sku, name := splitSkuAndName(row.Text, fallbackSku)
		amt := rowAmount(row, col, usage)
		if sku == "" && name == "" {
			continue
		}

		item := geometry.ExtractedItem{
			ProductName: strings.TrimSpace(name),
			LineTotal:   amt,
			SKU:         sku,
			RawText:     row.Text,
			Confidence:  1.0,
		}
		parser.FillMissingProductName(&item)
		items = append(items, item)
		if sku != "" {
			skuToIdx[sku] = len(items) - 1
		}
	}

	return items
}

func isTPDRow(text string) bool {
	return tpdPattern.MatchString(text)
}

func tpdTargetSKU(text string) string {
	m := tpdPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

func splitSkuAndName(text string, fallbackSkuX float64) (sku, name string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", ""
	}
	m := skuPattern.FindStringSubmatch(fields[0])
	if m != nil && len(m[1]) >= 4 {
		sku = m[1]
		name = strings.Join(fields[1:], " ")
		return sku, name
	}
	return "", text
}

func rowAmount(row geometry.PhysicalRow, col geometry.AmountColumn, usage *geometry.AmountUsageTracker) float64 {
	for _, b := range row.AmountBlocks() {
		if !b.HasAmount {
			continue
		}
		if !usage.IsUsed(b.BlockID) {
			usage.MarkUsed(b.BlockID, geometry.RoleLineTotal)
		}
		return b.Amount
	}
	return 0
}

func extractTotals(totalsRows []geometry.PhysicalRow, usage *geometry.AmountUsageTracker) geometry.TotalsSequence {
	var subtotal, hst, gst, totalTax, total float64
	var haveSubtotal, haveHST, haveGST, haveTotalTax, haveTotal bool

	for _, row := range totalsRows {
		norm := strings.ToUpper(row.Text)
		amt := firstAmount(row)

		switch {
		case strings.Contains(norm, "SUBTOTAL"):
			subtotal, haveSubtotal = amt, true
		case strings.Contains(norm, "HST"):
			hst, haveHST = amt, true
		case strings.Contains(norm, "GST"):
			gst, haveGST = amt, true
		case strings.Contains(norm, "TOTAL TAX"):
			totalTax, haveTotalTax = amt, true
		case strings.Contains(norm, "TOTAL") && !strings.Contains(norm, "SUB") && !strings.Contains(norm, "TAX"):
			total, haveTotal = amt, true
		}
	}

	// Tax reconciliation: if HST+GST disagrees with TOTAL TAX by more than
	// tolerance, trust TOTAL TAX and adjust HST by the difference (Open
	// Question #2 in DESIGN.md: the discrepancy is always assigned to HST).
	if haveTotalTax && haveHST && haveGST {
		diff := totalTax - (hst + gst)
		if diff < 0 {
			diff = -diff
		}
		if diff > 0.03 {
			hst = hst + (totalTax - (hst + gst))
		}
	}

	seq := geometry.TotalsSequence{
		HasSubtotal: haveSubtotal,
		Subtotal:    subtotal,
		HasTotal:    haveTotal,
		Total:       total,
	}
	if haveHST {
		seq.Middle = append(seq.Middle, geometry.LabeledAmount{Label: "HST", Amount: round2(hst)})
	}
	if haveGST {
		seq.Middle = append(seq.Middle, geometry.LabeledAmount{Label: "GST", Amount: round2(gst)})
	}
	return seq
}

func firstAmount(row geometry.PhysicalRow) float64 {
	for _, b := range row.AmountBlocks() {
		if b.HasAmount {
			return b.Amount
		}
	}
	// fall back to regex-extracting a dollar amount from concatenated text
	m := regexp.MustCompile(`(\d+\.\d{2})`).FindStringSubmatch(row.Text)
	if m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		return v
	}
	return 0
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
