// Package costcousphysical implements the Costco US physical-receipt
// layout family (spec §4.4), grounded on
// original_source/backend/app/processors/stores/costco_us/physical/processor.py.
package costcousphysical

import (
	"regexp"
	"strconv"
	"strings"

	"receiptcore/internal/geometry"
	"receiptcore/internal/parser"
	"receiptcore/internal/rowsplit"
	"receiptcore/internal/storeconfig"
)

const ChainID = "costco_us_physical"
const method = "costco_us_physical"

const lineYEpsilon = 0.012

var (
	// "Membe" tolerates the common OCR typo for "Member".
	memberPattern    = regexp.MustCompile(`(?i)Membe[r]?\s*(\d{10,12})`)
	subtotalMarker   = regexp.MustCompile(`SUBTOTA?L?`)
	taxMarker        = regexp.MustCompile(`TAX`)
	totalMarker      = regexp.MustCompile(`TOTA`)
	excludeItemsSold = regexp.MustCompile(`ITEMSSOLD|NUMBEROFITEMS`)
	skuPattern       = regexp.MustCompile(`^(\d{3,7})\s+(.+)$`)
	discountPattern  = regexp.MustCompile(`/\s*(\d{4,7})\s*$`)
	// OCR noise: short runs of Cyrillic/Tamil script mistakenly recognized
	// as Latin product-name fragments.
	ocrNoiseScript = regexp.MustCompile(`[\x{0400}-\x{04FF}\x{0B80}-\x{0BFF}]`)
)

type Parser struct{}

func New() Parser { return Parser{} }

func (Parser) ChainIDs() []string { return []string{ChainID} }

func isOCRNoiseWord(t string) bool {
	if t == "" || len(t) > 4 {
		return false
	}
	return ocrNoiseScript.MatchString(t)
}

func stripNoise(name string) string {
	words := strings.Fields(name)
	kept := words[:0]
	for _, w := range words {
		if !isOCRNoiseWord(w) {
			kept = append(kept, w)
		}
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}

func (Parser) Parse(blocks []geometry.TextBlock, cfg storeconfig.Config, merchantName string) parser.ParsedReceipt {
	if len(blocks) == 0 {
		return parser.Fail(ChainID, method, "no OCR blocks supplied")
	}

	eps := cfg.Pipeline.RowEpsilon
	if eps == 0 {
		eps = 0.008
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
		if m := discountPattern.FindStringSubmatch(row.Text); m != nil {
			targetSKU := m[1]
			discount := trailingMinusAmount(row)
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
			continue
		}

		amountBlocks := row.AmountBlocks()
		if len(amountBlocks) >= 2 {
			// Row collapses multiple items by OCR; split by matching each
			// amount to the nearest name block within lineYEpsilon.
			split := splitMultiAmountRow(row)
			for _, it := range split {
				items = append(items, it)
				if it.SKU != "" {
					skuToIdx[it.SKU] = len(items) - 1
				}
			}
			continue
		}

		sku, name := splitSkuAndName(row.Text)
		name = stripNoise(name)
		amt := singleAmount(row)
		if sku == "" && name == "" {
			continue
		}
		item := geometry.ExtractedItem{ProductName: name, LineTotal: amt, SKU: sku, RawText: row.Text, Confidence: 1.0}
		parser.FillMissingProductName(&item)
		items = append(items, item)
		if sku != "" {
			skuToIdx[sku] = len(items) - 1
		}
	}

	_ = usage
	return items
}

func splitSkuAndName(text string) (sku, name string) {
	if m := skuPattern.FindStringSubmatch(text); m != nil && len(m[1]) >= 4 {
		return m[1], m[2]
	}
	return "", text
}

func singleAmount(row geometry.PhysicalRow) float64 {
	for _, b := range row.AmountBlocks() {
		if b.HasAmount {
			return b.Amount
		}
	}
	return 0
}

func trailingMinusAmount(row geometry.PhysicalRow) float64 {
	for _, b := range row.AmountBlocks() {
		if b.HasAmount {
			v := b.Amount
			if strings.HasSuffix(strings.TrimSpace(b.Text), "-") && v > 0 {
				v = -v
			}
			return v
		}
	}
	return 0
}

func splitMultiAmountRow(row geometry.PhysicalRow) []geometry.ExtractedItem {
	var results []geometry.ExtractedItem
	nameBlocks := row.TextBlocks()

	for _, amt := range row.AmountBlocks() {
		if !amt.HasAmount || amt.Amount < 0 {
			continue
		}
		var closest []geometry.TextBlock
		for _, nb := range nameBlocks {
			if absf(nb.CenterY-amt.CenterY) <= lineYEpsilon {
				closest = append(closest, nb)
			}
		}
		geometry.SortBlocks(closest)

		var sku string
		var nameParts []string
		for _, nb := range closest {
			t := strings.TrimSpace(nb.Text)
			if isOCRNoiseWord(t) {
				continue
			}
			if m := skuPattern.FindStringSubmatch(t); m != nil && sku == "" && len(m[1]) >= 4 {
				sku = m[1]
				continue
			}
			nameParts = append(nameParts, t)
		}

		item := geometry.ExtractedItem{
			ProductName: strings.TrimSpace(strings.Join(nameParts, " ")),
			LineTotal:   amt.Amount,
			SKU:         sku,
			RawText:     row.Text,
			Confidence:  0.8,
		}
		parser.FillMissingProductName(&item)
		results = append(results, item)
	}
	return results
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func extractTotals(totalsRows []geometry.PhysicalRow) geometry.TotalsSequence {
	var subtotal, tax, total float64
	var haveSubtotal, haveTax, haveTotal bool

	for _, row := range totalsRows {
		norm := strings.ToUpper(row.Text)
		if strings.Contains(norm, "ITEMS SOLD") {
			continue
		}
		amt := singleAmount(row)
		if amt == 0 {
			if m := regexp.MustCompile(`(\d+\.\d{2})`).FindStringSubmatch(row.Text); m != nil {
				amt, _ = strconv.ParseFloat(m[1], 64)
			}
		}

		switch {
		case strings.Contains(norm, "SUBTOTA"):
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
