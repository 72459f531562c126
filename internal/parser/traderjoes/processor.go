// Package traderjoes implements the Trader Joe's layout family (spec
// §4.4), grounded on
// original_source/backend/app/processors/stores/trader_joes/processor.py.
package traderjoes

import (
	"regexp"
	"strconv"
	"strings"

	"receiptcore/internal/geometry"
	"receiptcore/internal/parser"
	"receiptcore/internal/rowsplit"
	"receiptcore/internal/storeconfig"
)

const ChainID = "trader_joes"
const method = "trader_joes"

var (
	// OCR-tolerant: "SALE TRANSACTION" sometimes degrades to "SALF
	// TRANSACTION" or similar.
	saleTransaction = regexp.MustCompile(`\bSA[LI][EF]\s+TRANSACTION\b`)
	taxableRegexp   = regexp.MustCompile(`^T\s+`)
	quantityPrice   = regexp.MustCompile(`^(\d+)\s*@\s*\$(\d+\.\d{2})\s+`)
	totalPurchase   = regexp.MustCompile(`TOTAL\s+PURCHASE`)
	taxMarker       = regexp.MustCompile(`\bTAX\b`)
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
		eps = 0.015
	}
	rows := rowsplit.ReconstructRows(blocks, eps, true)

	regions := rowsplit.SplitRegions(rows, rowsplit.RegionMarkers{
		Member:   saleTransaction,
		Subtotal: nil, // Trader Joe's has no literal subtotal line
		Tax:      taxMarker,
		Total:    totalPurchase,
	})

	usage := geometry.NewAmountUsageTracker()
	items := extractItems(regions.Items, usage)
	if len(items) == 0 {
		return parser.Fail(ChainID, method, "no items identified in items region")
	}

	totals := extractTotals(regions.Totals, usage)

	return parser.ParsedReceipt{
		Success:      true,
		Method:       method,
		ChainID:      ChainID,
		MerchantName: merchantName,
		Currency:     "USD",
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

func extractItems(itemRows []geometry.PhysicalRow, usage *geometry.AmountUsageTracker) []geometry.ExtractedItem {
	var items []geometry.ExtractedItem

	for _, row := range itemRows {
		amt := firstAmount(row, usage)
		name := strings.TrimSpace(strings.Join(namesOnly(row), " "))
		if name == "" {
			continue
		}

		taxable := false
		if taxableRegexp.MatchString(name) {
			taxable = true
			name = taxableRegexp.ReplaceAllString(name, "")
		}

		item := geometry.ExtractedItem{
			ProductName: name,
			LineTotal:   amt,
			RawText:     row.Text,
			Taxable:     taxable,
			Confidence:  1.0,
		}

		if m := quantityPrice.FindStringSubmatch(name); m != nil {
			qty, _ := strconv.ParseFloat(m[1], 64)
			unitPrice, _ := strconv.ParseFloat(m[2], 64)
			item.Quantity = qty
			item.HasQuantity = true
			item.UnitPrice = unitPrice
			item.HasUnitPrice = true
			item.ProductName = strings.TrimSpace(name[len(m[0]):])
		}

		items = append(items, item)
	}

	return items
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

// extractTotals implements the explicit redesign decision recorded in
// DESIGN.md: "Balance to pay" is never accepted as the total, even when
// "TOTAL PURCHASE" is absent. Missing TOTAL PURCHASE leaves HasTotal false,
// which the orchestrator's validator turns into needs_review rather than a
// silent downgrade to an interim amount.
//
// No literal subtotal line exists here; HasSubtotal stays false so
// validate.ValidateTotals takes the grocery-mode path (Σ line_total compared
// directly to total), rather than a synthesized subtotal that would just
// equal that same sum and make the check vacuous.
func extractTotals(totalsRows []geometry.PhysicalRow, usage *geometry.AmountUsageTracker) geometry.TotalsSequence {
	var tax float64
	var haveTax, haveTotal bool
	var total float64

	for _, row := range totalsRows {
		norm := strings.ToUpper(row.Text)

		if totalPurchase.MatchString(norm) {
			total, haveTotal = firstAmountAs(row, usage, geometry.RoleTotal), true
			continue
		}
		if strings.Contains(norm, "TAX") {
			tax, haveTax = firstAmountAs(row, usage, geometry.RoleTax), true
		}
	}

	seq := geometry.TotalsSequence{HasSubtotal: false, HasTotal: haveTotal, Total: total}
	if haveTax {
		seq.Middle = append(seq.Middle, geometry.LabeledAmount{Label: "TAX", Amount: tax})
	}
	return seq
}
