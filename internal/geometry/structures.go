// Package geometry holds the OCR-block-level primitives shared by every
// store parser: text blocks, physical rows, receipt regions, amount
// columns, usage tracking, extracted items, and the totals sequence.
package geometry

import "sort"

// RowType classifies a PhysicalRow within the receipt layout.
type RowType int

const (
	RowUnknown RowType = iota
	RowHeader
	RowItem
	RowTotals
	RowPayment
)

func (t RowType) String() string {
	switch t {
	case RowHeader:
		return "header"
	case RowItem:
		return "item"
	case RowTotals:
		return "totals"
	case RowPayment:
		return "payment"
	default:
		return "unknown"
	}
}

// TextBlock is a single OCR-detected token with normalized coordinates.
//
// Coordinates are normalized to [0,1] relative to the page. CenterX/CenterY
// are derived from X/Y/Width/Height when not supplied directly. Amount is
// only meaningful when IsAmount is true.
type TextBlock struct {
	Text        string
	X, Y        float64
	Width       float64
	Height      float64
	CenterX     float64
	CenterY     float64
	IsAmount    bool
	Amount      float64
	HasAmount   bool
	BlockID     string
	PageNumber  int
	Confidence  float64
}

// WithDerivedCenter returns a copy with CenterX/CenterY filled in from
// X/Y/Width/Height when they were not already set, and PageNumber
// defaulted to 1.
func (b TextBlock) WithDerivedCenter() TextBlock {
	if b.CenterX == 0 {
		b.CenterX = b.X + b.Width/2
	}
	if b.CenterY == 0 {
		b.CenterY = b.Y + b.Height/2
	}
	if b.PageNumber == 0 {
		b.PageNumber = 1
	}
	return b
}

// SortBlocks orders blocks lexicographically by (PageNumber, CenterY, CenterX),
// the order row reconstruction consumes its input in.
func SortBlocks(blocks []TextBlock) {
	sort.SliceStable(blocks, func(i, j int) bool {
		a, b := blocks[i], blocks[j]
		if a.PageNumber != b.PageNumber {
			return a.PageNumber < b.PageNumber
		}
		if a.CenterY != b.CenterY {
			return a.CenterY < b.CenterY
		}
		return a.CenterX < b.CenterX
	})
}

// PhysicalRow is an ordered collection of blocks sharing a y-band.
type PhysicalRow struct {
	RowID                  string
	Blocks                 []TextBlock
	YTop, YBottom, YCenter float64
	PageNumber             int
	Text                   string
	RowType                RowType
}

// AmountBlocks returns the blocks in the row flagged IsAmount, sorted by CenterX.
func (r PhysicalRow) AmountBlocks() []TextBlock {
	out := make([]TextBlock, 0, len(r.Blocks))
	for _, b := range r.Blocks {
		if b.IsAmount {
			out = append(out, b)
		}
	}
	return out
}

// TextBlocks returns the blocks in the row not flagged IsAmount.
func (r PhysicalRow) TextBlocks() []TextBlock {
	out := make([]TextBlock, 0, len(r.Blocks))
	for _, b := range r.Blocks {
		if !b.IsAmount {
			out = append(out, b)
		}
	}
	return out
}

// ReceiptRegions partitions rows into the four RowType buckets. The
// concatenation of Header+Items+Totals+Payment, in that order, must equal
// the sorted rows of the receipt.
type ReceiptRegions struct {
	Header  []PhysicalRow
	Items   []PhysicalRow
	Totals  []PhysicalRow
	Payment []PhysicalRow
}

// AllRows returns the regions flattened back into row order.
func (r ReceiptRegions) AllRows() []PhysicalRow {
	out := make([]PhysicalRow, 0, len(r.Header)+len(r.Items)+len(r.Totals)+len(r.Payment))
	out = append(out, r.Header...)
	out = append(out, r.Items...)
	out = append(out, r.Totals...)
	out = append(out, r.Payment...)
	return out
}

// AmountColumn is a detected vertical band where monetary values cluster.
type AmountColumn struct {
	CenterX    float64
	Tolerance  float64
	Confidence float64
	BlockCount int
}

// IsInColumn reports whether x falls within the column's tolerance band.
func (c AmountColumn) IsInColumn(x float64) bool {
	return x >= c.CenterX-c.Tolerance && x <= c.CenterX+c.Tolerance
}

// AmountColumns holds the primary column plus any secondary columns (e.g. a
// SKU column) detected on the same receipt.
type AmountColumns struct {
	Primary    AmountColumn
	Secondary  []AmountColumn
}

// AmountRole names the semantic role an amount block was consumed under.
type AmountRole string

const (
	RoleSubtotal  AmountRole = "subtotal"
	RoleTax       AmountRole = "tax"
	RoleFee       AmountRole = "fee"
	RoleLineTotal AmountRole = "line_total"
	RoleDiscount  AmountRole = "discount"
	RoleTotal     AmountRole = "total"
)

// AmountUsageTracker records which amount blocks have been consumed, and in
// what role, during a single parser run. Each amount block may be consumed
// at most once.
type AmountUsageTracker struct {
	used map[string]AmountRole
}

// NewAmountUsageTracker returns an empty tracker.
func NewAmountUsageTracker() *AmountUsageTracker {
	return &AmountUsageTracker{used: make(map[string]AmountRole)}
}

// MarkUsed records block's role. It is a no-op safety net if block was
// already marked; callers are expected to check IsUsed first.
func (t *AmountUsageTracker) MarkUsed(blockID string, role AmountRole) {
	if _, ok := t.used[blockID]; ok {
		return
	}
	t.used[blockID] = role
}

// IsUsed reports whether blockID has already been consumed.
func (t *AmountUsageTracker) IsUsed(blockID string) bool {
	_, ok := t.used[blockID]
	return ok
}

// GetRole returns the role blockID was consumed under, if any.
func (t *AmountUsageTracker) GetRole(blockID string) (AmountRole, bool) {
	role, ok := t.used[blockID]
	return role, ok
}

// UsageSummary returns a count of consumed blocks per role, for debug output.
func (t *AmountUsageTracker) UsageSummary() map[AmountRole]int {
	summary := make(map[AmountRole]int)
	for _, role := range t.used {
		summary[role]++
	}
	return summary
}

// ExtractedItem is a single candidate line item produced by a store parser.
type ExtractedItem struct {
	ProductName string
	LineTotal   float64
	HasQuantity bool
	Quantity    float64
	HasUnitPrice bool
	UnitPrice   float64
	Unit        string
	SKU         string
	RawText     string
	OnSale      bool
	Taxable     bool
	Confidence  float64
}

// MathConsistent reports whether Quantity*UnitPrice approximates LineTotal
// within tolerance, when both are present. Returns true (vacuously) when
// either is absent.
func (i ExtractedItem) MathConsistent(tolerance float64) bool {
	if !i.HasQuantity || !i.HasUnitPrice {
		return true
	}
	diff := i.Quantity*i.UnitPrice - i.LineTotal
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// TotalsSequence is the ordered view of the totals region.
type TotalsSequence struct {
	HasSubtotal bool
	Subtotal    float64
	Middle      []LabeledAmount
	HasTotal    bool
	Total       float64
}

// LabeledAmount names an amount appearing between subtotal and total (tax,
// fee, deposit, ...).
type LabeledAmount struct {
	Label  string
	Amount float64
}

// CalculatedTotal returns Subtotal plus the sum of Middle amounts.
func (t TotalsSequence) CalculatedTotal() float64 {
	sum := t.Subtotal
	for _, m := range t.Middle {
		sum += m.Amount
	}
	return sum
}
