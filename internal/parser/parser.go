// Package parser defines the common contract every store-specific layout
// parser implements (spec §4.4): "(blocks, store_config, merchant_name) ->
// ParsedReceipt". Family-specific implementations live in sibling packages
// (costcocadigital, costcousdigital, costcousphysical, traderjoes, tnt).
package parser

import (
	"receiptcore/internal/geometry"
	"receiptcore/internal/storeconfig"
)

// ParsedReceipt is what a store parser returns. Successful or not, it
// always carries a Validation block and an ErrorLog (empty on success) —
// a parser never panics on malformed input.
type ParsedReceipt struct {
	Success bool
	Method  string
	ChainID string

	MerchantName string
	Address      string
	Currency     string
	MembershipID string

	StoreNumber       string
	TillNumber        string
	TransactionNumber string
	CashierID         string

	Items  []geometry.ExtractedItem
	Totals geometry.TotalsSequence

	Validation ValidationBlock
	ErrorLog   []string

	Usage *geometry.AmountUsageTracker
}

// ValidationBlock is the parser-level self-report, independent of the
// later math validator / sum checker stages, that records whether the
// geometric extraction itself found a plausible header/items/totals shape.
type ValidationBlock struct {
	HasItems        bool
	HasSubtotal     bool
	HasTotal        bool
	GroceryMode     bool
}

// StoreParser is the interface every layout-family package implements.
type StoreParser interface {
	// ChainIDs reports the store-config chain ids this parser handles.
	ChainIDs() []string
	// Parse runs the rule-based extraction for one receipt's blocks.
	Parse(blocks []geometry.TextBlock, config storeconfig.Config, merchantName string) ParsedReceipt
}

// Fail builds a ParsedReceipt with Success=false and a single error_log
// entry, the uniform "could not identify items" failure shape every parser
// returns instead of raising.
func Fail(chainID, method, reason string) ParsedReceipt {
	return ParsedReceipt{
		Success:  false,
		Method:   method,
		ChainID:  chainID,
		ErrorLog: []string{reason},
	}
}

// AttachDiscount merges a discount amount into the item with the matching
// SKU, exact match first and falling back to a last-3-digit suffix match,
// per the "Common parser behaviors" SKU-to-item mapping rule shared by
// every layout family.
func AttachDiscount(items []geometry.ExtractedItem, targetSKU string, discount float64) bool {
	for i := range items {
		if items[i].SKU == targetSKU {
			applyDiscount(&items[i], discount)
			return true
		}
	}
	if len(targetSKU) >= 3 {
		suffix := targetSKU[len(targetSKU)-3:]
		for i := range items {
			if len(items[i].SKU) >= 3 && items[i].SKU[len(items[i].SKU)-3:] == suffix {
				applyDiscount(&items[i], discount)
				return true
			}
		}
	}
	return false
}

func applyDiscount(item *geometry.ExtractedItem, discount float64) {
	item.UnitPrice = item.LineTotal
	item.HasUnitPrice = true
	item.LineTotal += discount
	item.OnSale = true
}

// FillMissingProductName applies the "empty name but known SKU" rule: a
// product name emitted empty is replaced with "Item {sku}".
func FillMissingProductName(item *geometry.ExtractedItem) {
	if item.ProductName == "" && item.SKU != "" {
		item.ProductName = "Item " + item.SKU
	}
}
