// Package ocrnormalize normalizes heterogeneous OCR provider output into a
// single schema (spec §4.5), grounded on ocr_normalizer.py.
package ocrnormalize

import (
	"strconv"
	"strings"

	"receiptcore/internal/geometry"
)

// ProviderTag identifies which OCR provider produced a result.
type ProviderTag string

const (
	ProviderGoogleDocumentAI ProviderTag = "google_documentai"
	ProviderAWSTextract      ProviderTag = "aws_textract"
	ProviderGoogleVision     ProviderTag = "google_vision"
	ProviderTesseract        ProviderTag = "tesseract"
)

// EntityValue is the narrow interface every OCR provider adapter exposes
// for a named entity, replacing the original's attribute-sniffing over a
// dynamic dict (spec §9).
type EntityValue struct {
	Value      string
	Confidence float64
}

// LineItem is a provider-normalized line item candidate.
type LineItem struct {
	RawText      string
	ProductName  string
	HasQuantity  bool
	Quantity     float64
	Unit         string
	HasUnitPrice bool
	UnitPrice    float64
	HasLineTotal bool
	LineTotal    float64
	OnSale       bool
	Category     string
}

// Metadata carries the provider tag and opaque original payload, kept for
// debugging (spec §4.5).
type Metadata struct {
	OcrProvider  ProviderTag
	OriginalData any
}

// NormalizedOcr is the single schema every provider adapter converges on
// (spec §4.5), replacing the original's freeform normalized dict.
type NormalizedOcr struct {
	RawText         string
	HasMerchantName bool
	MerchantName    string
	Entities        map[string]EntityValue
	LineItems       []LineItem
	Blocks          []geometry.TextBlock
	Metadata        Metadata
}

// ProviderOutput is what an OCR provider adapter hands to Normalize: some
// providers deliver only entities/line_items (Document AI, Textract-derived
// forms), others only raw text (Vision, Tesseract). Blocks carries the
// "block-form" variant (spec §6) when the provider can locate text on the
// page (word/line bounding boxes); it is empty for providers that return
// only concatenated text or that never expose geometry, and the store
// parsers return a failed parse ("no OCR blocks supplied") in that case.
type ProviderOutput struct {
	RawText         string
	HasMerchantName bool
	MerchantName    string
	Entities        map[string]EntityValue
	LineItems       []LineItem
	Blocks          []geometry.TextBlock
}

// Normalize converts a provider's output into NormalizedOcr. Providers that
// only deliver raw text populate RawText and leave Entities/LineItems
// empty, per spec §4.5.
func Normalize(output ProviderOutput, provider ProviderTag) NormalizedOcr {
	return NormalizedOcr{
		RawText:         output.RawText,
		HasMerchantName: output.HasMerchantName,
		MerchantName:    output.MerchantName,
		Entities:        output.Entities,
		LineItems:       output.LineItems,
		Blocks:          output.Blocks,
		Metadata:        Metadata{OcrProvider: provider, OriginalData: output},
	}
}

// TrustedHint is a high-confidence entity retained after the
// ExtractUnifiedInfo confidence filter.
type TrustedHint struct {
	Value      string
	Confidence float64
	Source     ProviderTag
}

// UnifiedInfo is the typed replacement for extract_unified_info's return
// dict (spec §4.5).
type UnifiedInfo struct {
	RawText         string
	HasMerchantName bool
	MerchantName    string
	TrustedHints    map[string]TrustedHint
	HasTotal        bool
	Total           float64
	LineItems       []LineItem
	Blocks          []geometry.TextBlock
	Metadata        Metadata
}

// TrustedHintConfidenceThreshold is the minimum confidence an entity must
// carry to be promoted to a trusted hint (spec §4.5).
const TrustedHintConfidenceThreshold = 0.95

// ExtractUnifiedInfo extracts the fields downstream stages need: raw text,
// merchant name, trusted hints (entities with confidence ≥
// TrustedHintConfidenceThreshold), the total amount if present, and the
// normalized line items.
func ExtractUnifiedInfo(normalized NormalizedOcr) UnifiedInfo {
	hints := make(map[string]TrustedHint)
	for name, entity := range normalized.Entities {
		if entity.Confidence >= TrustedHintConfidenceThreshold && entity.Value != "" {
			hints[name] = TrustedHint{Value: entity.Value, Confidence: entity.Confidence, Source: normalized.Metadata.OcrProvider}
		}
	}

	var total float64
	var hasTotal bool
	if entity, ok := normalized.Entities["total_amount"]; ok && entity.Value != "" {
		if v, err := toFloat(entity.Value); err == nil {
			total, hasTotal = v, true
		}
	}

	return UnifiedInfo{
		RawText:         normalized.RawText,
		HasMerchantName: normalized.HasMerchantName,
		MerchantName:    normalized.MerchantName,
		TrustedHints:    hints,
		HasTotal:        hasTotal,
		Total:           total,
		LineItems:       normalized.LineItems,
		Blocks:          normalized.Blocks,
		Metadata:        normalized.Metadata,
	}
}

func toFloat(value string) (float64, error) {
	cleaned := strings.ReplaceAll(value, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	return strconv.ParseFloat(cleaned, 64)
}
