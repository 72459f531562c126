// Package ocrprovider defines the uniform OCR provider contract (spec §6)
// that every concrete adapter (tesseract, textract) implements, plus the
// shared image-preprocessing pipeline used ahead of the local OCR path.
package ocrprovider

import (
	"context"

	"receiptcore/internal/ocrnormalize"
)

// Capability describes which ProviderOutput shape a provider can fill in.
// Tesseract is TextOnly: it has no concept of entities or line items.
// Textract's analyze_expense path is EntityForm; its detect_document_text
// path alone would be TextOnly/BlockForm but this adapter always prefers
// the richer expense analysis when available.
type Capability int

const (
	TextOnly Capability = iota
	BlockForm
	EntityForm
)

// Provider is spec §6's "parse(image_bytes, mime_type) -> ProviderOutput".
type Provider interface {
	Name() string
	Capability() Capability
	Parse(ctx context.Context, imageBytes []byte, mimeType string) (ocrnormalize.ProviderOutput, error)
}
