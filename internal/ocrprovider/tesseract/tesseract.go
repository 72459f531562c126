// Package tesseract is the local, no-network OCR provider: it preprocesses
// the image (internal/ocrprovider/preprocess) and runs gosseract over the
// result. Adapted from pkg/ocr/tesseract.go's runOcrOnImage, generalized
// from a fixed Spanish-language, file-path-based call to an in-memory,
// configurable-language Provider implementation.
//
// Tesseract has no concept of entities or line items, so this adapter is
// TextOnly capability (spec §6) — the same limitation the teacher's own
// usage has. It does locate text on the page, though, so Parse also
// populates the "block-form" word boxes the store parsers need, via
// gosseract's GetBoundingBoxes(RIL_WORD).
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/otiai10/gosseract/v2"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"

	"receiptcore/internal/geometry"
	"receiptcore/internal/money"
	"receiptcore/internal/ocrnormalize"
	"receiptcore/internal/ocrprovider"
	"receiptcore/internal/ocrprovider/preprocess"
)

// DefaultLanguage is the Tesseract language pack used when Provider.Language
// is unset. Receipts in this pipeline are predominantly English-language
// North American retail receipts, unlike the teacher's Spanish-language
// expense photos.
const DefaultLanguage = "eng"

// Provider runs Tesseract over a preprocessed image.
type Provider struct {
	Language         string
	PreprocessImage  bool
	PreprocessConfig preprocess.Options
}

// New builds a tesseract Provider with preprocessing enabled and the
// default language.
func New() Provider {
	return Provider{Language: DefaultLanguage, PreprocessImage: true}
}

func (p Provider) Name() string { return "tesseract" }

func (p Provider) Capability() ocrprovider.Capability { return ocrprovider.TextOnly }

// Parse runs OCR on imageBytes and returns a ProviderOutput carrying the
// raw text plus the word boxes as Blocks (no entities or line items).
// mimeType is accepted for interface conformance but unused: gosseract
// sniffs image formats on its own.
func (p Provider) Parse(_ context.Context, imageBytes []byte, _ string) (ocrnormalize.ProviderOutput, error) {
	language := p.Language
	if language == "" {
		language = DefaultLanguage
	}

	input := imageBytes
	if p.PreprocessImage {
		processed, e := preprocess.Process(imageBytes, p.PreprocessConfig)
		if e != nil {
			return ocrnormalize.ProviderOutput{}, e
		}
		input = processed
	}

	text, blocks, e := runOcrOnImage(input, language)
	if e != nil {
		return ocrnormalize.ProviderOutput{}, e
	}

	return ocrnormalize.ProviderOutput{RawText: text, Blocks: blocks}, nil
}

// runOcrOnImage performs OCR on in-memory image bytes using gosseract,
// preserved from pkg/ocr/tesseract.go's runOcrOnImage apart from accepting
// bytes (via SetImageFromBytes) instead of a file path, and additionally
// reading back per-word bounding boxes for rowsplit/amountcolumn.
func runOcrOnImage(imageBytes []byte, language string) (ocrText string, blocks []geometry.TextBlock, e *xerr.Error) {
	tl.Log(tl.Info1, palette.Cyan, "Running OCR on %v preprocessed bytes", len(imageBytes))

	client := gosseract.NewClient()
	defer func() {
		_ = client.Close()
	}()

	if err := client.SetLanguage(language); err != nil {
		return "", nil, xerr.NewError(err, fmt.Sprintf("unable to client.SetLanguage(%q)", language), nil)
	}

	// Preserve multiple spaces between words/columns: receipt amount
	// columns depend on this.
	if err := client.SetVariable("preserve_interword_spaces", "1"); err != nil {
		return "", nil, xerr.NewError(err, "unable to client.SetVariable(\"preserve_interword_spaces\", \"1\")", nil)
	}

	// Match CLI: `--psm 6` (single uniform block of text).
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", nil, xerr.NewError(err, "unable to client.SetPageSegMode(PSM_SINGLE_BLOCK)", nil)
	}

	if err := client.SetImageFromBytes(imageBytes); err != nil {
		return "", nil, xerr.NewError(err, "unable to client.SetImageFromBytes(imageBytes)", len(imageBytes))
	}

	ocrText, ocrErr := client.Text()
	if ocrErr != nil {
		return "", nil, xerr.NewError(ocrErr, "unable to run OCR on image", nil)
	}

	pageWidth, pageHeight, cfgErr := decodedSize(imageBytes)
	if cfgErr == nil && pageWidth > 0 && pageHeight > 0 {
		if boxes, boxErr := client.GetBoundingBoxes(gosseract.RIL_WORD); boxErr == nil {
			blocks = make([]geometry.TextBlock, 0, len(boxes))
			for _, box := range boxes {
				blocks = append(blocks, wordBoxToBlock(box, pageWidth, pageHeight))
			}
		} else {
			tl.Log(tl.Info1, palette.Purple, "GetBoundingBoxes failed (%v); proceeding text-only", boxErr)
		}
	}

	tl.Log(tl.Info1, palette.Green, "OCR completed (text length: %d, word boxes: %d)", len(ocrText), len(blocks))
	return ocrText, blocks, nil
}

// wordBoxToBlock normalizes a gosseract word bounding box (pixel
// coordinates) to the [0,1]-relative TextBlock geometry rowsplit expects.
func wordBoxToBlock(box gosseract.BoundingBox, pageWidth, pageHeight float64) geometry.TextBlock {
	x := float64(box.Box.Min.X) / pageWidth
	y := float64(box.Box.Min.Y) / pageHeight
	width := float64(box.Box.Dx()) / pageWidth
	height := float64(box.Box.Dy()) / pageHeight
	amount, isAmount := money.ParseAmountToken(box.Word)
	return geometry.TextBlock{
		Text:       box.Word,
		X:          x,
		Y:          y,
		Width:      width,
		Height:     height,
		Confidence: box.Confidence / 100.0,
		IsAmount:   isAmount,
		Amount:     amount,
		HasAmount:  isAmount,
	}.WithDerivedCenter()
}

// decodedSize reads the page dimensions back out of the (already
// preprocessed, PNG-encoded) image bytes so pixel-space boxes can be
// normalized the same way Textract's are.
func decodedSize(imageBytes []byte) (width, height float64, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(imageBytes))
	if err != nil {
		return 0, 0, err
	}
	return float64(cfg.Width), float64(cfg.Height), nil
}
