// Package textract is the cloud OCR provider backing spec §4.10's "OCR B"
// fallback slot: AWS Textract's detect_document_text (raw lines) plus
// analyze_expense (structured vendor/total/tax/line-item fields), ported
// from original_source/textract_client.py's parse_receipt_textract.
//
// analyze_expense can fail on an account without the permission (the
// original tolerates AccessDeniedException and falls back to
// detect_document_text alone); this adapter preserves that tolerance.
package textract

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	smithy "github.com/aws/smithy-go"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"

	"receiptcore/internal/geometry"
	"receiptcore/internal/money"
	"receiptcore/internal/ocrnormalize"
	"receiptcore/internal/ocrprovider"
)

// DefaultRegion mirrors the original client's getattr(settings, 'aws_region',
// 'us-west-2') fallback.
const DefaultRegion = "us-west-2"

// Provider calls AWS Textract. Client is built lazily on first Parse call
// and cached, mirroring the original module's _get_client() singleton.
type Provider struct {
	Region string

	client *textract.Client
}

// New builds a textract Provider for the given region ("" uses
// DefaultRegion).
func New(region string) *Provider {
	if region == "" {
		region = DefaultRegion
	}
	return &Provider{Region: region}
}

func (p *Provider) Name() string { return "aws_textract" }

func (p *Provider) Capability() ocrprovider.Capability { return ocrprovider.EntityForm }

func (p *Provider) ensureClient(ctx context.Context) (*textract.Client, *xerr.Error) {
	if p.client != nil {
		return p.client, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.Region))
	if err != nil {
		return nil, xerr.NewError(err, "load AWS config for Textract client", p.Region)
	}
	p.client = textract.NewFromConfig(cfg)
	tl.Log(tl.Info1, palette.Blue, "AWS Textract client initialized (region: %s)", p.Region)
	return p.client, nil
}

// Parse calls detect_document_text for raw text lines, then attempts
// analyze_expense for structured entities/line items, tolerating the
// latter's absence exactly as the original does.
func (p *Provider) Parse(ctx context.Context, imageBytes []byte, _ string) (ocrnormalize.ProviderOutput, error) {
	client, e := p.ensureClient(ctx)
	if e != nil {
		return ocrnormalize.ProviderOutput{}, e
	}

	tl.Log(tl.Info1, palette.Cyan, "Calling Textract DetectDocumentText...")
	textResp, err := client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: imageBytes},
	})
	if err != nil {
		return ocrnormalize.ProviderOutput{}, xerr.NewError(err, "Textract DetectDocumentText failed", nil)
	}

	var lines []string
	var blocks []geometry.TextBlock
	for _, block := range textResp.Blocks {
		switch block.BlockType {
		case types.BlockTypeLine:
			if block.Text != nil {
				lines = append(lines, *block.Text)
			}
		case types.BlockTypeWord:
			if block.Text != nil {
				blocks = append(blocks, wordBlockToTextBlock(block))
			}
		}
	}
	rawText := strings.Join(lines, "\n")
	tl.Log(tl.Info1, palette.Green, "Extracted %d text lines (%d word boxes) from Textract", len(lines), len(blocks))

	output := ocrnormalize.ProviderOutput{
		RawText:  rawText,
		Entities: map[string]ocrnormalize.EntityValue{},
		Blocks:   blocks,
	}

	tl.Log(tl.Info1, palette.Cyan, "Calling Textract AnalyzeExpense...")
	expenseResp, err := client.AnalyzeExpense(ctx, &textract.AnalyzeExpenseInput{
		Document: &types.Document{Bytes: imageBytes},
	})
	if err != nil {
		logExpenseFailure(err)
		if output.MerchantName == "" {
			output.MerchantName, output.HasMerchantName = guessMerchantName(lines)
		}
		return output, nil
	}

	applyExpenseFields(&output, expenseResp.ExpenseDocuments)
	if !output.HasMerchantName {
		output.MerchantName, output.HasMerchantName = guessMerchantName(lines)
	}

	tl.Log(tl.Info1, palette.Green, "Textract parsing completed. Merchant: %s, Items: %d", output.MerchantName, len(output.LineItems))
	return output, nil
}

// logExpenseFailure mirrors the original's tolerance of
// AccessDeniedException (missing permission) vs. any other ClientError:
// both fall back to detect_document_text-only output, just logged
// differently.
func logExpenseFailure(err error) {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "AccessDeniedException" {
		tl.Log(tl.Info1, palette.Purple, "Textract AnalyzeExpense not available (missing permissions); using DetectDocumentText only")
		return
	}
	tl.Log(tl.Info1, palette.Purple, "Textract AnalyzeExpense failed (%v); using DetectDocumentText only", err)
}

// applyExpenseFields extracts the supplier/total/date/tax summary fields
// and line items from the first expense document, preserved from the
// original's SummaryFields/LineItemGroups walk.
func applyExpenseFields(output *ocrnormalize.ProviderOutput, docs []types.ExpenseDocument) {
	if len(docs) == 0 {
		return
	}
	doc := docs[0]

	for _, field := range doc.SummaryFields {
		fieldType := strings.ToLower(expenseTypeText(field.Type))
		value := expenseDetectionText(field.ValueDetection)
		confidence := expenseDetectionConfidence(field.ValueDetection)

		switch fieldType {
		case "vendor_name", "merchant_name":
			output.MerchantName, output.HasMerchantName = value, value != ""
			output.Entities["supplier_name"] = ocrnormalize.EntityValue{Value: value, Confidence: confidence}
		case "total", "total_amount":
			output.Entities["total_amount"] = ocrnormalize.EntityValue{Value: value, Confidence: confidence}
		case "receipt_date", "invoice_date":
			output.Entities["receipt_date"] = ocrnormalize.EntityValue{Value: value, Confidence: confidence}
		case "tax":
			output.Entities["total_tax_amount"] = ocrnormalize.EntityValue{Value: value, Confidence: confidence}
		}
	}

	for _, group := range doc.LineItemGroups {
		for _, item := range group.LineItems {
			output.LineItems = append(output.LineItems, buildLineItem(item))
		}
	}
}

func buildLineItem(item types.LineItemFields) ocrnormalize.LineItem {
	var li ocrnormalize.LineItem
	for _, field := range item.LineItemExpenseFields {
		fieldType := strings.ToLower(expenseTypeText(field.Type))
		value := expenseDetectionText(field.ValueDetection)

		switch fieldType {
		case "item", "product_name":
			li.ProductName, li.RawText = value, value
		case "quantity":
			if q, err := strconv.ParseFloat(value, 64); err == nil {
				li.Quantity, li.HasQuantity = q, true
			}
		case "unit_price", "price":
			if up, err := currencyToFloat(value); err == nil {
				li.UnitPrice, li.HasUnitPrice = up, true
			}
		case "amount", "line_total":
			if lt, err := currencyToFloat(value); err == nil {
				li.LineTotal, li.HasLineTotal = lt, true
			}
		}
	}
	return li
}

func expenseTypeText(t *types.ExpenseType) string {
	if t == nil {
		return ""
	}
	return aws.ToString(t.Text)
}

func expenseDetectionText(d *types.ExpenseDetection) string {
	if d == nil {
		return ""
	}
	return aws.ToString(d.Text)
}

func expenseDetectionConfidence(d *types.ExpenseDetection) float64 {
	if d == nil || d.Confidence == nil {
		return 0
	}
	return float64(*d.Confidence) / 100.0
}

// wordBlockToTextBlock converts a Textract WORD block's already-normalized
// (0-1 relative) bounding box into rowsplit's geometry.TextBlock shape.
func wordBlockToTextBlock(block types.Block) geometry.TextBlock {
	var tb geometry.TextBlock
	if block.Text != nil {
		tb.Text = *block.Text
	}
	if block.Confidence != nil {
		tb.Confidence = float64(*block.Confidence) / 100.0
	}
	if block.Geometry != nil && block.Geometry.BoundingBox != nil {
		box := block.Geometry.BoundingBox
		if box.Left != nil {
			tb.X = float64(*box.Left)
		}
		if box.Top != nil {
			tb.Y = float64(*box.Top)
		}
		if box.Width != nil {
			tb.Width = float64(*box.Width)
		}
		if box.Height != nil {
			tb.Height = float64(*box.Height)
		}
	}
	if amount, isAmount := money.ParseAmountToken(tb.Text); isAmount {
		tb.IsAmount, tb.Amount, tb.HasAmount = true, amount, true
	}
	return tb.WithDerivedCenter()
}

func currencyToFloat(value string) (float64, error) {
	cleaned := strings.ReplaceAll(value, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	return strconv.ParseFloat(strings.TrimSpace(cleaned), 64)
}

// guessMerchantName is the heuristic fallback the original applies when
// analyze_expense didn't surface a vendor_name: take one of the first five
// non-empty lines, 4-49 characters, that doesn't look like a totals/
// metadata line.
func guessMerchantName(lines []string) (string, bool) {
	skipMarkers := []string{"TOTAL", "DATE", "TIME", "REFERENCE", "TRANS:", "TERMINAL:"}
	limit := len(lines)
	if limit > 5 {
		limit = 5
	}
	for _, raw := range lines[:limit] {
		line := strings.TrimSpace(raw)
		if len(line) <= 3 || len(line) >= 50 {
			continue
		}
		upper := strings.ToUpper(line)
		skip := false
		for _, marker := range skipMarkers {
			if strings.Contains(upper, marker) {
				skip = true
				break
			}
		}
		if !skip {
			return line, true
		}
	}
	return "", false
}
