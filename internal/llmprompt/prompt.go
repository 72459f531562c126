// Package llmprompt composes the system/user messages sent to the LLM
// provider (spec §4.8), grounded on prompt_manager.py.
package llmprompt

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RawTextBudget truncates raw OCR text embedded in the primary prompt to
// this many runes. The backup prompt truncates each OCR source to the
// smaller BackupRawTextBudget instead.
const RawTextBudget = 4000

// Config is a merchant-specific or default prompt configuration, the typed
// replacement for prompt_manager's prompt_data dict.
type Config struct {
	SystemMessage  string
	PromptTemplate string
	ModelName      string
	Temperature    float64
	OutputSchema   any
}

// RagSnippet is a single retrievable prompt fragment tagged for
// conditional inclusion (e.g. "deposit_and_fee"), activated by location.
// The RAG library's storage/lookup internals are an external collaborator
// (spec §1 "Out of scope") — this package only merges snippets it is
// handed.
type RagSnippet struct {
	Tag       string
	Text      string
	Locations []string // empty means "always enabled"
}

// RagMetadata records which snippets were merged into a formatted prompt.
type RagMetadata struct {
	EnabledTags []string
}

func DefaultConfig(modelName string) Config {
	return Config{
		SystemMessage:  defaultSystemMessage,
		PromptTemplate: defaultPromptTemplate,
		ModelName:      modelName,
		Temperature:    0.0,
		OutputSchema:   defaultOutputSchema(),
	}
}

const defaultSystemMessage = `You are a receipt parsing expert. Your task is to extract structured information from receipt text and trusted hints from Document AI.

Key requirements:
1. Output ONLY valid JSON, no additional text
2. Follow the exact schema provided
3. Perform validation: quantity x unit_price ~= line_total (tolerance: +/-0.01)
4. Sum of all line_totals must ~= total (tolerance: +/-0.01)
5. If information is missing or uncertain, set to null and document in tbd
6. Do not hallucinate or guess values`

const defaultPromptTemplate = `Parse the following receipt text and extract structured information.

## Raw Text:
%s

## Trusted Hints (high confidence fields from Document AI):
%s

%s## Output Schema:
%s

## Instructions:
1. Extract receipt-level fields (merchant, date, time, amounts, payment method)
2. Extract all line items from raw_text, ensuring each item has:
   - product_name (cleaned, no extra formatting)
   - quantity and unit (if available)
   - unit_price (if available)
   - line_total (must match quantity x unit_price if both are present)
3. Validate calculations:
   - For each item: if quantity and unit_price exist, verify: quantity x unit_price ~= line_total (+/-0.01)
   - Sum all line_totals and verify: sum ~= total (+/-0.01)
4. Document any issues in the "tbd" section:
   - Items with inconsistent price calculations
   - Field conflicts between raw_text and trusted_hints
   - Missing information

## Currency Logic:
- If address is in USA, default currency is USD
- If address is in Canada, default currency is CAD
- If currency is explicitly mentioned in raw_text, use that

## Important:
- If raw_text conflicts with trusted_hints, prefer raw_text and document conflict in tbd
- Do not invent or guess values - use null if information is not available
- Output must be valid JSON matching the schema exactly

Output the JSON now:`

func defaultOutputSchema() map[string]any {
	return map[string]any{
		"receipt": map[string]any{
			"merchant_name":    "string or null",
			"merchant_address": "string or null",
			"merchant_phone":   "string or null",
			"country":          "string or null",
			"currency":         "string (USD, CAD, etc.)",
			"purchase_date":    "string (YYYY-MM-DD) or null",
			"purchase_time":    "string (HH:MM:SS) or null",
			"subtotal":         "number or null",
			"tax":              "number or null",
			"total":            "number",
			"payment_method":   "string or null",
			"card_last4":       "string or null",
		},
		"items": []any{
			map[string]any{
				"raw_text":     "string",
				"product_name": "string or null",
				"quantity":     "number or null",
				"unit":         "string or null",
				"unit_price":   "number or null",
				"line_total":   "number or null",
				"is_on_sale":   "boolean",
				"category":     "string or null",
			},
		},
		"tbd": map[string]any{
			"items_with_inconsistent_price": []any{},
			"field_conflicts":               map[string]any{},
			"missing_info":                  []any{},
			"total_mismatch":                map[string]any{},
		},
	}
}

// MergeEnabledSnippets selects snippets whose Locations list is empty or
// contains location, and joins their text under a single heading, per spec
// §4.8's "merges enabled RAG snippets by tag ... with location-based
// activation" rule.
func MergeEnabledSnippets(snippets []RagSnippet, location string) (string, RagMetadata) {
	var enabled []RagSnippet
	for _, s := range snippets {
		if len(s.Locations) == 0 {
			enabled = append(enabled, s)
			continue
		}
		for _, loc := range s.Locations {
			if strings.EqualFold(loc, location) {
				enabled = append(enabled, s)
				break
			}
		}
	}
	if len(enabled) == 0 {
		return "", RagMetadata{}
	}

	var b strings.Builder
	var tags []string
	b.WriteString("## Merchant-Specific Notes:\n")
	for _, s := range enabled {
		b.WriteString(s.Text)
		b.WriteString("\n")
		tags = append(tags, s.Tag)
	}
	b.WriteString("\n")
	return b.String(), RagMetadata{EnabledTags: tags}
}

// FormatPrompt composes the system and user messages sent to the LLM
// provider (spec §4.8). initialParseResult, when non-nil, is rendered
// under an "Initial Parse Result" heading ahead of the output schema.
func FormatPrompt(rawText string, trustedHints map[string]any, initialParseResult *string, ragSnippets []RagSnippet, location string, config Config) (systemMessage, userMessage string, ragMeta RagMetadata) {
	systemMessage = config.SystemMessage
	if systemMessage == "" {
		systemMessage = defaultSystemMessage
	}

	truncated := truncateRunes(rawText, RawTextBudget)

	hintsJSON, _ := json.MarshalIndent(trustedHints, "", "  ")

	schema := config.OutputSchema
	if schema == nil {
		schema = defaultOutputSchema()
	}
	var schemaStr string
	if s, ok := schema.(string); ok {
		schemaStr = s
	} else {
		b, _ := json.MarshalIndent(schema, "", "  ")
		schemaStr = string(b)
	}

	ragBlock, ragMeta := MergeEnabledSnippets(ragSnippets, location)
	if initialParseResult != nil {
		ragBlock += fmt.Sprintf("## Initial Parse Result:\n%s\n\n", *initialParseResult)
	}

	template := config.PromptTemplate
	if template == "" {
		template = defaultPromptTemplate
	}
	userMessage = fmt.Sprintf(template, truncated, string(hintsJSON), ragBlock, schemaStr)

	return systemMessage, userMessage, ragMeta
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
