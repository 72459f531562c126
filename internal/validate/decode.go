package validate

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// llmResultWire is the on-the-wire shape the LLM is instructed to emit
// (llmprompt.defaultOutputSchema): receipt/items/tbd. DecodeLlmResult is
// the typed replacement for the Python workflow's bare
// `json.loads(llm_output)` dict access (spec §9).
type llmResultWire struct {
	Receipt struct {
		MerchantName    *string  `json:"merchant_name"`
		MerchantAddress *string  `json:"merchant_address"`
		Country         *string  `json:"country"`
		Currency        *string  `json:"currency"`
		PurchaseDate    *string  `json:"purchase_date"`
		PurchaseTime    *string  `json:"purchase_time"`
		Subtotal        *float64 `json:"subtotal"`
		Tax             *float64 `json:"tax"`
		Total           *float64 `json:"total"`
		PaymentMethod   *string  `json:"payment_method"`
		CardLast4       *string  `json:"card_last4"`
	} `json:"receipt"`
	Items []struct {
		ProductName *string  `json:"product_name"`
		RawText     *string  `json:"raw_text"`
		LineTotal   *float64 `json:"line_total"`
		IsOnSale    bool     `json:"is_on_sale"`
	} `json:"items"`
	Tbd struct {
		FieldConflicts map[string]struct {
			FromRawText      string `json:"from_raw_text"`
			FromTrustedHints string `json:"from_trusted_hints"`
		} `json:"field_conflicts"`
	} `json:"tbd"`
}

// DecodeLlmResult parses the LLM provider's raw JSON document (already
// stripped of Markdown code fences by llmclient) into the typed LlmResult
// the rest of the pipeline consumes. Unknown/absent fields simply leave
// their Has* flag false rather than erroring — the sum checker is what
// decides whether a missing field is fatal.
func DecodeLlmResult(raw []byte) (LlmResult, error) {
	var wire llmResultWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return LlmResult{}, err
	}

	result := LlmResult{
		Resolution: ResolutionReport{FieldConflicts: map[string]FieldConflict{}},
	}

	if wire.Receipt.MerchantName != nil {
		result.Receipt.MerchantName = *wire.Receipt.MerchantName
	}
	if wire.Receipt.Currency != nil {
		result.Receipt.Currency = *wire.Receipt.Currency
	}
	if wire.Receipt.PurchaseDate != nil {
		result.Receipt.PurchaseDate = *wire.Receipt.PurchaseDate
	}
	if wire.Receipt.PurchaseTime != nil {
		result.Receipt.PurchaseTime = *wire.Receipt.PurchaseTime
	}
	if wire.Receipt.PaymentMethod != nil {
		result.Receipt.PaymentMethod = *wire.Receipt.PaymentMethod
	}
	if wire.Receipt.CardLast4 != nil {
		result.Receipt.CardLast4 = *wire.Receipt.CardLast4
	}
	if wire.Receipt.Subtotal != nil {
		result.Receipt.Subtotal, result.Receipt.HasSubtotal = *wire.Receipt.Subtotal, true
	}
	if wire.Receipt.Tax != nil {
		result.Receipt.Tax, result.Receipt.HasTax = *wire.Receipt.Tax, true
	}
	if wire.Receipt.Total != nil {
		result.Receipt.Total, result.Receipt.HasTotal = *wire.Receipt.Total, true
	}

	for _, item := range wire.Items {
		li := LlmItem{OnSale: item.IsOnSale}
		if item.ProductName != nil {
			li.ProductName = *item.ProductName
		} else if item.RawText != nil {
			li.ProductName = *item.RawText
		}
		if item.LineTotal != nil {
			li.LineTotal, li.HasLineTotal = *item.LineTotal, true
		}
		result.Items = append(result.Items, li)
	}

	for field, conflict := range wire.Tbd.FieldConflicts {
		result.Resolution.FieldConflicts[field] = FieldConflict{
			FromRawText:      conflict.FromRawText,
			FromTrustedHints: conflict.FromTrustedHints,
			HasTrustedHints:  conflict.FromTrustedHints != "",
		}
	}

	return result, nil
}
