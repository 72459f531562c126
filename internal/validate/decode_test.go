package validate

import "testing"

const sampleLlmJSON = `{
  "receipt": {
    "merchant_name": "Trader Joe's",
    "currency": "USD",
    "purchase_date": "2026-03-05",
    "subtotal": 4.49,
    "tax": 0.00,
    "total": 4.49
  },
  "items": [
    {"product_name": "BANANA EACH", "line_total": 4.49, "is_on_sale": false}
  ],
  "tbd": {
    "field_conflicts": {
      "merchant_name": {"from_raw_text": "Trader Joe's", "from_trusted_hints": "Trader Joe's #123"}
    }
  }
}`

func TestDecodeLlmResultPopulatesAllFields(t *testing.T) {
	result, err := DecodeLlmResult([]byte(sampleLlmJSON))
	if err != nil {
		t.Fatalf("DecodeLlmResult returned error: %v", err)
	}

	if result.Receipt.MerchantName != "Trader Joe's" {
		t.Errorf("MerchantName = %q", result.Receipt.MerchantName)
	}
	if !result.Receipt.HasSubtotal || result.Receipt.Subtotal != 4.49 {
		t.Errorf("Subtotal = (%v, %v), want (4.49, true)", result.Receipt.Subtotal, result.Receipt.HasSubtotal)
	}
	if !result.Receipt.HasTotal || result.Receipt.Total != 4.49 {
		t.Errorf("Total = (%v, %v), want (4.49, true)", result.Receipt.Total, result.Receipt.HasTotal)
	}
	if len(result.Items) != 1 || result.Items[0].ProductName != "BANANA EACH" {
		t.Fatalf("unexpected items: %+v", result.Items)
	}
	conflict, ok := result.Resolution.FieldConflicts["merchant_name"]
	if !ok || !conflict.HasTrustedHints || conflict.FromTrustedHints != "Trader Joe's #123" {
		t.Errorf("unexpected field conflict: %+v", conflict)
	}
}

func TestDecodeLlmResultFallsBackToRawTextWhenProductNameAbsent(t *testing.T) {
	raw := `{"receipt":{},"items":[{"raw_text":"UNREADABLE ROW","line_total":1.00}]}`
	result, err := DecodeLlmResult([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeLlmResult returned error: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].ProductName != "UNREADABLE ROW" {
		t.Fatalf("expected raw_text fallback, got %+v", result.Items)
	}
}

func TestDecodeLlmResultLeavesAbsentFieldsUnset(t *testing.T) {
	result, err := DecodeLlmResult([]byte(`{"receipt":{},"items":[]}`))
	if err != nil {
		t.Fatalf("DecodeLlmResult returned error: %v", err)
	}
	if result.Receipt.HasSubtotal || result.Receipt.HasTax || result.Receipt.HasTotal {
		t.Errorf("expected all Has* flags false for an empty receipt, got %+v", result.Receipt)
	}
}

func TestDecodeLlmResultRejectsMalformedJSON(t *testing.T) {
	if _, err := DecodeLlmResult([]byte(`not json`)); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}
