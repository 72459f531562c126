package llmclient

// TextOptions configures the Responses API's output formatting, preserved
// verbatim from src/pkg/openai/format-types.go.
type TextOptions struct {
	Format TextFormat `json:"format"`
}

type TextFormat struct {
	Type TextFormatType `json:"type"`
}

type TextFormatType string

const (
	TextFormatTypeText       TextFormatType = "text"
	TextFormatTypeJSONObject TextFormatType = "json_object"
)

// textAsJSONObject forces the Responses API to return a JSON object,
// satisfying spec §6's "must force a JSON object response" requirement at
// the transport level rather than relying solely on prompt instructions.
func textAsJSONObject() TextOptions {
	return TextOptions{Format: TextFormat{Type: TextFormatTypeJSONObject}}
}
