// Package llmclient implements the LLM provider contract (spec §6): a
// single `Generate(system_message, user_message, model, temperature) ->
// JsonDocument` call, forcing a JSON object response and tolerating
// Markdown code-fence wrapping on output. Adapted wholesale from
// src/pkg/openai's Responses API client: same background-and-poll
// request shape, same compression-aware body reader, generalized from a
// single expense-extraction schema to the receipt-parsing schema.
package llmclient

type InputRole string

const (
	RoleDeveloper InputRole = "developer"
	RoleUser      InputRole = "user"
)

type Effort string

const (
	EffortMinimal Effort = "minimal"
	EffortLow     Effort = "low"
	EffortMedium  Effort = "medium"
	EffortHigh    Effort = "high"
)

type InputItem struct {
	Role    InputRole `json:"role"`
	Content any       `json:"content"`
}

type Reasoning struct {
	Effort *Effort `json:"effort,omitempty"`
}

type requestPayload struct {
	Model              string       `json:"model"`
	Instructions       string       `json:"instructions"`
	MaxOutputTokens    *int         `json:"max_output_tokens,omitempty"`
	Input              []InputItem  `json:"input"`
	PreviousResponseID string       `json:"previous_response_id,omitempty"`
	Reasoning          *Reasoning   `json:"reasoning,omitempty"`
	Store              bool         `json:"store,omitempty"`
	Temperature        *float64     `json:"temperature,omitempty"`
	Background         bool         `json:"background,omitempty"`
	Text               *TextOptions `json:"text,omitempty"`
}

type responseObject struct {
	ID          string       `json:"id"`
	Object      string       `json:"object"`
	CreatedAt   int64        `json:"created_at,omitempty"`
	Background  bool         `json:"background,omitempty"`
	Model       string       `json:"model"`
	Status      string       `json:"status"`
	Output      []outputItem `json:"output"`
	Usage       *usageBlock  `json:"usage,omitempty"`
	Error       any          `json:"error,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
}

type outputItem struct {
	ID      string        `json:"id"`
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	Content []contentItem `json:"content,omitempty"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type usageBlock struct {
	InputTokens         int                  `json:"input_tokens"`
	InputTokensDetails  *inputTokensDetails  `json:"input_tokens_details"`
	OutputTokens        int                  `json:"output_tokens"`
	TotalTokens         int                  `json:"total_tokens"`
	OutputTokensDetails *outputTokensDetails `json:"output_tokens_details,omitempty"`
}

type inputTokensDetails struct {
	CachedTokens int `json:"cached_tokens"`
}

type outputTokensDetails struct {
	ReasoningTokens int `json:"reasoning_tokens"`
}

// RunMetadata captures how an LLM response was generated, for persistence
// alongside the parsed result (spec §6 repository write surface carries a
// run's provider/model/status).
type RunMetadata struct {
	ResponseID      string
	ResponseLogsURL string
	Model           string
	ModelSnapshot   string
	Status          string

	Temperature float64

	TokensIn        int
	TokensCached    int
	TokensOut       int
	TokensReasoning int
	TokensTotal     int

	StartedAt  int64
	FinishedAt int64
	ElapsedMs  int64
}

func ptr[T any](v T) *T { return &v }
