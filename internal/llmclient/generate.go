package llmclient

import (
	"encoding/json"
	"errors"
	"os"
	"regexp"
	"strings"
	"time"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"
)

var errInvalidJSON = errors.New("llm invalid json")

// Provider is the receipt-workflow-facing LLM provider contract (spec §6):
// "generate(system_message, user_message, model, temperature) ->
// JsonDocument". Concrete providers (OpenAI, and any secondary provider the
// orchestrator falls back to) implement it.
type Provider interface {
	Name() string
	Generate(systemMessage, userMessage, model string, temperature float64) (json.RawMessage, RunMetadata, *xerr.Error)
}

// OpenAIProvider is the Provider backed by the Responses API, adapted from
// src/pkg/openai's single-purpose expense-extraction client.
type OpenAIProvider struct {
	APIKey string
}

func NewOpenAIProvider(apiKey string) OpenAIProvider {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return OpenAIProvider{APIKey: apiKey}
}

func (p OpenAIProvider) Name() string { return "openai" }

// Generate sends system/user messages to the Responses API, forcing a JSON
// object response (spec §6), and returns the raw JSON document plus run
// metadata for persistence.
func (p OpenAIProvider) Generate(systemMessage, userMessage, model string, temperature float64) (json.RawMessage, RunMetadata, *xerr.Error) {
	tl.Log(tl.Info, palette.Blue, "%s %s with model '%s'", "Generating", "receipt analysis", model)
	startTime := time.Now()

	textOptions := textAsJSONObject()
	payload := requestPayload{
		Model:        model,
		Instructions: systemMessage,
		Input: []InputItem{
			{Role: RoleUser, Content: userMessage},
		},
		Store:      true,
		Background: true,
		Text:       &textOptions,
	}
	if temperature >= 0 {
		payload.Temperature = ptr(temperature)
	}

	initial, createErr := createResponse(p.APIKey, payload)
	if createErr != nil {
		return nil, RunMetadata{}, createErr
	}

	var finalResp responseObject
	switch initial.Status {
	case "", "completed":
		finalResp = initial
	default:
		tl.Log(tl.Info, palette.Cyan, "%s current status is '%s' id - '%s' (polling every %s)...", "Waiting for completion,", initial.Status, initial.ID, PollInterval)
		resp, waitErr := waitForResponseCompletion(p.APIKey, initial.ID, PollInterval, PollTimeout)
		if waitErr != nil {
			return nil, RunMetadata{ResponseID: initial.ID}, waitErr
		}
		finalResp = resp
	}

	text := extractOutputText(&finalResp)
	meta := extractRunMetadata(finalResp, startTime)

	cleaned := StripCodeFence(text)
	if !json.Valid([]byte(cleaned)) {
		return nil, meta, xerr.NewError(errInvalidJSON, "LLM output is not valid JSON after code-fence stripping", text)
	}

	tl.Log(tl.Info1, palette.Green, "%s in %s for response '%s'", "Generation completed", time.Since(startTime), finalResp.ID)
	return json.RawMessage(cleaned), meta, nil
}

var codeFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// StripCodeFence removes a single Markdown code fence wrapping the LLM's
// JSON output, per spec §6's "tolerate Markdown code-fence wrapping"
// requirement.
func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := codeFencePattern.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}
