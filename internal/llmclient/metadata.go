package llmclient

import (
	"fmt"
	"strings"
	"time"
)

// extractRunMetadata builds a RunMetadata from a completed response object,
// preserved from src/pkg/openai/build-metadata.go's ExtractLLMRunMetadata.
func extractRunMetadata(resp responseObject, startTime time.Time) RunMetadata {
	var meta RunMetadata
	meta.ResponseID = resp.ID
	meta.Status = resp.Status
	meta.Model, meta.ModelSnapshot = parseModelSnapshot(resp.Model)
	meta.Temperature = resp.Temperature

	if resp.Usage != nil {
		meta.TokensIn = resp.Usage.InputTokens
		meta.TokensOut = resp.Usage.OutputTokens
		meta.TokensTotal = resp.Usage.TotalTokens
		if resp.Usage.InputTokensDetails != nil {
			meta.TokensCached = resp.Usage.InputTokensDetails.CachedTokens
		}
		if resp.Usage.OutputTokensDetails != nil {
			meta.TokensReasoning = resp.Usage.OutputTokensDetails.ReasoningTokens
		}
	}

	meta.StartedAt = startTime.UnixMilli()
	meta.FinishedAt = time.Now().UnixMilli()
	meta.ElapsedMs = meta.FinishedAt - meta.StartedAt
	meta.ResponseLogsURL = fmt.Sprintf("https://platform.openai.com/logs/%s", meta.ResponseID)
	return meta
}

// parseModelSnapshot splits a model string ending in a "-YYYY-MM-DD"
// snapshot date from its base name, preserved from
// src/pkg/openai/build-metadata.go's ParseModelSnapshot.
func parseModelSnapshot(model string) (base string, snapshot string) {
	m := strings.TrimSpace(model)
	base = m

	if len(m) >= 11 {
		tail := m[len(m)-10:]
		if _, err := time.Parse("2006-01-02", tail); err == nil && m[len(m)-11] == '-' {
			return m[:len(m)-11], tail
		}
	}
	return base, ""
}
