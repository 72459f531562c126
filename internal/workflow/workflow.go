package workflow

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"

	"receiptcore/internal/geometry"
	"receiptcore/internal/llmclient"
	"receiptcore/internal/llmprompt"
	"receiptcore/internal/notify"
	"receiptcore/internal/ocrnormalize"
	"receiptcore/internal/parser"
	"receiptcore/internal/ratelimit"
	"receiptcore/internal/storeconfig"
	"receiptcore/internal/validate"
)

var workflowJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// ProcessReceipt runs one receipt through the full state machine (spec
// §4.10): OCR A -> normalize -> resolve store config -> run store parser
// -> select LLM provider (rate-limit gated) -> generate -> validate sums
// -> on pass, persist and return done; on fail, OCR B plus a
// reconciliation prompt to the secondary LLM, re-validate, and persist
// either a second pass or a needs_review result. RepositoryError and an
// admission-time double rate-limit denial are the only failures this
// function still returns as a Go error (spec §5's backpressure rule and
// §7's "only RepositoryError is fatal" rule); every other branch resolves
// to a Result.
func (s *Services) ProcessReceipt(ctx context.Context, userID string, imageBytes []byte, filename, mimeType string) (Result, error) {
	timeline := NewTimelineRecorder()
	receiptID := GenerateReceiptID(time.Now(), s.Sequencer.Next())

	dbReceiptID, e := s.Repo.CreateReceipt(userID, filename, "")
	if e != nil {
		return Result{ReceiptID: receiptID, Status: StatusError, Timeline: timeline.Durations()},
			NewFailure(RepositoryError, "create_receipt", e)
	}

	timeline.Start("ocr_primary")
	primaryOut, ocrErr := s.OcrPrimary.Parse(ctx, imageBytes, mimeType)
	timeline.End("ocr_primary")
	if ocrErr != nil {
		tl.Log(tl.Info1, palette.Purple, "primary OCR failed for receipt %s: %v", receiptID, ocrErr)
		return s.runFallbackOcrOnly(ctx, userID, dbReceiptID, receiptID, imageBytes, mimeType, timeline)
	}

	unified := ocrnormalize.ExtractUnifiedInfo(ocrnormalize.Normalize(primaryOut, ocrnormalize.ProviderTag(s.OcrPrimary.Name())))

	timeline.Start("parse")
	chainID, _, parsed := s.resolveAndParse(unified)
	timeline.End("parse")

	timeline.Start("llm_primary")
	llmResult, sumCheck, providerName, llmErr := s.runLlm(userID, chainID, unified, parsed, initialParseResultJSON(parsed), "")
	timeline.End("llm_primary")
	if llmErr != nil {
		if llmErr.Kind == RateLimited {
			return Result{ReceiptID: receiptID, Status: StatusError, ChainID: chainID, Timeline: timeline.Durations()}, llmErr
		}
		return s.finishWithFailure(dbReceiptID, receiptID, chainID, providerName, timeline, unified.RawText, "", llmErr, nil, nil)
	}

	timeline.Start("validate")
	timeline.End("validate")

	if sumCheck.Valid {
		return s.persistSuccess(dbReceiptID, receiptID, chainID, providerName, timeline, llmResult, sumCheck, StatusPassed)
	}

	return s.runBackupLadder(ctx, userID, dbReceiptID, receiptID, chainID, imageBytes, mimeType, unified, llmResult, sumCheck, timeline)
}

// initialParseResultJSON renders a successful rule-based pre-parse as the
// prompt's "Initial Parse Result" section (spec §4.8): the LLM is given
// the geometric extraction's items/totals as a head start and only needs
// to correct or fill gaps, rather than starting from raw_text alone. A
// failed pre-parse contributes nothing — the LLM falls back to raw_text
// and trusted hints exactly as it would for an unrecognized layout.
func initialParseResultJSON(parsed parser.ParsedReceipt) *string {
	if !parsed.Success {
		return nil
	}
	encoded, err := workflowJSON.MarshalToString(struct {
		Items  []interface{} `json:"items"`
		Totals interface{}   `json:"totals"`
	}{
		Items:  itemsToAny(parsed.Items),
		Totals: parsed.Totals,
	})
	if err != nil {
		return nil
	}
	return &encoded
}

func itemsToAny(items []geometry.ExtractedItem) []interface{} {
	out := make([]interface{}, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}

// resolveAndParse implements spec §4.10 step 2 ("resolve store config from
// merchant name or block hints") and step 3 ("run the matching store
// parser"). A merchant that matches no known chain still returns a zero
// Config and a Fail()-shaped ParsedReceipt: the LLM stage still runs off
// raw_text/trusted_hints alone, exactly as the original tolerates an
// unrecognized layout.
func (s *Services) resolveAndParse(unified ocrnormalize.UnifiedInfo) (chainID string, cfg storeconfig.Config, parsed parser.ParsedReceipt) {
	merchantName := unified.MerchantName
	if merchantName == "" {
		if hint, ok := unified.TrustedHints["supplier_name"]; ok {
			merchantName = hint.Value
		}
	}

	cfg, found := s.StoreConfigs.MatchMerchant(merchantName)
	if !found {
		return "", storeconfig.Config{}, parser.Fail("", "unrecognized_merchant", "no store config matched merchant name")
	}
	chainID = cfg.ChainID

	sp, ok := s.ParserFor(chainID)
	if !ok {
		return chainID, cfg, parser.Fail(chainID, "no_parser_registered", "chain id matched but no store parser is registered")
	}

	return chainID, cfg, sp.Parse(unified.Blocks, cfg, merchantName)
}

// selectLlmProvider implements spec §4.9/§5: a per-(user,provider) rate
// limit gates the primary provider; on denial the orchestrator falls back
// to the secondary provider instead of failing outright.
func (s *Services) selectLlmProvider(userID string) (provider llmclient.Provider, name string, allowed bool) {
	if s.RateLimiter == nil {
		return s.LlmPrimary, s.LlmPrimary.Name(), true
	}

	primaryKey := ratelimit.Key(userID, s.LlmPrimary.Name())
	if ok, _, _ := s.RateLimiter.Check(primaryKey); ok {
		return s.LlmPrimary, s.LlmPrimary.Name(), true
	}

	if s.LlmSecondary == nil {
		return nil, "", false
	}
	secondaryKey := ratelimit.Key(userID, s.LlmSecondary.Name())
	if ok, _, _ := s.RateLimiter.Check(secondaryKey); ok {
		return s.LlmSecondary, s.LlmSecondary.Name(), true
	}

	return nil, "", false
}

// runLlm selects a provider, formats the prompt, calls Generate, and
// decodes+sum-checks the result. overridePrompt, when non-empty, is sent
// verbatim instead of a freshly composed prompt (the backup ladder's
// reconciliation re-prompt).
func (s *Services) runLlm(userID, chainID string, unified ocrnormalize.UnifiedInfo, parsed parser.ParsedReceipt, initialParseJSON *string, overridePrompt string) (validate.LlmResult, validate.SumCheckReport, string, *Failure) {
	promptCfg := s.promptConfigFor(chainID)

	provider, providerName, allowed := s.selectLlmProvider(userID)
	if !allowed {
		return validate.LlmResult{}, validate.SumCheckReport{}, "", NewFailure(RateLimited, "llm_primary", nil)
	}

	var systemMessage, userMessage string
	if overridePrompt != "" {
		systemMessage = promptCfg.SystemMessage
		if systemMessage == "" {
			systemMessage = "You are a receipt parsing expert."
		}
		userMessage = overridePrompt
	} else {
		hints := trustedHintsToMap(unified.TrustedHints)
		systemMessage, userMessage, _ = llmprompt.FormatPrompt(unified.RawText, hints, initialParseJSON, s.RagSnippets[chainID], chainID, promptCfg)
	}

	model := promptCfg.ModelName
	raw, _, genErr := provider.Generate(systemMessage, userMessage, model, promptCfg.Temperature)
	if genErr != nil {
		return validate.LlmResult{}, validate.SumCheckReport{}, providerName, NewFailure(LlmFailure, "llm_primary", genErr)
	}

	result, decodeErr := validate.DecodeLlmResult(raw)
	if decodeErr != nil {
		return validate.LlmResult{}, validate.SumCheckReport{}, providerName, NewFailure(LlmInvalidJson, "llm_primary", decodeErr)
	}

	result.Items, result.Receipt.MembershipNumber = validate.CleanTNTItems(result.Receipt.MerchantName, result.Items)

	sumCheck := validate.CheckReceiptSums(result)
	return result, sumCheck, providerName, nil
}

// runFallbackOcrOnly handles a hard primary-OCR failure (spec §4.10's
// fallback_ocr state entered directly from uploaded, rather than after a
// failed sum check): OCR B substitutes for OCR A entirely, and a
// successful pass is reported as passed_after_fallback.
func (s *Services) runFallbackOcrOnly(ctx context.Context, userID string, dbReceiptID uint64, receiptID string, imageBytes []byte, mimeType string, timeline *TimelineRecorder) (Result, error) {
	if s.OcrSecondary == nil {
		return s.finishWithFailure(dbReceiptID, receiptID, "", "", timeline, "", "", NewFailure(OcrFailure, "ocr_primary", nil), nil, nil)
	}

	timeline.Start("fallback_ocr")
	out, err := s.OcrSecondary.Parse(ctx, imageBytes, mimeType)
	timeline.End("fallback_ocr")
	if err != nil {
		return s.finishWithFailure(dbReceiptID, receiptID, "", s.OcrSecondary.Name(), timeline, "", "", NewFailure(OcrFailure, "fallback_ocr", err), nil, nil)
	}

	unified := ocrnormalize.ExtractUnifiedInfo(ocrnormalize.Normalize(out, ocrnormalize.ProviderTag(s.OcrSecondary.Name())))

	timeline.Start("parse")
	chainID, _, parsed := s.resolveAndParse(unified)
	timeline.End("parse")

	timeline.Start("llm_fallback")
	llmResult, sumCheck, providerName, llmErr := s.runLlm(userID, chainID, unified, parsed, initialParseResultJSON(parsed), "")
	timeline.End("llm_fallback")
	if llmErr != nil {
		if llmErr.Kind == RateLimited {
			return Result{ReceiptID: receiptID, Status: StatusError, ChainID: chainID, Timeline: timeline.Durations()}, llmErr
		}
		return s.finishWithFailure(dbReceiptID, receiptID, chainID, providerName, timeline, unified.RawText, "", llmErr, nil, nil)
	}

	if !sumCheck.Valid {
		return s.finishWithFailure(dbReceiptID, receiptID, chainID, providerName, timeline, unified.RawText, "", NewFailure(MathFailure, "validate", nil), &llmResult, &sumCheck)
	}

	return s.persistSuccess(dbReceiptID, receiptID, chainID, providerName, timeline, llmResult, sumCheck, StatusPassedAfterFallback)
}

// runBackupLadder implements spec §4.10 step 8: on a failed sum check,
// call OCR B, re-prompt the secondary LLM with both OCR outputs and the
// failed result, and re-run the sum checker once more before giving up.
func (s *Services) runBackupLadder(ctx context.Context, userID string, dbReceiptID uint64, receiptID, chainID string, imageBytes []byte, mimeType string, primaryUnified ocrnormalize.UnifiedInfo, firstResult validate.LlmResult, firstSumCheck validate.SumCheckReport, timeline *TimelineRecorder) (Result, error) {
	var secondaryRawText string

	if s.OcrSecondary != nil {
		timeline.Start("fallback_ocr")
		secondaryOut, err := s.OcrSecondary.Parse(ctx, imageBytes, mimeType)
		timeline.End("fallback_ocr")
		if err == nil {
			secondaryUnified := ocrnormalize.ExtractUnifiedInfo(ocrnormalize.Normalize(secondaryOut, ocrnormalize.ProviderTag(s.OcrSecondary.Name())))
			secondaryRawText = secondaryUnified.RawText
		} else {
			tl.Log(tl.Info1, palette.Purple, "backup OCR failed for receipt %s: %v", receiptID, err)
		}
	}

	firstResultJSON, _ := workflowJSON.MarshalToString(firstResult)
	sumCheckJSON, _ := workflowJSON.MarshalToString(firstSumCheck)
	backupPrompt := llmprompt.BuildBackupPrompt(primaryUnified.RawText, secondaryRawText, firstResultJSON, sumCheckJSON)

	timeline.Start("llm_backup")
	backupResult, backupSumCheck, providerName, llmErr := s.runLlm(userID, chainID, primaryUnified, parser.ParsedReceipt{}, nil, backupPrompt)
	timeline.End("llm_backup")
	if llmErr != nil {
		if llmErr.Kind == RateLimited {
			return Result{ReceiptID: receiptID, Status: StatusError, ChainID: chainID, Timeline: timeline.Durations()}, llmErr
		}
		return s.finishWithFailure(dbReceiptID, receiptID, chainID, providerName, timeline, primaryUnified.RawText, secondaryRawText, llmErr, &firstResult, &firstSumCheck)
	}

	if backupSumCheck.Valid {
		return s.persistSuccess(dbReceiptID, receiptID, chainID, providerName, timeline, backupResult, backupSumCheck, StatusPassedAfterBackup)
	}

	return s.finishWithFailure(dbReceiptID, receiptID, chainID, providerName, timeline, primaryUnified.RawText, secondaryRawText,
		NewFailure(MathFailure, "validate", nil), &backupResult, &backupSumCheck)
}

// persistSuccess writes the summary/items/run/statistics rows for a
// passing receipt (spec §6's repository write surface) and upgrades
// baseStatus to passed_with_resolution when a conflict was resolved along
// the way (spec §4.7's conflict resolution step).
func (s *Services) persistSuccess(dbReceiptID uint64, receiptID, chainID, provider string, timeline *TimelineRecorder, result validate.LlmResult, sumCheck validate.SumCheckReport, baseStatus Status) (Result, error) {
	resolved := validate.ApplyFieldConflictsResolution(result)
	status := baseStatus
	if baseStatus == StatusPassed && len(resolved.Resolution.ResolvedConflicts) > 0 {
		status = StatusPassedWithResolution
	}

	outputPayload, _ := workflowJSON.MarshalToString(resolved)
	if _, e := s.Repo.SaveProcessingRun(dbReceiptID, "llm", provider, "", "completed", "passed", "", outputPayload, ""); e != nil {
		return s.repositoryFailureResult(receiptID, chainID, timeline, e)
	}
	if e := s.Repo.SaveReceiptSummary(dbReceiptID, resolved.Receipt); e != nil {
		return s.repositoryFailureResult(receiptID, chainID, timeline, e)
	}
	if e := s.Repo.SaveReceiptItems(dbReceiptID, resolved.Items); e != nil {
		return s.repositoryFailureResult(receiptID, chainID, timeline, e)
	}
	// statistics_manager.py never raises on a stats-update failure so it
	// can't break the main flow; this call mirrors that by logging rather
	// than propagating.
	if e := s.Repo.UpdateStatistics(provider, true, false, false); e != nil {
		tl.Log(tl.Info1, palette.Purple, "update_statistics failed for receipt %s: %v", receiptID, e)
	}

	return Result{ReceiptID: receiptID, Status: status, ChainID: chainID, Timeline: timeline.Durations()}, nil
}

// finishWithFailure handles every non-repository stage failure (spec §7):
// record the failed run, mark the receipt for manual review, save a
// debug bundle, notify, and bump the error-count statistic (for every
// failure kind except MathFailure). Only
// RepositoryError propagates past this point as a Go error.
func (s *Services) finishWithFailure(dbReceiptID uint64, receiptID, chainID, provider string, timeline *TimelineRecorder, primaryRawText, secondaryRawText string, failure *Failure, backupResult *validate.LlmResult, backupSumCheck *validate.SumCheckReport) (Result, error) {
	if failure.Kind == RepositoryError {
		return Result{ReceiptID: receiptID, Status: StatusError, ChainID: chainID, Timeline: timeline.Durations()}, failure
	}

	errorMessage := failure.Error()
	if _, e := s.Repo.SaveProcessingRun(dbReceiptID, failure.Stage, provider, "", "failed", "failed", "", "", errorMessage); e != nil {
		return s.repositoryFailureResult(receiptID, chainID, timeline, e)
	}

	summary := validate.ReceiptFields{}
	if backupResult != nil {
		summary = backupResult.Receipt
	}
	if e := s.Repo.SaveReceiptSummary(dbReceiptID, summary); e != nil {
		return s.repositoryFailureResult(receiptID, chainID, timeline, e)
	}

	if e := s.Repo.UpdateStatistics(provider, false, failure.Kind != MathFailure, true); e != nil {
		tl.Log(tl.Info1, palette.Purple, "update_statistics failed for receipt %s: %v", receiptID, e)
	}

	saveDebugBundle(s.ArtifactsDir, debugBundle{
		ReceiptID:        receiptID,
		ChainID:          chainID,
		Timeline:         timeline.Durations(),
		PrimaryRawText:   primaryRawText,
		SecondaryRawText: secondaryRawText,
		BackupResult:     backupResult,
		BackupSumCheck:   backupSumCheck,
		Reason:           errorMessage,
	})

	if s.Notifier != nil && len(s.ReviewRecipients) > 0 {
		notify.Dispatch(context.Background(), s.Notifier, notify.Message{
			Sender:     s.NotifyFromAddress,
			Recipients: s.ReviewRecipients,
			Subject:    "Receipt " + receiptID + " needs manual review",
			Text:       "Receipt " + receiptID + " (chain " + chainID + ") could not be automatically validated: " + errorMessage,
		})
	}

	return Result{ReceiptID: receiptID, Status: StatusNeedsManualReview, ChainID: chainID, NeedsReview: true, Timeline: timeline.Durations()}, nil
}

func (s *Services) repositoryFailureResult(receiptID, chainID string, timeline *TimelineRecorder, e *xerr.Error) (Result, error) {
	return Result{ReceiptID: receiptID, Status: StatusError, ChainID: chainID, Timeline: timeline.Durations()}, NewFailure(RepositoryError, "repository", e)
}

func trustedHintsToMap(hints map[string]ocrnormalize.TrustedHint) map[string]any {
	out := make(map[string]any, len(hints))
	for k, v := range hints {
		out[k] = v.Value
	}
	return out
}
