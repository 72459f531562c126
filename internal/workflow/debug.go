package workflow

import (
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"

	"receiptcore/internal/validate"
)

var debugJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// debugBundle is the sidecar JSON persisted to ArtifactsDir/debug when a
// receipt lands in needs_review, modelled on workflow_processor.py's
// _save_debug_files. It carries the raw OCR text from both providers, the
// timeline, the failure reason, and the one LLM result and sum-check report
// finishWithFailure is handed, if any (BackupResult/BackupSumCheck).
// finishWithFailure never fills PrimaryResult or PrimarySumCheck, and the
// image itself is not saved.
type debugBundle struct {
	ReceiptID        string                  `json:"receipt_id"`
	ChainID          string                  `json:"chain_id"`
	Timeline         map[string]int64        `json:"timeline_ms"`
	PrimaryRawText   string                  `json:"primary_raw_text"`
	SecondaryRawText string                  `json:"secondary_raw_text,omitempty"`
	PrimaryResult    *validate.LlmResult     `json:"primary_result,omitempty"`
	BackupResult     *validate.LlmResult     `json:"backup_result,omitempty"`
	PrimarySumCheck  *validate.SumCheckReport `json:"primary_sum_check,omitempty"`
	BackupSumCheck   *validate.SumCheckReport `json:"backup_sum_check,omitempty"`
	Reason           string                  `json:"reason"`
}

// saveDebugBundle writes bundle to <ArtifactsDir>/debug/<receiptID>.json.
// A write failure here is logged, not propagated — losing a debug
// artifact must never turn an otherwise-resolved needs_review result into
// a hard error (spec §7: only RepositoryError is fatal).
func saveDebugBundle(artifactsDir string, bundle debugBundle) {
	dir := filepath.Join(artifactsDir, "debug")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		tl.Log(tl.Info1, palette.Purple, "could not create debug bundle directory: %v", xerr.NewError(err, "mkdir debug bundle dir", dir))
		return
	}

	encoded, err := debugJSON.MarshalIndent(bundle, "", "  ")
	if err != nil {
		tl.Log(tl.Info1, palette.Purple, "could not marshal debug bundle: %v", err)
		return
	}

	path := filepath.Join(dir, bundle.ReceiptID+".json")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		tl.Log(tl.Info1, palette.Purple, "could not write debug bundle: %v", xerr.NewError(err, "write debug bundle", path))
	}
}
