package llmprompt

import "fmt"

// BackupRawTextBudget mirrors _build_backup_prompt's 2000-character
// truncation of each OCR source's raw text.
const BackupRawTextBudget = 2000

const backupPromptTemplate = `You are a receipt parsing expert. A previous attempt to parse a receipt failed the sum check.

## Primary OCR Raw Text:
%s

## Secondary OCR Raw Text (Second Opinion):
%s

## Previous LLM Result (Failed Sum Check):
%s

## Sum Check Failure Details:
%s

## Your Task:
1. Analyze both OCR raw texts and the previous LLM result
2. Identify where the errors might be (missing items, incorrect prices, wrong calculations)
3. Correct the errors to make the sum check pass:
   - sum(line_total) ~= subtotal (tolerance: +/-0.03)
   - subtotal + tax ~= total (tolerance: +/-0.03)
4. Output the corrected JSON following the same schema
5. In the "tbd" field, provide detailed explanation:
   - What errors you found
   - What you corrected
   - Why you made those corrections

Output the corrected JSON now:`

// BuildBackupPrompt composes the reconciliation prompt sent to the
// secondary LLM after the primary LLM's sum check fails (spec §4.10 step
// 8), grounded on workflow_processor._build_backup_prompt. firstLlmJSON and
// sumCheckJSON are pre-serialized JSON strings (the orchestrator already
// holds typed results and marshals them once).
func BuildBackupPrompt(primaryRawText, secondaryRawText, firstLlmJSON, sumCheckJSON string) string {
	return fmt.Sprintf(
		backupPromptTemplate,
		truncateRunes(primaryRawText, BackupRawTextBudget),
		truncateRunes(secondaryRawText, BackupRawTextBudget),
		firstLlmJSON,
		sumCheckJSON,
	)
}
