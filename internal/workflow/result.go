package workflow

// Status is one of the API response status strings spec §7 enumerates
// exactly, confirmed against workflow_processor.py's literal status
// values.
type Status string

const (
	StatusPassed               Status = "passed"
	StatusPassedWithResolution Status = "passed_with_resolution"
	StatusPassedAfterFallback  Status = "passed_after_fallback"
	StatusPassedAfterBackup    Status = "passed_after_backup"
	StatusNeedsManualReview    Status = "needs_manual_review"
	StatusError                Status = "error"
)

// Result is what ProcessReceipt returns: a resolved disposition for the
// uploaded image, never a bare panic or unhandled exception per spec §7
// ("every path resolves into a terminal done or needs_review").
type Result struct {
	ReceiptID   string
	Status      Status
	ChainID     string
	NeedsReview bool
	Timeline    map[string]int64
	Failure     *Failure
}
