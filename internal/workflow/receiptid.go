package workflow

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"
)

// Sequencer generates the ordinal half of a human-readable receipt label,
// replacing generate_receipt_id()'s reliance on a bare `datetime.now()`
// singleton call with an injectable, testable counter (spec §9's
// re-architecture note: the Services aggregate owns this, not a module
// global).
type Sequencer struct {
	counter uint64
}

// NewSequencer seeds the counter from the last six digits of now's
// HHMMSS, the same pseudo-sequence generate_receipt_id() derives when no
// real database sequence is available.
func NewSequencer(now time.Time) *Sequencer {
	seed, _ := strconv.ParseUint(now.Format("150405"), 10, 64)
	return &Sequencer{counter: seed}
}

// Next returns the next ordinal, safe for concurrent receipts.
func (s *Sequencer) Next() uint64 {
	return atomic.AddUint64(&s.counter, 1)
}

// GenerateReceiptID formats a human-readable label in
// generate_receipt_id()'s "{seq}_{mmddyy_HHMM}" shape.
func GenerateReceiptID(now time.Time, seq uint64) string {
	return fmt.Sprintf("%d_%s", seq, now.Format("010206_1504"))
}
