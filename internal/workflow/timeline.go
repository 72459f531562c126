package workflow

import (
	"sync"
	"time"
)

// TimelineRecorder wraps every workflow stage with a start/end pair and
// reports its duration in milliseconds, the Go translation of
// workflow_processor.py's TimelineRecorder class. Stages may run
// sequentially within one receipt's goroutine only — a recorder is not
// shared across receipts, matching spec §5's "each receipt owns its state
// exclusively" concurrency rule.
type TimelineRecorder struct {
	mu     sync.Mutex
	order  []string
	stages map[string]*stageTiming
}

type stageTiming struct {
	startedAt  time.Time
	finishedAt time.Time
	done       bool
}

func NewTimelineRecorder() *TimelineRecorder {
	return &TimelineRecorder{stages: make(map[string]*stageTiming)}
}

// Start records a stage's start time, mirroring TimelineRecorder.start(name).
func (t *TimelineRecorder) Start(stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.stages[stage]; !exists {
		t.order = append(t.order, stage)
	}
	t.stages[stage] = &stageTiming{startedAt: time.Now()}
}

// End records a stage's completion, mirroring TimelineRecorder.end(name).
// Calling End for a stage that was never Start-ed is a no-op: the timeline
// only reports durations for stages the orchestrator actually entered.
func (t *TimelineRecorder) End(stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.stages[stage]
	if !ok {
		return
	}
	st.finishedAt = time.Now()
	st.done = true
}

// Durations returns each recorded stage's elapsed milliseconds, keyed by
// stage name; the map carries no order (StageOrder gives first-started
// order). A stage still in flight (Start without a matching End) reports
// its elapsed time so far.
func (t *TimelineRecorder) Durations() map[string]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]int64, len(t.stages))
	for _, name := range t.order {
		st := t.stages[name]
		end := st.finishedAt
		if !st.done {
			end = time.Now()
		}
		out[name] = end.Sub(st.startedAt).Milliseconds()
	}
	return out
}

// StageOrder returns the stage names in first-started order.
func (t *TimelineRecorder) StageOrder() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}
