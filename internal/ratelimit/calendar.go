package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// CalendarWindowLimiter is a fixed-calendar-window limiter (resets on the
// minute boundary rather than sliding), ported from
// gemini_rate_limiter.py's free-tier-per-minute counter: "15 requests per
// minute, reset when the UTC minute string changes".
//
// Used for providers whose published quota is stated as a fixed per-minute
// allowance rather than a rolling window.
type CalendarWindowLimiter struct {
	maxPerWindow int
	windowLayout string // time.Format layout identifying the current window, e.g. "2006-01-02 15:04" for per-minute

	mu            sync.Mutex
	windowID      string
	counter       int
	lastRequestAt time.Time
}

// NewCalendarWindowLimiter builds a per-minute calendar limiter allowing
// maxPerWindow requests per UTC minute.
func NewCalendarWindowLimiter(maxPerWindow int) *CalendarWindowLimiter {
	return &CalendarWindowLimiter{maxPerWindow: maxPerWindow, windowLayout: "2006-01-02 15:04"}
}

// Check mirrors check_gemini_available: rolls the counter over when the
// calendar window has changed, then allows/denies against maxPerWindow.
func (l *CalendarWindowLimiter) Check() (allowed bool, currentCount int, remaining int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()
	currentWindow := now.Format(l.windowLayout)
	if currentWindow != l.windowID {
		l.windowID = currentWindow
		l.counter = 0
	}

	if l.counter >= l.maxPerWindow {
		return false, l.counter, 0
	}

	l.counter++
	l.lastRequestAt = now
	return true, l.counter, l.maxPerWindow - l.counter
}

// Reset clears the counter immediately, independent of the calendar
// boundary.
func (l *CalendarWindowLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.windowID = ""
	l.counter = 0
}

// Status reports the limiter's current window/counter, mirroring
// get_current_status's debug surface.
func (l *CalendarWindowLimiter) Status() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fmt.Sprintf("window=%s counter=%d/%d", l.windowID, l.counter, l.maxPerWindow)
}
