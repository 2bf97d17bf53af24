// Package telemetry measures generation throughput for one assistant turn.
//
// Information Hiding:
// - Throttling of recomputation during a stream
// - Elapsed-time clamping
// - Human-readable formatting of speeds and memory sizes
//
// All methods take the current time explicitly so callers (and tests) own
// the clock.
package telemetry

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

const (
	// Interval is the minimum spacing between streaming recomputations.
	Interval = 250 * time.Millisecond

	// epsilon is the smallest elapsed time used as a divisor.
	epsilon = time.Millisecond
)

// Speed is one throughput reading.
type Speed struct {
	Elapsed     time.Duration
	Chars       int
	CharsPerSec float64

	// Tokens and TokensPerSec are nil until the server reports a count.
	Tokens       *int
	TokensPerSec *float64
}

// String formats the reading as "12.3 chars/s" or "12.3 chars/s · 4.5 tok/s".
func (s Speed) String() string {
	out := fmt.Sprintf("%.1f chars/s", s.CharsPerSec)
	if s.TokensPerSec != nil {
		out += fmt.Sprintf(" · %.1f tok/s", *s.TokensPerSec)
	}
	return out
}

// Tracker accumulates characters and token counts for a single turn.
// A Tracker is not safe for concurrent use.
type Tracker struct {
	start   time.Time
	chars   int
	tokens  *int
	limiter *rate.Limiter
}

// NewTracker returns a tracker started at now.
func NewTracker(now time.Time) *Tracker {
	t := &Tracker{}
	t.Start(now)
	return t
}

// Start resets the tracker for a new turn beginning at now. The first
// throttled reading is due one Interval later.
func (t *Tracker) Start(now time.Time) {
	t.start = now
	t.chars = 0
	t.tokens = nil
	t.limiter = rate.NewLimiter(rate.Every(Interval), 1)
	t.limiter.AllowN(now, 1)
}

// Add records chars more delivered characters and, when tokens is non-nil,
// the latest generated-token count. It returns a fresh reading only when
// the throttle allows one.
func (t *Tracker) Add(chars int, tokens *int, now time.Time) (Speed, bool) {
	t.chars += chars
	if tokens != nil {
		n := *tokens
		t.tokens = &n
	}
	if !t.limiter.AllowN(now, 1) {
		return Speed{}, false
	}
	return t.compute(t.start, now), true
}

// Finish forces the final reading at the end of a stream.
func (t *Tracker) Finish(now time.Time) Speed {
	return t.compute(t.start, now)
}

// FinishFrom computes the final reading against an explicit baseline. The
// non-streaming path passes the time the request was sent.
func (t *Tracker) FinishFrom(start, now time.Time) Speed {
	return t.compute(start, now)
}

func (t *Tracker) compute(start, now time.Time) Speed {
	elapsed := now.Sub(start)
	if elapsed < epsilon {
		elapsed = epsilon
	}
	secs := elapsed.Seconds()

	s := Speed{
		Elapsed:     elapsed,
		Chars:       t.chars,
		CharsPerSec: float64(t.chars) / secs,
	}
	if t.tokens != nil {
		n := *t.tokens
		tps := float64(n) / secs
		s.Tokens = &n
		s.TokensPerSec = &tps
	}
	return s
}
