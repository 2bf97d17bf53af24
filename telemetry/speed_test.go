package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/ragchat/completion"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func intPtr(n int) *int { return &n }

func TestAddThrottlesToInterval(t *testing.T) {
	tr := NewTracker(t0)

	_, ok := tr.Add(5, nil, t0.Add(10*time.Millisecond))
	assert.False(t, ok, "reading inside the first interval is suppressed")

	s, ok := tr.Add(5, nil, t0.Add(Interval))
	require.True(t, ok)
	assert.Equal(t, 10, s.Chars)
	assert.InDelta(t, 40.0, s.CharsPerSec, 0.001)

	_, ok = tr.Add(1, nil, t0.Add(Interval+100*time.Millisecond))
	assert.False(t, ok)

	s, ok = tr.Add(1, nil, t0.Add(2*Interval))
	require.True(t, ok)
	assert.Equal(t, 12, s.Chars)
}

func TestFinishIsNeverThrottled(t *testing.T) {
	tr := NewTracker(t0)
	_, ok := tr.Add(3, nil, t0.Add(time.Millisecond))
	require.False(t, ok)

	s := tr.Finish(t0.Add(2 * time.Millisecond))
	assert.Equal(t, 3, s.Chars)
	assert.InDelta(t, 1500.0, s.CharsPerSec, 0.001)
}

func TestElapsedClampedToEpsilon(t *testing.T) {
	tr := NewTracker(t0)
	tr.Add(7, nil, t0)

	s := tr.Finish(t0)
	assert.Equal(t, time.Millisecond, s.Elapsed)
	assert.InDelta(t, 7000.0, s.CharsPerSec, 0.001)

	// A clock that steps backwards is clamped the same way.
	s = tr.Finish(t0.Add(-time.Second))
	assert.Equal(t, time.Millisecond, s.Elapsed)
}

func TestTokensOnlyWhenReported(t *testing.T) {
	tr := NewTracker(t0)
	s := tr.Finish(t0.Add(time.Second))
	assert.Nil(t, s.Tokens)
	assert.Nil(t, s.TokensPerSec)
	assert.Equal(t, "0.0 chars/s", s.String())

	tr.Add(20, intPtr(4), t0.Add(time.Second))
	tr.Add(0, nil, t0.Add(time.Second))
	s = tr.Finish(t0.Add(2 * time.Second))
	require.NotNil(t, s.Tokens)
	assert.Equal(t, 4, *s.Tokens)
	assert.Equal(t, "10.0 chars/s · 2.0 tok/s", s.String())
}

func TestFinishFromUsesRequestBaseline(t *testing.T) {
	tr := NewTracker(t0.Add(900 * time.Millisecond))
	tr.Add(100, nil, t0.Add(900*time.Millisecond))

	s := tr.FinishFrom(t0, t0.Add(time.Second))
	assert.Equal(t, time.Second, s.Elapsed)
	assert.InDelta(t, 100.0, s.CharsPerSec, 0.001)
}

func TestStartResets(t *testing.T) {
	tr := NewTracker(t0)
	tr.Add(50, intPtr(9), t0.Add(time.Second))

	later := t0.Add(time.Minute)
	tr.Start(later)
	s := tr.Finish(later.Add(time.Second))
	assert.Equal(t, 0, s.Chars)
	assert.Nil(t, s.Tokens)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KiB", FormatBytes(1024))
	assert.Equal(t, "1.5 MiB", FormatBytes(3*512*1024))
	assert.Equal(t, "2.0 GiB", FormatBytes(2<<30))
}

func TestMemory(t *testing.T) {
	assert.Equal(t, "", Memory(nil))
	assert.Equal(t, "rss 1.0 MiB · kv 4.0 KiB", Memory(&completion.Memory{RSSBytes: 1 << 20, KVCacheBytes: 4096}))
}
