package stream

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	N int `json:"n"`
}

// fragmentReader returns one fragment per Read call and counts the calls.
type fragmentReader struct {
	fragments []string
	reads     int
}

func (r *fragmentReader) Read(p []byte) (int, error) {
	r.reads++
	if len(r.fragments) == 0 {
		return 0, io.EOF
	}
	next := r.fragments[0]
	n := copy(p, next)
	if n < len(next) {
		r.fragments[0] = next[n:]
	} else {
		r.fragments = r.fragments[1:]
	}
	return n, nil
}

func collectAll(t *testing.T, r io.Reader) []int {
	t.Helper()
	dec := NewDecoder[event](r, nil)
	var got []int
	for v, err := range dec.All() {
		require.NoError(t, err)
		got = append(got, v.N)
	}
	return got
}

func sampleStream(n int) string {
	var b strings.Builder
	b.WriteString(": keep-alive\n\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "data: {\"n\":%d}\n\n", i)
		if i == 2 {
			b.WriteString("event: ping\n\n")
		}
	}
	b.WriteString("data: [DONE]\n\n")
	b.WriteString("data: {\"n\":999}\n\n")
	return b.String()
}

func TestBufferFeed(t *testing.T) {
	var b Buffer
	assert.Empty(t, b.Feed("data: a"))
	assert.Equal(t, "data: a", b.Pending())

	frames := b.Feed("\n\ndata: b\n\nda")
	assert.Equal(t, []string{"data: a", "data: b"}, frames)
	assert.Equal(t, "da", b.Pending())

	assert.Empty(t, b.Feed(""))
	assert.Equal(t, "da", b.Flush())
	assert.Equal(t, "", b.Pending())
}

func TestBufferSplitDelimiter(t *testing.T) {
	var b Buffer
	assert.Empty(t, b.Feed("data: x\n"))
	assert.Equal(t, []string{"data: x"}, b.Feed("\n"))
	assert.NotContains(t, b.Pending(), Delimiter)
}

func TestPayload(t *testing.T) {
	p, ok := Payload("data: {\"n\":1}")
	assert.True(t, ok)
	assert.Equal(t, `{"n":1}`, p)

	p, ok = Payload("  data:[DONE]  ")
	assert.True(t, ok)
	assert.Equal(t, DoneSentinel, p)

	_, ok = Payload("event: ping")
	assert.False(t, ok)
}

func TestDecoderSplitInvariance(t *testing.T) {
	raw := sampleStream(5)
	want := []int{1, 2, 3, 4, 5}

	assert.Equal(t, want, collectAll(t, strings.NewReader(raw)))
	assert.Equal(t, want, collectAll(t, iotest.OneByteReader(strings.NewReader(raw))))

	for i := 0; i <= len(raw); i++ {
		r := &fragmentReader{fragments: []string{raw[:i], raw[i:]}}
		assert.Equal(t, want, collectAll(t, r), "split at %d", i)
	}

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		var frags []string
		rest := raw
		for len(rest) > 0 {
			n := 1 + rng.Intn(17)
			if n > len(rest) {
				n = len(rest)
			}
			frags = append(frags, rest[:n])
			rest = rest[n:]
		}
		assert.Equal(t, want, collectAll(t, &fragmentReader{fragments: frags}), "trial %d", trial)
	}
}

func TestDecoderStopsReadingAtSentinel(t *testing.T) {
	r := &fragmentReader{fragments: []string{
		"data: {\"n\":1}\n\ndata: [DONE]\n\n",
		"data: {\"n\":2}\n\n",
		"data: {\"n\":3}\n\n",
	}}
	dec := NewDecoder[event](r, nil)

	v, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, v.N)

	_, err = dec.Next()
	assert.ErrorIs(t, err, io.EOF)
	_, err = dec.Next()
	assert.ErrorIs(t, err, io.EOF)

	assert.Equal(t, 1, r.reads)
}

func TestDecoderSentinelMidFragmentDropsRest(t *testing.T) {
	got := collectAll(t, strings.NewReader("data: {\"n\":1}\n\ndata: [DONE]\n\ndata: {\"n\":2}\n\n"))
	assert.Equal(t, []int{1}, got)
}

func TestDecoderSkipsMalformedFrames(t *testing.T) {
	raw := "data: {\"n\":1}\n\ndata: {not json\n\ndata: {\"n\":2}\n\ndata: [DONE]\n\n"
	dec := NewDecoder[event](strings.NewReader(raw), nil)

	var got []int
	for v, err := range dec.All() {
		require.NoError(t, err)
		got = append(got, v.N)
	}
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, 1, dec.Skipped())
}

func TestDecoderUnterminatedFinalFrame(t *testing.T) {
	got := collectAll(t, strings.NewReader("data: {\"n\":1}\n\ndata: {\"n\":2}"))
	assert.Equal(t, []int{1, 2}, got)
}

func TestDecoderEOFWithoutSentinel(t *testing.T) {
	got := collectAll(t, strings.NewReader("data: {\"n\":7}\n\n"))
	assert.Equal(t, []int{7}, got)
}

func TestDecoderPropagatesReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader("data: {\"n\":1}\n\n"), iotest.ErrReader(boom))
	dec := NewDecoder[event](r, nil)

	v, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, v.N)

	_, err = dec.Next()
	assert.ErrorIs(t, err, boom)
}

func TestDecoderAllYieldsError(t *testing.T) {
	boom := errors.New("broken pipe")
	dec := NewDecoder[event](iotest.ErrReader(boom), nil)

	var errs []error
	for _, err := range dec.All() {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)
}
