package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestUploadSendsNormalizedMultipart(t *testing.T) {
	var gotName, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, Endpoint, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		f, hdr, err := r.FormFile(FieldName)
		require.NoError(t, err)
		defer f.Close()
		b, _ := io.ReadAll(f)
		gotName = hdr.Filename
		gotType = hdr.Header.Get("Content-Type")
		gotBody = string(b)
		_, _ = io.WriteString(w, `{"doc":{"filename":"notes.txt","chunks":3},"trace":["chunked","embedded"]}`)
	}))
	defer srv.Close()

	progress := make(chan Progress, 16)
	u := NewUploader(srv.URL, 0, nil)
	receipt, err := u.Upload(context.Background(), File{
		Name: "notes.txt",
		Data: []byte("\xEF\xBB\xBFline one\r\nline two"),
	}, progress)
	require.NoError(t, err)

	assert.Equal(t, "notes.txt", gotName)
	assert.Equal(t, TextMediaType, gotType)
	assert.Equal(t, "line one\nline two", gotBody)

	require.NotNil(t, receipt.Doc)
	assert.Equal(t, 3, receipt.Doc.Chunks)
	assert.Equal(t, []string{"chunked", "embedded"}, receipt.Trace)
	assert.Equal(t, EncodingUTF8BOM, receipt.Encoding)

	var last Progress
	for len(progress) > 0 {
		last = <-progress
	}
	assert.True(t, last.Done(), "final progress event reports the full body")
}

func TestUploadEncodingFailureSendsNothing(t *testing.T) {
	hit := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer srv.Close()

	_, err := NewUploader(srv.URL, 0, nil).Upload(context.Background(), File{Name: "x.txt", Data: []byte("\xffabc")}, nil)
	require.ErrorIs(t, err, ErrUndetectableEncoding)
	assert.False(t, hit)
}

func TestUploadStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index is read-only", http.StatusConflict)
	}))
	defer srv.Close()

	_, err := NewUploader(srv.URL, 0, nil).Upload(context.Background(), File{Name: "a.md", Data: []byte("# hi")}, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusConflict, se.StatusCode)
	assert.Equal(t, "index is read-only", se.Body)
}

func TestUploadTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewUploader(srv.URL, 50*time.Millisecond, nil).Upload(context.Background(), File{Name: "a.txt", Data: []byte("x")}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUploadTimeout)
	var te *TransportError
	assert.False(t, errors.As(err, &te))
}

func TestUploadTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewUploader(url, 0, nil).Upload(context.Background(), File{Name: "a.txt", Data: []byte("x")}, nil)
	var te *TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.NotErrorIs(t, err, ErrUploadTimeout)
}

func TestUploadBinaryPassThrough(t *testing.T) {
	data := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, _, err := r.FormFile(FieldName)
		require.NoError(t, err)
		got, _ = io.ReadAll(f)
	}))
	defer srv.Close()

	receipt, err := NewUploader(srv.URL, 0, nil).Upload(context.Background(), File{Name: "p.png", Data: data}, nil)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, EncodingBinary, receipt.Encoding)
	assert.Nil(t, receipt.Doc)
}

// stepClock advances by step on every call.
type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func TestProgressReaderThrottles(t *testing.T) {
	body := strings.Repeat("x", 100)
	ch := make(chan Progress, 200)
	clock := &stepClock{t: time.Unix(0, 0), step: 50 * time.Millisecond}
	pr := &progressReader{
		ctx:     context.Background(),
		r:       strings.NewReader(body),
		total:   int64(len(body)),
		ch:      ch,
		limiter: rate.NewLimiter(rate.Every(ProgressInterval), 1),
		now:     clock.now,
	}

	buf := make([]byte, 1)
	for {
		_, err := pr.Read(buf)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	close(ch)

	var events []Progress
	for ev := range ch {
		events = append(events, ev)
	}

	// 99 throttled reads over 4.95s at one per 200ms, plus the forced final
	// event.
	require.NotEmpty(t, events)
	assert.LessOrEqual(t, len(events), 27)
	assert.GreaterOrEqual(t, len(events), 20)
	assert.True(t, events[len(events)-1].Done())
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Sent, events[i-1].Sent)
	}
}
