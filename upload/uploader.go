package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// Endpoint is the upload path relative to the server root.
	Endpoint = "/rag/upload"
	// FieldName is the multipart field carrying the file.
	FieldName = "file"

	DefaultTimeout = 120 * time.Second
	// ProgressInterval is the minimum spacing between progress events.
	ProgressInterval = 200 * time.Millisecond

	maxErrorBody = 64 * 1024
)

// ErrUploadTimeout is returned when the transfer does not finish in time.
var ErrUploadTimeout = errors.New("upload timed out")

// TransportError is a network failure during the transfer.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upload transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError is a non-2xx response from the upload endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upload failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// Progress is a byte-level transfer reading.
type Progress struct {
	Sent  int64
	Total int64
}

// Done reports whether the whole body has been written.
func (p Progress) Done() bool {
	return p.Total > 0 && p.Sent >= p.Total
}

// DocInfo describes the document the server indexed.
type DocInfo struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
}

// Receipt is the outcome of a successful upload.
type Receipt struct {
	Doc   *DocInfo `json:"doc,omitempty"`
	Trace []string `json:"trace,omitempty"`

	// Encoding is the detected source encoding; not part of the response.
	Encoding Encoding `json:"-"`
	Bytes    int64    `json:"-"`
}

// Uploader sends documents to the indexing endpoint.
type Uploader struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	now        func() time.Time
	log        *zap.Logger
}

// NewUploader creates an uploader for the server rooted at baseURL. A
// non-positive timeout uses DefaultTimeout.
func NewUploader(baseURL string, timeout time.Duration, log *zap.Logger) *Uploader {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Uploader{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    timeout,
		now:        time.Now,
		log:        log,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (u *Uploader) WithHTTPClient(hc *http.Client) *Uploader {
	u.httpClient = hc
	return u
}

// Upload prepares f and transfers it. When progress is non-nil it receives
// throttled readings and a final reading once the body is fully written.
// Intermediate readings are dropped if the receiver is not ready. Upload
// does not close progress.
//
// An encoding failure returns before any byte is sent.
func (u *Uploader) Upload(ctx context.Context, f File, progress chan<- Progress) (*Receipt, error) {
	prepared, err := Prepare(f)
	if err != nil {
		return nil, err
	}

	body, contentType, err := encodeMultipart(prepared)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	total := int64(len(body))
	reader := &progressReader{
		ctx:     ctx,
		r:       bytes.NewReader(body),
		total:   total,
		ch:      progress,
		limiter: rate.NewLimiter(rate.Every(ProgressInterval), 1),
		now:     u.now,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+Endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", contentType)

	u.log.Debug("uploading document",
		zap.String("filename", prepared.Name),
		zap.String("encoding", string(prepared.Encoding)),
		zap.Int64("bytes", total))

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, u.transportFailure(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, u.transportFailure(ctx, err)
	}

	receipt := &Receipt{Encoding: prepared.Encoding, Bytes: int64(len(prepared.Data))}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, receipt); err != nil {
			return nil, fmt.Errorf("failed to decode upload response: %w", err)
		}
	}
	return receipt, nil
}

func (u *Uploader) transportFailure(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrUploadTimeout, u.timeout)
	}
	return &TransportError{Err: err}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeMultipart(p Prepared) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FieldName, quoteEscaper.Replace(p.Name)))
	h.Set("Content-Type", p.MediaType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := part.Write(p.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write multipart body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// progressReader reports bytes consumed by the transport.
type progressReader struct {
	ctx     context.Context
	r       io.Reader
	sent    int64
	total   int64
	ch      chan<- Progress
	limiter *rate.Limiter
	now     func() time.Time
	final   bool
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.sent += int64(n)
	if p.ch == nil || n == 0 {
		return n, err
	}

	ev := Progress{Sent: p.sent, Total: p.total}
	if p.sent >= p.total {
		if !p.final {
			p.final = true
			select {
			case p.ch <- ev:
			case <-p.ctx.Done():
			}
		}
		return n, err
	}
	if p.limiter.AllowN(p.now(), 1) {
		select {
		case p.ch <- ev:
		default:
		}
	}
	return n, err
}
