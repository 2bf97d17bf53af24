package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/richinex/ragchat/stream"
)

// Endpoint is the completion path relative to the server root.
const Endpoint = "/v1/chat/completions"

// maxErrorBody caps how much of a failed response is kept in HTTPError.
const maxErrorBody = 64 * 1024

// HTTPError is a non-2xx completion response.
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error formats as "HTTP <status>: <body>".
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// TransportError is a failure to reach the server or read its response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("completion request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client calls the completion endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient creates a client for the server rooted at baseURL. The default
// HTTP client has no timeout; streamed answers are bounded by the caller's
// context instead.
func NewClient(baseURL string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		log:        log,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// BaseURL returns the server root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Complete performs a non-streaming completion.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	req.Stream = false
	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode completion response: %w", err)
	}
	return &out, nil
}

// Stream starts a streaming completion. The caller must Close the stream.
func (c *Client) Stream(ctx context.Context, req Request) (*Stream, error) {
	req.Stream = true
	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Stream{
		body: resp.Body,
		dec:  stream.NewDecoder[Chunk](resp.Body, c.log),
	}, nil
}

func (c *Client) post(ctx context.Context, req Request) (*http.Response, error) {
	if req.RAGMode == "" {
		req.RAGMode = RAGModeClient
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	c.log.Debug("completion request",
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)),
		zap.Bool("stream", req.Stream),
		zap.Bool("enable_thinking", req.EnableThinking))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(msg)}
	}
	return resp, nil
}

// Stream is an in-flight streaming completion.
type Stream struct {
	body io.ReadCloser
	dec  *stream.Decoder[Chunk]
}

// Next returns the next chunk, or io.EOF once the server signals the end.
// Read failures are returned as *TransportError.
func (s *Stream) Next() (Chunk, error) {
	chunk, err := s.dec.Next()
	if err == nil || err == io.EOF {
		return chunk, err
	}
	return chunk, &TransportError{Err: err}
}

// Skipped returns how many malformed frames were dropped so far.
func (s *Stream) Skipped() int {
	return s.dec.Skipped()
}

// Close abandons the stream.
func (s *Stream) Close() error {
	return s.body.Close()
}
