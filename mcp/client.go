// Package mcp provides a client for the tool surface the chat server exposes
// over plain HTTP.
//
// The server lists its tools at /mcp/tools/list and runs one at
// /mcp/tools/call with a {name, arguments} body. Index status lives at
// /rag/info.
//
// Information Hiding:
// - Endpoint paths and request envelopes hidden
// - Error body parsing hidden
// - Schema parsing hidden

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	toolsListPath = "/mcp/tools/list"
	toolsCallPath = "/mcp/tools/call"
	ragInfoPath   = "/rag/info"

	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 * 1024
)

// ToolInfo describes a tool available on the server.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Parameter is one property of a tool's input schema.
type Parameter struct {
	Name     string
	Type     string
	Required bool
}

// Parameters extracts the input schema properties, sorted by name.
func (t ToolInfo) Parameters() []Parameter {
	var schema struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
		return nil
	}

	required := make(map[string]bool)
	for _, r := range schema.Required {
		required[r] = true
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]Parameter, 0, len(names))
	for _, name := range names {
		typ := schema.Properties[name].Type
		if typ == "" {
			typ = "string"
		}
		params = append(params, Parameter{Name: name, Type: typ, Required: required[name]})
	}
	return params
}

// IndexInfo is the server's document index status.
type IndexInfo struct {
	Enabled    bool `json:"enabled"`
	DocCount   int  `json:"doc_count"`
	ChunkCount int  `json:"chunk_count"`
}

// CallError is a non-2xx response from the tool surface.
type CallError struct {
	StatusCode int
	Message    string
	Trace      []string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("MCP %d: %s", e.StatusCode, e.Message)
}

// TraceLines returns server-side trace lines attached to the error.
func (e *CallError) TraceLines() []string {
	return e.Trace
}

// errorBody is the error envelope; message may also be a bare string.
type errorBody struct {
	Error json.RawMessage `json:"error"`
	Trace []string        `json:"trace,omitempty"`
}

type callRequest struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
}

type callResponse struct {
	Name   string          `json:"name"`
	Result json.RawMessage `json:"result"`
}

// Client talks to the tool endpoints of one server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient creates a client for the server rooted at baseURL.
func NewClient(baseURL string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        log,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// ListTools returns all tools the server offers.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	var tools []ToolInfo
	if err := c.do(ctx, http.MethodGet, toolsListPath, nil, &tools); err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	return tools, nil
}

// CallTool runs a tool and returns its raw result.
func (c *Client) CallTool(ctx context.Context, name string, arguments any) (json.RawMessage, error) {
	var resp callResponse
	if err := c.do(ctx, http.MethodPost, toolsCallPath, callRequest{Name: name, Arguments: arguments}, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// Info returns the index status.
func (c *Client) Info(ctx context.Context) (*IndexInfo, error) {
	var info IndexInfo
	if err := c.do(ctx, http.MethodGet, ragInfoPath, nil, &info); err != nil {
		return nil, fmt.Errorf("failed to read index info: %w", err)
	}
	return &info, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug("mcp request", zap.String("method", method), zap.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return parseCallError(resp.StatusCode, raw)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// parseCallError reads {error:{message}} or {error:"..."} bodies and falls
// back to the raw text.
func parseCallError(status int, raw []byte) *CallError {
	e := &CallError{StatusCode: status, Message: strings.TrimSpace(string(raw))}

	var env errorBody
	if json.Unmarshal(raw, &env) != nil || len(env.Error) == 0 {
		return e
	}
	e.Trace = env.Trace

	var nested struct {
		Message string `json:"message"`
	}
	var flat string
	switch {
	case json.Unmarshal(env.Error, &nested) == nil && nested.Message != "":
		e.Message = nested.Message
	case json.Unmarshal(env.Error, &flat) == nil && flat != "":
		e.Message = flat
	}
	return e
}
