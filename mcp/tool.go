// RagTool - makes the server's rag_search tool usable by the retrieval
// orchestrator.
//
// Information Hiding:
// - Tool discovery and availability caching hidden
// - Argument and result envelopes hidden

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/richinex/ragchat/retrieval"
)

const (
	// RagSearchTool is the name of the document search tool.
	RagSearchTool = "rag_search"

	availabilityTTL = 30 * time.Second
	availabilityKey = "available"
)

type searchArgs struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// RagTool implements retrieval.Tool on top of a Client.
type RagTool struct {
	client *Client
	cache  *gocache.Cache
	log    *zap.Logger
}

// NewRagTool wraps client. Availability is re-checked at most every 30s.
func NewRagTool(client *Client, log *zap.Logger) *RagTool {
	if log == nil {
		log = zap.NewNop()
	}
	return &RagTool{
		client: client,
		cache:  gocache.New(availabilityTTL, 2*availabilityTTL),
		log:    log,
	}
}

// Available reports whether the server lists rag_search. A failed listing
// counts as unavailable.
func (t *RagTool) Available(ctx context.Context) bool {
	if v, found := t.cache.Get(availabilityKey); found {
		return v.(bool)
	}

	available := false
	tools, err := t.client.ListTools(ctx)
	if err != nil {
		t.log.Warn("tool discovery failed", zap.Error(err))
	}
	for _, info := range tools {
		if info.Name == RagSearchTool {
			available = true
			break
		}
	}

	t.cache.SetDefault(availabilityKey, available)
	return available
}

// Refresh forgets the cached availability.
func (t *RagTool) Refresh() {
	t.cache.Delete(availabilityKey)
}

// Search calls rag_search.
func (t *RagTool) Search(ctx context.Context, query string, topK int) (*retrieval.SearchResult, error) {
	raw, err := t.client.CallTool(ctx, RagSearchTool, searchArgs{Query: query, TopK: topK})
	if err != nil {
		return nil, err
	}

	var res retrieval.SearchResult
	if len(raw) == 0 || string(raw) == "null" {
		return &res, nil
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("failed to parse %s result: %w", RagSearchTool, err)
	}
	return &res, nil
}

// Verify RagTool implements retrieval.Tool
var _ retrieval.Tool = (*RagTool)(nil)
