package retrieval

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

	"github.com/richinex/ragchat/completion"
	"github.com/richinex/ragchat/llm"
)

type fakeTool struct {
	available bool
	result    *SearchResult
	err       error

	calls   int
	queries []string
	topKs   []int
}

func (f *fakeTool) Available(context.Context) bool { return f.available }

func (f *fakeTool) Search(_ context.Context, query string, topK int) (*SearchResult, error) {
	f.calls++
	f.queries = append(f.queries, query)
	f.topKs = append(f.topKs, topK)
	return f.result, f.err
}

type fakeSummarizer struct {
	out   string
	err   error
	calls int
}

func (f *fakeSummarizer) Summarize(context.Context, string) (string, error) {
	f.calls++
	return f.out, f.err
}

type tracedErr struct{ lines []string }

func (e *tracedErr) Error() string        { return "index not ready" }
func (e *tracedErr) TraceLines() []string { return e.lines }

func hasLine(trace []string, substr string) bool {
	for _, l := range trace {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func TestRetrieveDisabled(t *testing.T) {
	tool := &fakeTool{available: true}
	res := NewOrchestrator(tool, nil, nil).Retrieve(context.Background(), Request{Query: "q", Enabled: false})

	assert.False(t, res.Active)
	assert.Empty(t, res.Chunks)
	assert.Len(t, res.Trace, 1)
	assert.Equal(t, 0, tool.calls)
}

func TestRetrieveToolUnavailable(t *testing.T) {
	tool := &fakeTool{available: false}
	sum := &fakeSummarizer{out: "kw"}
	res := NewOrchestrator(tool, sum, nil).Retrieve(context.Background(), Request{Query: "q", Enabled: true, Mode: ModeLLM})

	assert.False(t, res.Active)
	assert.Len(t, res.Trace, 1)
	assert.Contains(t, res.Trace[0], "unavailable")
	assert.Equal(t, 0, tool.calls)
	assert.Equal(t, 0, sum.calls, "no secondary model call without a tool")

	res = NewOrchestrator(nil, nil, nil).Retrieve(context.Background(), Request{Query: "q", Enabled: true})
	assert.False(t, res.Active)
}

func TestRetrieveToolErrorIsContained(t *testing.T) {
	tool := &fakeTool{available: true, err: &tracedErr{lines: []string{"loader: 0 documents"}}}
	res := NewOrchestrator(tool, nil, nil).Retrieve(context.Background(), Request{Query: "q", Enabled: true, Mode: ModeRaw})

	assert.False(t, res.Active)
	assert.Empty(t, res.Chunks)
	assert.True(t, hasLine(res.Trace, "retrieval failed: index not ready"))
	assert.True(t, hasLine(res.Trace, "loader: 0 documents"))
}

func TestRetrieveRawSuccessBuildsContext(t *testing.T) {
	tool := &fakeTool{available: true, result: &SearchResult{
		Chunks: []Chunk{{Source: "a.md", Text: "alpha"}, {Source: "b.md", Text: "beta"}},
		Trace:  []string{"bm25 scored 12 chunks"},
	}}
	tick := time.Unix(0, 0)
	clock := func() time.Time { tick = tick.Add(7 * time.Millisecond); return tick }

	res := NewOrchestrator(tool, nil, nil).WithClock(clock).
		Retrieve(context.Background(), Request{Query: "What is alpha?", Enabled: true, Mode: ModeRaw})

	require.True(t, res.Active)
	assert.Equal(t, "What is alpha?", res.KeywordQuery)
	assert.Equal(t, "verbatim", res.Strategy)
	assert.Equal(t, []int{DefaultTopK}, tool.topKs)
	assert.Equal(t, "[1] Source: a.md\nalpha\n\n[2] Source: b.md\nbeta", res.Context)
	assert.True(t, hasLine(res.Trace, "hits: 2"))
	assert.True(t, hasLine(res.Trace, "bm25 scored 12 chunks"))
	assert.Equal(t, "elapsed: 7 ms", res.Trace[len(res.Trace)-1])
}

func TestRetrievePrefersToolContextAndElapsed(t *testing.T) {
	tool := &fakeTool{available: true, result: &SearchResult{
		Chunks:    []Chunk{{Source: "a", Text: "x"}},
		Context:   "server built context",
		ElapsedMS: 42,
	}}
	res := NewOrchestrator(tool, nil, nil).Retrieve(context.Background(), Request{Query: "q", Enabled: true, TopK: 2})
	assert.Equal(t, "server built context", res.Context)
	assert.Equal(t, []int{2}, tool.topKs)
	assert.Equal(t, "elapsed: 42 ms", res.Trace[len(res.Trace)-1])
}

func TestRetrieveNoHitsIsActiveAndEmpty(t *testing.T) {
	tool := &fakeTool{available: true, result: &SearchResult{}}
	res := NewOrchestrator(tool, nil, nil).Retrieve(context.Background(), Request{Query: "q", Enabled: true})
	assert.True(t, res.Active)
	assert.NotNil(t, res.Chunks)
	assert.Empty(t, res.Chunks)
	assert.Equal(t, "", res.Context)
	assert.Equal(t, BasePrompt+"\n\nContext:\n"+NoSourcesPlaceholder, SystemPrompt(res.Context, res.Active))
}

func TestRetrieveHeuristicUsesKeywords(t *testing.T) {
	tool := &fakeTool{available: true, result: &SearchResult{}}
	res := NewOrchestrator(tool, nil, nil).Retrieve(context.Background(),
		Request{Query: "How do I configure the vector database index?", Enabled: true, Mode: ModeHeuristic})

	assert.Equal(t, []string{"configure database vector index"}, tool.queries)
	assert.Equal(t, "keywords", res.Strategy)
}

func TestRetrieveHeuristicFallsBackToVerbatim(t *testing.T) {
	tool := &fakeTool{available: true, result: &SearchResult{}}
	res := NewOrchestrator(tool, nil, nil).Retrieve(context.Background(),
		Request{Query: "的 了 是", Enabled: true, Mode: ModeHeuristic})

	assert.Equal(t, []string{"的 了 是"}, tool.queries)
	assert.Equal(t, "verbatim", res.Strategy)
	assert.True(t, hasLine(res.Trace, "keywords: keyword extraction produced no keywords, falling back"))
}

func TestRetrieveLLMFailureFallsBack(t *testing.T) {
	tool := &fakeTool{available: true, result: &SearchResult{}}
	sum := &fakeSummarizer{err: errors.New("HTTP 500: boom")}
	res := NewOrchestrator(tool, sum, nil).Retrieve(context.Background(),
		Request{Query: "original question", Enabled: true, Mode: ModeLLM})

	assert.True(t, res.Active)
	assert.Equal(t, []string{"original question"}, tool.queries)
	assert.True(t, hasLine(res.Trace, "HTTP 500: boom"))
}

func TestRetrieveLLMEmptyOutputFallsBack(t *testing.T) {
	tool := &fakeTool{available: true, result: &SearchResult{}}
	res := NewOrchestrator(tool, &fakeSummarizer{out: "  "}, nil).Retrieve(context.Background(),
		Request{Query: "q", Enabled: true, Mode: ModeLLM})
	assert.Equal(t, []string{"q"}, tool.queries)
	assert.True(t, hasLine(res.Trace, "returned nothing"))
}

func TestRetrieveLLMSuccess(t *testing.T) {
	tool := &fakeTool{available: true, result: &SearchResult{}}
	res := NewOrchestrator(tool, &fakeSummarizer{out: "vector index"}, nil).Retrieve(context.Background(),
		Request{Query: "how to build an index", Enabled: true, Mode: ModeLLM})
	assert.Equal(t, "vector index", res.KeywordQuery)
	assert.Equal(t, "llm", res.Strategy)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" LLM ")
	require.NoError(t, err)
	assert.Equal(t, ModeLLM, m)
	_, err = ParseMode("semantic")
	assert.Error(t, err)
}

func TestBuildContextCitationRoundTrip(t *testing.T) {
	chunks := []Chunk{
		{Source: "guide.md", Text: "line one\nline two"},
		{Source: "faq.txt", Text: "see [1] above"},
		{Source: "notes", Text: "third"},
	}
	ctx := BuildContext(chunks)
	assert.Equal(t, []int{1, 2, 3}, ParseCitations(ctx))
	assert.False(t, strings.HasSuffix(ctx, "\n"))
	assert.Equal(t, "", BuildContext(nil))
	assert.Nil(t, ParseCitations(""))
}

func TestSystemPrompt(t *testing.T) {
	assert.Equal(t, BasePrompt, SystemPrompt("ignored", false))
	assert.Equal(t, BasePrompt+"\n\nContext:\n[1] Source: a\nb", SystemPrompt("[1] Source: a\nb", true))
}

func TestCompletionSummarizerRequestShape(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"<think>hmm</think>\n vector\n  index "}}]}`)
	}))
	defer srv.Close()

	s := NewCompletionSummarizer(completion.NewClient(srv.URL, nil), "qwen3-0.6b")
	kw, err := s.Summarize(context.Background(), "how do I build a vector index")
	require.NoError(t, err)
	assert.Equal(t, "vector index", kw)

	assert.Contains(t, body, `"stream":false`)
	assert.Contains(t, body, `"enable_thinking":false`)
	assert.Contains(t, body, `"temperature":0`)
	assert.Contains(t, body, `"max_tokens":32`)
	assert.Contains(t, body, "Extract concise search keywords")
}

type fakeProvider struct {
	reply string
	err   error
	got   []llm.ChatMessage
}

func (p *fakeProvider) Name() string  { return "fake" }
func (p *fakeProvider) Model() string { return "fake-1" }
func (p *fakeProvider) Chat(_ context.Context, msgs []llm.ChatMessage) (llm.LLMResponse, error) {
	p.got = msgs
	return llm.LLMResponse{Content: p.reply}, p.err
}

func TestProviderSummarizer(t *testing.T) {
	p := &fakeProvider{reply: "  kv cache  sizing\n"}
	kw, err := NewProviderSummarizer(p).Summarize(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "kv cache sizing", kw)
	require.Len(t, p.got, 2)
	assert.Equal(t, llm.RoleSystem, p.got[0].Role)

	_, err = NewProviderSummarizer(&fakeProvider{err: errors.New("quota")}).Summarize(context.Background(), "q")
	assert.EqualError(t, err, "fake: quota")
}

func TestCachedSummarizer(t *testing.T) {
	inner := &fakeSummarizer{out: "cached words"}
	s := NewCachedSummarizer(inner)

	for i := 0; i < 3; i++ {
		kw, err := s.Summarize(context.Background(), "same question")
		require.NoError(t, err)
		assert.Equal(t, "cached words", kw)
	}
	assert.Equal(t, 1, inner.calls)

	failing := &fakeSummarizer{err: errors.New("down")}
	fs := NewCachedSummarizer(failing)
	_, _ = fs.Summarize(context.Background(), "q")
	_, _ = fs.Summarize(context.Background(), "q")
	assert.Equal(t, 2, failing.calls, "errors are not cached")
}
