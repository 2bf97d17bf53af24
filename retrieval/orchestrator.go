package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Orchestrator runs the rewrite chain and the search tool for one turn.
type Orchestrator struct {
	tool       Tool
	summarizer Summarizer
	now        func() time.Time
	log        *zap.Logger
}

// NewOrchestrator creates an orchestrator. tool may be nil, in which case
// every enabled request reports the tool as unavailable. summarizer is only
// consulted in ModeLLM.
func NewOrchestrator(tool Tool, summarizer Summarizer, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		tool:       tool,
		summarizer: summarizer,
		now:        time.Now,
		log:        log,
	}
}

// WithClock replaces the time source.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Retrieve never returns an error. Failures leave the result inactive and
// are described in its Trace.
func (o *Orchestrator) Retrieve(ctx context.Context, req Request) Result {
	var res Result
	if !req.Enabled {
		res.Trace = append(res.Trace, "retrieval disabled")
		return res
	}
	if o.tool == nil || !o.tool.Available(ctx) {
		res.Trace = append(res.Trace, "retrieval tool unavailable, skipping search")
		return res
	}

	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	query, strategy := o.rewrite(ctx, req, &res.Trace)
	res.KeywordQuery = query
	res.Strategy = strategy

	res.Trace = append(res.Trace, fmt.Sprintf("searching top %d for %q", topK, query))
	start := o.now()
	found, err := o.tool.Search(ctx, query, topK)
	res.Elapsed = o.now().Sub(start)

	if err != nil {
		o.log.Warn("retrieval failed", zap.String("query", query), zap.Error(err))
		res.Trace = append(res.Trace, "retrieval failed: "+err.Error())
		var tc TraceCarrier
		if errors.As(err, &tc) {
			res.Trace = append(res.Trace, tc.TraceLines()...)
		}
		return res
	}
	if found == nil {
		found = &SearchResult{}
	}

	res.Active = true
	res.Chunks = found.Chunks
	if res.Chunks == nil {
		res.Chunks = []Chunk{}
	}
	res.Context = found.Context
	if res.Context == "" {
		res.Context = BuildContext(res.Chunks)
	}

	res.Trace = append(res.Trace, fmt.Sprintf("hits: %d", len(res.Chunks)))
	if res.Context != "" {
		res.Trace = append(res.Trace, fmt.Sprintf("context: %d chars", len([]rune(res.Context))))
	}
	res.Trace = append(res.Trace, found.Trace...)

	elapsedMS := found.ElapsedMS
	if elapsedMS <= 0 {
		elapsedMS = res.Elapsed.Milliseconds()
	}
	res.Trace = append(res.Trace, fmt.Sprintf("elapsed: %d ms", elapsedMS))

	o.log.Debug("retrieval complete",
		zap.String("strategy", strategy),
		zap.String("query", query),
		zap.Int("hits", len(res.Chunks)),
		zap.Duration("elapsed", res.Elapsed))
	return res
}

// rewrite walks the chain for req.Mode and returns the first successful
// query and the strategy that produced it. Every failure is traced.
func (o *Orchestrator) rewrite(ctx context.Context, req Request, trace *[]string) (string, string) {
	for _, s := range Chain(req.Mode, o.summarizer) {
		out := s.Rewrite(ctx, req.Query)
		if out.OK {
			*trace = append(*trace, fmt.Sprintf("query strategy: %s", s.Name()))
			return out.Value, s.Name()
		}
		*trace = append(*trace, fmt.Sprintf("%s: %s, falling back", s.Name(), out.Reason))
	}
	// Chains end with Verbatim, so this is only reached by a custom chain.
	return req.Query, Verbatim{}.Name()
}
