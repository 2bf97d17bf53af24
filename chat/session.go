// Completion session driver.
//
// Information Hiding:
// - Turn state transitions hidden
// - Streaming versus single-response consumption hidden
// - Telemetry throttling and journal bookkeeping hidden

package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richinex/ragchat/completion"
	"github.com/richinex/ragchat/llm"
	"github.com/richinex/ragchat/retrieval"
	"github.com/richinex/ragchat/storage"
	"github.com/richinex/ragchat/telemetry"
)

// Session is one conversation with the server. History is append-only and
// lives as long as the session.
type Session struct {
	id        string
	config    Config
	client    Completer
	retriever Retriever
	history   *storage.History
	journal   storage.Journal
	now       func() time.Time
	log       *zap.Logger

	mu    sync.Mutex
	state State
	turns int
}

// NewSession creates an idle session. A nil retriever reports every
// enabled retrieval as unavailable.
func NewSession(config Config, client Completer, retriever Retriever) *Session {
	if retriever == nil {
		retriever = retrieval.NewOrchestrator(nil, nil, nil)
	}
	return &Session{
		id:        uuid.NewString(),
		config:    config,
		client:    client,
		retriever: retriever,
		history:   storage.NewHistory(),
		journal:   storage.NopJournal{},
		now:       time.Now,
		log:       zap.NewNop(),
	}
}

// WithJournal records a diagnostic entry for every turn.
func (s *Session) WithJournal(j storage.Journal) *Session {
	s.journal = j
	return s
}

// WithLogger sets the logger.
func (s *Session) WithLogger(log *zap.Logger) *Session {
	s.log = log
	return s
}

// WithClock replaces the time source.
func (s *Session) WithClock(now func() time.Time) *Session {
	s.now = now
	return s
}

// ID returns the session id used in journal records.
func (s *Session) ID() string {
	return s.id
}

// State returns the current turn state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a copy of the conversation so far.
func (s *Session) History() []llm.ChatMessage {
	return s.history.Messages()
}

// begin moves the session to StateAwaitingResponse and returns the turn
// index, or ErrBusy.
func (s *Session) begin() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return 0, ErrBusy
	}
	s.state = StateAwaitingResponse
	idx := s.turns
	s.turns++
	return idx, nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
}

// Send runs one turn. The user text is appended to history before the
// request; the assistant text only after a complete, successful response.
// On failure view.Fail is called and the error returned.
func (s *Session) Send(ctx context.Context, text string, opts Options, view View) (*Turn, error) {
	idx, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer s.end()

	started := s.now()
	rec := storage.TurnRecord{
		SessionID:     s.id,
		TurnIndex:     idx,
		StartedAt:     started,
		Stream:        opts.Stream,
		RetrievalMode: string(opts.Mode),
	}

	s.history.Append(llm.UserMessage(text))

	res := s.retriever.Retrieve(ctx, opts.retrievalRequest(text))
	rec.RetrievalActive = res.Active
	rec.KeywordQuery = res.KeywordQuery
	rec.Strategy = res.Strategy
	rec.ChunkCount = len(res.Chunks)
	rec.Trace = res.Trace
	view.Retrieval(res)

	messages := append(
		[]llm.ChatMessage{llm.SystemMessage(retrieval.SystemPrompt(res.Context, res.Active))},
		s.history.Messages()...,
	)
	req := completion.Request{
		Model:          s.config.Model,
		Messages:       messages,
		EnableThinking: opts.EnableThinking,
		RAGMode:        completion.RAGModeClient,
		Temperature:    s.config.Temperature,
		TopP:           s.config.TopP,
		MaxTokens:      s.config.MaxTokens,
	}

	var turn *Turn
	if opts.Stream {
		turn, err = s.stream(ctx, req, view)
	} else {
		turn, err = s.complete(ctx, req, view)
	}
	if err != nil {
		s.log.Warn("turn failed", zap.String("session", s.id), zap.Int("turn", idx), zap.Error(err))
		view.Fail(err)
		rec.Error = err.Error()
		s.record(ctx, rec)
		return nil, err
	}

	turn.Index = idx
	turn.Retrieval = res
	s.history.Append(llm.AssistantMessage(turn.Content))

	rec.Chars = turn.Speed.Chars
	rec.Tokens = turn.Speed.Tokens
	rec.Elapsed = turn.Speed.Elapsed
	s.record(ctx, rec)

	s.log.Debug("turn complete",
		zap.String("session", s.id),
		zap.Int("turn", idx),
		zap.Int("chars", turn.Speed.Chars),
		zap.Duration("elapsed", turn.Speed.Elapsed))
	return turn, nil
}

func (s *Session) stream(ctx context.Context, req completion.Request, view View) (*Turn, error) {
	tracker := telemetry.NewTracker(s.now())
	st, err := s.client.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	var (
		raw   strings.Builder
		usage *completion.Usage
		mem   *completion.Memory
	)
	for {
		chunk, err := st.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if chunk.Mem != nil {
			mem = chunk.Mem
		}
		var tokens *int
		if n, ok := chunk.CompletionTokens(); ok {
			tokens = &n
			usage = chunk.Usage
		}

		delta := chunk.Delta()
		if delta != "" {
			raw.WriteString(delta)
			view.Update(raw.String())
		}
		if speed, ok := tracker.Add(utf8.RuneCountInString(delta), tokens, s.now()); ok {
			view.Telemetry(speed, mem)
		}
	}
	if n := st.Skipped(); n > 0 {
		s.log.Debug("malformed frames skipped", zap.Int("count", n))
	}

	speed := tracker.Finish(s.now())
	view.Telemetry(speed, mem)
	return &Turn{Content: raw.String(), Speed: speed, Usage: usage, Memory: mem}, nil
}

func (s *Session) complete(ctx context.Context, req completion.Request, view View) (*Turn, error) {
	sent := s.now()
	tracker := telemetry.NewTracker(sent)
	resp, err := s.client.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	content := resp.Content()
	var tokens *int
	if resp.Usage != nil {
		n := resp.Usage.CompletionTokens
		tokens = &n
	}
	now := s.now()
	tracker.Add(utf8.RuneCountInString(content), tokens, now)
	speed := tracker.FinishFrom(sent, now)

	view.Update(content)
	view.Telemetry(speed, resp.Mem)
	return &Turn{Content: content, Speed: speed, Usage: resp.Usage, Memory: resp.Mem}, nil
}

func (s *Session) record(ctx context.Context, rec storage.TurnRecord) {
	// A cancelled turn is still worth recording.
	if err := s.journal.Record(context.WithoutCancel(ctx), rec); err != nil {
		s.log.Warn("journal record failed", zap.String("session", rec.SessionID), zap.Error(err))
	}
}
