// Package chat drives one user turn end to end: retrieval, prompt
// composition, the completion call and history bookkeeping.
package chat

import (
	"context"
	"errors"

	"github.com/richinex/ragchat/completion"
	"github.com/richinex/ragchat/retrieval"
	"github.com/richinex/ragchat/telemetry"
)

// ErrBusy is returned by Send while another turn is in flight.
var ErrBusy = errors.New("a turn is already in progress")

// State is the session's turn state.
type State int

const (
	StateIdle State = iota
	StateAwaitingResponse
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingResponse:
		return "awaiting_response"
	default:
		return "unknown"
	}
}

// View receives the progress of a turn. Calls arrive in order from the
// goroutine running Send.
type View interface {
	// Retrieval is called once, before the completion request.
	Retrieval(res retrieval.Result)

	// Update carries the full assistant text accumulated so far.
	Update(raw string)

	// Telemetry carries a throughput reading and the latest memory report,
	// which may be nil.
	Telemetry(speed telemetry.Speed, mem *completion.Memory)

	// Fail is called instead of a final Update when the turn fails.
	Fail(err error)
}

// Turn is the outcome of a successful Send.
type Turn struct {
	Index     int
	Content   string
	Retrieval retrieval.Result
	Speed     telemetry.Speed
	Usage     *completion.Usage
	Memory    *completion.Memory
}

// Completer issues completion requests.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) (*completion.Response, error)
	Stream(ctx context.Context, req completion.Request) (*completion.Stream, error)
}

// Retriever produces the retrieval context of a turn.
type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) retrieval.Result
}

var (
	_ Completer = (*completion.Client)(nil)
	_ Retriever = (*retrieval.Orchestrator)(nil)
)
