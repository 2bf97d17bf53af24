package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/richinex/ragchat/storage"
)

// ErrNoJournal is returned by Journal when no journal file is configured.
var ErrNoJournal = errors.New("no journal configured: set journal.path or pass --journal")

// Journal prints the recorded sessions, or the turns of sessionID when it
// is set. With verbose on, each turn is followed by its retrieval trace.
func Journal(ctx context.Context, app *App, sessionID string, out io.Writer) error {
	reader, ok := app.Journal.(storage.JournalReader)
	if !ok {
		return ErrNoJournal
	}

	if sessionID == "" {
		sessions, err := reader.Sessions(ctx)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Fprintln(out, "no sessions recorded")
			return nil
		}
		for _, id := range sessions {
			fmt.Fprintln(out, id)
		}
		return nil
	}

	turns, err := reader.Turns(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return fmt.Errorf("no turns recorded for session %s", sessionID)
	}
	for _, rec := range turns {
		fmt.Fprintln(out, turnLine(rec))
		if app.Verbose {
			for _, line := range rec.Trace {
				fmt.Fprintln(out, dimStyle.Render("    · "+line))
			}
		}
	}
	return nil
}

func turnLine(rec storage.TurnRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s", rec.TurnIndex, rec.StartedAt.Format(time.DateTime))
	if rec.Stream {
		b.WriteString(" stream")
	}

	if rec.RetrievalActive {
		fmt.Fprintf(&b, " rag=%s/%s hits=%d query=%q", rec.RetrievalMode, rec.Strategy, rec.ChunkCount, rec.KeywordQuery)
	} else {
		b.WriteString(" rag=inactive")
	}

	if rec.Error != "" {
		b.WriteString(" failed: " + rec.Error)
		return b.String()
	}
	fmt.Fprintf(&b, " %d chars", rec.Chars)
	if rec.Tokens != nil {
		fmt.Fprintf(&b, ", %d tokens", *rec.Tokens)
	}
	fmt.Fprintf(&b, " in %.1fs", rec.Elapsed.Seconds())
	return b.String()
}
