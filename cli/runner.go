// Command execution for CLI commands.
//
// Information Hiding:
// - Session setup hidden
// - Progress and output formatting hidden

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/richinex/ragchat/chat"
	"github.com/richinex/ragchat/keywords"
	"github.com/richinex/ragchat/mcp"
	"github.com/richinex/ragchat/telemetry"
	"github.com/richinex/ragchat/upload"
)

// Chat runs an interactive session reading questions from in. History lasts
// until the command exits.
func Chat(ctx context.Context, app *App, opts chat.Options, in io.Reader, out io.Writer) error {
	session := app.NewSession()

	fmt.Fprintf(out, "Chatting with %s at %s. Type 'exit' to quit.\n", app.Settings.Server.Model, app.Settings.Server.BaseURL)
	if opts.Retrieval {
		fmt.Fprintf(out, "Retrieval on (%s, top %d).\n", opts.Mode, opts.TopK)
	}
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		// A failed turn has already been reported by the view.
		_ = runTurn(ctx, app, session, input, opts, out)
		fmt.Fprintln(out)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return scanner.Err()
}

// Ask runs a single turn.
func Ask(ctx context.Context, app *App, question string, opts chat.Options, out io.Writer) error {
	return runTurn(ctx, app, app.NewSession(), question, opts, out)
}

// reportedError is a turn failure the terminal view has already printed.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Unwrap() error { return e.err }

// Reported reports whether err has already been shown to the user.
func Reported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

func runTurn(ctx context.Context, app *App, session *chat.Session, text string, opts chat.Options, out io.Writer) error {
	view := newTerminalView(out, opts.Stream, opts.ShowReasoning, app.Verbose)
	turn, err := session.Send(ctx, text, opts, view)
	if errors.Is(err, chat.ErrBusy) {
		return err
	}
	if err != nil {
		return &reportedError{err: err}
	}
	view.finish(turn.Content)
	return nil
}

// Upload normalizes the file at path and sends it for indexing.
func Upload(ctx context.Context, app *App, path string, out io.Writer) error {
	f, err := upload.ReadFile(path)
	if err != nil {
		return err
	}

	// progress is never closed: the transport may still hold the reader
	// after Upload returns.
	progress := make(chan upload.Progress, 1)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case p := <-progress:
				fmt.Fprintf(out, "\ruploading %s: %s", f.Name, progressText(p))
			case <-done:
				select {
				case p := <-progress:
					fmt.Fprintf(out, "\ruploading %s: %s", f.Name, progressText(p))
				default:
				}
				return
			}
		}
	}()

	receipt, err := app.Uploader.Upload(ctx, f, progress)
	close(done)
	wg.Wait()
	fmt.Fprintln(out)

	if err != nil {
		if errors.Is(err, upload.ErrUploadTimeout) {
			return fmt.Errorf("upload of %s timed out: %w", f.Name, err)
		}
		return err
	}

	name, chunks := f.Name, 0
	if receipt.Doc != nil {
		if receipt.Doc.Filename != "" {
			name = receipt.Doc.Filename
		}
		chunks = receipt.Doc.Chunks
	}
	fmt.Fprintf(out, "indexed %s: %d chunks (%s, %s)\n", name, chunks, receipt.Encoding, telemetry.FormatBytes(receipt.Bytes))
	// The first document can bring the search tool online.
	app.Tool.Refresh()
	if app.Verbose {
		for _, line := range receipt.Trace {
			fmt.Fprintln(out, dimStyle.Render("· "+line))
		}
	}
	return nil
}

func progressText(p upload.Progress) string {
	if p.Total <= 0 {
		return telemetry.FormatBytes(p.Sent)
	}
	pct := float64(p.Sent) * 100 / float64(p.Total)
	return fmt.Sprintf("%3.0f%% (%s / %s)", pct, telemetry.FormatBytes(p.Sent), telemetry.FormatBytes(p.Total))
}

// Keywords prints the heuristic search query for question. With verbose
// set, every ranked candidate is listed.
func Keywords(question string, maxTokens int, verbose bool, out io.Writer) {
	fmt.Fprintln(out, keywords.Extract(question, maxTokens))
	if !verbose {
		return
	}
	for i, kw := range keywords.Rank(question) {
		fmt.Fprintf(out, "  %2d. %s\n", i+1, kw)
	}
}

// Status prints the index status and the server's tools.
func Status(ctx context.Context, app *App, out io.Writer) error {
	fmt.Fprintf(out, "Server: %s\n", app.Settings.Server.BaseURL)

	info, err := app.MCP.Info(ctx)
	if err != nil {
		fmt.Fprintf(out, "Index: unavailable (%v)\n", err)
	} else {
		state := "disabled"
		if info.Enabled {
			state = "enabled"
		}
		fmt.Fprintf(out, "Index: %s, %d documents, %d chunks\n", state, info.DocCount, info.ChunkCount)
	}

	tools, err := app.MCP.ListTools(ctx)
	if err != nil {
		fmt.Fprintf(out, "Tools: unavailable (%v)\n", err)
		return nil
	}

	app.Tool.Refresh()
	search := "unavailable"
	if app.Tool.Available(ctx) {
		search = "available"
	}
	fmt.Fprintf(out, "Retrieval tool %s: %s\n", mcp.RagSearchTool, search)

	fmt.Fprintf(out, "Tools (%d):\n", len(tools))
	for _, t := range tools {
		fmt.Fprintf(out, "  %s", t.Name)
		if t.Description != "" {
			fmt.Fprintf(out, " - %s", t.Description)
		}
		fmt.Fprintln(out)
		for _, p := range t.Parameters() {
			req := ""
			if p.Required {
				req = ", required"
			}
			fmt.Fprintf(out, "      %s (%s%s)\n", p.Name, p.Type, req)
		}
	}
	return nil
}
