package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/richinex/ragchat/completion"
	"github.com/richinex/ragchat/render"
	"github.com/richinex/ragchat/retrieval"
	"github.com/richinex/ragchat/telemetry"
)

var dimStyle = lipgloss.NewStyle().Foreground(render.ReasoningColor)

// terminalView prints a turn to a scrolling terminal. Streaming output is
// appended as it arrives; a non-streaming answer is rendered once.
type terminalView struct {
	out           io.Writer
	stream        bool
	showReasoning bool
	verbose       bool

	writer *render.Writer
	speed  telemetry.Speed
	mem    *completion.Memory
	raw    string
}

func newTerminalView(out io.Writer, stream, showReasoning, verbose bool) *terminalView {
	return &terminalView{
		out:           out,
		stream:        stream,
		showReasoning: showReasoning,
		verbose:       verbose,
		writer:        render.NewWriter(out, showReasoning),
	}
}

func (v *terminalView) Retrieval(res retrieval.Result) {
	if v.verbose {
		for _, line := range res.Trace {
			fmt.Fprintln(v.out, dimStyle.Render("· "+line))
		}
	}
	if !res.Active || len(res.Chunks) == 0 {
		return
	}
	fmt.Fprintln(v.out, dimStyle.Render("Sources:"))
	for i, c := range res.Chunks {
		fmt.Fprintln(v.out, dimStyle.Render(sourceLine(i+1, c)))
	}
	fmt.Fprintln(v.out)
}

func sourceLine(n int, c retrieval.Chunk) string {
	line := fmt.Sprintf("[%d] %s", n, c.Source)
	if c.URL != "" && c.URL != c.Source {
		line += " <" + c.URL + ">"
	}
	return line
}

func (v *terminalView) Update(raw string) {
	v.raw = raw
	if v.stream {
		_ = v.writer.Update(raw)
		return
	}
	fmt.Fprintln(v.out, render.Terminal(raw, v.showReasoning))
}

func (v *terminalView) Telemetry(speed telemetry.Speed, mem *completion.Memory) {
	v.speed = speed
	if mem != nil {
		v.mem = mem
	}
}

func (v *terminalView) Fail(err error) {
	if v.stream && v.raw != "" {
		_ = v.writer.Flush(v.raw)
		if render.Reasoning(v.raw) {
			fmt.Fprintln(v.out, dimStyle.Render("(interrupted while reasoning)"))
		}
	}
	fmt.Fprintln(v.out, render.Error(err.Error()))
}

// finish completes a successful turn and prints its telemetry line.
func (v *terminalView) finish(content string) {
	if v.stream {
		_ = v.writer.Flush(content)
	}
	fmt.Fprintln(v.out, dimStyle.Render(statusLine(v.speed, v.mem)))
}

func statusLine(speed telemetry.Speed, mem *completion.Memory) string {
	line := fmt.Sprintf("%s · %.1fs", speed, speed.Elapsed.Seconds())
	if m := telemetry.Memory(mem); m != "" {
		line += " · " + m
	}
	return line
}
