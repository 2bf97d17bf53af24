package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Terminal colors. Adaptive so reasoning stays readable on light and dark
// backgrounds.
var (
	ReasoningColor = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	HeaderColor    = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}
	ErrorColor     = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"}
)

var (
	reasoningStyle = lipgloss.NewStyle().
			Foreground(ReasoningColor).
			Italic(true).
			PaddingLeft(2)

	headerStyle = lipgloss.NewStyle().
			Foreground(HeaderColor).
			Bold(true)

	// fragmentStyle has no padding so pieces of one span can be styled
	// separately.
	fragmentStyle = lipgloss.NewStyle().
			Foreground(ReasoningColor).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)
)

// Terminal renders raw for a terminal. Closed reasoning spans are shown
// dimmed under a header when showReasoning is set and omitted otherwise. An
// open span always produces at least a one-line indicator so the user can
// tell the model is still thinking.
func Terminal(raw string, showReasoning bool) string {
	var b strings.Builder
	for _, s := range Parse(raw) {
		switch s.Kind {
		case KindAnswer:
			b.WriteString(s.Text)
		case KindReasoning:
			if !showReasoning {
				if s.Open {
					b.WriteString(headerStyle.Render("[" + openSummary + "]"))
					b.WriteString("\n")
				}
				continue
			}
			summary := closedSummary
			if s.Open {
				summary = openSummary
			}
			b.WriteString(headerStyle.Render("[" + summary + "]"))
			b.WriteString("\n")
			if body := strings.TrimSpace(s.Text); body != "" {
				b.WriteString(reasoningStyle.Render(body))
				b.WriteString("\n")
			}
			if !s.Open {
				b.WriteString(headerStyle.Render("[/" + summary + "]"))
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

// Error renders a turn-level failure message.
func Error(msg string) string {
	return errorStyle.Render("Error: " + msg)
}
