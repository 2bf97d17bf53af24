package render

import "strings"

// Placeholder is returned instead of an empty container.
const Placeholder = "&nbsp;"

const (
	openSummary   = "Thinking…"
	closedSummary = "Reasoning"
)

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// Escape escapes &, <, > and " for embedding in HTML.
func Escape(s string) string {
	return escaper.Replace(s)
}

// HTML renders raw assistant text as markup. Answer text is escaped and
// passed through; each reasoning span becomes a <details> block, expanded
// while its closing tag is still missing.
func HTML(raw string) string {
	var b strings.Builder
	for _, s := range Parse(raw) {
		switch s.Kind {
		case KindAnswer:
			b.WriteString(Escape(s.Text))
		case KindReasoning:
			if s.Open {
				b.WriteString(`<details class="details-think" open><summary>`)
				b.WriteString(openSummary)
			} else {
				b.WriteString(`<details class="details-think"><summary>`)
				b.WriteString(closedSummary)
			}
			b.WriteString("</summary><pre>")
			b.WriteString(Escape(s.Text))
			b.WriteString("</pre></details>")
		}
	}
	if b.Len() == 0 {
		return Placeholder
	}
	return b.String()
}
