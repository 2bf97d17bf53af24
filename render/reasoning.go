// Package render turns raw assistant text into display markup.
//
// Assistant output may contain reasoning spans delimited by <think> and
// </think>. The stream can stop anywhere, including inside a reasoning span,
// so every function here is a pure function of the full accumulated text and
// is simply re-run on each update.
package render

import "strings"

const (
	openTag  = "<think>"
	closeTag = "</think>"
)

// Kind classifies a segment of assistant output.
type Kind int

const (
	// KindAnswer is ordinary answer text.
	KindAnswer Kind = iota
	// KindReasoning is text between <think> and </think>.
	KindReasoning
)

func (k Kind) String() string {
	switch k {
	case KindAnswer:
		return "answer"
	case KindReasoning:
		return "reasoning"
	default:
		return "unknown"
	}
}

// Segment is one contiguous span of assistant output.
// Open is set on a reasoning span whose closing tag has not arrived yet.
type Segment struct {
	Kind Kind
	Text string
	Open bool
}

// Parse splits raw into answer and reasoning segments in order.
// At most one unterminated reasoning span is produced, and it is always last.
func Parse(raw string) []Segment {
	var segs []Segment
	pos := 0
	for pos < len(raw) {
		start := strings.Index(raw[pos:], openTag)
		if start < 0 {
			segs = appendAnswer(segs, raw[pos:])
			break
		}
		start += pos
		segs = appendAnswer(segs, raw[pos:start])

		body := start + len(openTag)
		end := strings.Index(raw[body:], closeTag)
		if end < 0 {
			segs = append(segs, Segment{Kind: KindReasoning, Text: raw[body:], Open: true})
			break
		}
		end += body
		segs = append(segs, Segment{Kind: KindReasoning, Text: raw[body:end]})
		pos = end + len(closeTag)
	}
	return segs
}

func appendAnswer(segs []Segment, text string) []Segment {
	if text == "" {
		return segs
	}
	return append(segs, Segment{Kind: KindAnswer, Text: text})
}

// Answer returns raw with every reasoning span removed.
func Answer(raw string) string {
	var b strings.Builder
	for _, s := range Parse(raw) {
		if s.Kind == KindAnswer {
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

// Reasoning reports whether raw currently ends inside an unterminated
// reasoning span.
func Reasoning(raw string) bool {
	segs := Parse(raw)
	return len(segs) > 0 && segs[len(segs)-1].Open
}
