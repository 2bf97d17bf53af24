package render

import (
	"io"
	"strings"
)

// Writer prints a growing assistant text to a scrolling terminal. Each call
// to Update writes only what was added since the previous call, so nothing
// already printed has to change.
//
// A trailing fragment that could still become <think> or </think> is held
// back until the next Update or Flush.
type Writer struct {
	w             io.Writer
	showReasoning bool
	segs          []segState
	err           error
}

type segState struct {
	written int
	closed  bool
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer, showReasoning bool) *Writer {
	return &Writer{w: w, showReasoning: showReasoning}
}

// Update writes the part of raw not yet printed.
func (sw *Writer) Update(raw string) error {
	return sw.write(raw[:len(raw)-pendingTag(raw)])
}

// Flush writes everything left of raw, including any held-back fragment,
// and ends the output with a newline.
func (sw *Writer) Flush(raw string) error {
	if err := sw.write(raw); err != nil {
		return err
	}
	sw.emit("\n")
	return sw.err
}

func (sw *Writer) write(raw string) error {
	for i, s := range Parse(raw) {
		if i == len(sw.segs) {
			sw.segs = append(sw.segs, segState{})
			if s.Kind == KindReasoning {
				sw.emit(headerStyle.Render("[" + openSummary + "]"))
				sw.emit("\n")
			}
		}
		st := &sw.segs[i]
		if len(s.Text) > st.written {
			sw.text(s.Kind, s.Text[st.written:])
			st.written = len(s.Text)
		}
		if s.Kind == KindReasoning && !s.Open && !st.closed {
			st.closed = true
			if sw.showReasoning {
				sw.emit("\n")
				sw.emit(headerStyle.Render("[/" + closedSummary + "]"))
				sw.emit("\n")
			}
		}
	}
	return sw.err
}

func (sw *Writer) text(kind Kind, s string) {
	switch kind {
	case KindAnswer:
		sw.emit(s)
	case KindReasoning:
		if sw.showReasoning {
			sw.emit(fragmentStyle.Render(s))
		}
	}
}

func (sw *Writer) emit(s string) {
	if sw.err != nil || s == "" {
		return
	}
	_, sw.err = io.WriteString(sw.w, s)
}

// pendingTag returns the length of the longest suffix of raw that is a
// proper prefix of either tag.
func pendingTag(raw string) int {
	for n := len(closeTag) - 1; n > 0; n-- {
		if n > len(raw) {
			continue
		}
		suffix := raw[len(raw)-n:]
		if (n < len(openTag) && strings.HasPrefix(openTag, suffix)) || strings.HasPrefix(closeTag, suffix) {
			return n
		}
	}
	return 0
}
