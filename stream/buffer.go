// Package stream reassembles server-sent event frames from a chunked
// response body.
//
// The transport may split or coalesce the body arbitrarily. Buffer carries the
// unterminated tail between reads so that frame boundaries never depend on
// where the network happened to cut the bytes.
package stream

import "strings"

const (
	// Delimiter separates frames.
	Delimiter = "\n\n"
	// DataPrefix marks frames that carry a payload. Other frames are dropped.
	DataPrefix = "data:"
	// DoneSentinel is the payload that ends a stream.
	DoneSentinel = "[DONE]"
)

// Buffer accumulates raw fragments and hands back complete frames.
// The pending tail never contains Delimiter.
type Buffer struct {
	pending string
}

// Feed appends fragment and returns every frame it completes, in order.
func (b *Buffer) Feed(fragment string) []string {
	if fragment == "" {
		return nil
	}
	b.pending += fragment
	parts := strings.Split(b.pending, Delimiter)
	b.pending = parts[len(parts)-1]
	return parts[:len(parts)-1]
}

// Pending returns the unterminated tail.
func (b *Buffer) Pending() string {
	return b.pending
}

// Flush returns the pending tail and empties the buffer.
func (b *Buffer) Flush() string {
	tail := b.pending
	b.pending = ""
	return tail
}

// Payload extracts the payload of a data frame. ok is false for frames
// without the data prefix.
func Payload(frame string) (payload string, ok bool) {
	line := strings.TrimSpace(frame)
	if !strings.HasPrefix(line, DataPrefix) {
		return "", false
	}
	return strings.TrimSpace(line[len(DataPrefix):]), true
}
