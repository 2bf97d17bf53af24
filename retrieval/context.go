package retrieval

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// BasePrompt is the system instruction sent with every turn.
const BasePrompt = "You are a helpful assistant. Answer using the provided context. " +
	"If the context does not contain the answer, say you do not know. " +
	"Keep responses concise and cite sources by their bracketed ids."

// NoSourcesPlaceholder stands in for the context when retrieval ran but
// found nothing.
const NoSourcesPlaceholder = "(No relevant sources found.)"

var citationHeader = regexp.MustCompile(`(?m)^\[(\d+)\] Source: `)

// BuildContext lays out chunks as numbered, source-labelled blocks.
func BuildContext(chunks []Chunk) string {
	var b strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&b, "[%d] Source: %s\n%s\n\n", i+1, c.Source, c.Text)
	}
	return strings.TrimSpace(b.String())
}

// ParseCitations returns the block numbers of a context built by
// BuildContext, in order.
func ParseCitations(context string) []int {
	var ids []int
	for _, m := range citationHeader.FindAllStringSubmatch(context, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		ids = append(ids, n)
	}
	return ids
}

// SystemPrompt returns BasePrompt, followed by a context section when
// retrieval is on.
func SystemPrompt(context string, retrievalOn bool) string {
	if !retrievalOn {
		return BasePrompt
	}
	if context == "" {
		context = NoSourcesPlaceholder
	}
	return BasePrompt + "\n\nContext:\n" + context
}
