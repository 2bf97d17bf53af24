// Package keywords turns a free-form question into a short search query.
//
// Extraction is a pure function of the input: two tokenisation passes
// (Han phrases, then Latin words), stop-word filtering, and frequency scoring
// with a length bonus. The same input always yields the same output.
package keywords

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxTokens is the number of keywords returned when the caller passes 0.
const DefaultMaxTokens = 8

// minCandidateLen is measured in runes.
const minCandidateLen = 2

type candidate struct {
	text  string
	count int
	first int
	runes int
}

// Extract returns up to maxTokens keywords from query, best first, joined by
// single spaces. It returns "" when nothing survives filtering.
func Extract(query string, maxTokens int) string {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	ranked := Rank(query)
	if len(ranked) > maxTokens {
		ranked = ranked[:maxTokens]
	}
	return strings.Join(ranked, " ")
}

// Rank returns every surviving candidate of query in score order.
func Rank(query string) []string {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	tokens := hanRuns(query)
	tokens = append(tokens, latinRuns(query)...)

	cands := collect(filter(tokens))
	if len(cands) == 0 {
		cands = collect(filter(hanBigrams(query)))
	}
	if len(cands) == 0 {
		return nil
	}

	sort.SliceStable(cands, func(i, j int) bool {
		si, sj := score(cands[i]), score(cands[j])
		if si != sj {
			return si > sj
		}
		if cands[i].runes != cands[j].runes {
			return cands[i].runes > cands[j].runes
		}
		return cands[i].first < cands[j].first
	})

	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.text
	}
	return out
}

func score(c *candidate) float64 {
	bonus := 1.0
	switch {
	case c.runes >= 6:
		bonus = 2.0
	case c.runes >= 4:
		bonus = 1.5
	}
	return float64(c.count) * bonus
}

// hanRuns returns maximal runs of Han ideographs of at least two runes.
func hanRuns(s string) []string {
	var out []string
	var cur strings.Builder
	n := 0
	flush := func() {
		if n >= minCandidateLen {
			out = append(out, cur.String())
		}
		cur.Reset()
		n = 0
	}
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			cur.WriteRune(r)
			n++
			continue
		}
		flush()
	}
	flush()
	return out
}

// latinRuns returns maximal runs of Latin letters and digits, lower-cased.
// Accented letters belong to the run.
func latinRuns(s string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}
	for _, r := range s {
		if isLatinWordRune(r) {
			cur.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return out
}

func isLatinWordRune(r rune) bool {
	return unicode.Is(unicode.Latin, r) || unicode.IsDigit(r)
}

// hanBigrams joins every Han rune of s that is not itself a stop word and
// returns all overlapping two-rune substrings of the result.
func hanBigrams(s string) []string {
	var han []rune
	for _, r := range s {
		if !unicode.Is(unicode.Han, r) {
			continue
		}
		if IsStopWord(string(r)) {
			continue
		}
		han = append(han, r)
	}
	if len(han) < 2 {
		return nil
	}
	out := make([]string, 0, len(han)-1)
	for i := 0; i+1 < len(han); i++ {
		out = append(out, string(han[i:i+2]))
	}
	return out
}

func filter(tokens []string) []string {
	out := tokens[:0:0]
	for _, t := range tokens {
		if utf8.RuneCountInString(t) < minCandidateLen {
			continue
		}
		if IsStopWord(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func collect(tokens []string) []*candidate {
	index := make(map[string]*candidate, len(tokens))
	var cands []*candidate
	for i, t := range tokens {
		if c, ok := index[t]; ok {
			c.count++
			continue
		}
		c := &candidate{text: t, count: 1, first: i, runes: utf8.RuneCountInString(t)}
		index[t] = c
		cands = append(cands, c)
	}
	return cands
}
