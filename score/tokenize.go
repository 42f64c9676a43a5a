package score

import (
	"sort"
	"strings"
)

// Tokenize splits text into scoring terms: lowercased ASCII alnum runs of
// length >= 2 (embedded _-.' allowed), and CJK spans expanded into
// overlapping bigrams (a single character when the span has length 1).
// Stopwords are dropped only for tokens of length >= 2; single-character
// tokens are always kept.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)

	var tokens []string
	var run []rune
	var span []rune

	flushRun := func() {
		if len(run) == 0 {
			return
		}
		tok := strings.Trim(string(run), "_-.'")
		run = run[:0]
		if len(tok) < 2 {
			return
		}
		if _, stop := stopwords[tok]; stop {
			return
		}
		tokens = append(tokens, tok)
	}

	flushSpan := func() {
		if len(span) == 0 {
			return
		}
		if len(span) == 1 {
			tokens = append(tokens, string(span))
		} else {
			for i := 0; i+1 < len(span); i++ {
				bi := string(span[i : i+2])
				if _, stop := stopwords[bi]; !stop {
					tokens = append(tokens, bi)
				}
			}
		}
		span = span[:0]
	}

	for _, r := range lower {
		switch {
		case isCJKLetter(r):
			flushRun()
			span = append(span, r)
		case isTokenRune(r):
			flushSpan()
			run = append(run, r)
		default:
			flushRun()
			flushSpan()
		}
	}
	flushRun()
	flushSpan()

	return tokens
}

// NormalizeText lowercases and collapses all whitespace runs to single
// spaces; used for verbatim phrase matching.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// TopKeywords returns the n highest-frequency tokens of text, ties broken
// lexicographically for a deterministic result.
func TopKeywords(text string, n int) []string {
	if n <= 0 {
		return nil
	}
	freq := make(map[string]int)
	for _, tok := range Tokenize(text) {
		freq[tok]++
	}
	keys := make([]string, 0, len(freq))
	for k := range freq {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if freq[keys[i]] != freq[keys[j]] {
			return freq[keys[i]] > freq[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

// isTokenRune reports whether r can be part of an ASCII token run.
func isTokenRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-' || r == '.' || r == '\'':
		return true
	}
	return false
}

// isCJKLetter reports whether r is a CJK letter for bigram splitting.
// Fullwidth punctuation is treated as a separator, not a letter.
func isCJKLetter(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || // CJK Unified Ideographs
		(r >= 0x3400 && r <= 0x4DBF) || // CJK Extension A
		(r >= 0x20000 && r <= 0x2A6DF) || // CJK Extension B
		(r >= 0xF900 && r <= 0xFAFF) || // CJK Compatibility Ideographs
		(r >= 0x3040 && r <= 0x309F) || // Hiragana
		(r >= 0x30A0 && r <= 0x30FF) || // Katakana
		(r >= 0xAC00 && r <= 0xD7AF) // Hangul Syllables
}

// stopwords is the fixed filter set for tokens of length >= 2.
var stopwords = map[string]struct{}{
	// English
	"an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "had": {}, "has": {},
	"have": {}, "he": {}, "her": {}, "his": {}, "how": {}, "if": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "me": {}, "my": {}, "no": {},
	"not": {}, "of": {}, "on": {}, "or": {}, "our": {}, "she": {}, "so": {},
	"that": {}, "the": {}, "their": {}, "them": {}, "they": {}, "this": {},
	"to": {}, "was": {}, "we": {}, "were": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "who": {}, "why": {}, "will": {}, "with": {},
	"you": {}, "your": {},
	// Chinese bigrams
	"我们": {}, "你们": {}, "他们": {}, "这个": {}, "那个": {}, "什么": {},
	"怎么": {}, "可以": {}, "因为": {}, "所以": {}, "但是": {}, "就是": {},
	"没有": {}, "一个": {}, "不是": {}, "还是": {},
}
