package synthesis

import (
	"strings"
	"unicode"
)

// abbreviations that a sentence splitter must not treat as terminators.
// Compared case-insensitively against the word preceding the period.
var abbreviations = map[string]struct{}{
	"e.g": {}, "i.e": {}, "etc": {}, "vs": {}, "cf": {},
	"approx": {}, "dr": {}, "mr": {}, "mrs": {}, "ms": {},
	"no": {}, "fig": {}, "st": {}, "inc": {}, "ltd": {},
}

// splitSentences segments prose on sentence-terminal punctuation, keeping
// abbreviations, decimals, and version numbers intact. Fragments are
// trimmed; empty ones are dropped.
func splitSentences(prose string) []string {
	var sentences []string
	runes := []rune(prose)
	start := 0

	flush := func(end int) {
		s := strings.TrimSpace(string(runes[start:end]))
		s = strings.TrimRight(s, ".!?")
		if s != "" {
			sentences = append(sentences, s)
		}
		start = end
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if r == '.' {
			// Inside a number or dotted identifier (3.14, node.js).
			if i+1 < len(runes) && (unicode.IsDigit(runes[i+1]) || unicode.IsLetter(runes[i+1])) {
				continue
			}
			if _, ok := abbreviations[strings.ToLower(lastWord(runes, i))]; ok {
				continue
			}
		}
		flush(i + 1)
	}
	flush(len(runes))
	return sentences
}

// lastWord returns the run of letters and dots immediately before runes[i].
func lastWord(runes []rune, i int) string {
	j := i
	for j > 0 {
		r := runes[j-1]
		if !unicode.IsLetter(r) && r != '.' {
			break
		}
		j--
	}
	return strings.TrimSuffix(string(runes[j:i]), ".")
}

// tokenCount counts whitespace-separated words.
func tokenCount(s string) int {
	return len(strings.Fields(s))
}

// normalizeSentence lowers and strips a sentence to its word tokens for
// near-duplicate comparison.
func normalizeSentence(s string) []string {
	var tokens []string
	var cur strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
			continue
		}
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// similarity is the token-set Jaccard overlap of two normalized sentences.
func similarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	inter := 0
	union := len(set)
	seen := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}
