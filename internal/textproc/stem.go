package textproc

import "strings"

// stemRule is one entry of the suffix-stripping table. A rule fires when the
// word ends in suffix and the rewritten word is at least minLen runes long.
// A rule whose replacement equals its suffix is terminal: matching it stops
// stemming entirely (it protects words like "class" from the "s" rules).
type stemRule struct {
	suffix      string
	replacement string
	minLen      int
}

// stemRules is ordered longest-suffix-first so the most specific rewrite
// wins. Every non-terminal replacement is strictly shorter than its suffix,
// which guarantees the fixpoint loop in Stem terminates.
var stemRules = []stemRule{
	{"ational", "ate", 4},
	{"ization", "ize", 4},
	{"encies", "ence", 4},
	{"tional", "tion", 4},
	{"ancies", "ance", 4},
	{"ation", "ate", 4},
	{"iness", "y", 3},
	{"ments", "ment", 4},
	{"ously", "ous", 4},
	{"ively", "ive", 4},
	{"sses", "ss", 3},
	{"ness", "", 3},
	{"ment", "", 3},
	{"ying", "y", 3},
	{"eed", "ee", 4},
	{"ing", "", 4},
	{"ies", "i", 3},
	{"ity", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ss", "ss", 2},
	{"ed", "", 4},
	{"er", "", 4},
	{"ly", "", 4},
	{"es", "", 3},
	{"s", "", 3},
}

// Stem reduces a word to its stem by applying the rule table top to bottom
// until no rule fires. Because each pass either stops or strictly shortens
// the word, Stem reaches a fixpoint: Stem(Stem(w)) == Stem(w) for all w.
// Identifiers that kept interior punctuation (node.js, utf-8, c++) are
// exact-match terms and are never stemmed.
func Stem(word string) string {
	if strings.ContainsAny(word, ".-+#") {
		return word
	}
	for len(word) >= 3 {
		rewritten, terminal := applyOnce(word)
		if terminal || rewritten == word {
			return word
		}
		word = rewritten
	}
	return word
}

// applyOnce runs one top-to-bottom pass over the rule table. It returns the
// first successful rewrite, or the word unchanged when no rule fires. The
// second return marks a terminal-rule match.
func applyOnce(word string) (string, bool) {
	for _, r := range stemRules {
		if !strings.HasSuffix(word, r.suffix) {
			continue
		}
		if r.suffix == r.replacement {
			return word, true
		}
		candidate := word[:len(word)-len(r.suffix)] + r.replacement
		if len(candidate) >= r.minLen {
			return candidate, false
		}
	}
	return word, false
}
