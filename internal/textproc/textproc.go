// Package textproc normalizes raw Q&A content into stemmed, position-tagged
// tokens plus verbatim code fragments. The pipeline is fixed: code regions
// are extracted first, remaining markup is stripped best-effort, prose is
// lowercased, tokenized on non-alphanumeric boundaries, stopword-filtered,
// and stemmed. Processing is total: malformed markup never aborts it.
package textproc

import (
	"sort"
	"strings"
	"unicode"

	"github.com/stackseek/stackseek/internal/document"
)

// Token is one normalized term with its position inside the source field.
// Positions increase monotonically per field; stopword removal leaves gaps.
type Token struct {
	Term     string
	Position int
	Field    document.Field
}

// Process runs the full pipeline over raw text and returns prose tokens
// (Field left as FieldBody) followed by code-keyword tokens (FieldCode).
// Callers indexing a specific field should use ProcessField.
func Process(raw string) []Token {
	return ProcessField(raw, document.FieldBody)
}

// ProcessField is Process with the prose tokens tagged as the given field.
// Code-keyword tokens always carry FieldCode and are never stemmed or
// stopword-filtered.
func ProcessField(raw string, field document.Field) []Token {
	if raw == "" {
		return nil
	}
	prose, regions := splitCode(raw)
	prose = markupTagRe.ReplaceAllString(prose, " ")
	prose = strings.ToLower(prose)

	tokens := make([]Token, 0, len(prose)/8)
	pos := 0
	for _, word := range tokenizeProse(prose) {
		p := pos
		pos++
		if IsStopWord(word) {
			continue
		}
		stemmed := Stem(word)
		if stemmed == "" {
			continue
		}
		tokens = append(tokens, Token{Term: stemmed, Position: p, Field: field})
	}

	if len(regions) > 0 {
		keywords := make(map[string]struct{})
		for _, region := range regions {
			codeKeywords(region, keywords)
		}
		for _, term := range sortedTerms(keywords) {
			tokens = append(tokens, Token{Term: term, Position: pos, Field: document.FieldCode})
			pos++
		}
	}
	return tokens
}

// ProcessQuery normalizes a free-text query into prose terms and the set of
// code keywords it mentions, for code-aware scoring.
func ProcessQuery(query string) (terms []Token, codeTerms map[string]struct{}) {
	codeTerms = ExtractCodeKeywords(query)
	for _, t := range ProcessField(query, document.FieldBody) {
		if t.Field == document.FieldCode {
			codeTerms[t.Term] = struct{}{}
			continue
		}
		terms = append(terms, t)
	}
	return terms, codeTerms
}

// TagTerm maps a tag string to its exact-match index term. Tags are treated
// as identifiers: lowercased, never stemmed.
func TagTerm(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// tokenizeProse splits lowercased prose into identifier-preserving words.
// Runs of letters and digits form tokens; '.', '-', '+', and '#' are kept
// when they sit inside or trail an identifier, so node.js, c++, and c# stay
// whole.
func tokenizeProse(s string) []string {
	words := make([]string, 0, len(s)/6)
	var cur strings.Builder
	runes := []rune(s)
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		word := strings.TrimRight(cur.String(), ".-")
		cur.Reset()
		if word != "" {
			words = append(words, word)
		}
	}
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur.WriteRune(r)
		case (r == '.' || r == '-') && cur.Len() > 0 && nextIsAlnum(runes, i):
			cur.WriteRune(r)
		case (r == '+' || r == '#') && cur.Len() > 0:
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return words
}

func nextIsAlnum(runes []rune, i int) bool {
	if i+1 >= len(runes) {
		return false
	}
	r := runes[i+1]
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func sortedTerms(set map[string]struct{}) []string {
	terms := make([]string, 0, len(set))
	for t := range set {
		terms = append(terms, t)
	}
	// Deterministic token order keeps index builds reproducible.
	sort.Strings(terms)
	return terms
}
