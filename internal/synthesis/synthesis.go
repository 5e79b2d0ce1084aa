// Package synthesis assembles a structured, citation-backed answer from
// retrieved Q&A content without any generative model. Prose is segmented
// into sentences, classified into Steps, Key Concepts, or Additional
// Details by a fixed rule priority, deduplicated, and capped; code regions
// are carried verbatim with a heuristic language tag.
package synthesis

import (
	"html"
	"regexp"
	"strings"

	"github.com/stackseek/stackseek/internal/textproc"
)

// Source is one retrieved document's content, in rank order: the question
// body first, then its best answers.
type Source struct {
	DocID  int64
	Title  string
	Link   string
	Bodies []string
}

// CodeExample is a verbatim code fragment with its detected language.
type CodeExample struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// Citation points at one source document that contributed retained content.
type Citation struct {
	DocID int64  `json:"doc_id"`
	Title string `json:"title,omitempty"`
	Link  string `json:"link"`
}

// Answer is the synthesized result. Empty buckets are omitted from JSON;
// LowConfidence marks answers where extraction found too little structure.
type Answer struct {
	Steps         []string      `json:"steps,omitempty"`
	Concepts      []string      `json:"concepts,omitempty"`
	CodeExamples  []CodeExample `json:"code_examples,omitempty"`
	Details       []string      `json:"details,omitempty"`
	Citations     []Citation    `json:"citations"`
	LowConfidence bool          `json:"low_confidence,omitempty"`
}

// Options caps the answer's sections. Zero fields fall back to defaults.
type Options struct {
	MaxSteps        int
	MaxConcepts     int
	MaxDetails      int
	MaxCodeExamples int
	MinSentenceLen  int
}

// DefaultOptions returns the standard section caps.
func DefaultOptions() Options {
	return Options{
		MaxSteps:        6,
		MaxConcepts:     4,
		MaxDetails:      4,
		MaxCodeExamples: 3,
		MinSentenceLen:  5,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxSteps == 0 {
		o.MaxSteps = d.MaxSteps
	}
	if o.MaxConcepts == 0 {
		o.MaxConcepts = d.MaxConcepts
	}
	if o.MaxDetails == 0 {
		o.MaxDetails = d.MaxDetails
	}
	if o.MaxCodeExamples == 0 {
		o.MaxCodeExamples = d.MaxCodeExamples
	}
	if o.MinSentenceLen == 0 {
		o.MinSentenceLen = d.MinSentenceLen
	}
	return o
}

type bucket int

const (
	bucketSteps bucket = iota
	bucketConcepts
	bucketDetails
)

var (
	numberedRe = regexp.MustCompile(`^\s*\d+[.)]\s`)
	markupRe   = regexp.MustCompile(`<[^>]*>?`)
)

var stepPrefixes = []string{
	"first", "second", "third", "then", "next", "finally", "afterwards",
	"step", "use ", "add ", "create ", "run ", "install ", "set ", "call ",
	"try ", "make sure", "ensure ", "import ", "declare ", "wrap ",
	"override ", "configure ", "update ", "remove ", "replace ", "check ",
	"you need to", "you should", "you can use", "you must", "you have to",
}

var conceptMarkers = []string{
	" is a ", " is an ", " is the ", " are a ", " refers to ", " means ",
	" stands for ", " represents ", " describes ",
}

// Synthesize builds a structured answer for the query from the sources, in
// rank order. It never fails: if nothing survives extraction it returns a
// low-confidence note plus the original citations.
func Synthesize(query string, sources []Source, opts Options) Answer {
	opts = opts.withDefaults()

	var answer Answer
	kept := map[bucket][][]string{} // normalized forms of kept sentences
	contributed := make(map[int64]bool, len(sources))

	for _, src := range sources {
		for _, body := range src.Bodies {
			if collectBody(&answer, body, opts, kept) {
				contributed[src.DocID] = true
			}
		}
	}

	for _, src := range sources {
		if contributed[src.DocID] {
			answer.Citations = append(answer.Citations, Citation{
				DocID: src.DocID,
				Title: src.Title,
				Link:  src.Link,
			})
		}
	}

	if len(answer.Steps) == 0 && len(answer.Concepts) == 0 &&
		len(answer.Details) == 0 && len(answer.CodeExamples) == 0 {
		answer.LowConfidence = true
		answer.Details = []string{
			"The retrieved sources did not contain enough structured content for a synthesized answer; " +
				"please consult the cited discussions directly.",
		}
		answer.Citations = answer.Citations[:0]
		for _, src := range sources {
			answer.Citations = append(answer.Citations, Citation{
				DocID: src.DocID,
				Title: src.Title,
				Link:  src.Link,
			})
		}
	}
	return answer
}

// collectBody extracts code and sentences from one content block and folds
// them into the answer. Reports whether anything was retained, or matched
// content already kept: a near-duplicate corroborates a retained sentence,
// so its source is still cited.
func collectBody(answer *Answer, body string, opts Options, kept map[bucket][][]string) bool {
	retained := false

	for _, region := range textproc.ExtractCodeRegions(body) {
		if len(answer.CodeExamples) >= opts.MaxCodeExamples {
			break
		}
		code := strings.TrimRight(html.UnescapeString(region), "\n ")
		if strings.TrimSpace(code) == "" {
			continue
		}
		if isDuplicateCode(answer.CodeExamples, code) {
			retained = true
			continue
		}
		answer.CodeExamples = append(answer.CodeExamples, CodeExample{
			Language: detectLanguage(code),
			Code:     code,
		})
		retained = true
	}

	for _, sentence := range splitSentences(stripProse(body)) {
		if tokenCount(sentence) < opts.MinSentenceLen {
			continue
		}
		b := classify(sentence)
		norm := normalizeSentence(sentence)
		if isDuplicate(kept[b], norm) {
			retained = true
			continue
		}
		if bucketFull(answer, b, opts) {
			continue
		}
		kept[b] = append(kept[b], norm)
		switch b {
		case bucketSteps:
			answer.Steps = append(answer.Steps, sentence)
		case bucketConcepts:
			answer.Concepts = append(answer.Concepts, sentence)
		default:
			answer.Details = append(answer.Details, sentence)
		}
		retained = true
	}
	return retained
}

// stripProse removes code regions and markup from a content block, leaving
// plain prose for segmentation.
func stripProse(body string) string {
	prose := body
	for _, region := range textproc.ExtractCodeRegions(body) {
		prose = strings.Replace(prose, region, " ", 1)
	}
	prose = markupRe.ReplaceAllString(prose, " ")
	prose = html.UnescapeString(prose)
	return strings.Join(strings.Fields(prose), " ")
}

// classify assigns a sentence to exactly one bucket. Step markers win over
// concept markers; everything else is a detail.
func classify(sentence string) bucket {
	lower := strings.ToLower(sentence)
	if numberedRe.MatchString(sentence) {
		return bucketSteps
	}
	for _, prefix := range stepPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return bucketSteps
		}
	}
	for _, marker := range conceptMarkers {
		if strings.Contains(lower, marker) {
			return bucketConcepts
		}
	}
	return bucketDetails
}

func bucketFull(answer *Answer, b bucket, opts Options) bool {
	switch b {
	case bucketSteps:
		return len(answer.Steps) >= opts.MaxSteps
	case bucketConcepts:
		return len(answer.Concepts) >= opts.MaxConcepts
	default:
		return len(answer.Details) >= opts.MaxDetails
	}
}

// dedupThreshold is the token-overlap similarity above which a sentence is
// considered a near-duplicate of one already kept.
const dedupThreshold = 0.8

func isDuplicate(kept [][]string, norm []string) bool {
	for _, k := range kept {
		if similarity(k, norm) >= dedupThreshold {
			return true
		}
	}
	return false
}

func isDuplicateCode(kept []CodeExample, code string) bool {
	trimmed := strings.TrimSpace(code)
	for _, k := range kept {
		if strings.TrimSpace(k.Code) == trimmed {
			return true
		}
	}
	return false
}
