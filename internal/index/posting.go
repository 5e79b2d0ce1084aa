// Package index implements the in-memory inverted index: posting lists and
// per-document statistics accumulated by a parallel Builder and sealed into
// immutable Snapshots that concurrent queries share without locking.
package index

import (
	"time"

	"github.com/stackseek/stackseek/internal/document"
)

// Posting records the occurrences of one term in one field of one document.
// Positions are the token offsets within that field, in increasing order.
type Posting struct {
	DocID     int64          `json:"doc_id"`
	Field     document.Field `json:"field"`
	Frequency int            `json:"frequency"`
	Positions []int          `json:"positions"`
}

// PostingList is the ordered postings of one term, sorted by document ID
// then field so lists from different builds merge cheaply.
type PostingList []Posting

// DocFreq returns the number of distinct documents in the list.
func (pl PostingList) DocFreq() int {
	df := 0
	var last int64 = -1
	for _, p := range pl {
		if p.DocID != last {
			df++
			last = p.DocID
		}
	}
	return df
}

// TermEntry pairs a term with its posting list, used when serializing a
// snapshot term by term.
type TermEntry struct {
	Term     string      `json:"term"`
	Postings PostingList `json:"postings"`
}

// DocStats holds the raw, unweighted token counts of one document per field.
// Length (title+body) feeds BM25 length normalization; LenCode is kept for
// diagnostics and never affects avgdl.
type DocStats struct {
	LenTitle int `json:"len_title"`
	LenBody  int `json:"len_body"`
	LenCode  int `json:"len_code"`
}

// Length is the unweighted title+body token count used for normalization.
func (s DocStats) Length() int {
	return s.LenTitle + s.LenBody
}

// DocMeta carries the per-document metadata the ranker needs for boosting
// and tag filtering without hydrating the document from storage.
type DocMeta struct {
	Kind        document.Kind `json:"kind"`
	SourceScore int           `json:"source_score"`
	CreatedAt   time.Time     `json:"created_at"`
	Tags        []string      `json:"tags,omitempty"`
	ParentID    int64         `json:"parent_id,omitempty"`
}

// HasTag reports whether the document carries the tag (case-insensitive).
func (m DocMeta) HasTag(tag string) bool {
	return document.Meta{Tags: m.Tags}.HasTag(tag)
}
