package index

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// generationCounter issues process-unique snapshot generations. It only ever
// moves forward; a restored snapshot bumps it past the restored generation.
var generationCounter atomic.Uint64

func nextGeneration() uint64 {
	return generationCounter.Add(1)
}

func observeGeneration(g uint64) {
	for {
		cur := generationCounter.Load()
		if cur >= g || generationCounter.CompareAndSwap(cur, g) {
			return
		}
	}
}

// Snapshot is one sealed, immutable index state. All read paths (ranking,
// stats, serialization) work against a Snapshot; a rebuild produces a new
// generation and never touches a published one. Derived values such as IDF
// are cached on the snapshot itself so concurrent rebuilds cannot corrupt
// in-flight queries.
type Snapshot struct {
	generation uint64
	builtAt    time.Time

	postings map[string]PostingList
	stats    map[int64]DocStats
	meta     map[int64]DocMeta

	docCount       int
	avgDocLen      float64
	maxSourceScore int

	idfCache sync.Map // term -> float64
}

// Generation returns the snapshot's generation id.
func (s *Snapshot) Generation() uint64 { return s.generation }

// BuiltAt returns when the snapshot was sealed.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// DocCount returns the number of indexed documents.
func (s *Snapshot) DocCount() int { return s.docCount }

// AvgDocLength returns the average unweighted title+body token count.
func (s *Snapshot) AvgDocLength() float64 { return s.avgDocLen }

// TermCount returns the number of distinct terms in the index.
func (s *Snapshot) TermCount() int { return len(s.postings) }

// MaxSourceScore returns the highest source score across indexed documents,
// used to bound score estimates during early termination.
func (s *Snapshot) MaxSourceScore() int { return s.maxSourceScore }

// Postings returns the posting list for term, or nil when the term is not
// indexed. The returned slice must not be mutated.
func (s *Snapshot) Postings(term string) PostingList {
	return s.postings[term]
}

// Stats returns the per-field token counts for a document.
func (s *Snapshot) Stats(docID int64) (DocStats, bool) {
	st, ok := s.stats[docID]
	return st, ok
}

// Meta returns the scoring metadata for a document.
func (s *Snapshot) Meta(docID int64) (DocMeta, bool) {
	m, ok := s.meta[docID]
	return m, ok
}

// IDF returns the inverse document frequency of term under this snapshot's
// corpus statistics, floored at zero. Values are computed once per term per
// generation.
func (s *Snapshot) IDF(term string) float64 {
	if v, ok := s.idfCache.Load(term); ok {
		return v.(float64)
	}
	df := s.postings[term].DocFreq()
	idf := 0.0
	if df > 0 && s.docCount > 0 {
		n := float64(s.docCount)
		idf = math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1)
		if idf < 0 {
			idf = 0
		}
	}
	s.idfCache.Store(term, idf)
	return idf
}

// Terms returns every indexed term in lexicographic order. Intended for
// serialization and tests, not the query path.
func (s *Snapshot) Terms() []string {
	terms := make([]string, 0, len(s.postings))
	for t := range s.postings {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

// DocIDs returns every indexed document id in ascending order.
func (s *Snapshot) DocIDs() []int64 {
	ids := make([]int64, 0, len(s.stats))
	for id := range s.stats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
