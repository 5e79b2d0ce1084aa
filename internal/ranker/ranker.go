// Package ranker scores index snapshots against processed queries with a
// field-aware BM25 variant. Term frequency is weighted per field (title
// boost, code boost for query code keywords) while length normalization and
// IDF stay on unweighted counts, so the boost parameters never leak into
// avgdl or document frequency. On top of BM25 it adds bounded, monotonic
// source-score and recency boosts, then filters by tag and quality
// threshold.
package ranker

import (
	"math"
	"sort"
	"time"

	"github.com/stackseek/stackseek/internal/document"
	"github.com/stackseek/stackseek/internal/index"
	apperrors "github.com/stackseek/stackseek/pkg/errors"
)

// Query is a processed query: stemmed prose terms plus the code keywords
// extracted from any code fragments the user pasted.
type Query struct {
	Terms     []string
	CodeTerms map[string]struct{}
}

// Options carries the scoring parameters. DefaultOptions returns the tuned
// values; zero fields on a caller-built Options are replaced with them.
type Options struct {
	TagFilter       string
	MinScore        float64
	TitleBoost      float64
	CodeBoost       float64
	K1              float64
	B               float64
	RecencyHalfLife time.Duration
	RecencyWeight   float64
	Limit           int

	// Now anchors the recency boost; zero means time.Now. Tests pin it.
	Now time.Time
}

// DefaultOptions returns the standard scoring parameters.
func DefaultOptions() Options {
	return Options{
		MinScore:        20.0,
		TitleBoost:      5.0,
		CodeBoost:       2.0,
		K1:              1.5,
		B:               0.75,
		RecencyHalfLife: 365 * 24 * time.Hour,
		RecencyWeight:   2.0,
		Limit:           10,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinScore == 0 {
		o.MinScore = d.MinScore
	}
	if o.TitleBoost == 0 {
		o.TitleBoost = d.TitleBoost
	}
	if o.CodeBoost == 0 {
		o.CodeBoost = d.CodeBoost
	}
	if o.K1 == 0 {
		o.K1 = d.K1
	}
	if o.B == 0 {
		o.B = d.B
	}
	if o.RecencyHalfLife == 0 {
		o.RecencyHalfLife = d.RecencyHalfLife
	}
	if o.RecencyWeight == 0 {
		o.RecencyWeight = d.RecencyWeight
	}
	if o.Limit == 0 {
		o.Limit = d.Limit
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	return o
}

// SearchResult is one ranked document. Ephemeral, per query.
type SearchResult struct {
	DocID         int64            `json:"doc_id"`
	BM25Score     float64          `json:"bm25_score"`
	BoostedScore  float64          `json:"boosted_score"`
	SourceScore   int              `json:"source_score"`
	MatchedFields []document.Field `json:"matched_fields"`
}

// Rank scores every candidate document for the query against the snapshot
// and returns at most opts.Limit results ordered by boosted score (ties:
// source score descending, then document id ascending). Query terms absent
// from the index contribute zero. The matched flag reports whether any
// document contained at least one query term, letting the caller tell a
// true miss from candidates that all fell below the quality threshold. An
// empty result is a signal for the caller's live-search fallback, never an
// error; the only error is a nil snapshot.
func Rank(snap *index.Snapshot, q Query, opts Options) (results []SearchResult, matched bool, err error) {
	if snap == nil {
		return nil, false, apperrors.ErrIndexUnavailable
	}
	opts = opts.withDefaults()

	terms := distinct(q.Terms)
	if len(terms) == 0 || snap.DocCount() == 0 {
		return nil, false, nil
	}

	// Upper bound on any document's boosted score: per term the BM25
	// saturation keeps idf*wtf*(k1+1)/(wtf+K) below idf*(k1+1), and both
	// boosts are bounded. If even that cannot reach the quality threshold,
	// no candidate can survive.
	upperBound := 0.0
	for _, t := range terms {
		upperBound += snap.IDF(t) * (opts.K1 + 1)
	}
	upperBound += math.Log(1+float64(snap.MaxSourceScore())) + opts.RecencyWeight
	if upperBound < opts.MinScore {
		for _, t := range terms {
			if len(snap.Postings(t)) > 0 {
				matched = true
				break
			}
		}
		return nil, matched, nil
	}

	type accum struct {
		bm25   float64
		fields uint8
	}
	scores := make(map[int64]*accum)

	for _, term := range terms {
		postings := snap.Postings(term)
		if len(postings) == 0 {
			continue
		}
		idf := snap.IDF(term)
		codeWeight := 1.0
		if _, ok := q.CodeTerms[term]; ok {
			codeWeight = opts.CodeBoost
		}

		// Postings are ordered by docID; fields of one document are
		// adjacent, so weighted tf folds in one pass.
		i := 0
		for i < len(postings) {
			docID := postings[i].DocID
			wtf := 0.0
			var fields uint8
			for i < len(postings) && postings[i].DocID == docID {
				p := postings[i]
				// Tag postings mark the matched field but never score;
				// term frequency covers title, body, and code only.
				switch p.Field {
				case document.FieldTitle:
					wtf += opts.TitleBoost * float64(p.Frequency)
				case document.FieldBody:
					wtf += float64(p.Frequency)
				case document.FieldCode:
					wtf += codeWeight * float64(p.Frequency)
				}
				fields |= 1 << p.Field
				i++
			}
			if wtf == 0 {
				continue
			}
			stats, ok := snap.Stats(docID)
			if !ok {
				continue
			}
			norm := opts.K1 * (1 - opts.B + opts.B*float64(stats.Length())/snap.AvgDocLength())
			contribution := idf * wtf * (opts.K1 + 1) / (wtf + norm)

			a := scores[docID]
			if a == nil {
				a = &accum{}
				scores[docID] = a
			}
			a.bm25 += contribution
			a.fields |= fields
		}
	}

	// Candidates in ascending docID order keeps the scan deterministic so
	// the early-termination cut is reproducible.
	candidates := make([]int64, 0, len(scores))
	for docID := range scores {
		candidates = append(candidates, docID)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

	top := topK{limit: opts.Limit}
	for _, docID := range candidates {
		if top.full() && top.worst() >= upperBound {
			// No unexamined candidate can beat the kept set.
			break
		}
		meta, ok := snap.Meta(docID)
		if !ok {
			continue
		}
		if opts.TagFilter != "" && !meta.HasTag(opts.TagFilter) {
			continue
		}
		a := scores[docID]
		boosted := a.bm25 + scoreBoost(meta.SourceScore) + recencyBoost(opts.Now, meta.CreatedAt, opts.RecencyHalfLife, opts.RecencyWeight)
		if boosted < opts.MinScore {
			continue
		}
		top.insert(SearchResult{
			DocID:         docID,
			BM25Score:     a.bm25,
			BoostedScore:  boosted,
			SourceScore:   meta.SourceScore,
			MatchedFields: unpackFields(a.fields),
		})
	}
	return top.results, len(scores) > 0, nil
}

// scoreBoost is the additive community-score boost: bounded growth,
// monotone in the source score, zero for non-positive scores.
func scoreBoost(sourceScore int) float64 {
	if sourceScore <= 0 {
		return 0
	}
	return math.Log(1 + float64(sourceScore))
}

// recencyBoost decays the weight by half per halfLife of document age.
func recencyBoost(now, createdAt time.Time, halfLife time.Duration, weight float64) float64 {
	if createdAt.IsZero() || halfLife <= 0 {
		return 0
	}
	age := now.Sub(createdAt)
	if age < 0 {
		age = 0
	}
	return weight * math.Exp2(-float64(age)/float64(halfLife))
}

func distinct(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func unpackFields(mask uint8) []document.Field {
	fields := make([]document.Field, 0, 4)
	for _, f := range []document.Field{document.FieldTitle, document.FieldBody, document.FieldCode, document.FieldTag} {
		if mask&(1<<f) != 0 {
			fields = append(fields, f)
		}
	}
	return fields
}

// topK keeps the best limit results in final order: boosted score
// descending, source score descending, document id ascending.
type topK struct {
	limit   int
	results []SearchResult
}

func (t *topK) full() bool {
	return t.limit > 0 && len(t.results) >= t.limit
}

func (t *topK) worst() float64 {
	if len(t.results) == 0 {
		return math.Inf(-1)
	}
	return t.results[len(t.results)-1].BoostedScore
}

func (t *topK) insert(r SearchResult) {
	pos := sort.Search(len(t.results), func(i int) bool {
		return resultLess(r, t.results[i])
	})
	if t.limit > 0 && pos >= t.limit {
		return
	}
	t.results = append(t.results, SearchResult{})
	copy(t.results[pos+1:], t.results[pos:])
	t.results[pos] = r
	if t.limit > 0 && len(t.results) > t.limit {
		t.results = t.results[:t.limit]
	}
}

func resultLess(a, b SearchResult) bool {
	if a.BoostedScore != b.BoostedScore {
		return a.BoostedScore > b.BoostedScore
	}
	if a.SourceScore != b.SourceScore {
		return a.SourceScore > b.SourceScore
	}
	return a.DocID < b.DocID
}
