package index

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stackseek/stackseek/internal/document"
	"github.com/stackseek/stackseek/internal/textproc"
)

// Builder turns a lazy document stream into a sealed Snapshot. Documents are
// processed across a worker pool, each worker accumulating into its own
// partial index; partials are merged single-threaded so no index table is
// ever written concurrently.
type Builder struct {
	workers int
	logger  *slog.Logger
}

// NewBuilder creates a Builder with the given worker count. Zero or negative
// means one worker per CPU.
func NewBuilder(workers int) *Builder {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Builder{
		workers: workers,
		logger:  slog.Default().With("component", "index-builder"),
	}
}

// partial is one worker's private slice of the index under construction.
type partial struct {
	postings map[string][]Posting
	stats    map[int64]DocStats
	meta     map[int64]DocMeta
}

func newPartial() *partial {
	return &partial{
		postings: make(map[string][]Posting),
		stats:    make(map[int64]DocStats),
		meta:     make(map[int64]DocMeta),
	}
}

// Build consumes the document stream until it closes (or ctx is cancelled)
// and seals the result into a new Snapshot generation. The stream is
// pull-based: documents are only read as workers become free.
func (b *Builder) Build(ctx context.Context, docs <-chan document.Document) (*Snapshot, error) {
	start := time.Now()
	partials := make([]*partial, b.workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < b.workers; i++ {
		p := newPartial()
		partials[i] = p
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case doc, ok := <-docs:
					if !ok {
						return nil
					}
					p.addDocument(&doc)
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := b.merge(partials)
	b.logger.Info("snapshot built",
		"generation", snap.generation,
		"docs", snap.docCount,
		"terms", len(snap.postings),
		"avgdl", snap.avgDocLen,
		"workers", b.workers,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return snap, nil
}

// addDocument tokenizes every field of doc and folds the result into the
// partial. Title and body run through the full pipeline; tags are indexed as
// exact-match pseudo-tokens, one per tag, never stemmed.
func (p *partial) addDocument(doc *document.Document) {
	type key struct {
		term  string
		field document.Field
	}
	occ := make(map[key][]int)
	var stats DocStats

	for _, ft := range doc.TextByField() {
		switch ft.Field {
		case document.FieldTag:
			term := textproc.TagTerm(ft.Text)
			if term != "" {
				occ[key{term, document.FieldTag}] = append(occ[key{term, document.FieldTag}], 0)
			}
		default:
			for _, tok := range textproc.ProcessField(ft.Text, ft.Field) {
				occ[key{tok.Term, tok.Field}] = append(occ[key{tok.Term, tok.Field}], tok.Position)
				switch tok.Field {
				case document.FieldTitle:
					stats.LenTitle++
				case document.FieldBody:
					stats.LenBody++
				case document.FieldCode:
					stats.LenCode++
				}
			}
		}
	}

	for k, positions := range occ {
		p.postings[k.term] = append(p.postings[k.term], Posting{
			DocID:     doc.ID,
			Field:     k.field,
			Frequency: len(positions),
			Positions: positions,
		})
	}
	p.stats[doc.ID] = stats
	p.meta[doc.ID] = DocMeta{
		Kind:        doc.Kind,
		SourceScore: doc.SourceScore,
		CreatedAt:   doc.CreatedAt,
		Tags:        doc.Tags,
		ParentID:    doc.ParentID,
	}
}

// merge folds the worker partials into one sealed Snapshot. This is the only
// place postings from different workers meet, and it runs on one goroutine.
func (b *Builder) merge(partials []*partial) *Snapshot {
	snap := &Snapshot{
		generation: nextGeneration(),
		builtAt:    time.Now().UTC(),
		postings:   make(map[string]PostingList),
		stats:      make(map[int64]DocStats),
		meta:       make(map[int64]DocMeta),
	}

	totalLen := 0
	for _, p := range partials {
		for term, postings := range p.postings {
			snap.postings[term] = append(snap.postings[term], postings...)
		}
		for id, st := range p.stats {
			snap.stats[id] = st
			totalLen += st.Length()
		}
		for id, m := range p.meta {
			snap.meta[id] = m
			if m.SourceScore > snap.maxSourceScore {
				snap.maxSourceScore = m.SourceScore
			}
		}
	}

	for term, list := range snap.postings {
		sort.Slice(list, func(i, j int) bool {
			if list[i].DocID != list[j].DocID {
				return list[i].DocID < list[j].DocID
			}
			return list[i].Field < list[j].Field
		})
		snap.postings[term] = list
	}

	snap.docCount = len(snap.stats)
	if snap.docCount > 0 {
		snap.avgDocLen = float64(totalLen) / float64(snap.docCount)
	}
	return snap
}

// Assemble reconstructs a Snapshot from previously serialized state. The
// caller supplies exactly what Build produced; nothing is recomputed except
// the max source score, so a round-trip through the snapshot file is
// lossless. The global generation counter is advanced past gen so later
// builds stay monotonic.
func Assemble(
	gen uint64,
	builtAt time.Time,
	postings map[string]PostingList,
	stats map[int64]DocStats,
	meta map[int64]DocMeta,
	avgDocLen float64,
) *Snapshot {
	observeGeneration(gen)
	snap := &Snapshot{
		generation: gen,
		builtAt:    builtAt,
		postings:   postings,
		stats:      stats,
		meta:       meta,
		docCount:   len(stats),
		avgDocLen:  avgDocLen,
	}
	for _, m := range meta {
		if m.SourceScore > snap.maxSourceScore {
			snap.maxSourceScore = m.SourceScore
		}
	}
	return snap
}
