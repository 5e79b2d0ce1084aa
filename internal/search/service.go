// Package search orchestrates a query end to end: tokenize, rank against
// the published index snapshot, hydrate ranked ids from storage, fall back
// to the live API when the local index comes up empty, and optionally
// synthesize a direct answer from the top results.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/stackseek/stackseek/internal/analytics"
	"github.com/stackseek/stackseek/internal/document"
	"github.com/stackseek/stackseek/internal/index"
	"github.com/stackseek/stackseek/internal/index/snapfile"
	"github.com/stackseek/stackseek/internal/ranker"
	"github.com/stackseek/stackseek/internal/stackx"
	"github.com/stackseek/stackseek/internal/storage"
	"github.com/stackseek/stackseek/internal/synthesis"
	"github.com/stackseek/stackseek/internal/textproc"
	"github.com/stackseek/stackseek/pkg/config"
	apperrors "github.com/stackseek/stackseek/pkg/errors"
	"github.com/stackseek/stackseek/pkg/logger"
	"github.com/stackseek/stackseek/pkg/metrics"
	"github.com/stackseek/stackseek/pkg/redis"
	"github.com/stackseek/stackseek/pkg/resilience"
	"github.com/stackseek/stackseek/pkg/tracing"
)

// Outcome classifies a completed search. Only one of these is an HTTP
// error; the rest are ordinary responses the client inspects.
type Outcome string

const (
	// OutcomeMatch means ranked results were returned.
	OutcomeMatch Outcome = "match"
	// OutcomeEmptyQuery means the query was blank or contained no
	// searchable terms after tokenization.
	OutcomeEmptyQuery Outcome = "empty_query"
	// OutcomeNoResults means no indexed document contained any query term.
	OutcomeNoResults Outcome = "no_results"
	// OutcomeBelowThreshold means candidates existed but none scored above
	// the quality threshold.
	OutcomeBelowThreshold Outcome = "below_threshold"
)

// Source says where the results came from.
type Source string

const (
	SourceLocal Source = "local"
	SourceLive  Source = "live"
)

// Request is one search invocation.
type Request struct {
	Query      string `json:"query"`
	Tag        string `json:"tag,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Synthesize bool   `json:"synthesize,omitempty"`
}

// ResultDoc is one hydrated ranked document.
type ResultDoc struct {
	DocID         int64    `json:"doc_id"`
	Kind          string   `json:"kind"`
	Title         string   `json:"title,omitempty"`
	Excerpt       string   `json:"excerpt,omitempty"`
	Link          string   `json:"link"`
	Tags          []string `json:"tags,omitempty"`
	Score         float64  `json:"score"`
	SourceScore   int      `json:"source_score"`
	MatchedFields []string `json:"matched_fields,omitempty"`
}

// Result is a completed search response.
type Result struct {
	Outcome    Outcome           `json:"outcome"`
	Source     Source            `json:"source"`
	Results    []ResultDoc       `json:"results"`
	Answer     *synthesis.Answer `json:"answer,omitempty"`
	Generation uint64            `json:"generation,omitempty"`
	TookMS     int64             `json:"took_ms"`
	Cached     bool              `json:"cached,omitempty"`
}

// DocumentStore is the persistence surface the service needs.
type DocumentStore interface {
	GetDocument(ctx context.Context, id int64) (document.Document, error)
	BestAnswers(ctx context.Context, questionID int64, limit int) ([]storage.Answer, error)
	StreamDocuments(ctx context.Context) (<-chan document.Document, <-chan error)
	QuestionCount(ctx context.Context) (int, error)
}

// LiveSearcher is the live-API surface the service needs for fallback.
type LiveSearcher interface {
	SearchAdvanced(ctx context.Context, query string, limit int) ([]stackx.Question, error)
}

// Recorder receives completed-search events for analytics. A nil
// *analytics.Collector satisfies it and records nothing.
type Recorder interface {
	Record(event analytics.SearchEvent)
}

// Service is the search orchestrator.
type Service struct {
	cfg     *config.Config
	holder  *index.Holder
	builder *index.Builder
	store   DocumentStore
	live    LiveSearcher
	cache   *queryCache
	metrics *metrics.Metrics
	logger  *slog.Logger
	record  func(analytics.SearchEvent)

	reindexMu sync.Mutex
}

// New wires a Service. live, redisClient, and recorder may be nil; the
// corresponding features simply switch off.
func New(cfg *config.Config, store DocumentStore, live LiveSearcher, redisClient *redis.Client, recorder Recorder, m *metrics.Metrics) *Service {
	s := &Service{
		cfg:     cfg,
		holder:  index.NewHolder(),
		builder: index.NewBuilder(cfg.Index.Workers),
		store:   store,
		live:    live,
		metrics: m,
		logger:  logger.WithComponent("search"),
		record:  func(analytics.SearchEvent) {},
	}
	if cfg.Redis.Enabled && redisClient != nil {
		s.cache = newQueryCache(redisClient, cfg.Redis.CacheTTL, m)
	}
	if recorder != nil {
		s.record = recorder.Record
	}
	return s
}

// Ready reports whether an index snapshot has been published.
func (s *Service) Ready() bool {
	return s.holder.Ready()
}

// Search runs one query end to end.
func (s *Service) Search(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	ctx, span := tracing.StartChildSpan(ctx, "search")
	defer span.End()

	req.Query = strings.TrimSpace(req.Query)
	if req.Limit <= 0 {
		req.Limit = s.cfg.Search.DefaultLimit
	}
	if req.Limit > s.cfg.Search.MaxResults {
		req.Limit = s.cfg.Search.MaxResults
	}
	if req.Query == "" {
		s.finish(req, &Result{Outcome: OutcomeEmptyQuery, Source: SourceLocal}, start)
		return nil, apperrors.New(apperrors.ErrInvalidQuery, 400, "query must not be empty")
	}

	// A query that tokenizes to nothing (all stopwords) is an input error
	// like a blank one; it never reaches ranking or the live fallback.
	tokens, codeTerms := textproc.ProcessQuery(req.Query)
	if len(tokens) == 0 {
		s.finish(req, &Result{Outcome: OutcomeEmptyQuery, Source: SourceLocal}, start)
		return nil, apperrors.New(apperrors.ErrInvalidQuery, 400, "query contains no searchable terms")
	}
	terms := make([]string, 0, len(tokens))
	for _, t := range tokens {
		terms = append(terms, t.Term)
	}
	query := ranker.Query{Terms: terms, CodeTerms: codeTerms}

	snap, err := s.holder.Load()
	if err != nil {
		return nil, err
	}
	span.SetAttr("generation", snap.Generation())

	res, err := s.cache.do(ctx, cacheKey(req, snap.Generation()), func() (*Result, error) {
		return s.execute(ctx, req, query, snap)
	})
	if err != nil {
		return nil, err
	}

	// Shallow copy: singleflight can hand the same pointer to concurrent
	// callers.
	out := *res
	out.TookMS = time.Since(start).Milliseconds()
	s.finish(req, &out, start)
	return &out, nil
}

// execute is the uncached search path.
func (s *Service) execute(ctx context.Context, req Request, query ranker.Query, snap *index.Snapshot) (*Result, error) {
	// A cancelled caller aborts before any scoring work starts.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ranked, matched, err := ranker.Rank(snap, query, s.rankOptions(req))
	if err != nil {
		return nil, err
	}

	res := &Result{Source: SourceLocal, Generation: snap.Generation()}
	switch {
	case len(ranked) > 0:
		res.Outcome = OutcomeMatch
	case matched:
		res.Outcome = OutcomeBelowThreshold
	default:
		res.Outcome = OutcomeNoResults
	}

	if len(ranked) == 0 {
		if live := s.liveFallback(ctx, req); len(live) > 0 {
			res.Source = SourceLive
			res.Outcome = OutcomeMatch
			res.Results = live
			return res, nil
		}
		res.Results = []ResultDoc{}
		return res, nil
	}

	docs, hydrated, err := s.hydrate(ctx, ranked)
	if err != nil {
		return nil, err
	}
	res.Results = hydrated

	if req.Synthesize {
		answer := s.synthesize(ctx, req.Query, ranked, docs)
		res.Answer = &answer
	}
	return res, nil
}

func (s *Service) rankOptions(req Request) ranker.Options {
	sc := s.cfg.Search
	return ranker.Options{
		TagFilter:       req.Tag,
		MinScore:        sc.MinScore,
		TitleBoost:      sc.TitleBoost,
		CodeBoost:       sc.CodeBoost,
		K1:              sc.K1,
		B:               sc.B,
		RecencyHalfLife: sc.RecencyHalfLife,
		RecencyWeight:   sc.RecencyWeight,
		Limit:           req.Limit,
	}
}

// hydrate turns ranked ids into full documents and response rows. A
// document missing from storage (deleted since the snapshot was built) is
// skipped, not an error.
func (s *Service) hydrate(ctx context.Context, ranked []ranker.SearchResult) ([]document.Document, []ResultDoc, error) {
	ctx, span := tracing.StartChildSpan(ctx, "hydrate")
	defer span.End()

	docs := make([]document.Document, 0, len(ranked))
	rows := make([]ResultDoc, 0, len(ranked))
	for _, r := range ranked {
		doc, err := s.store.GetDocument(ctx, r.DocID)
		if err != nil {
			if apperrors.HTTPStatusCode(err) == 404 {
				s.logger.Debug("ranked document missing from storage", "doc_id", r.DocID)
				continue
			}
			return nil, nil, fmt.Errorf("hydrating document %d: %w", r.DocID, err)
		}
		fields := make([]string, 0, len(r.MatchedFields))
		for _, f := range r.MatchedFields {
			fields = append(fields, f.String())
		}
		docs = append(docs, doc)
		rows = append(rows, ResultDoc{
			DocID:         doc.ID,
			Kind:          string(doc.Kind),
			Title:         doc.Title,
			Excerpt:       excerpt(doc.Body),
			Link:          doc.Link,
			Tags:          doc.Tags,
			Score:         r.BoostedScore,
			SourceScore:   r.SourceScore,
			MatchedFields: fields,
		})
	}
	return docs, rows, nil
}

// liveFallback queries the live API when enabled and the request is not
// tag-filtered. Any failure degrades to no live results.
func (s *Service) liveFallback(ctx context.Context, req Request) []ResultDoc {
	if s.live == nil || !s.cfg.Search.LiveFallback || req.Tag != "" {
		return nil
	}
	ctx, span := tracing.StartChildSpan(ctx, "live-fallback")
	defer span.End()

	questions, err := s.live.SearchAdvanced(ctx, req.Query, req.Limit)
	if err != nil {
		s.logger.Warn("live fallback failed", "error", err)
		return nil
	}
	rows := make([]ResultDoc, 0, len(questions))
	for _, q := range questions {
		rows = append(rows, ResultDoc{
			DocID:       q.ID,
			Kind:        string(document.KindQuestion),
			Title:       q.Title,
			Excerpt:     excerpt(q.Body),
			Link:        q.Link,
			Tags:        q.Tags,
			SourceScore: q.Score,
		})
	}
	return rows
}

// synthesize assembles sources from the ranked documents and runs the
// extractive synthesizer. Question results contribute their best answers'
// bodies; answer results contribute their own.
func (s *Service) synthesize(ctx context.Context, query string, ranked []ranker.SearchResult, docs []document.Document) synthesis.Answer {
	ctx, span := tracing.StartChildSpan(ctx, "synthesize")
	defer span.End()
	start := time.Now()

	sources := make([]synthesis.Source, 0, len(docs))
	for _, doc := range docs {
		src := synthesis.Source{DocID: doc.ID, Title: doc.Title, Link: doc.Link}
		switch doc.Kind {
		case document.KindQuestion:
			answers, err := s.store.BestAnswers(ctx, doc.ID, 3)
			if err != nil {
				s.logger.Warn("loading answers for synthesis failed", "doc_id", doc.ID, "error", err)
				continue
			}
			for _, a := range answers {
				src.Bodies = append(src.Bodies, a.Body)
			}
		default:
			src.Bodies = []string{doc.Body}
		}
		if len(src.Bodies) > 0 {
			sources = append(sources, src)
		}
	}

	answer := synthesis.Synthesize(query, sources, synthesis.Options{
		MaxSteps:        s.cfg.Synthesis.MaxSteps,
		MaxConcepts:     s.cfg.Synthesis.MaxConcepts,
		MaxDetails:      s.cfg.Synthesis.MaxDetails,
		MaxCodeExamples: s.cfg.Synthesis.MaxCodeExamples,
		MinSentenceLen:  s.cfg.Synthesis.MinSentenceLen,
	})

	s.metrics.SynthesisLatency.Observe(time.Since(start).Seconds())
	result := "ok"
	if answer.LowConfidence {
		result = "low_confidence"
	}
	s.metrics.SynthesisTotal.WithLabelValues(result).Inc()
	return answer
}

// finish records metrics and analytics for a completed search.
func (s *Service) finish(req Request, res *Result, start time.Time) {
	elapsed := time.Since(start)
	s.metrics.SearchQueriesTotal.WithLabelValues(string(res.Outcome)).Inc()
	s.metrics.SearchLatency.WithLabelValues(string(res.Source)).Observe(elapsed.Seconds())
	s.metrics.SearchResultsCount.Observe(float64(len(res.Results)))

	event := analytics.SearchEvent{
		Query:      req.Query,
		Outcome:    string(res.Outcome),
		Source:     string(res.Source),
		Results:    len(res.Results),
		DurationMS: elapsed.Milliseconds(),
		Timestamp:  start,
	}
	if len(res.Results) > 0 {
		event.TopDocID = res.Results[0].DocID
		event.TopScore = res.Results[0].Score
	}
	s.record(event)
}

// excerpt returns the first stretch of plain text from a body for result
// listings.
func excerpt(body string) string {
	const maxLen = 240
	text := strings.Join(strings.Fields(textproc.StripMarkup(body)), " ")
	if len(text) <= maxLen {
		return text
	}
	cut := strings.LastIndexByte(text[:maxLen], ' ')
	if cut <= 0 {
		cut = maxLen
	}
	return text[:cut] + "…"
}

// Stats summarizes the published snapshot and the stored corpus.
type Stats struct {
	Generation    uint64    `json:"generation"`
	BuiltAt       time.Time `json:"built_at"`
	DocCount      int       `json:"doc_count"`
	TermCount     int       `json:"term_count"`
	AvgDocLength  float64   `json:"avg_doc_length"`
	QuestionCount int       `json:"question_count"`
}

// Stats returns index and corpus statistics for the stats endpoint.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	snap, err := s.holder.Load()
	if err != nil {
		return nil, err
	}
	questions, err := s.store.QuestionCount(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Generation:    snap.Generation(),
		BuiltAt:       snap.BuiltAt(),
		DocCount:      snap.DocCount(),
		TermCount:     snap.TermCount(),
		AvgDocLength:  snap.AvgDocLength(),
		QuestionCount: questions,
	}, nil
}

// Reindex streams the stored corpus through the parallel builder and
// publishes the new snapshot atomically. In-flight queries keep reading
// the old snapshot until the swap. The snapshot is also persisted so a
// restart can restore without rebuilding.
func (s *Service) Reindex(ctx context.Context) (*index.Snapshot, error) {
	s.reindexMu.Lock()
	defer s.reindexMu.Unlock()

	start := time.Now()
	var snap *index.Snapshot
	err := resilience.WithTimeout(ctx, s.cfg.Index.BuildTimeout, "index-build", func(ctx context.Context) error {
		docs, errc := s.store.StreamDocuments(ctx)
		built, err := s.builder.Build(ctx, docs)
		if err != nil {
			return fmt.Errorf("building index: %w", err)
		}
		if streamErr := <-errc; streamErr != nil {
			return fmt.Errorf("streaming documents: %w", streamErr)
		}
		snap = built
		return nil
	})
	if err != nil {
		s.metrics.SnapshotBuildsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	s.holder.Publish(snap)
	s.cache.invalidate(ctx)
	s.metrics.SnapshotBuildsTotal.WithLabelValues("ok").Inc()
	s.metrics.SnapshotGeneration.Set(float64(snap.Generation()))
	s.metrics.SnapshotDocCount.Set(float64(snap.DocCount()))
	s.metrics.DocsIndexedTotal.Add(float64(snap.DocCount()))

	if dir := s.cfg.Index.SnapshotDir; dir != "" {
		name, err := snapfile.Write(dir, snap)
		if err != nil {
			s.logger.Error("persisting snapshot failed", "error", err)
		} else if err := snapfile.Prune(dir, name); err != nil {
			s.logger.Warn("pruning old snapshots failed", "error", err)
		}
	}

	s.logger.Info("index rebuilt",
		"generation", snap.Generation(),
		"docs", snap.DocCount(),
		"terms", snap.TermCount(),
		"took", time.Since(start),
	)
	return snap, nil
}

// Restore loads the most recent persisted snapshot, if any. Missing
// snapshots are not an error; the service just starts not ready.
func (s *Service) Restore(ctx context.Context) error {
	dir := s.cfg.Index.SnapshotDir
	if dir == "" {
		return nil
	}
	path, err := snapfile.Latest(dir)
	if err != nil {
		return fmt.Errorf("finding latest snapshot: %w", err)
	}
	if path == "" {
		return nil
	}
	snap, err := snapfile.Load(path)
	if err != nil {
		return fmt.Errorf("loading snapshot %s: %w", path, err)
	}
	s.holder.Publish(snap)
	s.metrics.SnapshotGeneration.Set(float64(snap.Generation()))
	s.metrics.SnapshotDocCount.Set(float64(snap.DocCount()))
	s.logger.Info("snapshot restored",
		"path", path,
		"generation", snap.Generation(),
		"docs", snap.DocCount(),
	)
	return nil
}
