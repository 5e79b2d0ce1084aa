// Package crawl downloads questions and answers from the live Stack
// Exchange API into document storage, for later indexing.
package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stackseek/stackseek/internal/stackx"
	"github.com/stackseek/stackseek/internal/storage"
	"github.com/stackseek/stackseek/pkg/logger"
)

// Crawler pulls tagged questions with their answers and upserts them.
type Crawler struct {
	client *stackx.Client
	store  *storage.Store
	logger *slog.Logger
}

// New creates a Crawler.
func New(client *stackx.Client, store *storage.Store) *Crawler {
	return &Crawler{
		client: client,
		store:  store,
		logger: logger.WithComponent("crawl"),
	}
}

// Result summarizes one crawl run.
type Result struct {
	Tag       string `json:"tag"`
	Questions int    `json:"questions"`
	Answers   int    `json:"answers"`
}

// CrawlTag downloads up to maxPages pages of questions for a tag plus all
// their answers and stores everything. Questions are stored first so the
// answers' foreign keys resolve.
func (c *Crawler) CrawlTag(ctx context.Context, tag string, maxPages int) (Result, error) {
	res := Result{Tag: tag}
	if maxPages <= 0 {
		maxPages = 1
	}

	questions, err := c.client.QuestionsByTag(ctx, tag, maxPages)
	if err != nil {
		return res, fmt.Errorf("downloading questions for tag %q: %w", tag, err)
	}
	ids := make([]int64, 0, len(questions))
	for _, q := range questions {
		if err := c.store.UpsertQuestion(ctx, storage.Question{
			ID:          q.ID,
			Title:       q.Title,
			Body:        q.Body,
			Tags:        q.Tags,
			Score:       q.Score,
			ViewCount:   q.ViewCount,
			AnswerCount: q.AnswerCount,
			CreatedAt:   time.Unix(q.CreationDate, 0).UTC(),
			Link:        q.Link,
			IsAnswered:  q.IsAnswered,
		}); err != nil {
			return res, err
		}
		res.Questions++
		ids = append(ids, q.ID)
	}

	answers, err := c.client.AnswersForQuestions(ctx, ids)
	if err != nil {
		return res, fmt.Errorf("downloading answers for tag %q: %w", tag, err)
	}
	for _, a := range answers {
		if err := c.store.UpsertAnswer(ctx, storage.Answer{
			ID:         a.ID,
			QuestionID: a.QuestionID,
			Body:       a.Body,
			Score:      a.Score,
			IsAccepted: a.IsAccepted,
			CreatedAt:  time.Unix(a.CreationDate, 0).UTC(),
		}); err != nil {
			return res, err
		}
		res.Answers++
	}

	c.logger.Info("crawl complete", "tag", tag, "questions", res.Questions, "answers", res.Answers)
	return res, nil
}
