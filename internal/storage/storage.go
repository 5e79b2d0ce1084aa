// Package storage owns the persisted Q&A corpus in PostgreSQL. It feeds the
// index builder a lazy document stream, hydrates ranked document ids back
// into full content, and receives crawled questions and answers.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/stackseek/stackseek/internal/document"
	apperrors "github.com/stackseek/stackseek/pkg/errors"
	"github.com/stackseek/stackseek/pkg/logger"
	"github.com/stackseek/stackseek/pkg/postgres"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS questions (
		question_id   BIGINT PRIMARY KEY,
		title         TEXT NOT NULL,
		body          TEXT NOT NULL,
		tags          TEXT[] NOT NULL DEFAULT '{}',
		score         INT NOT NULL DEFAULT 0,
		view_count    INT NOT NULL DEFAULT 0,
		answer_count  INT NOT NULL DEFAULT 0,
		creation_date TIMESTAMPTZ,
		link          TEXT NOT NULL DEFAULT '',
		is_answered   BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS answers (
		answer_id     BIGINT PRIMARY KEY,
		question_id   BIGINT NOT NULL REFERENCES questions(question_id) ON DELETE CASCADE,
		body          TEXT NOT NULL,
		score         INT NOT NULL DEFAULT 0,
		is_accepted   BOOLEAN NOT NULL DEFAULT FALSE,
		creation_date TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_answers_question ON answers(question_id)`,
	`CREATE INDEX IF NOT EXISTS idx_questions_tags ON questions USING GIN(tags)`,
}

// Store is the document storage collaborator.
type Store struct {
	client *postgres.Client
	logger *slog.Logger
}

// New creates a Store and applies the schema.
func New(ctx context.Context, client *postgres.Client) (*Store, error) {
	s := &Store{
		client: client,
		logger: logger.WithComponent("storage"),
	}
	for _, stmt := range schema {
		if _, err := client.DB.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("applying schema: %w", err)
		}
	}
	return s, nil
}

// Question is the persisted form of a crawled question.
type Question struct {
	ID          int64
	Title       string
	Body        string
	Tags        []string
	Score       int
	ViewCount   int
	AnswerCount int
	CreatedAt   time.Time
	Link        string
	IsAnswered  bool
}

// Answer is the persisted form of a crawled answer.
type Answer struct {
	ID         int64
	QuestionID int64
	Body       string
	Score      int
	IsAccepted bool
	CreatedAt  time.Time
}

// UpsertQuestion inserts or replaces a question.
func (s *Store) UpsertQuestion(ctx context.Context, q Question) error {
	_, err := s.client.DB.ExecContext(ctx, `
		INSERT INTO questions
			(question_id, title, body, tags, score, view_count, answer_count, creation_date, link, is_answered)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (question_id) DO UPDATE SET
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			tags = EXCLUDED.tags,
			score = EXCLUDED.score,
			view_count = EXCLUDED.view_count,
			answer_count = EXCLUDED.answer_count,
			creation_date = EXCLUDED.creation_date,
			link = EXCLUDED.link,
			is_answered = EXCLUDED.is_answered`,
		q.ID, q.Title, q.Body, pq.Array(q.Tags), q.Score, q.ViewCount,
		q.AnswerCount, q.CreatedAt, q.Link, q.IsAnswered,
	)
	if err != nil {
		return fmt.Errorf("upserting question %d: %w", q.ID, err)
	}
	return nil
}

// UpsertAnswer inserts or replaces an answer.
func (s *Store) UpsertAnswer(ctx context.Context, a Answer) error {
	_, err := s.client.DB.ExecContext(ctx, `
		INSERT INTO answers
			(answer_id, question_id, body, score, is_accepted, creation_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (answer_id) DO UPDATE SET
			body = EXCLUDED.body,
			score = EXCLUDED.score,
			is_accepted = EXCLUDED.is_accepted,
			creation_date = EXCLUDED.creation_date`,
		a.ID, a.QuestionID, a.Body, a.Score, a.IsAccepted, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting answer %d: %w", a.ID, err)
	}
	return nil
}

// GetDocument hydrates one document by id, looking at questions first and
// then answers. Returns ErrDocumentNotFound when the id is unknown.
func (s *Store) GetDocument(ctx context.Context, id int64) (document.Document, error) {
	var (
		q       Question
		tags    pq.StringArray
		created sql.NullTime
	)
	err := s.client.DB.QueryRowContext(ctx, `
		SELECT question_id, title, body, tags, score, creation_date, link
		FROM questions WHERE question_id = $1`, id,
	).Scan(&q.ID, &q.Title, &q.Body, &tags, &q.Score, &created, &q.Link)
	switch err {
	case nil:
		return document.Document{
			ID:          q.ID,
			Kind:        document.KindQuestion,
			Title:       q.Title,
			Body:        q.Body,
			Tags:        tags,
			SourceScore: q.Score,
			CreatedAt:   created.Time,
			Link:        q.Link,
		}, nil
	case sql.ErrNoRows:
		// fall through to answers
	default:
		return document.Document{}, fmt.Errorf("querying question %d: %w", id, err)
	}

	var a Answer
	err = s.client.DB.QueryRowContext(ctx, `
		SELECT a.answer_id, a.question_id, a.body, a.score, a.is_accepted, a.creation_date, q.link
		FROM answers a JOIN questions q ON q.question_id = a.question_id
		WHERE a.answer_id = $1`, id,
	).Scan(&a.ID, &a.QuestionID, &a.Body, &a.Score, &a.IsAccepted, &created, &q.Link)
	switch err {
	case nil:
		return document.Document{
			ID:          a.ID,
			Kind:        document.KindAnswer,
			Body:        a.Body,
			SourceScore: a.Score,
			CreatedAt:   created.Time,
			Link:        q.Link,
			ParentID:    a.QuestionID,
			Accepted:    a.IsAccepted,
		}, nil
	case sql.ErrNoRows:
		return document.Document{}, apperrors.Newf(apperrors.ErrDocumentNotFound, 404, "document %d", id)
	default:
		return document.Document{}, fmt.Errorf("querying answer %d: %w", id, err)
	}
}

// BestAnswers returns a question's answers ordered accepted-first, then by
// score, capped at limit. Used to assemble synthesis sources.
func (s *Store) BestAnswers(ctx context.Context, questionID int64, limit int) ([]Answer, error) {
	rows, err := s.client.DB.QueryContext(ctx, `
		SELECT answer_id, question_id, body, score, is_accepted, creation_date
		FROM answers WHERE question_id = $1
		ORDER BY is_accepted DESC, score DESC, answer_id ASC
		LIMIT $2`, questionID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying answers for question %d: %w", questionID, err)
	}
	defer rows.Close()

	var answers []Answer
	for rows.Next() {
		var (
			a       Answer
			created sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Body, &a.Score, &a.IsAccepted, &created); err != nil {
			return nil, fmt.Errorf("scanning answer: %w", err)
		}
		a.CreatedAt = created.Time
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// StreamDocuments streams the whole corpus as indexable documents:
// questions first, then answers. The returned channel closes when the
// stream ends; the error channel delivers at most one error. Consumers
// pull at their own pace, so large corpora never load into memory at once.
func (s *Store) StreamDocuments(ctx context.Context) (<-chan document.Document, <-chan error) {
	docs := make(chan document.Document)
	errc := make(chan error, 1)

	go func() {
		defer close(docs)
		defer close(errc)
		if err := s.streamQuestions(ctx, docs); err != nil {
			errc <- err
			return
		}
		if err := s.streamAnswers(ctx, docs); err != nil {
			errc <- err
		}
	}()
	return docs, errc
}

func (s *Store) streamQuestions(ctx context.Context, docs chan<- document.Document) error {
	rows, err := s.client.DB.QueryContext(ctx, `
		SELECT question_id, title, body, tags, score, creation_date, link
		FROM questions ORDER BY question_id`)
	if err != nil {
		return fmt.Errorf("streaming questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q       Question
			tags    pq.StringArray
			created sql.NullTime
		)
		if err := rows.Scan(&q.ID, &q.Title, &q.Body, &tags, &q.Score, &created, &q.Link); err != nil {
			return fmt.Errorf("scanning question: %w", err)
		}
		doc := document.Document{
			ID:          q.ID,
			Kind:        document.KindQuestion,
			Title:       q.Title,
			Body:        q.Body,
			Tags:        tags,
			SourceScore: q.Score,
			CreatedAt:   created.Time,
			Link:        q.Link,
		}
		select {
		case docs <- doc:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return rows.Err()
}

func (s *Store) streamAnswers(ctx context.Context, docs chan<- document.Document) error {
	rows, err := s.client.DB.QueryContext(ctx, `
		SELECT a.answer_id, a.question_id, a.body, a.score, a.is_accepted, a.creation_date, q.link
		FROM answers a JOIN questions q ON q.question_id = a.question_id
		ORDER BY a.answer_id`)
	if err != nil {
		return fmt.Errorf("streaming answers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a       Answer
			link    string
			created sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Body, &a.Score, &a.IsAccepted, &created, &link); err != nil {
			return fmt.Errorf("scanning answer: %w", err)
		}
		doc := document.Document{
			ID:          a.ID,
			Kind:        document.KindAnswer,
			Body:        a.Body,
			SourceScore: a.Score,
			CreatedAt:   created.Time,
			Link:        link,
			ParentID:    a.QuestionID,
			Accepted:    a.IsAccepted,
		}
		select {
		case docs <- doc:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return rows.Err()
}

// QuestionCount returns the number of stored questions.
func (s *Store) QuestionCount(ctx context.Context) (int, error) {
	var n int
	if err := s.client.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting questions: %w", err)
	}
	return n, nil
}

// Ping verifies database connectivity, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.DB.PingContext(ctx)
}
