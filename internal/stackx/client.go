// Package stackx is the live Stack Exchange API collaborator. The search
// service falls back to it when the local index produces nothing useful,
// and the crawler uses it to download questions and answers into storage.
//
// All calls are best-effort: rate limits, API backoff directives, and
// transport failures surface as errors the caller downgrades to "no live
// results" rather than failing the whole request.
package stackx

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stackseek/stackseek/pkg/config"
	apperrors "github.com/stackseek/stackseek/pkg/errors"
	"github.com/stackseek/stackseek/pkg/logger"
	"github.com/stackseek/stackseek/pkg/metrics"
	"github.com/stackseek/stackseek/pkg/resilience"
)

// withBodyFilter asks the API to include the body field, which the default
// filter omits.
const withBodyFilter = "withbody"

// Question is a question item as returned by the API.
type Question struct {
	ID               int64    `json:"question_id"`
	Title            string   `json:"title"`
	Body             string   `json:"body"`
	Tags             []string `json:"tags"`
	Score            int      `json:"score"`
	ViewCount        int      `json:"view_count"`
	AnswerCount      int      `json:"answer_count"`
	CreationDate     int64    `json:"creation_date"`
	Link             string   `json:"link"`
	IsAnswered       bool     `json:"is_answered"`
	AcceptedAnswerID int64    `json:"accepted_answer_id"`
}

// Answer is an answer item as returned by the API.
type Answer struct {
	ID           int64  `json:"answer_id"`
	QuestionID   int64  `json:"question_id"`
	Body         string `json:"body"`
	Score        int    `json:"score"`
	IsAccepted   bool   `json:"is_accepted"`
	CreationDate int64  `json:"creation_date"`
}

// envelope is the common API response wrapper.
type envelope[T any] struct {
	Items          []T    `json:"items"`
	HasMore        bool   `json:"has_more"`
	Backoff        int    `json:"backoff"`
	QuotaRemaining int    `json:"quota_remaining"`
	ErrorID        int    `json:"error_id"`
	ErrorName      string `json:"error_name"`
	ErrorMessage   string `json:"error_message"`
}

// Client talks to the Stack Exchange REST API with retry and a circuit
// breaker. It honors the API's backoff directive by delaying subsequent
// calls on the same client.
type Client struct {
	cfg     config.StackExchangeConfig
	http    *http.Client
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu           sync.Mutex
	backoffUntil time.Time
}

// New creates a live API client from config.
func New(cfg config.StackExchangeConfig, m *metrics.Metrics) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: resilience.NewCircuitBreaker("stackexchange", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		}),
		logger:  logger.WithComponent("stackx"),
		metrics: m,
	}
}

// SearchAdvanced runs the API's full-text search for a free-form query and
// returns up to limit questions with bodies, most relevant first.
func (c *Client) SearchAdvanced(ctx context.Context, query string, limit int) ([]Question, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("sort", "relevance")
	params.Set("order", "desc")
	params.Set("pagesize", strconv.Itoa(limit))
	params.Set("filter", withBodyFilter)

	env, err := call[Question](ctx, c, "/search/advanced", params)
	if err != nil {
		return nil, err
	}
	return env.Items, nil
}

// QuestionsByTag pages through questions carrying the given tag, newest
// first, up to maxPages pages of the configured page size.
func (c *Client) QuestionsByTag(ctx context.Context, tag string, maxPages int) ([]Question, error) {
	var all []Question
	for page := 1; page <= maxPages; page++ {
		params := url.Values{}
		params.Set("tagged", tag)
		params.Set("sort", "creation")
		params.Set("order", "desc")
		params.Set("page", strconv.Itoa(page))
		params.Set("pagesize", strconv.Itoa(c.cfg.PageSize))
		params.Set("filter", withBodyFilter)

		env, err := call[Question](ctx, c, "/questions", params)
		if err != nil {
			return all, err
		}
		all = append(all, env.Items...)
		if !env.HasMore {
			break
		}
	}
	return all, nil
}

// AnswersForQuestions downloads all answers for the given question ids.
// The API accepts at most 100 ids per call, so larger inputs are chunked.
func (c *Client) AnswersForQuestions(ctx context.Context, questionIDs []int64) ([]Answer, error) {
	const chunkSize = 100
	var all []Answer
	for start := 0; start < len(questionIDs); start += chunkSize {
		end := start + chunkSize
		if end > len(questionIDs) {
			end = len(questionIDs)
		}
		ids := make([]string, 0, end-start)
		for _, id := range questionIDs[start:end] {
			ids = append(ids, strconv.FormatInt(id, 10))
		}

		params := url.Values{}
		params.Set("sort", "votes")
		params.Set("order", "desc")
		params.Set("pagesize", strconv.Itoa(chunkSize))
		params.Set("filter", withBodyFilter)

		path := "/questions/" + strings.Join(ids, ";") + "/answers"
		env, err := call[Answer](ctx, c, path, params)
		if err != nil {
			return all, err
		}
		all = append(all, env.Items...)
	}
	return all, nil
}

// call performs one API request through the circuit breaker with retries
// on transient failures. Generic over the item type because the envelope
// shape is shared by every endpoint.
func call[T any](ctx context.Context, c *Client, path string, params url.Values) (*envelope[T], error) {
	c.mu.Lock()
	wait := time.Until(c.backoffUntil)
	c.mu.Unlock()
	if wait > 0 {
		c.logger.Debug("honoring api backoff", "wait", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	params.Set("site", c.cfg.Site)
	if c.cfg.Key != "" {
		params.Set("key", c.cfg.Key)
	}
	reqURL := c.cfg.BaseURL + path + "?" + params.Encode()

	var env *envelope[T]
	err := c.breaker.Execute(func() error {
		return resilience.Retry(ctx, "stackexchange-"+path, resilience.RetryConfig{
			MaxAttempts:  c.cfg.MaxAttempts,
			InitialDelay: 500 * time.Millisecond,
		}, func() error {
			var err error
			env, err = doRequest[T](ctx, c, reqURL)
			return err
		})
	})
	if err != nil {
		c.metrics.LiveFetchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", apperrors.ErrLiveUnavailable, err)
	}

	if env.Backoff > 0 {
		c.mu.Lock()
		c.backoffUntil = time.Now().Add(time.Duration(env.Backoff) * time.Second)
		c.mu.Unlock()
		c.logger.Warn("api requested backoff", "seconds", env.Backoff)
	}
	if env.ErrorID != 0 {
		c.metrics.LiveFetchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: api error %d (%s): %s",
			apperrors.ErrLiveUnavailable, env.ErrorID, env.ErrorName, env.ErrorMessage)
	}
	c.metrics.LiveFetchesTotal.WithLabelValues("ok").Inc()
	return env, nil
}

func doRequest[T any](ctx context.Context, c *Client, reqURL string) (*envelope[T], error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body := io.Reader(resp.Body)
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("opening gzip body: %w", err)
		}
		defer gz.Close()
		body = gz
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.metrics.LiveFetchesTotal.WithLabelValues("rate_limited").Inc()
		return nil, apperrors.ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("api returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		data, _ := io.ReadAll(io.LimitReader(body, 1024))
		return nil, fmt.Errorf("api returned status %d: %s", resp.StatusCode, data)
	}

	var env envelope[T]
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &env, nil
}
