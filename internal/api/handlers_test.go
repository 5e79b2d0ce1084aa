package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stackseek/stackseek/internal/document"
	"github.com/stackseek/stackseek/internal/search"
	"github.com/stackseek/stackseek/internal/storage"
	"github.com/stackseek/stackseek/pkg/config"
	apperrors "github.com/stackseek/stackseek/pkg/errors"
	"github.com/stackseek/stackseek/pkg/health"
	"github.com/stackseek/stackseek/pkg/metrics"
)

var testMetrics = metrics.New()

type memStore struct {
	docs    map[int64]document.Document
	answers map[int64][]storage.Answer
}

func (m *memStore) GetDocument(ctx context.Context, id int64) (document.Document, error) {
	if d, ok := m.docs[id]; ok {
		return d, nil
	}
	return document.Document{}, apperrors.Newf(apperrors.ErrDocumentNotFound, 404, "document %d not found", id)
}

func (m *memStore) BestAnswers(ctx context.Context, questionID int64, limit int) ([]storage.Answer, error) {
	answers := m.answers[questionID]
	if len(answers) > limit {
		answers = answers[:limit]
	}
	return answers, nil
}

func (m *memStore) StreamDocuments(ctx context.Context) (<-chan document.Document, <-chan error) {
	out := make(chan document.Document, len(m.docs))
	errc := make(chan error, 1)
	for _, d := range m.docs {
		out <- d
	}
	close(out)
	close(errc)
	return out, errc
}

func (m *memStore) QuestionCount(ctx context.Context) (int, error) {
	return len(m.docs), nil
}

func testStore() *memStore {
	return &memStore{
		docs: map[int64]document.Document{
			1: {
				ID:    1,
				Kind:  document.KindQuestion,
				Title: "How to deduplicate slice elements",
				Body:  "I need to remove duplicate elements while keeping order.",
				Tags:  []string{"go"},
				Link:  "https://example.com/q/1",
			},
		},
		answers: map[int64][]storage.Answer{
			1: {{
				ID:         11,
				QuestionID: 1,
				Body:       "First build a set of seen elements. Then append only unseen values to the output slice.",
				Score:      5,
			}},
		},
	}
}

func testServiceConfig() *config.Config {
	return &config.Config{
		Search: config.SearchConfig{
			MinScore:     0.001,
			DefaultLimit: 10,
			MaxResults:   50,
		},
		Index: config.IndexConfig{Workers: 2},
	}
}

// newTestRouter builds the full middleware chain around a service indexed
// from the fake store, matching what the server binary assembles.
func newTestRouter(t *testing.T, reindex bool) http.Handler {
	t.Helper()
	svc := search.New(testServiceConfig(), testStore(), nil, nil, nil, testMetrics)
	if reindex {
		if _, err := svc.Reindex(context.Background()); err != nil {
			t.Fatalf("reindex: %v", err)
		}
	}
	return Router(NewHandler(svc, nil), health.NewChecker(), testMetrics,
		config.ServerConfig{RequestTimeout: 5 * time.Second})
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSearchEndpoint(t *testing.T) {
	router := newTestRouter(t, true)
	w := doJSON(t, router, http.MethodPost, "/search", `{"query":"deduplicate slice elements"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var res search.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Outcome != search.OutcomeMatch {
		t.Errorf("outcome = %s, want match", res.Outcome)
	}
	if len(res.Results) == 0 || res.Results[0].DocID != 1 {
		t.Errorf("results = %+v, want doc 1", res.Results)
	}
	if res.Answer != nil {
		t.Error("plain search should not synthesize an answer")
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("response should carry a request id")
	}
}

func TestSearchEndpointEmptyQuery(t *testing.T) {
	router := newTestRouter(t, true)
	w := doJSON(t, router, http.MethodPost, "/search", `{"query":"  "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] == "" {
		t.Errorf("error body missing: %s", w.Body.String())
	}
}

func TestSearchEndpointMalformedBody(t *testing.T) {
	router := newTestRouter(t, true)
	w := doJSON(t, router, http.MethodPost, "/search", `{"query":`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSearchEndpointBeforeFirstIndex(t *testing.T) {
	router := newTestRouter(t, false)
	w := doJSON(t, router, http.MethodPost, "/search", `{"query":"anything"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 while no snapshot is published", w.Code)
	}
}

func TestRAGSearchForcesSynthesis(t *testing.T) {
	router := newTestRouter(t, true)
	w := doJSON(t, router, http.MethodPost, "/ragsearch", `{"query":"deduplicate slice elements"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var res search.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Answer == nil {
		t.Fatal("ragsearch must synthesize an answer")
	}
	if len(res.Answer.Steps) == 0 {
		t.Errorf("answer = %+v, want extracted steps", res.Answer)
	}
}

func TestDownloadWithoutCrawler(t *testing.T) {
	router := newTestRouter(t, true)
	w := doJSON(t, router, http.MethodPost, "/download", `{"tag":"go"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when live API access is not configured", w.Code)
	}
}

func TestReindexEndpoint(t *testing.T) {
	router := newTestRouter(t, true)
	w := doJSON(t, router, http.MethodPost, "/reindex", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["doc_count"].(float64) != 1 {
		t.Errorf("doc_count = %v, want 1", body["doc_count"])
	}
}

func TestStatsEndpoint(t *testing.T) {
	router := newTestRouter(t, true)
	w := doJSON(t, router, http.MethodGet, "/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var stats search.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.DocCount != 1 || stats.QuestionCount != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t, true)

	w := doJSON(t, router, http.MethodGet, "/health/live", "")
	if w.Code != http.StatusOK {
		t.Errorf("liveness status = %d, want 200", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/health/ready", "")
	if w.Code != http.StatusOK {
		t.Errorf("readiness status = %d, want 200", w.Code)
	}
}

func TestReadinessReportsDown(t *testing.T) {
	svc := search.New(testServiceConfig(), testStore(), nil, nil, nil, testMetrics)
	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusDown, Message: "no snapshot"}
	})
	router := Router(NewHandler(svc, nil), checker, testMetrics,
		config.ServerConfig{RequestTimeout: 5 * time.Second})

	w := doJSON(t, router, http.MethodGet, "/health/ready", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness status = %d, want 503", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t, true)
	req := httptest.NewRequest(http.MethodOptions, "/search", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS allow-origin header")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	router := newTestRouter(t, true)
	w := doJSON(t, router, http.MethodGet, "/search", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}
