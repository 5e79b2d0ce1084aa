// Package api is the HTTP surface: search, answer synthesis, corpus
// download, statistics, and health probes.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/stackseek/stackseek/internal/crawl"
	"github.com/stackseek/stackseek/internal/search"
	apperrors "github.com/stackseek/stackseek/pkg/errors"
	"github.com/stackseek/stackseek/pkg/logger"
	"github.com/stackseek/stackseek/pkg/middleware"
	"github.com/stackseek/stackseek/pkg/tracing"
)

// Handler carries the API's dependencies. crawler may be nil when the
// server runs without live API access; the download endpoint then answers
// 503.
type Handler struct {
	svc     *search.Service
	crawler *crawl.Crawler
	logger  *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(svc *search.Service, crawler *crawl.Crawler) *Handler {
	return &Handler{
		svc:     svc,
		crawler: crawler,
		logger:  logger.WithComponent("api"),
	}
}

// handleSearch answers POST /search: ranked results without synthesis
// unless the request asks for it.
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req search.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperrors.New(apperrors.ErrInvalidQuery, http.StatusBadRequest, "malformed request body"))
		return
	}
	h.runSearch(w, r, req)
}

// handleRAGSearch answers POST /ragsearch: search with answer synthesis
// always on.
func (h *Handler) handleRAGSearch(w http.ResponseWriter, r *http.Request) {
	var req search.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperrors.New(apperrors.ErrInvalidQuery, http.StatusBadRequest, "malformed request body"))
		return
	}
	req.Synthesize = true
	h.runSearch(w, r, req)
}

func (h *Handler) runSearch(w http.ResponseWriter, r *http.Request, req search.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "http-search", middleware.GetRequestID(r.Context()))
	defer func() {
		span.End()
		span.Log()
	}()

	res, err := h.svc.Search(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// downloadRequest asks the server to crawl a tag into storage.
type downloadRequest struct {
	Tag     string `json:"tag"`
	Pages   int    `json:"pages,omitempty"`
	Reindex bool   `json:"reindex,omitempty"`
}

// handleDownload answers POST /download: crawl a tag, optionally rebuild
// the index afterwards. Runs synchronously; large crawls are bounded by
// the request timeout.
func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	if h.crawler == nil {
		writeError(w, r, apperrors.New(apperrors.ErrLiveUnavailable, http.StatusServiceUnavailable, "live API access is not configured"))
		return
	}
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperrors.New(apperrors.ErrInvalidQuery, http.StatusBadRequest, "malformed request body"))
		return
	}
	req.Tag = strings.TrimSpace(req.Tag)
	if req.Tag == "" {
		writeError(w, r, apperrors.New(apperrors.ErrInvalidQuery, http.StatusBadRequest, "tag must not be empty"))
		return
	}

	res, err := h.crawler.CrawlTag(r.Context(), req.Tag, req.Pages)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Reindex {
		if _, err := h.svc.Reindex(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, res)
}

// handleReindex answers POST /reindex: rebuild the snapshot from storage.
func (h *Handler) handleReindex(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Reindex(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"generation": snap.Generation(),
		"doc_count":  snap.DocCount(),
		"term_count": snap.TermCount(),
	})
}

// handleStats answers GET /stats.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	if status >= 500 {
		logger.FromContext(r.Context()).Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
