package api

import (
	"net/http"

	"github.com/stackseek/stackseek/pkg/config"
	"github.com/stackseek/stackseek/pkg/health"
	"github.com/stackseek/stackseek/pkg/metrics"
	"github.com/stackseek/stackseek/pkg/middleware"
)

// Router assembles the HTTP mux with the standard middleware chain:
// request id, metrics, CORS, and a per-request timeout.
func Router(h *Handler, checker *health.Checker, m *metrics.Metrics, cfg config.ServerConfig) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /search", h.handleSearch)
	mux.HandleFunc("POST /ragsearch", h.handleRAGSearch)
	mux.HandleFunc("POST /download", h.handleDownload)
	mux.HandleFunc("POST /reindex", h.handleReindex)
	mux.HandleFunc("GET /stats", h.handleStats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var handler http.Handler = mux
	handler = middleware.Timeout(cfg.RequestTimeout)(handler)
	handler = cors(handler)
	handler = middleware.Metrics(m)(handler)
	handler = middleware.RequestID(handler)
	return handler
}
