// Package httpapi serves the request front door over HTTP.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/mpataki/crudflow/internal/orchestrator"
)

type handlers struct {
	orch   *orchestrator.Orchestrator
	logger *slog.Logger
}

func NewRouter(orch *orchestrator.Orchestrator, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{orch: orch, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("POST /query", h.handleQuery)
	mux.HandleFunc("GET /runs", h.handleRunList)
	mux.HandleFunc("GET /runs/{run_id}", h.handleRunGet)
	mux.HandleFunc("DELETE /runs/{run_id}", h.handleRunDelete)
	mux.HandleFunc("POST /runs/{run_id}/approve", h.handleRunDecision(true))
	mux.HandleFunc("POST /runs/{run_id}/decline", h.handleRunDecision(false))
	return requestLoggingMiddleware(logger)(mux)
}
