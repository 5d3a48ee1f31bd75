package handler

import (
	"net/http"

	"github.com/S1riyS/dirsize/internal/metrics"
)

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// System endpoints
	mux.HandleFunc("/health", h.HandleHealthCheck)
	mux.Handle("/metrics", metrics.Handler())

	// API endpoints
	mux.HandleFunc("/api/analyze", h.HandleAnalyze)
	mux.HandleFunc("/api/dirs", h.HandleDirs)
	mux.HandleFunc("/api/report", h.HandleReport)
}
