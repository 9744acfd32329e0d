package handlers

import (
	"errors"
	"net/http"

	"github.com/wonny/kabupicks/internal/ingest"
	"github.com/wonny/kabupicks/internal/picks"
	"github.com/wonny/kabupicks/pkg/logger"
	"github.com/wonny/kabupicks/pkg/redis"
)

// NewsHandler serves the news refresh operation.
type NewsHandler struct {
	ingest *ingest.Service
	cache  *redis.Cache
	logger *logger.Logger
}

// NewNewsHandler creates a news handler.
func NewNewsHandler(svc *ingest.Service, cache *redis.Cache, log *logger.Logger) *NewsHandler {
	return &NewsHandler{
		ingest: svc,
		cache:  cache,
		logger: log,
	}
}

// Refresh fetches the news feed, upserts derived events and rebuilds the
// pick snapshot.
// POST /api/news/refresh
func (h *NewsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.ingest.RefreshNews(ctx)
	if errors.Is(err, ingest.ErrNoNews) {
		respondError(w, http.StatusServiceUnavailable, "No news available from feed or sample data")
		return
	}
	if errors.Is(err, picks.ErrRebuildInProgress) {
		respondError(w, http.StatusConflict, "A rebuild is already running")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("News refresh failed")
		respondError(w, http.StatusInternalServerError, "News refresh failed")
		return
	}

	if err := h.cache.DeletePrefix(ctx, "picks:"); err != nil {
		h.logger.WithError(err).Warn("Failed to invalidate picks cache")
	}

	respondJSON(w, http.StatusOK, result)
}
