// Package handler exposes the query engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/metrics"
)

// Searcher is the part of the executor the handler needs.
type Searcher interface {
	Snapshot() *executor.Snapshot
	Tokens(query string) []string
	SearchIn(ctx context.Context, snap *executor.Snapshot, tokens []string, limit int) ([]executor.Hit, error)
}

// Tracker receives one event per answered query.
type Tracker interface {
	Track(event analytics.SearchEvent)
}

// Handler serves search and cache administration endpoints.
type Handler struct {
	searcher     Searcher
	cache        *cache.QueryCache
	tracker      Tracker
	defaultLimit int
	maxResults   int
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// New creates a Handler. queryCache, tracker and m may be nil.
func New(s Searcher, queryCache *cache.QueryCache, tracker Tracker, defaultLimit, maxResults int, m *metrics.Metrics) *Handler {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	if maxResults < defaultLimit {
		maxResults = defaultLimit
	}
	return &Handler{
		searcher:     s,
		cache:        queryCache,
		tracker:      tracker,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		metrics:      m,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Search handles GET /api/v1/search?q=<text>[&limit=n]. The response is a
// JSON array of hits; a query without searchable words yields [].
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusMethodNotAllowed, "method not allowed"))
		return
	}
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	snap := h.searcher.Snapshot()
	if snap == nil {
		h.writeError(w, r, apperrors.ErrIndexNotLoaded)
		return
	}
	tokens := h.searcher.Tokens(query)

	var hits []executor.Hit
	cacheStatus := "bypass"
	if h.cache != nil && len(tokens) > 0 {
		var cached bool
		key := cache.Key(snap.Version, tokens, limit)
		hits, cached, err = h.cache.GetOrCompute(ctx, key, func(ctx context.Context) ([]executor.Hit, error) {
			return h.searcher.SearchIn(ctx, snap, tokens, limit)
		})
		cacheStatus = "miss"
		if cached {
			cacheStatus = "hit"
		}
	} else {
		hits, err = h.searcher.SearchIn(ctx, snap, tokens, limit)
	}
	if err != nil {
		log.Error("search failed", "query", query, "error", err)
		if h.metrics != nil {
			h.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		}
		h.writeError(w, r, err)
		return
	}

	latency := time.Since(start)
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	}
	log.Info("search completed",
		"query", query,
		"tokens", len(tokens),
		"returned", len(hits),
		"cache", cacheStatus,
		"latency_ms", latency.Milliseconds(),
	)
	if h.tracker != nil {
		h.tracker.Track(analytics.SearchEvent{
			Query:     query,
			Tokens:    tokens,
			Results:   len(hits),
			Limit:     limit,
			LatencyMs: latency.Milliseconds(),
			CacheHit:  cacheStatus == "hit",
			Version:   snap.Version,
			Timestamp: time.Now().UTC(),
			RequestID: logger.RequestID(ctx),
		})
	}

	w.Header().Set("X-Cache", cacheStatus)
	h.writeJSON(w, http.StatusOK, hits)
}

func (h *Handler) parseLimit(raw string) (int, error) {
	if raw == "" {
		return h.defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
	}
	return min(n, h.maxResults), nil
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

// CacheInvalidate handles POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusMethodNotAllowed, "method not allowed"))
		return
	}
	if h.cache == nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.writeError(w, r, apperrors.New(err, http.StatusBadGateway, "cache invalidation failed"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keysDeleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	} else if status == http.StatusInternalServerError {
		message = "search failed"
	}
	h.writeJSON(w, status, map[string]string{
		"error":      message,
		"request_id": logger.RequestID(r.Context()),
	})
}
