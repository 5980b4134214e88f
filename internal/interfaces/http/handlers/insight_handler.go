package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/eastgrand/geoinsight/internal/application/insight"
	"github.com/eastgrand/geoinsight/internal/domain/query"
	"github.com/eastgrand/geoinsight/internal/infrastructure/monitoring/logging"
	"github.com/eastgrand/geoinsight/pkg/errors"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HistoryLister reads past queries back out of storage.  Implemented by
// the postgres history repository; nil when history is disabled.
type HistoryLister interface {
	List(ctx context.Context, limit, offset int) ([]*insight.HistoryEntry, error)
}

// InsightHandler serves the query pipeline.
type InsightHandler struct {
	service *insight.Service
	history HistoryLister
	logger  logging.Logger
}

func NewInsightHandler(service *insight.Service, history HistoryLister, logger logging.Logger) *InsightHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &InsightHandler{service: service, history: history, logger: logger}
}

// Query handles POST /api/v1/insights/query.
func (h *InsightHandler) Query(c *gin.Context) {
	var q query.Query
	if err := c.ShouldBindJSON(&q); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "invalid request body"))
		return
	}

	ins, err := h.service.Query(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ins)
}

// History handles GET /api/v1/insights/history.
func (h *InsightHandler) History(c *gin.Context) {
	if h.history == nil {
		respondError(c, errors.New(errors.ErrCodeServiceUnavailable, "query history is not enabled"))
		return
	}

	limit := intQueryParam(c, "limit", defaultHistoryLimit)
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	offset := intQueryParam(c, "offset", 0)

	entries, err := h.history.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	if entries == nil {
		entries = []*insight.HistoryEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "limit": limit, "offset": offset})
}

func intQueryParam(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
