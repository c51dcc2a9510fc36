package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"polyhedge/internal/service"
)

type MarketsHandler struct {
	Retrieval *service.RetrievalService
	Logger    *zap.Logger
}

func (h *MarketsHandler) Register(r *gin.Engine) {
	r.GET("/api/markets/search", h.search)
}

func (h *MarketsHandler) search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		Error(c, http.StatusBadRequest, "q is required", nil)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			Error(c, http.StatusBadRequest, "limit must be a non-negative integer", nil)
			return
		}
		limit = n
	}
	var minLiquidity *float64
	if raw := c.Query("min_liquidity"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 {
			Error(c, http.StatusBadRequest, "min_liquidity must be a non-negative number", nil)
			return
		}
		minLiquidity = &f
	}

	hits, err := h.Retrieval.Search(c.Request.Context(), query, limit, minLiquidity)
	if err != nil {
		if errors.Is(err, service.ErrIndexUnavailable) {
			Error(c, http.StatusServiceUnavailable, "similarity index unavailable", nil)
			return
		}
		if h.Logger != nil {
			h.Logger.Error("market search failed", zap.Error(err))
		}
		Error(c, http.StatusInternalServerError, "search failed", nil)
		return
	}

	Ok(c, hits, map[string]any{"count": len(hits)})
}
