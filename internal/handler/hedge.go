package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"polyhedge/internal/service"
)

type HedgeHandler struct {
	Hedge  *service.HedgeService
	Logger *zap.Logger
}

func (h *HedgeHandler) Register(r *gin.Engine) {
	r.POST("/api/hedge", h.recommend)
}

type hedgeRequestBody struct {
	Concern    string          `json:"concern" binding:"required"`
	Budget     decimal.Decimal `json:"budget"`
	Notes      string          `json:"notes"`
	MaxMarkets int             `json:"max_markets"`
	Mode       string          `json:"mode"`
}

func (h *HedgeHandler) recommend(c *gin.Context) {
	var body hedgeRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		Error(c, http.StatusBadRequest, "concern is required", nil)
		return
	}
	if body.Budget.IsNegative() {
		Error(c, http.StatusBadRequest, "budget must not be negative", nil)
		return
	}
	if body.Mode != "" && body.Mode != service.ModeThemed && body.Mode != service.ModeDiverse {
		Error(c, http.StatusBadRequest, "mode must be themed or diverse", nil)
		return
	}

	resp, err := h.Hedge.Recommend(c.Request.Context(), service.HedgeRequest{
		Concern:    body.Concern,
		Budget:     body.Budget,
		Notes:      body.Notes,
		MaxMarkets: body.MaxMarkets,
		Mode:       body.Mode,
	})
	if err != nil {
		if errors.Is(err, service.ErrIndexUnavailable) {
			Error(c, http.StatusServiceUnavailable, "similarity index unavailable", nil)
			return
		}
		if h.Logger != nil {
			h.Logger.Error("hedge recommendation failed", zap.Error(err))
		}
		Error(c, http.StatusInternalServerError, "recommendation failed", nil)
		return
	}

	Ok(c, resp, map[string]any{
		"request_id": resp.RequestID,
		"bundles":    len(resp.Bundles),
	})
}
