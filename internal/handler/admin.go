package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"polyhedge/internal/repository"
	"polyhedge/internal/service"
)

type AdminHandler struct {
	Sync   *service.MarketSyncService
	Repo   repository.MarketRepository
	Index  service.SimilarityIndex
	Logger *zap.Logger
}

func (h *AdminHandler) Register(r *gin.Engine) {
	r.POST("/api/admin/sync", h.sync)
	r.GET("/api/admin/sync/stream", h.syncStream)
	r.GET("/api/admin/cache", h.cacheInfo)
}

func (h *AdminHandler) sync(c *gin.Context) {
	result, err := h.Sync.Sync(c.Request.Context(), nil)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("manual sync failed", zap.Error(err))
		}
		Error(c, http.StatusInternalServerError, "sync failed", map[string]any{
			"cached": result.Cached,
		})
		return
	}
	Ok(c, result, nil)
}

type syncProgressMessage struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// syncStream runs a sync with index-update progress streamed over a
// websocket, one JSON message per completed embedding batch, then the final
// result. A failed write stops the stream but never the sync itself.
func (h *AdminHandler) syncStream(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "sync aborted")

	ctx := c.Request.Context()
	var streamGone bool
	progress := func(done, total int) {
		if streamGone {
			return
		}
		if err := wsjson.Write(ctx, conn, syncProgressMessage{Done: done, Total: total}); err != nil {
			streamGone = true
		}
	}

	result, err := h.Sync.Sync(ctx, progress)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("streamed sync failed", zap.Error(err))
		}
		_ = wsjson.Write(ctx, conn, gin.H{"error": "sync failed"})
		return
	}
	if err := wsjson.Write(ctx, conn, result); err != nil {
		return
	}
	conn.Close(websocket.StatusNormalClosure, "sync complete")
}

// cacheInfo reads the whole active cache to report freshness and how many
// rows failed to decode. Diagnostic only; cache age never gates serving.
func (h *AdminHandler) cacheInfo(c *gin.Context) {
	ctx := c.Request.Context()
	_, info, err := h.Repo.ListActive(ctx)
	if err != nil {
		Error(c, http.StatusInternalServerError, "cache unavailable", nil)
		return
	}
	stored, err := h.Repo.CountMarkets(ctx)
	if err != nil {
		Error(c, http.StatusInternalServerError, "cache unavailable", nil)
		return
	}
	embeddings, err := h.Repo.CountEmbeddings(ctx)
	if err != nil {
		Error(c, http.StatusInternalServerError, "cache unavailable", nil)
		return
	}
	if h.Logger != nil {
		h.Logger.Info("cache inspected",
			zap.Int("active_markets", info.Count),
			zap.Int("skipped_rows", info.Skipped),
			zap.Duration("age", info.Age))
	}
	data := gin.H{
		"stored_rows":    stored,
		"active_markets": info.Count,
		"skipped_rows":   info.Skipped,
		"cached_at":      info.CachedAt,
		"age_seconds":    info.Age.Seconds(),
		"embeddings":     embeddings,
	}
	if h.Index != nil {
		if indexed, err := h.Index.Count(ctx); err == nil {
			data["indexed"] = indexed
		}
	}
	Ok(c, data, nil)
}
