package repository

import (
	"context"
	"time"

	"polyhedge/internal/models"
)

// CacheInfo describes one read of the market cache. Age is diagnostic only;
// Skipped counts rows whose payload could not be decoded.
type CacheInfo struct {
	Count    int
	CachedAt time.Time
	Age      time.Duration
	Skipped  int
}

// MarketRepository is the persistence boundary for the market cache and the
// similarity-index rows. A full refresh is atomic: ReplaceAll clears and
// re-inserts in one transaction, so readers see either the old or the new
// snapshot, never a mix.
type MarketRepository interface {
	ReplaceAll(ctx context.Context, markets []models.Market) error
	ListActive(ctx context.Context) ([]models.Market, CacheInfo, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]models.Market, error)
	CountMarkets(ctx context.Context) (int64, error)

	UpsertEmbeddings(ctx context.Context, items []models.MarketEmbedding) error
	ListEmbeddings(ctx context.Context, minLiquidity *float64) ([]models.MarketEmbedding, error)
	ListEmbeddingIDs(ctx context.Context) ([]string, error)
	CountEmbeddings(ctx context.Context) (int64, error)
}
