package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"polyhedge/internal/config"
	"polyhedge/internal/index"
	"polyhedge/internal/models"
	"polyhedge/internal/repository"
)

// GammaFeed is the market source: paginated active-market listings from the
// /markets and /events endpoints.
type GammaFeed interface {
	ListMarketsPage(ctx context.Context, limit, offset int) ([]models.Market, error)
	ListEventsPage(ctx context.Context, limit, offset int) ([]models.Market, error)
}

// SimilarityIndex is the subset of the index the services need.
type SimilarityIndex interface {
	Upsert(ctx context.Context, markets []models.Market, resume bool, progress func(done, total int)) (int, error)
	Query(ctx context.Context, text string, k int, minLiquidity *float64) ([]index.Hit, error)
	Count(ctx context.Context) (int64, error)
}

// SyncResult summarizes one full cache refresh.
type SyncResult struct {
	MarketsFetched int           `json:"markets_fetched"`
	EventsFetched  int           `json:"events_fetched"`
	Cached         int           `json:"cached"`
	Indexed        int           `json:"indexed"`
	Duration       time.Duration `json:"duration"`
}

// MarketSyncService refreshes the local market cache from the source feeds
// and optionally brings the similarity index up to date.
type MarketSyncService struct {
	feed   GammaFeed
	repo   repository.MarketRepository
	index  SimilarityIndex
	logger *zap.Logger
	cfg    config.SyncConfig
}

func NewMarketSyncService(feed GammaFeed, repo repository.MarketRepository, index SimilarityIndex, logger *zap.Logger, cfg config.SyncConfig) *MarketSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 500
	}
	return &MarketSyncService{feed: feed, repo: repo, index: index, logger: logger, cfg: cfg}
}

// Sync fetches both feeds, merges them by market id with the events feed
// winning on conflict, replaces the cache in one transaction, then updates
// the index when configured. progress, if non-nil, receives index batch
// progress. A page fetch failure stops that feed but keeps what was already
// fetched; the refresh proceeds with the partial snapshot.
func (s *MarketSyncService) Sync(ctx context.Context, progress func(done, total int)) (SyncResult, error) {
	started := time.Now()
	result := SyncResult{}

	fromMarkets := s.fetchAll(ctx, s.feed.ListMarketsPage, "markets")
	result.MarketsFetched = len(fromMarkets)
	fromEvents := s.fetchAll(ctx, s.feed.ListEventsPage, "events")
	result.EventsFetched = len(fromEvents)

	merged := mergeByID(fromMarkets, fromEvents)
	result.Cached = len(merged)
	s.logger.Info("feeds fetched",
		zap.Int("markets", result.MarketsFetched),
		zap.Int("events", result.EventsFetched),
		zap.Int("merged", result.Cached))

	if err := s.repo.ReplaceAll(ctx, merged); err != nil {
		return result, err
	}

	if s.cfg.UpdateIndex && s.index != nil {
		indexed, err := s.index.Upsert(ctx, merged, s.cfg.Resume, progress)
		result.Indexed = indexed
		if err != nil {
			result.Duration = time.Since(started)
			return result, err
		}
	}

	result.Duration = time.Since(started)
	s.logger.Info("market sync complete",
		zap.Int("cached", result.Cached),
		zap.Int("indexed", result.Indexed),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// fetchAll pages through one feed until a short page, the configured market
// ceiling, or an error. Errors end the feed early with the pages already
// fetched kept.
func (s *MarketSyncService) fetchAll(ctx context.Context, page func(ctx context.Context, limit, offset int) ([]models.Market, error), feed string) []models.Market {
	var all []models.Market
	offset := 0
	for {
		batch, err := page(ctx, s.cfg.PageLimit, offset)
		if err != nil {
			s.logger.Warn("feed page fetch failed, keeping partial feed",
				zap.String("feed", feed), zap.Int("offset", offset), zap.Error(err))
			break
		}
		all = append(all, batch...)
		if len(batch) < s.cfg.PageLimit {
			break
		}
		if s.cfg.MaxMarkets > 0 && len(all) >= s.cfg.MaxMarkets {
			s.logger.Info("feed fetch hit market ceiling",
				zap.String("feed", feed), zap.Int("fetched", len(all)))
			break
		}
		offset += s.cfg.PageLimit
	}
	return all
}

// mergeByID deduplicates by market id. Later slices win on conflict and
// first-seen order is preserved, so events (fetched second) override the
// /markets rendition of the same market in place.
func mergeByID(feeds ...[]models.Market) []models.Market {
	position := make(map[string]int)
	var merged []models.Market
	for _, feed := range feeds {
		for _, m := range feed {
			if at, ok := position[m.ID]; ok {
				merged[at] = m
				continue
			}
			position[m.ID] = len(merged)
			merged = append(merged, m)
		}
	}
	return merged
}
