package service

import (
	"context"

	"polyhedge/internal/index"
	"polyhedge/internal/models"
	"polyhedge/internal/repository"
)

// memRepo is an in-memory MarketRepository covering what the service tests
// exercise.
type memRepo struct {
	markets    []models.Market
	replaceErr error
}

func (r *memRepo) ReplaceAll(_ context.Context, markets []models.Market) error {
	if r.replaceErr != nil {
		return r.replaceErr
	}
	r.markets = markets
	return nil
}

func (r *memRepo) ListActive(_ context.Context) ([]models.Market, repository.CacheInfo, error) {
	return r.markets, repository.CacheInfo{Count: len(r.markets)}, nil
}

func (r *memRepo) GetByIDs(_ context.Context, ids []string) (map[string]models.Market, error) {
	out := map[string]models.Market{}
	for _, m := range r.markets {
		out[m.ID] = m
	}
	filtered := map[string]models.Market{}
	for _, id := range ids {
		if m, ok := out[id]; ok {
			filtered[id] = m
		}
	}
	return filtered, nil
}

func (r *memRepo) CountMarkets(_ context.Context) (int64, error) {
	return int64(len(r.markets)), nil
}

func (r *memRepo) UpsertEmbeddings(_ context.Context, _ []models.MarketEmbedding) error { return nil }

func (r *memRepo) ListEmbeddings(_ context.Context, _ *float64) ([]models.MarketEmbedding, error) {
	return nil, nil
}

func (r *memRepo) ListEmbeddingIDs(_ context.Context) ([]string, error) { return nil, nil }

func (r *memRepo) CountEmbeddings(_ context.Context) (int64, error) { return 0, nil }

// stubIndex records upserts and answers queries from a scripted hit list.
type stubIndex struct {
	upserted []models.Market
	hits     []index.Hit
	queryErr error
}

func (s *stubIndex) Upsert(_ context.Context, markets []models.Market, _ bool, progress func(done, total int)) (int, error) {
	s.upserted = markets
	if progress != nil {
		progress(1, 1)
	}
	return len(markets), nil
}

func (s *stubIndex) Query(_ context.Context, _ string, k int, _ *float64) ([]index.Hit, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	hits := s.hits
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *stubIndex) Count(_ context.Context) (int64, error) {
	return int64(len(s.hits)), nil
}

// pagedFeed serves scripted pages per endpoint. A nil page slice means the
// feed errors at that offset.
type pagedFeed struct {
	marketPages [][]models.Market
	eventPages  [][]models.Market
	marketErrAt int // page number that fails, -1 for never
	eventErrAt  int
}

func (f *pagedFeed) page(pages [][]models.Market, errAt, limit, offset int) ([]models.Market, error) {
	n := offset / limit
	if errAt >= 0 && n == errAt {
		return nil, context.DeadlineExceeded
	}
	if n >= len(pages) {
		return nil, nil
	}
	return pages[n], nil
}

func (f *pagedFeed) ListMarketsPage(_ context.Context, limit, offset int) ([]models.Market, error) {
	return f.page(f.marketPages, f.marketErrAt, limit, offset)
}

func (f *pagedFeed) ListEventsPage(_ context.Context, limit, offset int) ([]models.Market, error) {
	return f.page(f.eventPages, f.eventErrAt, limit, offset)
}
