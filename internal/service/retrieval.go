package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"polyhedge/internal/config"
	"polyhedge/internal/models"
	"polyhedge/internal/repository"
)

// ErrIndexUnavailable means the service was built without a similarity
// index. It is a configuration error, distinct from a search with no
// matches.
var ErrIndexUnavailable = errors.New("similarity index unavailable")

// ScoredHit is one retrieval result: a full market record with its
// similarity to the query.
type ScoredHit struct {
	Market models.Market `json:"market"`
	Score  float64       `json:"score"`
}

// RetrievalService answers free-text market searches from the similarity
// index, resolving hits back to full records through the cache.
type RetrievalService struct {
	index  SimilarityIndex
	repo   repository.MarketRepository
	logger *zap.Logger
	cfg    config.RetrievalConfig
}

func NewRetrievalService(index SimilarityIndex, repo repository.MarketRepository, logger *zap.Logger, cfg config.RetrievalConfig) *RetrievalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetrievalService{index: index, repo: repo, logger: logger, cfg: cfg}
}

// Search returns up to nResults markets most similar to the query, best
// first. Zero or negative parameters fall back to the configured defaults.
// Hits whose ids are no longer in the cache are dropped silently; an empty
// result is not an error.
func (s *RetrievalService) Search(ctx context.Context, query string, nResults int, minLiquidity *float64) ([]ScoredHit, error) {
	if s.index == nil {
		return nil, ErrIndexUnavailable
	}
	if nResults <= 0 {
		nResults = s.cfg.NResults
	}
	if minLiquidity == nil && s.cfg.MinLiquidity > 0 {
		min := s.cfg.MinLiquidity
		minLiquidity = &min
	}

	hits, err := s.index.Query(ctx, query, nResults, minLiquidity)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(hits))
	for _, hit := range hits {
		ids = append(ids, hit.ID)
	}
	byID, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]ScoredHit, 0, len(hits))
	for _, hit := range hits {
		market, ok := byID[hit.ID]
		if !ok {
			s.logger.Debug("index hit missing from cache", zap.String("id", hit.ID))
			continue
		}
		results = append(results, ScoredHit{Market: market, Score: hit.Similarity})
	}
	return results, nil
}
