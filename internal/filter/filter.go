// Package filter narrows a large candidate list down to the markets most
// relevant to a concern, one bounded batch at a time.
package filter

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"polyhedge/internal/capability"
	"polyhedge/internal/models"
)

type Options struct {
	BatchSize    int
	TopKPerBatch int
	Notes        string
}

// BatchFilter asks the ranker for the top K of each fixed-size batch and
// concatenates the winners in batch order. There is deliberately no
// cross-batch re-ranking: batches stay independent so one capability failure
// costs one batch, not the run.
type BatchFilter struct {
	ranker capability.Ranker
	logger *zap.Logger
}

func New(ranker capability.Ranker, logger *zap.Logger) *BatchFilter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchFilter{ranker: ranker, logger: logger}
}

// FilterInBatches filters candidates batch by batch. When the ranker fails
// for a batch, that batch falls back to its own top K by liquidity, so the
// result is never empty unless the input was.
func (f *BatchFilter) FilterInBatches(ctx context.Context, candidates []models.Market, concern string, opts Options) []models.Market {
	if len(candidates) == 0 {
		return nil
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	topK := opts.TopKPerBatch
	if topK <= 0 {
		topK = 10
	}

	totalBatches := (len(candidates) + batchSize - 1) / batchSize
	var selected []models.Market
	// Batches run sequentially: the ranker is rate limited and the fallback
	// order must be deterministic.
	for batchNum := 0; batchNum < totalBatches; batchNum++ {
		start := batchNum * batchSize
		end := start + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		picked, err := f.rankBatch(ctx, batch, concern, opts.Notes, topK)
		if err != nil {
			f.logger.Warn("ranker failed for batch, falling back to liquidity",
				zap.Int("batch", batchNum+1), zap.Int("of", totalBatches), zap.Error(err))
			picked = topByLiquidity(batch, topK)
		}
		selected = append(selected, picked...)
	}
	return selected
}

func (f *BatchFilter) rankBatch(ctx context.Context, batch []models.Market, concern, notes string, topK int) ([]models.Market, error) {
	ids, err := f.ranker.RankMarkets(ctx, batch, concern, notes, topK)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Market, len(batch))
	for _, m := range batch {
		byID[m.ID] = m
	}
	picked := make([]models.Market, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			picked = append(picked, m)
		}
	}
	// The top-K bound holds even if a ranker ignores it.
	if len(picked) > topK {
		picked = picked[:topK]
	}
	return picked, nil
}

// topByLiquidity returns the batch's k most liquid markets, most liquid
// first, ties kept in input order.
func topByLiquidity(batch []models.Market, k int) []models.Market {
	sorted := make([]models.Market, len(batch))
	copy(sorted, batch)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Liquidity > sorted[j].Liquidity })
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}
