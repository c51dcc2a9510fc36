// Package index maintains the semantic similarity index over cached markets:
// embedding rows persisted through the repository and brute-force nearest
// neighbour search over them.
package index

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"polyhedge/internal/models"
	"polyhedge/internal/repository"
)

// Embedder turns texts into fixed-dimension vectors, one per input, in input
// order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Hit is one search result. Similarity is 1/(1+d) for Euclidean distance d,
// so it is in (0,1] and higher is closer.
type Hit struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
}

type Index struct {
	repo      repository.MarketRepository
	embedder  Embedder
	logger    *zap.Logger
	batchSize int
}

func New(repo repository.MarketRepository, embedder Embedder, logger *zap.Logger, batchSize int) *Index {
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{repo: repo, embedder: embedder, logger: logger, batchSize: batchSize}
}

// Upsert embeds the given markets in fixed-size batches and writes the rows.
// With resume set, markets already indexed are skipped, so re-running over
// the same input is a no-op; without it every market is re-embedded and its
// row overwritten. progress, if non-nil, is invoked after every
// completed batch including the final partial one; a panicking callback is
// recovered and does not abort the run. Returns the number of markets
// indexed.
func (x *Index) Upsert(ctx context.Context, markets []models.Market, resume bool, progress func(done, total int)) (int, error) {
	pending := markets
	if resume {
		existing, err := x.ExistingIDs(ctx)
		if err != nil {
			return 0, err
		}
		pending = make([]models.Market, 0, len(markets))
		for _, m := range markets {
			if _, ok := existing[m.ID]; ok {
				continue
			}
			pending = append(pending, m)
		}
		if skipped := len(markets) - len(pending); skipped > 0 {
			x.logger.Info("resuming index update", zap.Int("skipped", skipped), zap.Int("pending", len(pending)))
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	totalBatches := (len(pending) + x.batchSize - 1) / x.batchSize
	indexed := 0
	for batchNum := 0; batchNum < totalBatches; batchNum++ {
		start := batchNum * x.batchSize
		end := start + x.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, m := range batch {
			texts[i] = m.EmbeddingText()
		}
		vectors, err := x.embedder.Embed(ctx, texts)
		if err != nil {
			return indexed, err
		}

		now := time.Now().UTC()
		rows := make([]models.MarketEmbedding, 0, len(batch))
		for i, m := range batch {
			row, err := models.NewMarketEmbedding(m, vectors[i], now)
			if err != nil {
				x.logger.Warn("skipping market with unencodable vector", zap.String("id", m.ID), zap.Error(err))
				continue
			}
			rows = append(rows, row)
		}
		if err := x.repo.UpsertEmbeddings(ctx, rows); err != nil {
			return indexed, err
		}
		indexed += len(rows)

		notifyProgress(x.logger, progress, batchNum+1, totalBatches)
	}
	return indexed, nil
}

func notifyProgress(logger *zap.Logger, progress func(done, total int), done, total int) {
	if progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("progress callback panicked", zap.Any("panic", r))
		}
	}()
	progress(done, total)
}

// Query embeds the text and returns the k most similar indexed markets,
// restricted to active markets with at least minLiquidity when set.
func (x *Index) Query(ctx context.Context, text string, k int, minLiquidity *float64) ([]Hit, error) {
	vectors, err := x.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	query := vectors[0]

	rows, err := x.repo.ListEmbeddings(ctx, minLiquidity)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(rows))
	for _, row := range rows {
		stored, err := row.VectorValues()
		if err != nil {
			x.logger.Warn("skipping undecodable index row", zap.String("id", row.ID), zap.Error(err))
			continue
		}
		d := euclidean(query, stored)
		hits = append(hits, Hit{ID: row.ID, Similarity: 1 / (1 + d)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// ExistingIDs returns the set of market ids currently indexed.
func (x *Index) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	ids, err := x.repo.ListEmbeddingIDs(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (x *Index) Count(ctx context.Context) (int64, error) {
	return x.repo.CountEmbeddings(ctx)
}

// euclidean compares up to the shorter length; dimension mismatches only
// happen after an embedding-model change and degrade, not crash.
func euclidean(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
