// Package capability defines the model-backed judgment interfaces the engine
// depends on. Implementations are expected to fail (timeouts, quota, bad
// JSON); callers carry deterministic fallbacks and never treat a capability
// error as fatal.
package capability

import (
	"context"

	"polyhedge/internal/models"
)

// Ranker picks the markets most relevant to a hedging concern out of one
// bounded batch. Returned IDs must be a subset of the batch, at most topK,
// best first.
type Ranker interface {
	RankMarkets(ctx context.Context, batch []models.Market, concern, notes string, topK int) ([]string, error)
}

// ThemeMarket references one market of a theme by its 1-based position in the
// candidate list handed to ClassifyThemes.
type ThemeMarket struct {
	Index              int     `json:"index"`
	CorrelationScore   float64 `json:"correlation_score"`
	Explanation        string  `json:"explanation"`
	RecommendedOutcome string  `json:"recommended_outcome"`
}

// Theme is a group of candidate markets that hedge the same facet of the
// user's concern.
type Theme struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Markets     []ThemeMarket `json:"markets"`
}

// ThemeClassifier groups candidates into hedge themes and judges how strongly
// each market correlates with the concern.
type ThemeClassifier interface {
	ClassifyThemes(ctx context.Context, markets []models.Market, concern, notes string) ([]Theme, error)
}
