package models

import "fmt"

// Outcome is a single tradeable outcome of a market. Price is the market
// price in [0,1] and doubles as the implied probability.
type Outcome struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Market is a canonical prediction-market record as served by the source
// feeds. It round-trips through the cache as JSON; a market with no outcomes
// is legal but cannot be scored or bet on.
type Market struct {
	ID          string    `json:"id"`
	Question    string    `json:"question"`
	Description string    `json:"description,omitempty"`
	Outcomes    []Outcome `json:"outcomes,omitempty"`
	Liquidity   float64   `json:"liquidity"`
	Volume      float64   `json:"volume"`
	EndDate     *string   `json:"end_date,omitempty"`
	Active      bool      `json:"active"`
	Slug        *string   `json:"slug,omitempty"`
}

// URL returns the public market page, or "" when no slug is known.
func (m Market) URL() string {
	if m.Slug == nil || *m.Slug == "" {
		return ""
	}
	return fmt.Sprintf("https://polymarket.com/event/%s", *m.Slug)
}

// EmbeddingText is the text indexed for semantic search.
func (m Market) EmbeddingText() string {
	if m.Description == "" {
		return m.Question
	}
	return m.Question + " " + m.Description
}

// ScoredMarket is a market annotated with relevance judgments.
type ScoredMarket struct {
	Market Market `json:"market"`
	// RelevanceScore is the raw capability judgment in [0,1].
	RelevanceScore float64 `json:"relevance_score"`
	// AdjustedScore is RelevanceScore after heuristic post-processing
	// (liquidity, volume, price extremity). Always >= 0.
	AdjustedScore float64 `json:"adjusted_score"`
	// CorrelationDirection is "positive" when the market's YES outcome
	// co-occurs with the hedged risk materializing, "negative" otherwise.
	CorrelationDirection   string `json:"correlation_direction"`
	CorrelationExplanation string `json:"correlation_explanation"`
	// RecommendedOutcome names the outcome to bet on. It is resolved
	// against Market.Outcomes before any money is allocated.
	RecommendedOutcome string `json:"recommended_outcome"`
}
