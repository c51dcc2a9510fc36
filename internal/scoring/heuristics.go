// Package scoring applies deterministic post-processing to raw relevance
// scores: liquid, high-volume markets get a boost, extreme-priced
// recommendations get penalized.
package scoring

import (
	"strings"

	"polyhedge/internal/models"
)

// Adjust fills AdjustedScore on every element and returns the slice. The
// adjustment is a pure function of the market's liquidity, volume and the
// recommended outcome's price, capped at 1.0.
func Adjust(scored []models.ScoredMarket) []models.ScoredMarket {
	for i := range scored {
		scored[i].AdjustedScore = adjustOne(scored[i])
	}
	return scored
}

func adjustOne(sm models.ScoredMarket) float64 {
	adjusted := sm.RelevanceScore

	switch {
	case sm.Market.Liquidity > 100000:
		adjusted *= 1.15
	case sm.Market.Liquidity > 50000:
		adjusted *= 1.10
	case sm.Market.Liquidity > 10000:
		adjusted *= 1.05
	case sm.Market.Liquidity < 1000:
		adjusted *= 0.8
	}

	if price, ok := recommendedPrice(sm); ok {
		switch {
		case price > 0.9 || price < 0.1:
			adjusted *= 0.7
		case price > 0.8 || price < 0.2:
			adjusted *= 0.85
		}
	}

	switch {
	case sm.Market.Volume > 1000000:
		adjusted *= 1.10
	case sm.Market.Volume > 100000:
		adjusted *= 1.05
	}

	if adjusted > 1.0 {
		adjusted = 1.0
	}
	return adjusted
}

// recommendedPrice looks the recommended outcome up by case-insensitive exact
// name. No match means no price signal, not an error.
func recommendedPrice(sm models.ScoredMarket) (float64, bool) {
	for _, o := range sm.Market.Outcomes {
		if strings.EqualFold(o.Name, sm.RecommendedOutcome) {
			return o.Price, true
		}
	}
	return 0, false
}
