package portfolio

import (
	"strings"

	"polyhedge/internal/models"
)

// ResolveOutcome maps a recommended outcome name onto one of the market's
// actual outcomes. Resolution is three-tier: case-insensitive exact match,
// then substring match in either direction ("Trump" vs "Donald Trump"), then
// the cheapest outcome as the highest-leverage default. A market with no
// outcomes resolves to nothing.
func ResolveOutcome(outcomes []models.Outcome, recommended string) (models.Outcome, bool) {
	if len(outcomes) == 0 {
		return models.Outcome{}, false
	}

	if recommended != "" {
		for _, o := range outcomes {
			if strings.EqualFold(o.Name, recommended) {
				return o, true
			}
		}
		lowered := strings.ToLower(recommended)
		for _, o := range outcomes {
			name := strings.ToLower(o.Name)
			if strings.Contains(name, lowered) || strings.Contains(lowered, name) {
				return o, true
			}
		}
	}

	cheapest := outcomes[0]
	for _, o := range outcomes[1:] {
		if o.Price < cheapest.Price {
			cheapest = o
		}
	}
	return cheapest, true
}

// recommendedPrice returns the exact-match price of the recommended outcome,
// defaulting to 0.5 when it cannot be resolved.
func recommendedPrice(sm models.ScoredMarket) float64 {
	for _, o := range sm.Market.Outcomes {
		if strings.EqualFold(o.Name, sm.RecommendedOutcome) {
			return o.Price
		}
	}
	return 0.5
}
