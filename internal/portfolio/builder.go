// Package portfolio turns scored markets into hedge bundles: which markets to
// hold, which outcome to buy, and how the budget splits across the bets.
package portfolio

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"polyhedge/internal/capability"
	"polyhedge/internal/models"
)

// Builder produces single diverse bundles and themed multi-bundle sets.
// Themed bundles are mutually exclusive alternatives, so each one is sized
// against the full budget.
type Builder struct {
	classifier capability.ThemeClassifier
	logger     *zap.Logger
	maxMarkets int
}

func NewBuilder(classifier capability.ThemeClassifier, logger *zap.Logger, maxMarkets int) *Builder {
	if maxMarkets <= 0 {
		maxMarkets = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{classifier: classifier, logger: logger, maxMarkets: maxMarkets}
}

// SelectDiverse picks up to maxCount markets greedily in input order,
// skipping any whose question shares half or more of its words with the
// questions already taken. Markets scoring below 0.1 are excluded up front
// unless nothing clears the bar, in which case the first maxCount inputs
// become the candidate pool.
func SelectDiverse(scored []models.ScoredMarket, maxCount int) []models.ScoredMarket {
	if len(scored) == 0 {
		return nil
	}
	candidates := make([]models.ScoredMarket, 0, len(scored))
	for _, sm := range scored {
		if sm.AdjustedScore >= 0.1 {
			candidates = append(candidates, sm)
		}
	}
	if len(candidates) == 0 {
		candidates = scored
		if len(candidates) > maxCount {
			candidates = candidates[:maxCount]
		}
	}

	var selected []models.ScoredMarket
	seen := make(map[string]struct{})
	for _, sm := range candidates {
		if len(selected) >= maxCount {
			break
		}
		// Overlap is a ratio of distinct words; repeated words in a question
		// must not dilute it.
		words := questionWords(sm.Market.Question)
		overlap := 0
		for w := range words {
			if _, ok := seen[w]; ok {
				overlap++
			}
		}
		denom := len(words)
		if denom == 0 {
			denom = 1
		}
		if float64(overlap)/float64(denom) >= 0.5 {
			continue
		}
		selected = append(selected, sm)
		for w := range words {
			seen[w] = struct{}{}
		}
	}
	return selected
}

func questionWords(question string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(question)) {
		words[w] = struct{}{}
	}
	return words
}

// AllocateBudget splits the budget across the selected markets in proportion
// to their adjusted scores (equally when all scores are zero). Allocations
// are rounded to cents.
func AllocateBudget(selected []models.ScoredMarket, budget decimal.Decimal) []models.HedgeBet {
	if len(selected) == 0 {
		return nil
	}
	totalScore := 0.0
	for _, sm := range selected {
		totalScore += sm.AdjustedScore
	}

	bets := make([]models.HedgeBet, 0, len(selected))
	for _, sm := range selected {
		weight := 1.0 / float64(len(selected))
		if totalScore > 0 {
			weight = sm.AdjustedScore / totalScore
		}
		price := recommendedPrice(sm)
		bets = append(bets, newBet(sm, sm.RecommendedOutcome, budget, weight, price))
	}
	return bets
}

func newBet(sm models.ScoredMarket, outcome string, budget decimal.Decimal, weight, price float64) models.HedgeBet {
	allocation := budget.Mul(decimal.NewFromFloat(weight)).Round(2)
	multiplier := 1.0
	payout := allocation
	if price > 0 {
		multiplier = 1 / price
		payout = allocation.Div(decimal.NewFromFloat(price)).Round(2)
	}
	return models.HedgeBet{
		Market:            sm,
		Outcome:           outcome,
		Allocation:        allocation,
		AllocationPercent: weight * 100,
		CurrentPrice:      price,
		PotentialPayout:   payout,
		PayoutMultiplier:  multiplier,
	}
}

// BuildBundle assembles a single diverse bundle: select, allocate, summarize.
// concernTerms name the risk facets the caller wants covered; terms found in
// the selected markets' questions or explanations are reported as covered.
func (b *Builder) BuildBundle(scored []models.ScoredMarket, budget decimal.Decimal, concernTerms []string) models.HedgeBundle {
	selected := SelectDiverse(scored, b.maxMarkets)
	if len(selected) == 0 {
		return models.HedgeBundle{
			Budget:          budget,
			TotalAllocated:  decimal.Zero,
			CoverageSummary: "No suitable markets found for hedging.",
		}
	}

	bets := AllocateBudget(selected, budget)
	covered := coveredFactors(selected, concernTerms)

	total := decimal.Zero
	for _, bet := range bets {
		total = total.Add(bet.Allocation)
	}

	return models.HedgeBundle{
		Budget:          budget,
		Bets:            bets,
		TotalAllocated:  total,
		CoverageSummary: buildCoverageSummary(bets, covered),
		RiskFactors:     covered,
	}
}

// coveredFactors reports which concern terms appear in the selected markets'
// questions or correlation explanations, preserving term order.
func coveredFactors(selected []models.ScoredMarket, terms []string) []string {
	var covered []string
	for _, term := range terms {
		lowered := strings.ToLower(term)
		if lowered == "" {
			continue
		}
		for _, sm := range selected {
			text := strings.ToLower(sm.CorrelationExplanation + " " + sm.Market.Question)
			if strings.Contains(text, lowered) {
				covered = append(covered, term)
				break
			}
		}
	}
	return covered
}

func buildCoverageSummary(bets []models.HedgeBet, covered []string) string {
	if len(bets) == 0 {
		return "No hedges recommended."
	}
	lines := []string{fmt.Sprintf("Hedge bundle with %d market(s):", len(bets))}
	if len(covered) > 0 {
		lines = append(lines, fmt.Sprintf("Covers risk factors: %s", strings.Join(covered, ", ")))
	}
	totalPayout := decimal.Zero
	totalAllocation := decimal.Zero
	for _, bet := range bets {
		totalPayout = totalPayout.Add(bet.PotentialPayout)
		totalAllocation = totalAllocation.Add(bet.Allocation)
	}
	avgMultiplier := 1.0
	if totalAllocation.IsPositive() {
		avgMultiplier = totalPayout.Div(totalAllocation).InexactFloat64()
	}
	lines = append(lines, fmt.Sprintf("Average payout multiplier: %.1fx", avgMultiplier))
	return strings.Join(lines, " ")
}

// BuildThemedBundles groups the candidates into hedge themes and builds one
// bundle per theme, each sized against the full budget. A classifier failure
// degrades to a single "Primary Hedge" theme holding every candidate at
// correlation 0.5. An empty candidate list yields one well-formed empty
// bundle.
func (b *Builder) BuildThemedBundles(ctx context.Context, markets []models.Market, concern string, budget decimal.Decimal, notes string) []models.HedgeBundle {
	if len(markets) == 0 {
		b.logger.Warn("no candidate markets for themed bundles")
		return []models.HedgeBundle{{
			Budget:          budget,
			TotalAllocated:  decimal.Zero,
			CoverageSummary: "No markets available for hedging.",
		}}
	}

	themes, err := b.classifier.ClassifyThemes(ctx, markets, concern, notes)
	if err != nil || len(themes) == 0 {
		if err != nil {
			b.logger.Warn("theme classification failed, using single-theme fallback", zap.Error(err))
		}
		themes = []capability.Theme{fallbackTheme(markets)}
	}

	bundles := make([]models.HedgeBundle, 0, len(themes))
	for _, theme := range themes {
		bundles = append(bundles, b.buildThemeBundle(theme, markets, budget))
	}
	return bundles
}

func fallbackTheme(markets []models.Market) capability.Theme {
	refs := make([]capability.ThemeMarket, 0, len(markets))
	for i := range markets {
		refs = append(refs, capability.ThemeMarket{Index: i + 1, CorrelationScore: 0.5})
	}
	return capability.Theme{
		Name:        "Primary Hedge",
		Description: "All relevant markets",
		Markets:     refs,
	}
}

// buildThemeBundle allocates the full budget across one theme's markets,
// weighted by correlation score (equally when all scores are zero). Markets
// whose recommendation cannot resolve to any outcome are dropped.
func (b *Builder) buildThemeBundle(theme capability.Theme, markets []models.Market, budget decimal.Decimal) models.HedgeBundle {
	summary := fmt.Sprintf("%s: %s", theme.Name, theme.Description)

	totalCorrelation := 0.0
	for _, ref := range theme.Markets {
		totalCorrelation += ref.CorrelationScore
	}

	bets := make([]models.HedgeBet, 0, len(theme.Markets))
	for _, ref := range theme.Markets {
		if ref.Index < 1 || ref.Index > len(markets) {
			continue
		}
		market := markets[ref.Index-1]

		weight := 1.0 / float64(len(theme.Markets))
		if totalCorrelation > 0 {
			weight = ref.CorrelationScore / totalCorrelation
		}

		outcome, ok := ResolveOutcome(market.Outcomes, ref.RecommendedOutcome)
		if !ok {
			b.logger.Debug("dropping market with no outcomes from theme",
				zap.String("theme", theme.Name), zap.String("id", market.ID))
			continue
		}

		explanation := ref.Explanation
		if explanation == "" {
			explanation = theme.Description
		}
		sm := models.ScoredMarket{
			Market:                 market,
			RelevanceScore:         ref.CorrelationScore,
			AdjustedScore:          ref.CorrelationScore,
			CorrelationDirection:   "positive",
			CorrelationExplanation: explanation,
			RecommendedOutcome:     outcome.Name,
		}
		bets = append(bets, newBet(sm, outcome.Name, budget, weight, outcome.Price))
	}

	total := decimal.Zero
	for _, bet := range bets {
		total = total.Add(bet.Allocation)
	}
	return models.HedgeBundle{
		Budget:          budget,
		Bets:            bets,
		TotalAllocated:  total,
		CoverageSummary: summary,
	}
}
