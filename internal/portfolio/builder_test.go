package portfolio

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"polyhedge/internal/capability"
	"polyhedge/internal/models"
)

func scored(id, question string, adjusted float64, outcomes []models.Outcome, recommended string) models.ScoredMarket {
	return models.ScoredMarket{
		Market: models.Market{
			ID:       id,
			Question: question,
			Outcomes: outcomes,
		},
		RelevanceScore:     adjusted,
		AdjustedScore:      adjusted,
		RecommendedOutcome: recommended,
	}
}

func yes(price float64) []models.Outcome {
	return []models.Outcome{{Name: "Yes", Price: price}, {Name: "No", Price: 1 - price}}
}

func TestAllocateBudgetProportionalToScores(t *testing.T) {
	selected := []models.ScoredMarket{
		scored("a", "question one", 0.2, yes(0.5), "Yes"),
		scored("b", "question two", 0.5, yes(0.2), "Yes"),
		scored("c", "question three", 0.3, yes(0.8), "Yes"),
	}
	bets := AllocateBudget(selected, decimal.NewFromInt(100))
	if len(bets) != 3 {
		t.Fatalf("bets = %d, want 3", len(bets))
	}

	wantAlloc := []string{"20", "50", "30"}
	wantMult := []float64{2, 5, 1.25}
	wantPayout := []string{"40", "250", "37.5"}
	for i, bet := range bets {
		if !bet.Allocation.Equal(decimal.RequireFromString(wantAlloc[i])) {
			t.Fatalf("bet %d allocation = %s, want %s", i, bet.Allocation, wantAlloc[i])
		}
		if bet.PayoutMultiplier != wantMult[i] {
			t.Fatalf("bet %d multiplier = %v, want %v", i, bet.PayoutMultiplier, wantMult[i])
		}
		if !bet.PotentialPayout.Equal(decimal.RequireFromString(wantPayout[i])) {
			t.Fatalf("bet %d payout = %s, want %s", i, bet.PotentialPayout, wantPayout[i])
		}
	}
}

func TestAllocateBudgetEqualWhenAllScoresZero(t *testing.T) {
	selected := []models.ScoredMarket{
		scored("a", "one", 0, yes(0.5), "Yes"),
		scored("b", "two", 0, yes(0.5), "Yes"),
	}
	bets := AllocateBudget(selected, decimal.NewFromInt(100))
	for i, bet := range bets {
		if !bet.Allocation.Equal(decimal.NewFromInt(50)) {
			t.Fatalf("bet %d allocation = %s, want 50", i, bet.Allocation)
		}
	}
}

func TestSelectDiverseSkipsOverlappingQuestions(t *testing.T) {
	input := []models.ScoredMarket{
		scored("a", "will the port strike continue", 0.9, yes(0.5), "Yes"),
		scored("b", "will the port strike end", 0.8, yes(0.5), "Yes"),
		scored("c", "crude oil price above eighty", 0.7, yes(0.5), "Yes"),
	}
	selected := SelectDiverse(input, 8)
	if len(selected) != 2 {
		t.Fatalf("selected = %d, want 2", len(selected))
	}
	// First occurrence wins; the near-duplicate second market is dropped.
	if selected[0].Market.ID != "a" || selected[1].Market.ID != "c" {
		t.Fatalf("selected ids = [%s %s], want [a c]", selected[0].Market.ID, selected[1].Market.ID)
	}
}

func TestSelectDiverseOverlapIgnoresRepeatedWords(t *testing.T) {
	input := []models.ScoredMarket{
		scored("a", "alpha beta", 0.9, yes(0.5), "Yes"),
		// Distinct words {alpha beta gamma}: two of three already seen, so
		// the repeats of gamma must not drag the ratio under 0.5.
		scored("b", "alpha beta gamma gamma gamma gamma", 0.8, yes(0.5), "Yes"),
	}
	selected := SelectDiverse(input, 8)
	if len(selected) != 1 {
		t.Fatalf("selected = %d, want 1", len(selected))
	}
	if selected[0].Market.ID != "a" {
		t.Fatalf("selected id = %s, want a", selected[0].Market.ID)
	}
}

func TestSelectDiverseFallsBackWhenNothingClearsThreshold(t *testing.T) {
	input := []models.ScoredMarket{
		scored("a", "one alpha", 0.05, yes(0.5), "Yes"),
		scored("b", "two beta", 0.04, yes(0.5), "Yes"),
		scored("c", "three gamma", 0.03, yes(0.5), "Yes"),
	}
	selected := SelectDiverse(input, 2)
	if len(selected) != 2 {
		t.Fatalf("selected = %d, want 2", len(selected))
	}
	if selected[0].Market.ID != "a" || selected[1].Market.ID != "b" {
		t.Fatalf("selected ids = [%s %s], want [a b]", selected[0].Market.ID, selected[1].Market.ID)
	}
}

func TestResolveOutcome(t *testing.T) {
	outcomes := []models.Outcome{
		{Name: "Donald Trump", Price: 0.45},
		{Name: "Gavin Newsom", Price: 0.12},
	}

	got, ok := ResolveOutcome(outcomes, "donald trump")
	if !ok || got.Name != "Donald Trump" {
		t.Fatalf("exact match = %+v ok=%v", got, ok)
	}

	got, ok = ResolveOutcome(outcomes, "Trump")
	if !ok || got.Name != "Donald Trump" {
		t.Fatalf("substring match = %+v ok=%v", got, ok)
	}

	got, ok = ResolveOutcome(outcomes, "Somebody Else")
	if !ok || got.Name != "Gavin Newsom" {
		t.Fatalf("cheapest fallback = %+v ok=%v", got, ok)
	}

	if _, ok = ResolveOutcome(nil, "Yes"); ok {
		t.Fatal("no outcomes should not resolve")
	}
}

type stubClassifier struct {
	themes []capability.Theme
	err    error
	calls  int
}

func (c *stubClassifier) ClassifyThemes(_ context.Context, _ []models.Market, _, _ string) ([]capability.Theme, error) {
	c.calls++
	return c.themes, c.err
}

func TestBuildThemedBundlesFullBudgetPerTheme(t *testing.T) {
	markets := []models.Market{
		{ID: "a", Question: "strike lasts", Outcomes: yes(0.5)},
		{ID: "b", Question: "shipping rates spike", Outcomes: yes(0.25)},
	}
	classifier := &stubClassifier{themes: []capability.Theme{
		{
			Name:        "Labor Disruption",
			Description: "Direct strike exposure",
			Markets: []capability.ThemeMarket{
				{Index: 1, CorrelationScore: 0.4, RecommendedOutcome: "Yes"},
				{Index: 2, CorrelationScore: 0.6, RecommendedOutcome: "Yes"},
			},
		},
		{
			Name:        "Freight Costs",
			Description: "Second-order price effects",
			Markets: []capability.ThemeMarket{
				{Index: 2, CorrelationScore: 1.0, RecommendedOutcome: "Yes"},
			},
		},
	}}
	b := NewBuilder(classifier, nil, 8)

	bundles := b.BuildThemedBundles(context.Background(), markets, "port strike", decimal.NewFromInt(100), "")
	if len(bundles) != 2 {
		t.Fatalf("bundles = %d, want 2", len(bundles))
	}

	first := bundles[0]
	if !first.Bets[0].Allocation.Equal(decimal.NewFromInt(40)) ||
		!first.Bets[1].Allocation.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("first bundle allocations = %s/%s, want 40/60",
			first.Bets[0].Allocation, first.Bets[1].Allocation)
	}
	if !first.TotalAllocated.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("first bundle total = %s, want 100", first.TotalAllocated)
	}
	if first.CoverageSummary != "Labor Disruption: Direct strike exposure" {
		t.Fatalf("coverage summary = %q", first.CoverageSummary)
	}

	// Mutually exclusive alternatives: the second bundle also gets the full
	// budget, not the remainder.
	second := bundles[1]
	if !second.TotalAllocated.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("second bundle total = %s, want 100", second.TotalAllocated)
	}
}

func TestBuildThemedBundlesClassifierFailureFallsBack(t *testing.T) {
	markets := []models.Market{
		{ID: "a", Question: "one", Outcomes: yes(0.5)},
		{ID: "b", Question: "two", Outcomes: yes(0.5)},
	}
	classifier := &stubClassifier{err: errors.New("capability down")}
	b := NewBuilder(classifier, nil, 8)

	bundles := b.BuildThemedBundles(context.Background(), markets, "anything", decimal.NewFromInt(100), "")
	if len(bundles) != 1 {
		t.Fatalf("bundles = %d, want 1", len(bundles))
	}
	bundle := bundles[0]
	if bundle.ThemeName() != "Primary Hedge" {
		t.Fatalf("theme = %q, want Primary Hedge", bundle.ThemeName())
	}
	if len(bundle.Bets) != 2 {
		t.Fatalf("bets = %d, want 2", len(bundle.Bets))
	}
	for i, bet := range bundle.Bets {
		if bet.Market.RelevanceScore != 0.5 {
			t.Fatalf("bet %d correlation = %v, want 0.5", i, bet.Market.RelevanceScore)
		}
		if !bet.Allocation.Equal(decimal.NewFromInt(50)) {
			t.Fatalf("bet %d allocation = %s, want 50", i, bet.Allocation)
		}
	}
}

func TestBuildThemedBundlesEmptyInput(t *testing.T) {
	b := NewBuilder(&stubClassifier{}, nil, 8)
	bundles := b.BuildThemedBundles(context.Background(), nil, "anything", decimal.NewFromInt(100), "")
	if len(bundles) != 1 {
		t.Fatalf("bundles = %d, want 1", len(bundles))
	}
	bundle := bundles[0]
	if len(bundle.Bets) != 0 || !bundle.TotalAllocated.IsZero() {
		t.Fatalf("empty bundle = %+v", bundle)
	}
	if bundle.CoverageSummary != "No markets available for hedging." {
		t.Fatalf("coverage summary = %q", bundle.CoverageSummary)
	}
}

func TestBuildThemedBundlesDropsMarketsWithoutOutcomes(t *testing.T) {
	markets := []models.Market{
		{ID: "a", Question: "no outcomes yet"},
		{ID: "b", Question: "tradeable", Outcomes: yes(0.5)},
	}
	classifier := &stubClassifier{themes: []capability.Theme{{
		Name:        "Theme",
		Description: "d",
		Markets: []capability.ThemeMarket{
			{Index: 1, CorrelationScore: 0.5},
			{Index: 2, CorrelationScore: 0.5, RecommendedOutcome: "Yes"},
		},
	}}}
	b := NewBuilder(classifier, nil, 8)

	bundles := b.BuildThemedBundles(context.Background(), markets, "anything", decimal.NewFromInt(100), "")
	if len(bundles) != 1 || len(bundles[0].Bets) != 1 {
		t.Fatalf("bundles = %+v, want one bundle with one bet", bundles)
	}
	if bundles[0].Bets[0].Market.Market.ID != "b" {
		t.Fatalf("kept bet = %s, want b", bundles[0].Bets[0].Market.Market.ID)
	}
}

func TestBuildBundleCoversConcernTerms(t *testing.T) {
	b := NewBuilder(&stubClassifier{}, nil, 8)
	scoredMarkets := []models.ScoredMarket{
		scored("a", "will the port strike continue", 0.9, yes(0.5), "Yes"),
	}
	bundle := b.BuildBundle(scoredMarkets, decimal.NewFromInt(100), []string{"strike", "tariffs"})
	if len(bundle.RiskFactors) != 1 || bundle.RiskFactors[0] != "strike" {
		t.Fatalf("risk factors = %v, want [strike]", bundle.RiskFactors)
	}
	if !bundle.TotalAllocated.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("total allocated = %s, want 100", bundle.TotalAllocated)
	}
}
