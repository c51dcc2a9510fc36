package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"polyhedge/internal/config"
	"polyhedge/internal/filter"
	"polyhedge/internal/index"
	"polyhedge/internal/models"
	"polyhedge/internal/risk"
)

// passthroughFilter returns its input unchanged and records the concern.
type passthroughFilter struct {
	concern string
}

func (f *passthroughFilter) FilterInBatches(_ context.Context, candidates []models.Market, concern string, _ filter.Options) []models.Market {
	f.concern = concern
	return candidates
}

// singleBundleBuilder wraps every candidate into one bundle at equal weight.
type singleBundleBuilder struct {
	gotBudget decimal.Decimal
	gotScored []models.ScoredMarket
	gotTerms  []string
}

func (b *singleBundleBuilder) BuildBundle(scored []models.ScoredMarket, budget decimal.Decimal, concernTerms []string) models.HedgeBundle {
	b.gotBudget = budget
	b.gotScored = scored
	b.gotTerms = concernTerms
	return models.HedgeBundle{
		Budget:          budget,
		TotalAllocated:  decimal.Zero,
		CoverageSummary: "Diverse: test bundle",
	}
}

func (b *singleBundleBuilder) BuildThemedBundles(_ context.Context, markets []models.Market, _ string, budget decimal.Decimal, _ string) []models.HedgeBundle {
	b.gotBudget = budget
	bets := make([]models.HedgeBet, 0, len(markets))
	for _, m := range markets {
		alloc := budget.Div(decimal.NewFromInt(int64(len(markets)))).Round(2)
		bets = append(bets, models.HedgeBet{
			Market:           models.ScoredMarket{Market: m},
			Outcome:          "Yes",
			Allocation:       alloc,
			CurrentPrice:     0.5,
			PayoutMultiplier: 2,
			PotentialPayout:  alloc.Mul(decimal.NewFromInt(2)),
		})
	}
	total := decimal.Zero
	for _, bet := range bets {
		total = total.Add(bet.Allocation)
	}
	return []models.HedgeBundle{{
		Budget:          budget,
		Bets:            bets,
		TotalAllocated:  total,
		CoverageSummary: "Test: all candidates",
	}}
}

func newHedgeService(idx SimilarityIndex, repo *memRepo, f MarketFilter, b BundleBuilder) *HedgeService {
	retrieval := NewRetrievalService(idx, repo, nil, config.RetrievalConfig{NResults: 10})
	engine := risk.NewEngine(config.MetricsConfig{
		RiskScale:            400,
		PortfolioRiskWeight:  0.7,
		IndividualRiskWeight: 0.3,
		RiskFreeRate:         0.05,
		LiquidityNorm:        100000,
		MaxDiversityBundles:  5,
	}, nil)
	return NewHedgeService(retrieval, f, b, engine, nil,
		config.FilterConfig{BatchSize: 100, TopKPerBatch: 10},
		config.HedgeConfig{DefaultBudget: 100, MaxMarketsInBundle: 8})
}

func TestRecommendNoMarketsFound(t *testing.T) {
	svc := newHedgeService(&stubIndex{}, &memRepo{}, &passthroughFilter{}, &singleBundleBuilder{})

	resp, err := svc.Recommend(context.Background(), HedgeRequest{Concern: "obscure concern"})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if resp.Message != "no markets found" {
		t.Fatalf("message = %q, want no markets found", resp.Message)
	}
	if len(resp.Bundles) != 0 {
		t.Fatalf("bundles = %d, want 0", len(resp.Bundles))
	}
	if resp.Metrics.WeightedAvgMultiplier != 1.0 {
		t.Fatalf("empty metrics multiplier = %v, want 1.0", resp.Metrics.WeightedAvgMultiplier)
	}
	if resp.RequestID == "" {
		t.Fatal("request id missing")
	}
}

func TestRecommendPipeline(t *testing.T) {
	repo := &memRepo{markets: []models.Market{
		market("a", "strike market", 50000),
		market("b", "tariff market", 80000),
	}}
	idx := &stubIndex{hits: []index.Hit{
		{ID: "a", Similarity: 0.9},
		{ID: "b", Similarity: 0.8},
	}}
	f := &passthroughFilter{}
	builder := &singleBundleBuilder{}
	svc := newHedgeService(idx, repo, f, builder)

	resp, err := svc.Recommend(context.Background(), HedgeRequest{Concern: "port strike"})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if f.concern != "port strike" {
		t.Fatalf("filter saw concern %q", f.concern)
	}
	// Zero budget in the request means the configured default.
	if !builder.gotBudget.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("builder budget = %s, want 100", builder.gotBudget)
	}
	if len(resp.Bundles) != 1 || len(resp.Bundles[0].Bets) != 2 {
		t.Fatalf("bundles = %+v, want one with two bets", resp.Bundles)
	}
	if resp.Metrics.NumBundles != 1 || resp.Metrics.TotalMarkets != 2 {
		t.Fatalf("metrics counts = %d/%d, want 1/2", resp.Metrics.NumBundles, resp.Metrics.TotalMarkets)
	}
	if resp.Message != "" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestRecommendDiverseModeAdjustsScores(t *testing.T) {
	liquid := market("a", "strike market", 150000)
	liquid.Outcomes = []models.Outcome{{Name: "Yes", Price: 0.5}, {Name: "No", Price: 0.5}}
	noOutcomes := market("b", "not tradeable yet", 150000)
	repo := &memRepo{markets: []models.Market{liquid, noOutcomes}}
	idx := &stubIndex{hits: []index.Hit{
		{ID: "a", Similarity: 0.6},
		{ID: "b", Similarity: 0.5},
	}}
	builder := &singleBundleBuilder{}
	svc := newHedgeService(idx, repo, &passthroughFilter{}, builder)

	resp, err := svc.Recommend(context.Background(), HedgeRequest{
		Concern: "dock strike lasting",
		Mode:    ModeDiverse,
	})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if len(resp.Bundles) != 1 {
		t.Fatalf("bundles = %d, want 1", len(resp.Bundles))
	}
	// The market without outcomes cannot be bet on and is dropped before
	// selection.
	if len(builder.gotScored) != 1 || builder.gotScored[0].Market.ID != "a" {
		t.Fatalf("scored = %+v, want only a", builder.gotScored)
	}
	// Similarity 0.6 boosted 1.15x for liquidity above 100k.
	got := builder.gotScored[0].AdjustedScore
	if got < 0.689 || got > 0.691 {
		t.Fatalf("adjusted score = %v, want 0.69", got)
	}
	wantTerms := []string{"dock", "strike", "lasting"}
	if len(builder.gotTerms) != len(wantTerms) {
		t.Fatalf("terms = %v, want %v", builder.gotTerms, wantTerms)
	}
}

func TestRecommendUsesRequestBudget(t *testing.T) {
	repo := &memRepo{markets: []models.Market{market("a", "q", 100)}}
	idx := &stubIndex{hits: []index.Hit{{ID: "a", Similarity: 0.9}}}
	builder := &singleBundleBuilder{}
	svc := newHedgeService(idx, repo, &passthroughFilter{}, builder)

	_, err := svc.Recommend(context.Background(), HedgeRequest{
		Concern: "anything",
		Budget:  decimal.NewFromInt(250),
	})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if !builder.gotBudget.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("builder budget = %s, want 250", builder.gotBudget)
	}
}
