package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"polyhedge/internal/config"
	"polyhedge/internal/filter"
	"polyhedge/internal/models"
	"polyhedge/internal/portfolio"
	"polyhedge/internal/scoring"
)

// MarketFilter narrows retrieval candidates to the most relevant markets.
type MarketFilter interface {
	FilterInBatches(ctx context.Context, candidates []models.Market, concern string, opts filter.Options) []models.Market
}

// BundleBuilder turns filtered markets into hedge bundles, either one
// diverse bundle or a themed set of alternatives.
type BundleBuilder interface {
	BuildBundle(scored []models.ScoredMarket, budget decimal.Decimal, concernTerms []string) models.HedgeBundle
	BuildThemedBundles(ctx context.Context, markets []models.Market, concern string, budget decimal.Decimal, notes string) []models.HedgeBundle
}

// MetricsEngine computes portfolio statistics over the built bundles.
type MetricsEngine interface {
	PortfolioMetrics(bundles []models.HedgeBundle) models.PortfolioMetrics
}

// Bundle construction modes. Themed asks the classifier for mutually
// exclusive alternatives; diverse builds a single bundle weighted by
// similarity-derived scores with no capability in the loop.
const (
	ModeThemed  = "themed"
	ModeDiverse = "diverse"
)

// HedgeRequest is one recommendation request. Zero Budget means the
// configured default; zero MaxMarkets means the configured retrieval width;
// empty Mode means themed.
type HedgeRequest struct {
	Concern    string          `json:"concern"`
	Budget     decimal.Decimal `json:"budget"`
	Notes      string          `json:"notes"`
	MaxMarkets int             `json:"max_markets"`
	Mode       string          `json:"mode"`
}

// HedgeResponse carries the bundles and their metrics. Message is set
// instead of bundles when no markets matched the concern.
type HedgeResponse struct {
	RequestID string                  `json:"request_id"`
	Concern   string                  `json:"concern"`
	Budget    decimal.Decimal         `json:"budget"`
	Bundles   []models.HedgeBundle    `json:"bundles"`
	Metrics   models.PortfolioMetrics `json:"metrics"`
	Message   string                  `json:"message,omitempty"`
	Took      time.Duration           `json:"took"`
}

// HedgeService runs the full recommendation pipeline: retrieval, batch
// filtering, themed bundle construction, metrics. The stages run strictly in
// sequence; capability failures inside the stages degrade via their own
// fallbacks and never surface here.
type HedgeService struct {
	retrieval *RetrievalService
	filter    MarketFilter
	builder   BundleBuilder
	metrics   MetricsEngine
	logger    *zap.Logger
	filterCfg config.FilterConfig
	hedgeCfg  config.HedgeConfig
}

func NewHedgeService(retrieval *RetrievalService, marketFilter MarketFilter, builder BundleBuilder, metrics MetricsEngine, logger *zap.Logger, filterCfg config.FilterConfig, hedgeCfg config.HedgeConfig) *HedgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HedgeService{
		retrieval: retrieval,
		filter:    marketFilter,
		builder:   builder,
		metrics:   metrics,
		logger:    logger,
		filterCfg: filterCfg,
		hedgeCfg:  hedgeCfg,
	}
}

// Recommend builds hedge bundles for the request. An empty retrieval result
// yields a well-formed "no markets found" response, not an error.
func (s *HedgeService) Recommend(ctx context.Context, req HedgeRequest) (HedgeResponse, error) {
	started := time.Now()
	requestID := uuid.NewString()
	logger := s.logger.With(zap.String("request_id", requestID))

	budget := req.Budget
	if budget.LessThanOrEqual(decimal.Zero) {
		budget = decimal.NewFromFloat(s.hedgeCfg.DefaultBudget)
	}

	logger.Info("hedge recommendation requested",
		zap.String("concern", req.Concern), zap.String("budget", budget.String()))

	hits, err := s.retrieval.Search(ctx, req.Concern, req.MaxMarkets, nil)
	if err != nil {
		return HedgeResponse{}, err
	}
	if len(hits) == 0 {
		logger.Warn("no markets found for concern")
		return HedgeResponse{
			RequestID: requestID,
			Concern:   req.Concern,
			Budget:    budget,
			Bundles:   []models.HedgeBundle{},
			Metrics:   s.metrics.PortfolioMetrics(nil),
			Message:   "no markets found",
			Took:      time.Since(started),
		}, nil
	}

	candidates := make([]models.Market, 0, len(hits))
	for _, hit := range hits {
		candidates = append(candidates, hit.Market)
	}

	filtered := s.filter.FilterInBatches(ctx, candidates, req.Concern, filter.Options{
		BatchSize:    s.filterCfg.BatchSize,
		TopKPerBatch: s.filterCfg.TopKPerBatch,
		Notes:        req.Notes,
	})
	logger.Info("candidates filtered",
		zap.Int("retrieved", len(candidates)), zap.Int("filtered", len(filtered)))

	var bundles []models.HedgeBundle
	if req.Mode == ModeDiverse {
		bundles = []models.HedgeBundle{s.diverseBundle(hits, filtered, req.Concern, budget)}
	} else {
		bundles = s.builder.BuildThemedBundles(ctx, filtered, req.Concern, budget, req.Notes)
	}
	metrics := s.metrics.PortfolioMetrics(bundles)

	logger.Info("hedge recommendation complete",
		zap.Int("bundles", len(bundles)),
		zap.Duration("took", time.Since(started)))

	return HedgeResponse{
		RequestID: requestID,
		Concern:   req.Concern,
		Budget:    budget,
		Bundles:   bundles,
		Metrics:   metrics,
		Took:      time.Since(started),
	}, nil
}

// diverseBundle builds the single-bundle rendition: retrieval similarity is
// the relevance score, heuristics adjust it, and the builder selects and
// allocates. Outcome recommendations default to the cheapest outcome since
// no classifier judged a direction here.
func (s *HedgeService) diverseBundle(hits []ScoredHit, filtered []models.Market, concern string, budget decimal.Decimal) models.HedgeBundle {
	similarity := make(map[string]float64, len(hits))
	for _, hit := range hits {
		similarity[hit.Market.ID] = hit.Score
	}

	scored := make([]models.ScoredMarket, 0, len(filtered))
	for _, m := range filtered {
		outcome, ok := portfolio.ResolveOutcome(m.Outcomes, "")
		if !ok {
			continue
		}
		scored = append(scored, models.ScoredMarket{
			Market:                 m,
			RelevanceScore:         similarity[m.ID],
			CorrelationDirection:   "positive",
			CorrelationExplanation: "semantic match for: " + concern,
			RecommendedOutcome:     outcome.Name,
		})
	}
	scored = scoring.Adjust(scored)
	return s.builder.BuildBundle(scored, budget, concernTerms(concern))
}

// concernTerms extracts the significant words of the concern for coverage
// reporting. Short connective words carry no signal.
func concernTerms(concern string) []string {
	var terms []string
	for _, word := range strings.Fields(strings.ToLower(concern)) {
		if len(word) > 3 {
			terms = append(terms, word)
		}
	}
	return terms
}
