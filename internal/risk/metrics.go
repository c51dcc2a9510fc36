// Package risk computes derived risk and return statistics for hedge
// bundles. Outcome prices double as win probabilities, so most statistics
// reduce to moments of the price distribution.
package risk

import (
	"math"

	"go.uber.org/zap"

	"polyhedge/internal/config"
	"polyhedge/internal/models"
)

type Engine struct {
	cfg    config.MetricsConfig
	logger *zap.Logger
}

func NewEngine(cfg config.MetricsConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// PortfolioMetrics computes per-bundle and aggregate statistics. An empty
// bundle list yields all-zero metrics with a neutral multiplier of 1.0.
func (e *Engine) PortfolioMetrics(bundles []models.HedgeBundle) models.PortfolioMetrics {
	if len(bundles) == 0 {
		return models.PortfolioMetrics{WeightedAvgMultiplier: 1.0, BundleMetrics: []models.BundleMetrics{}}
	}

	bundleMetrics := make([]models.BundleMetrics, 0, len(bundles))
	for _, bundle := range bundles {
		bundleMetrics = append(bundleMetrics, e.bundleMetrics(bundle))
	}

	totalAllocated := 0.0
	totalMarkets := 0
	totalMaxPayout := 0.0
	for _, bundle := range bundles {
		totalAllocated += bundle.TotalAllocated.InexactFloat64()
		totalMarkets += len(bundle.Bets)
		for _, bet := range bundle.Bets {
			totalMaxPayout += bet.PotentialPayout.InexactFloat64()
		}
	}

	volatility := e.portfolioVolatility(bundles)
	expectedReturn := e.expectedReturn(bundles)
	sharpe := 0.0
	if volatility > 0 {
		sharpe = (expectedReturn - e.cfg.RiskFreeRate) / volatility
	}

	metrics := models.PortfolioMetrics{
		TotalBudget:           bundles[0].Budget.InexactFloat64(),
		TotalAllocated:        totalAllocated,
		NumBundles:            len(bundles),
		TotalMarkets:          totalMarkets,
		OverallRiskScore:      e.overallRisk(bundles),
		PortfolioVolatility:   volatility,
		SharpeRatio:           sharpe,
		CorrelationScore:      e.correlationScore(bundles),
		SectorDiversityScore:  e.sectorDiversity(bundles),
		TotalMaxPayout:        totalMaxPayout,
		WeightedAvgMultiplier: e.weightedAvgMultiplier(bundles),
		ExpectedReturn:        expectedReturn,
		BundleMetrics:         bundleMetrics,
	}
	e.logger.Debug("portfolio metrics computed",
		zap.Float64("risk", metrics.OverallRiskScore),
		zap.Float64("sharpe", metrics.SharpeRatio),
		zap.Float64("expected_return", metrics.ExpectedReturn))
	return metrics
}

func (e *Engine) bundleMetrics(bundle models.HedgeBundle) models.BundleMetrics {
	if len(bundle.Bets) == 0 {
		name := bundle.ThemeName()
		if name == "Bundle" {
			name = "Empty Bundle"
		}
		return models.BundleMetrics{ThemeName: name, AvgPayoutMultiplier: 1.0}
	}

	payouts := make([]float64, 0, len(bundle.Bets))
	multipliers := make([]float64, 0, len(bundle.Bets))
	prices := make([]float64, 0, len(bundle.Bets))
	allocations := make([]float64, 0, len(bundle.Bets))
	liquidities := make([]float64, 0, len(bundle.Bets))
	for _, bet := range bundle.Bets {
		payouts = append(payouts, bet.PotentialPayout.InexactFloat64())
		multipliers = append(multipliers, bet.PayoutMultiplier)
		prices = append(prices, bet.CurrentPrice)
		allocations = append(allocations, bet.Allocation.InexactFloat64())
		liquidities = append(liquidities, bet.Market.Market.Liquidity)
	}

	// Diversified portfolio variance assuming independent binary outcomes:
	// Var = sum(w_i^2 * p_i * (1-p_i)). The scale factor spreads typical
	// bundles over the 0-100 band; a floor blended from average individual
	// price risk keeps a bundle of extreme-priced bets from reading as safe.
	totalAlloc := sum(allocations)
	riskScore := 0.0
	if totalAlloc > 0 {
		portfolioVariance := 0.0
		avgPriceDist := 0.0
		for i, p := range prices {
			w := allocations[i] / totalAlloc
			portfolioVariance += w * w * p * (1 - p)
			avgPriceDist += math.Abs(p - 0.5)
		}
		avgPriceDist /= float64(len(prices))
		base := math.Min(math.Sqrt(portfolioVariance)*e.cfg.RiskScale, 100)
		avgIndividual := (1 - avgPriceDist*2) * 100
		riskScore = e.cfg.PortfolioRiskWeight*base + e.cfg.IndividualRiskWeight*avgIndividual
	}

	volatility := 0.0
	priceVariance := 0.0
	if len(prices) > 1 {
		priceVariance = variance(prices)
		volatility = math.Sqrt(priceVariance)
	}

	expectedReturn := 0.0
	if totalAlloc > 0 {
		expectedValue := 0.0
		for i := range prices {
			expectedValue += allocations[i] * prices[i] * multipliers[i]
		}
		expectedReturn = (expectedValue - totalAlloc) / totalAlloc
	}

	sharpe := 0.0
	if volatility > 0 {
		sharpe = (expectedReturn - e.cfg.RiskFreeRate) / volatility
	}

	return models.BundleMetrics{
		ThemeName:            bundle.ThemeName(),
		TotalAllocation:      bundle.TotalAllocated.InexactFloat64(),
		NumMarkets:           len(bundle.Bets),
		AvgPayoutMultiplier:  mean(multipliers),
		MaxPayout:            maxOf(payouts),
		MinPayout:            minOf(payouts),
		TotalMaxPayout:       sum(payouts),
		RiskScore:            riskScore,
		Volatility:           volatility,
		SharpeRatio:          sharpe,
		ExpectedReturn:       expectedReturn,
		DiversificationScore: math.Min(priceVariance*e.cfg.RiskScale, 100),
		LiquidityScore:       math.Min(mean(liquidities)/e.cfg.LiquidityNorm*100, 100),
	}
}

// overallRisk reads a mean price near 0.5 as maximum uncertainty. With no
// bets at all the answer is unknowable, which is reported as the midpoint 50.
func (e *Engine) overallRisk(bundles []models.HedgeBundle) float64 {
	prices := allPrices(bundles)
	if len(prices) == 0 {
		return 50.0
	}
	uncertainty := 1 - math.Abs(mean(prices)-0.5)*2
	return uncertainty * 100
}

func (e *Engine) portfolioVolatility(bundles []models.HedgeBundle) float64 {
	prices := allPrices(bundles)
	if len(prices) < 2 {
		return 0.0
	}
	return math.Sqrt(variance(prices))
}

// correlationScore uses the bundle count as a diversification proxy: each
// additional bundle knocks 0.2 off, floored at zero.
func (e *Engine) correlationScore(bundles []models.HedgeBundle) float64 {
	if len(bundles) < 2 {
		return 0.0
	}
	return math.Max(0, 1-float64(len(bundles)-1)*0.2)
}

func (e *Engine) sectorDiversity(bundles []models.HedgeBundle) float64 {
	return math.Min(float64(len(bundles))/float64(e.cfg.MaxDiversityBundles)*100, 100)
}

func (e *Engine) weightedAvgMultiplier(bundles []models.HedgeBundle) float64 {
	totalAllocation := 0.0
	weightedSum := 0.0
	for _, bundle := range bundles {
		totalAllocation += bundle.TotalAllocated.InexactFloat64()
		for _, bet := range bundle.Bets {
			weightedSum += bet.Allocation.InexactFloat64() * bet.PayoutMultiplier
		}
	}
	if totalAllocation == 0 {
		return 1.0
	}
	return weightedSum / totalAllocation
}

// expectedReturn is probability-weighted: price is the win probability and
// allocation*multiplier the win payout.
func (e *Engine) expectedReturn(bundles []models.HedgeBundle) float64 {
	totalAllocation := 0.0
	expectedValue := 0.0
	for _, bundle := range bundles {
		totalAllocation += bundle.TotalAllocated.InexactFloat64()
		for _, bet := range bundle.Bets {
			expectedValue += bet.Allocation.InexactFloat64() * bet.CurrentPrice * bet.PayoutMultiplier
		}
	}
	if totalAllocation == 0 {
		return 0.0
	}
	return (expectedValue - totalAllocation) / totalAllocation
}

func allPrices(bundles []models.HedgeBundle) []float64 {
	var prices []float64
	for _, bundle := range bundles {
		for _, bet := range bundle.Bets {
			prices = append(prices, bet.CurrentPrice)
		}
	}
	return prices
}

func sum(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return sum(xs) / float64(len(xs))
}

// variance is the population variance, matching how the scores were tuned.
func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	s := 0.0
	for _, x := range xs {
		d := x - m
		s += d * d
	}
	return s / float64(len(xs))
}

func maxOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func minOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}
