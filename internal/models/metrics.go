package models

// BundleMetrics are derived, read-only statistics for a single bundle.
// Scores on a 0-100 scale are clamped; higher risk_score = riskier.
type BundleMetrics struct {
	ThemeName       string  `json:"theme_name"`
	TotalAllocation float64 `json:"total_allocation"`
	NumMarkets      int     `json:"num_markets"`

	AvgPayoutMultiplier float64 `json:"avg_payout_multiplier"`
	MaxPayout           float64 `json:"max_payout"`
	MinPayout           float64 `json:"min_payout"`
	TotalMaxPayout      float64 `json:"total_max_payout"`

	RiskScore      float64 `json:"risk_score"`
	Volatility     float64 `json:"volatility"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	ExpectedReturn float64 `json:"expected_return"`

	DiversificationScore float64 `json:"diversification_score"`
	LiquidityScore       float64 `json:"liquidity_score"`
}

// PortfolioMetrics aggregate over all bundles of one recommendation.
type PortfolioMetrics struct {
	TotalBudget    float64 `json:"total_budget"`
	TotalAllocated float64 `json:"total_allocated"`
	NumBundles     int     `json:"num_bundles"`
	TotalMarkets   int     `json:"total_markets"`

	OverallRiskScore    float64 `json:"overall_risk_score"`
	PortfolioVolatility float64 `json:"portfolio_volatility"`
	SharpeRatio         float64 `json:"sharpe_ratio"`

	// CorrelationScore estimates inter-bundle correlation in [0,1];
	// SectorDiversityScore uses the bundle count as a sector proxy.
	CorrelationScore     float64 `json:"correlation_score"`
	SectorDiversityScore float64 `json:"sector_diversity_score"`

	TotalMaxPayout        float64 `json:"total_max_payout"`
	WeightedAvgMultiplier float64 `json:"weighted_avg_multiplier"`
	ExpectedReturn        float64 `json:"expected_return"`

	BundleMetrics []BundleMetrics `json:"bundle_metrics"`
}
