package models

import "github.com/shopspring/decimal"

// HedgeBet is a single recommended position inside a bundle.
type HedgeBet struct {
	Market ScoredMarket `json:"market"`
	// Outcome is the resolved outcome name to bet on.
	Outcome string `json:"outcome"`
	// Allocation is the dollar amount assigned to this bet, rounded to cents.
	Allocation decimal.Decimal `json:"allocation"`
	// AllocationPercent is the share of the bundle budget in [0,100].
	AllocationPercent float64 `json:"allocation_percent"`
	// CurrentPrice is the price of the chosen outcome in [0,1].
	CurrentPrice float64 `json:"current_price"`
	// PotentialPayout is allocation / price: the payout if the bet wins.
	PotentialPayout decimal.Decimal `json:"potential_payout"`
	// PayoutMultiplier is 1 / price (1 when price <= 0).
	PayoutMultiplier float64 `json:"payout_multiplier"`
}

// HedgeBundle is one self-contained hedge strategy. Bundles produced for the
// same request are mutually exclusive alternatives: each is sized against the
// full nominal budget, never a share of it.
type HedgeBundle struct {
	Budget          decimal.Decimal `json:"budget"`
	Bets            []HedgeBet      `json:"bets"`
	TotalAllocated  decimal.Decimal `json:"total_allocated"`
	CoverageSummary string          `json:"coverage_summary"`
	RiskFactors     []string        `json:"risk_factors_covered"`
}

// ThemeName extracts the theme label from the coverage summary, which is
// formatted as "{theme}: {description}" for themed bundles.
func (b HedgeBundle) ThemeName() string {
	for i := 0; i < len(b.CoverageSummary); i++ {
		if b.CoverageSummary[i] == ':' {
			return b.CoverageSummary[:i]
		}
	}
	return "Bundle"
}
