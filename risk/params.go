package risk

import "fmt"

// Params is the immutable risk configuration for a run.
// MaxAccountRiskPct is a fraction (0.02 = 2% of equity).
type Params struct {
	MaxPositions      int
	RiskPerTradeUSD   float64
	MaxAccountRiskPct float64
	Leverage          float64

	// Lifecycle knobs consumed by the position manager.
	PartialTPFraction float64
	TimeLimitHours    float64
	TimeWarnThreshold float64
}

// Defaults mirrors the values the bot has always run with.
func Defaults() Params {
	return Params{
		MaxPositions:      5,
		RiskPerTradeUSD:   6,
		MaxAccountRiskPct: 0.02,
		Leverage:          10,
		PartialTPFraction: 0.5,
		TimeLimitHours:    24,
		TimeWarnThreshold: 0.9,
	}
}

func (p Params) Validate() error {
	if p.MaxPositions < 1 {
		return fmt.Errorf("risk.max_positions must be at least 1")
	}
	if p.RiskPerTradeUSD <= 0 {
		return fmt.Errorf("risk.risk_per_trade_usd must be positive")
	}
	if p.MaxAccountRiskPct <= 0 || p.MaxAccountRiskPct > 1 {
		return fmt.Errorf("risk.max_account_risk_pct must be between 0 and 1")
	}
	if p.Leverage < 1 {
		return fmt.Errorf("risk.leverage must be at least 1")
	}
	if p.PartialTPFraction <= 0 || p.PartialTPFraction >= 1 {
		return fmt.Errorf("risk.partial_tp_fraction must be between 0 and 1 exclusive")
	}
	if p.TimeLimitHours <= 0 {
		return fmt.Errorf("risk.time_limit_hours must be positive")
	}
	if p.TimeWarnThreshold <= 0 || p.TimeWarnThreshold >= 1 {
		return fmt.Errorf("risk.time_warn_threshold must be between 0 and 1 exclusive")
	}
	return nil
}
