package risk

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Limits is the process-wide risk configuration, read-only after load.
type Limits struct {
	RiskPerTradePct        float64 `envconfig:"RISK_PER_TRADE_PCT" default:"0.02" json:"risk_per_trade_pct"`
	StopLossPct            float64 `envconfig:"STOP_LOSS_PCT" default:"0.05" json:"stop_loss_pct"`
	MaxOpenPositions       int     `envconfig:"MAX_OPEN_POSITIONS" default:"3" json:"max_open_positions"`
	MaxPositionPctOfEquity float64 `envconfig:"MAX_POSITION_PCT_OF_EQUITY" default:"0.10" json:"max_position_pct_of_equity"`
}

// Validate rejects limits that would make every trade a veto or remove the
// caps entirely. Called once at process start; a failure here is fatal.
func (l Limits) Validate() error {
	if l.RiskPerTradePct <= 0 || l.RiskPerTradePct > 1 {
		return fmt.Errorf("RISK_PER_TRADE_PCT must be in (0, 1], got %v", l.RiskPerTradePct)
	}
	if l.StopLossPct <= 0 || l.StopLossPct >= 1 {
		return fmt.Errorf("STOP_LOSS_PCT must be in (0, 1), got %v", l.StopLossPct)
	}
	if l.MaxOpenPositions <= 0 {
		return fmt.Errorf("MAX_OPEN_POSITIONS must be positive, got %d", l.MaxOpenPositions)
	}
	if l.MaxPositionPctOfEquity <= 0 || l.MaxPositionPctOfEquity > 1 {
		return fmt.Errorf("MAX_POSITION_PCT_OF_EQUITY must be in (0, 1], got %v", l.MaxPositionPctOfEquity)
	}
	return nil
}

// GetLimits loads and validates the risk limits from the environment.
func GetLimits() (Limits, error) {
	var limits Limits
	if err := envconfig.Process("", &limits); err != nil {
		return Limits{}, fmt.Errorf("error processing env config: %w", err)
	}
	if err := limits.Validate(); err != nil {
		return Limits{}, err
	}
	return limits, nil
}
