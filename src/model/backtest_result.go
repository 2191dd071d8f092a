package model

// BacktestResult summarizes a historical replay. It is derived and
// ephemeral: backtest output is never written into live state.
type BacktestResult struct {
	EquityCurve    []EquitySnapshot `json:"equity_curve"`
	TotalReturnPct float64          `json:"total_return_pct"`
	SharpeRatio    float64          `json:"sharpe_ratio"`
	MaxDrawdownPct float64          `json:"max_drawdown_pct"`
	PeriodDays     int              `json:"period_days"`
	TotalTrades    int              `json:"total_trades"`
	FinalEquity    float64          `json:"final_equity"`
}
