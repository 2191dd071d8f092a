// Package backtest replays historical bars through the live signal, risk,
// and execution components. The replay runs against in-memory stores, so a
// backtest never touches live positions or equity.
package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	logger "github.com/sirupsen/logrus"

	"papertrader/src/execution"
	"papertrader/src/model"
	"papertrader/src/risk"
	"papertrader/src/signal"
)

const annualizationFactor = 252

// Runner drives one replay. The same inputs always produce the same result:
// order ids are sequential, fills are stamped with the bar's timestamp, and
// slippage is the same fixed haircut the live engine applies.
type Runner struct {
	signals       *signal.Generator
	riskMgr       *risk.Manager
	initialEquity float64
	slippageBps   int64
}

func NewRunner(gen *signal.Generator, limits risk.Limits, initialEquity float64, slippageBps int64) (*Runner, error) {
	if gen == nil {
		return nil, fmt.Errorf("signal generator is required")
	}
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	if initialEquity <= 0 {
		return nil, fmt.Errorf("initial equity must be positive, got %v", initialEquity)
	}
	return &Runner{
		signals:       gen,
		riskMgr:       risk.NewManager(limits),
		initialEquity: initialEquity,
		slippageBps:   slippageBps,
	}, nil
}

// Run replays the bars in timestamp order for a single symbol. At each bar
// the open position is marked to the close, crossed stops are force-closed,
// then the signal for the window ending at that bar is sized and executed.
// Bars before the slow indicator window only warm up the series.
func (r *Runner) Run(ctx context.Context, symbol string, bars []model.Bar) (*model.BacktestResult, error) {
	warmup := r.signals.SlowWindow()
	if len(bars) < warmup+1 {
		return nil, fmt.Errorf("backtest needs more than %d bars, got %d", warmup, len(bars))
	}

	store := execution.NewMemoryStore()
	engine := execution.NewEngine(store, store, store, r.slippageBps)
	engine.SetRetryPolicy(1, 0)

	orderSeq := 0
	nextOrderID := func() string {
		orderSeq++
		return fmt.Sprintf("bt-%s-%06d", symbol, orderSeq)
	}

	if err := store.UpsertSnapshot(ctx, &model.EquitySnapshot{
		Timestamp: bars[warmup-1].Timestamp,
		Equity:    r.initialEquity,
		Cash:      r.initialEquity,
	}); err != nil {
		return nil, err
	}

	for i := warmup; i < len(bars); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bar := bars[i]
		closePrice := bar.Close.InexactFloat64()
		store.MarkPrice(symbol, closePrice)
		engine.SetNowFunc(func() time.Time { return bar.Timestamp })

		snapshot, err := accountSnapshot(ctx, store)
		if err != nil {
			return nil, err
		}

		// Standing stop-losses fire before the bar's own signal and
		// override it for the symbols they close.
		closed := false
		for _, intent := range r.riskMgr.CheckStops(snapshot) {
			intent := intent
			if _, err := engine.ExecuteWithOrderID(ctx, nextOrderID(), &intent); err != nil {
				return nil, err
			}
			closed = true
		}
		if closed {
			if snapshot, err = accountSnapshot(ctx, store); err != nil {
				return nil, err
			}
		}

		sig, err := r.signals.Generate(bars[:i+1])
		if err != nil {
			return nil, err
		}

		if sig.IsActionable() && !closed {
			intent, _, err := r.riskMgr.SizeOrder(sig, snapshot)
			if err != nil {
				return nil, err
			}
			if intent != nil {
				if _, err := engine.ExecuteWithOrderID(ctx, nextOrderID(), intent); err != nil {
					return nil, err
				}
			}
		}

		// One equity point per bar, trade or not.
		equity, cash, err := markedEquity(ctx, store)
		if err != nil {
			return nil, err
		}
		if err := store.UpsertSnapshot(ctx, &model.EquitySnapshot{
			Timestamp: bar.Timestamp,
			Equity:    equity,
			Cash:      cash,
		}); err != nil {
			return nil, err
		}
	}

	result := Summarize(store.Snapshots(), len(store.Trades()), r.initialEquity)

	logger.WithFields(logger.Fields{
		"symbol":           symbol,
		"bars":             len(bars),
		"trades":           result.TotalTrades,
		"total_return_pct": result.TotalReturnPct,
		"sharpe_ratio":     result.SharpeRatio,
		"max_drawdown_pct": result.MaxDrawdownPct,
	}).Info("backtest finished")

	return result, nil
}

func accountSnapshot(ctx context.Context, store *execution.MemoryStore) (*risk.Snapshot, error) {
	equity, cash, err := markedEquity(ctx, store)
	if err != nil {
		return nil, err
	}
	open, err := store.GetOpenPositions(ctx)
	if err != nil {
		return nil, err
	}
	return &risk.Snapshot{Equity: equity, Cash: cash, OpenPositions: open}, nil
}

func markedEquity(ctx context.Context, store *execution.MemoryStore) (equity, cash float64, err error) {
	latest, err := store.GetLatest(ctx)
	if err != nil {
		return 0, 0, err
	}
	if latest == nil {
		return 0, 0, fmt.Errorf("equity snapshot missing")
	}
	open, err := store.GetOpenPositions(ctx)
	if err != nil {
		return 0, 0, err
	}
	marked := 0.0
	for i := range open {
		marked += open[i].MarketValue()
	}
	return latest.Cash + marked, latest.Cash, nil
}

// Summarize computes the performance metrics for an equity curve. The live
// status endpoint reuses it over the persisted curve.
func Summarize(curve []model.EquitySnapshot, trades int, initialEquity float64) *model.BacktestResult {
	result := &model.BacktestResult{
		EquityCurve: curve,
		TotalTrades: trades,
	}
	if len(curve) == 0 {
		return result
	}

	final := curve[len(curve)-1].Equity
	result.FinalEquity = final
	result.TotalReturnPct = (final/initialEquity - 1) * 100
	result.SharpeRatio = sharpe(curve)
	result.MaxDrawdownPct = maxDrawdown(curve)
	result.PeriodDays = int(curve[len(curve)-1].Timestamp.Sub(curve[0].Timestamp).Hours() / 24)

	return result
}

// sharpe annualizes the mean periodic return over its standard deviation.
// A flat curve has zero volatility and scores zero rather than dividing
// by it.
func sharpe(curve []model.EquitySnapshot) float64 {
	if len(curve) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			return 0
		}
		returns = append(returns, curve[i].Equity/prev-1)
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(annualizationFactor)
}

func maxDrawdown(curve []model.EquitySnapshot) float64 {
	peak := curve[0].Equity
	worst := 0.0
	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - point.Equity) / peak * 100
		if dd > worst {
			worst = dd
		}
	}
	return worst
}
