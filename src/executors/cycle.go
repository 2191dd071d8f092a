// Package executors runs the trading pipeline: fetch bars, generate
// signals, size orders under risk limits, execute fills, and persist the
// account state. Fetch and signal work fans out over a bounded pool; risk
// checks and execution stay serialized so account state cannot race.
package executors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"papertrader/src/fetcher"
	"papertrader/src/model"
	"papertrader/src/risk"
	"papertrader/src/signal"
)

type barSource interface {
	GetBars(ctx context.Context, symbol, interval string, lookback int) (*fetcher.Result, error)
}

type orderExecutor interface {
	Execute(ctx context.Context, intent *model.OrderIntent) (*model.Trade, error)
}

type barSink interface {
	UpsertBars(ctx context.Context, bars []model.Bar) error
}

type positionStore interface {
	GetOpenPositions(ctx context.Context) ([]model.Position, error)
	UpsertPosition(ctx context.Context, position *model.Position) error
}

type equityStore interface {
	GetLatest(ctx context.Context) (*model.EquitySnapshot, error)
	UpsertSnapshot(ctx context.Context, snapshot *model.EquitySnapshot) error
}

// Runner executes trading cycles over a fixed symbol list.
type Runner struct {
	source    barSource
	signals   *signal.Generator
	riskMgr   *risk.Manager
	engine    orderExecutor
	bars      barSink
	positions positionStore
	equity    equityStore

	clock         risk.MarketClock
	interval      string
	lookback      int
	workers       int
	initialEquity float64

	stats   *Stats
	now     func() time.Time
	publish func([]model.CycleResult)
}

func NewRunner(
	source barSource,
	gen *signal.Generator,
	riskMgr *risk.Manager,
	engine orderExecutor,
	bars barSink,
	positions positionStore,
	equity equityStore,
	config Config,
) *Runner {
	workers := config.WorkerPoolSize
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		source:        source,
		signals:       gen,
		riskMgr:       riskMgr,
		engine:        engine,
		bars:          bars,
		positions:     positions,
		equity:        equity,
		clock:         risk.MarketClock{AlwaysOpen: !config.MarketHoursOnly},
		interval:      config.Interval,
		lookback:      config.Lookback,
		workers:       workers,
		initialEquity: config.InitialEquity,
		stats:         &Stats{},
		now:           time.Now,
	}
}

func (r *Runner) Stats() StatsSnapshot {
	return r.stats.Snapshot()
}

// SetNowFunc overrides the clock. Test hook.
func (r *Runner) SetNowFunc(now func() time.Time) {
	r.now = now
}

// SetPublisher registers a sink that receives every cycle's results, e.g.
// the websocket hub. Must be set before the loop starts.
func (r *Runner) SetPublisher(publish func([]model.CycleResult)) {
	r.publish = publish
}

// fetchOutcome is the per-symbol product of the parallel phase.
type fetchOutcome struct {
	symbol      string
	result      *fetcher.Result
	sig         *model.Signal
	failureStep string
	err         error
}

// RunCycle runs one full cycle over the symbols. Each symbol fails or
// succeeds on its own; one bad feed never aborts its siblings. The account
// snapshot used for every risk decision is captured once, after forced
// closes and before any new entry.
func (r *Runner) RunCycle(ctx context.Context, symbols []string) ([]model.CycleResult, error) {
	now := r.now()

	if !r.clock.IsOpen(now) {
		r.stats.cyclesSkipped.Add(1)
		logger.WithField("at", now).Info("market closed, skipping cycle")
		results := make([]model.CycleResult, 0, len(symbols))
		for _, symbol := range symbols {
			results = append(results, model.CycleResult{
				Symbol:      symbol,
				State:       model.CycleStateSkipped,
				Reason:      "market closed",
				CompletedAt: now,
			})
		}
		return results, nil
	}

	r.stats.cyclesRun.Add(1)

	outcomes := r.fetchAndSignal(ctx, symbols)

	latestClose := make(map[string]float64, len(outcomes))
	for _, out := range outcomes {
		if out.err == nil && len(out.result.Bars) > 0 {
			latestClose[out.symbol] = out.result.Bars[len(out.result.Bars)-1].Close.InexactFloat64()
		}
	}

	snapshot, err := r.accountSnapshot(ctx, latestClose)
	if err != nil {
		return nil, fmt.Errorf("loading account snapshot: %w", err)
	}

	// Standing stop-losses fire before any new entry and override the
	// signal for the symbols they close.
	forced := make(map[string]model.CycleResult)
	for _, intent := range r.riskMgr.CheckStops(snapshot) {
		intent := intent
		result := model.CycleResult{
			Symbol:      intent.Symbol,
			State:       model.CycleStateDone,
			Reason:      "stop-loss forced close",
			CompletedAt: r.now(),
		}
		trade, err := r.engine.Execute(ctx, &intent)
		if err != nil {
			result.State = model.CycleStateFailed
			result.FailureStep = model.CycleStateExecute
			result.Reason = err.Error()
			r.stats.recordFailure(intent.Symbol + ": " + err.Error())
		} else {
			result.Trade = trade
			r.stats.tradesExecuted.Add(1)
			r.stats.forcedCloses.Add(1)
		}
		forced[intent.Symbol] = result
	}
	if len(forced) > 0 {
		if snapshot, err = r.accountSnapshot(ctx, latestClose); err != nil {
			return nil, fmt.Errorf("reloading account snapshot: %w", err)
		}
	}

	results := make([]model.CycleResult, 0, len(symbols)+len(forced))
	for _, out := range outcomes {
		if result, ok := forced[out.symbol]; ok {
			delete(forced, out.symbol)
			results = append(results, result)
			r.stats.symbolsProcessed.Add(1)
			continue
		}
		results = append(results, r.finishSymbol(ctx, out, snapshot))
		r.stats.symbolsProcessed.Add(1)
	}
	// Forced closes for symbols outside this cycle's list still report.
	for _, result := range forced {
		results = append(results, result)
	}

	if err := r.persistAccountState(ctx, latestClose); err != nil {
		logger.WithError(err).Error("failed to persist end-of-cycle account state")
	}

	if r.publish != nil {
		r.publish(results)
	}

	return results, nil
}

// fetchAndSignal runs the FETCH and SIGNAL stages for every symbol over a
// bounded worker pool. Outcomes come back in the input symbol order.
func (r *Runner) fetchAndSignal(ctx context.Context, symbols []string) []fetchOutcome {
	outcomes := make([]fetchOutcome, len(symbols))
	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup

	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcomes[i] = r.fetchOne(ctx, symbol)
		}(i, symbol)
	}
	wg.Wait()

	return outcomes
}

func (r *Runner) fetchOne(ctx context.Context, symbol string) fetchOutcome {
	out := fetchOutcome{symbol: symbol}

	result, err := r.source.GetBars(ctx, symbol, r.interval, r.lookback)
	if err != nil {
		out.failureStep = model.CycleStateFetch
		out.err = err
		return out
	}
	out.result = result
	if result.Degraded {
		r.stats.degradedFetches.Add(1)
	}

	if err := r.bars.UpsertBars(ctx, result.Bars); err != nil {
		logger.WithError(err).WithField("symbol", symbol).Warn("failed to persist bars")
	}

	sig, err := r.signals.Generate(result.Bars)
	if err != nil {
		out.failureStep = model.CycleStateSignal
		out.err = err
		return out
	}
	sig.Symbol = symbol
	out.sig = sig

	return out
}

// finishSymbol runs the serialized RISK_CHECK and EXECUTE stages for one
// symbol's outcome.
func (r *Runner) finishSymbol(ctx context.Context, out fetchOutcome, snapshot *risk.Snapshot) model.CycleResult {
	result := model.CycleResult{
		Symbol:      out.symbol,
		State:       model.CycleStateDone,
		CompletedAt: r.now(),
	}

	if out.err != nil {
		result.State = model.CycleStateFailed
		result.FailureStep = out.failureStep
		result.Reason = out.err.Error()
		if errors.Is(out.err, signal.ErrInsufficientData) {
			// Not enough history is a data condition, not a fault.
			result.State = model.CycleStateDone
			result.FailureStep = ""
		} else {
			r.stats.recordFailure(out.symbol + ": " + out.err.Error())
		}
		return result
	}

	result.Signal = out.sig
	result.Degraded = out.result.Degraded

	if !out.sig.IsActionable() {
		result.Reason = "signal is HOLD"
		return result
	}

	intent, vetoReason, err := r.riskMgr.SizeOrder(out.sig, snapshot)
	if err != nil {
		result.State = model.CycleStateFailed
		result.FailureStep = model.CycleStateRiskCheck
		result.Reason = err.Error()
		r.stats.recordFailure(out.symbol + ": " + err.Error())
		return result
	}
	if intent == nil {
		result.Vetoed = true
		result.VetoReason = vetoReason
		r.stats.vetoes.Add(1)
		return result
	}

	trade, err := r.engine.Execute(ctx, intent)
	if err != nil {
		result.State = model.CycleStateFailed
		result.FailureStep = model.CycleStateExecute
		result.Reason = err.Error()
		r.stats.recordFailure(out.symbol + ": " + err.Error())
		return result
	}

	result.Trade = trade
	snapshot.ApplyFill(trade)
	r.stats.tradesExecuted.Add(1)

	return result
}

// accountSnapshot loads cash and open positions, marking each position to
// the freshest close seen this cycle. A missing equity history seeds the
// configured starting balance.
func (r *Runner) accountSnapshot(ctx context.Context, latestClose map[string]float64) (*risk.Snapshot, error) {
	latest, err := r.equity.GetLatest(ctx)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		latest = &model.EquitySnapshot{
			Timestamp: r.now().UTC(),
			Equity:    r.initialEquity,
			Cash:      r.initialEquity,
		}
		if err := r.equity.UpsertSnapshot(ctx, latest); err != nil {
			return nil, err
		}
		logger.WithField("equity", r.initialEquity).Info("seeded initial equity snapshot")
	}

	open, err := r.positions.GetOpenPositions(ctx)
	if err != nil {
		return nil, err
	}

	marked := 0.0
	for i := range open {
		if price, ok := latestClose[open[i].Symbol]; ok {
			open[i].CurrentPrice = price
			open[i].UnrealizedPnl = (price - open[i].AverageEntryPrice) * open[i].Quantity
		}
		marked += open[i].MarketValue()
	}

	return &risk.Snapshot{
		Equity:        latest.Cash + marked,
		Cash:          latest.Cash,
		OpenPositions: open,
	}, nil
}

// persistAccountState writes the mark-to-market position updates and the
// end-of-cycle equity snapshot.
func (r *Runner) persistAccountState(ctx context.Context, latestClose map[string]float64) error {
	snapshot, err := r.accountSnapshot(ctx, latestClose)
	if err != nil {
		return err
	}

	for i := range snapshot.OpenPositions {
		pos := snapshot.OpenPositions[i]
		if _, ok := latestClose[pos.Symbol]; !ok {
			continue
		}
		pos.UpdatedAt = r.now().UTC()
		if err := r.positions.UpsertPosition(ctx, &pos); err != nil {
			return err
		}
	}

	return r.equity.UpsertSnapshot(ctx, &model.EquitySnapshot{
		Timestamp: r.now().UTC(),
		Equity:    snapshot.Equity,
		Cash:      snapshot.Cash,
	})
}
