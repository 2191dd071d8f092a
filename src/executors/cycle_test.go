package executors

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"papertrader/src/execution"
	"papertrader/src/fetcher"
	"papertrader/src/model"
	"papertrader/src/risk"
	"papertrader/src/signal"
)

type fakeSource struct {
	bars map[string][]model.Bar
	errs map[string]error
}

func (f *fakeSource) GetBars(_ context.Context, symbol, _ string, _ int) (*fetcher.Result, error) {
	if err, ok := f.errs[symbol]; ok {
		return nil, err
	}
	return &fetcher.Result{Bars: f.bars[symbol], Source: "test"}, nil
}

type fakeBarSink struct{ count int }

func (f *fakeBarSink) UpsertBars(_ context.Context, bars []model.Bar) error {
	f.count += len(bars)
	return nil
}

func barsFromCloses(symbol string, closes []float64) []model.Bar {
	start := time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		price := decimal.NewFromFloat(c)
		bars[i] = model.Bar{
			Symbol:    symbol,
			Timestamp: start.AddDate(0, 0, i),
			Interval:  "1d",
			Close:     price,
		}
	}
	return bars
}

func uptrendCloses() []float64 {
	closes := make([]float64, 0, 50)
	for i := 0; i < 30; i++ {
		closes = append(closes, 100)
	}
	price := 100.0
	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			price += 1.0
		} else {
			price -= 0.8
		}
		closes = append(closes, price)
	}
	return closes
}

func flatCloses(level float64) []float64 {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = level
	}
	return closes
}

func testConfig() Config {
	return Config{
		Interval:        "1d",
		Lookback:        60,
		WorkerPoolSize:  2,
		InitialEquity:   100000,
		MarketHoursOnly: false,
	}
}

func testLimits() risk.Limits {
	return risk.Limits{
		RiskPerTradePct:        0.02,
		StopLossPct:            0.05,
		MaxOpenPositions:       3,
		MaxPositionPctOfEquity: 0.10,
	}
}

func newTestRunner(source barSource, store *execution.MemoryStore) (*Runner, *fakeBarSink) {
	engine := execution.NewEngine(store, store, store, 0)
	engine.SetRetryPolicy(1, 0)
	sink := &fakeBarSink{}
	runner := NewRunner(
		source,
		signal.NewGenerator(),
		risk.NewManager(testLimits()),
		engine,
		sink,
		store,
		store,
		testConfig(),
	)
	return runner, sink
}

func resultFor(t *testing.T, results []model.CycleResult, symbol string) model.CycleResult {
	t.Helper()
	for _, r := range results {
		if r.Symbol == symbol {
			return r
		}
	}
	t.Fatalf("no result for %s in %+v", symbol, results)
	return model.CycleResult{}
}

func TestRunCycleBuySignalExecutes(t *testing.T) {
	source := &fakeSource{bars: map[string][]model.Bar{
		"AAPL": barsFromCloses("AAPL", uptrendCloses()),
	}}
	store := execution.NewMemoryStore()
	runner, sink := newTestRunner(source, store)

	results, err := runner.RunCycle(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := resultFor(t, results, "AAPL")
	if result.State != model.CycleStateDone {
		t.Fatalf("state = %s (%s), want DONE", result.State, result.Reason)
	}
	if result.Signal == nil || result.Signal.Direction != model.SignalBuy {
		t.Fatalf("expected a BUY signal, got %+v", result.Signal)
	}
	if result.Trade == nil || result.Trade.Side != model.SideBuy {
		t.Fatalf("expected an executed buy, got %+v", result.Trade)
	}

	pos, err := store.FindBySymbol(context.Background(), "AAPL")
	if err != nil || pos == nil {
		t.Fatalf("position missing after cycle: %v", err)
	}
	if sink.count == 0 {
		t.Fatal("fetched bars should be persisted")
	}

	stats := runner.Stats()
	if stats.CyclesRun != 1 || stats.TradesExecuted != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRunCyclePerSymbolIsolation(t *testing.T) {
	source := &fakeSource{
		bars: map[string][]model.Bar{
			"GOOD": barsFromCloses("GOOD", flatCloses(100)),
		},
		errs: map[string]error{
			"BAD": errors.New("feed offline"),
		},
	}
	runner, _ := newTestRunner(source, execution.NewMemoryStore())

	results, err := runner.RunCycle(context.Background(), []string{"BAD", "GOOD"})
	if err != nil {
		t.Fatalf("one bad symbol must not abort the cycle: %v", err)
	}

	bad := resultFor(t, results, "BAD")
	if bad.State != model.CycleStateFailed || bad.FailureStep != model.CycleStateFetch {
		t.Fatalf("unexpected BAD result %+v", bad)
	}

	good := resultFor(t, results, "GOOD")
	if good.State != model.CycleStateDone {
		t.Fatalf("unexpected GOOD result %+v", good)
	}
}

func TestRunCycleMarketClosed(t *testing.T) {
	source := &fakeSource{bars: map[string][]model.Bar{}}
	config := testConfig()
	config.MarketHoursOnly = true

	store := execution.NewMemoryStore()
	engine := execution.NewEngine(store, store, store, 0)
	runner := NewRunner(source, signal.NewGenerator(), risk.NewManager(testLimits()),
		engine, &fakeBarSink{}, store, store, config)

	// a Sunday
	runner.SetNowFunc(func() time.Time {
		return time.Date(2025, time.March, 9, 15, 0, 0, 0, time.UTC)
	})

	results, err := runner.RunCycle(context.Background(), []string{"AAPL", "MSFT"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, result := range results {
		if result.State != model.CycleStateSkipped {
			t.Fatalf("state = %s, want SKIPPED", result.State)
		}
	}
	if stats := runner.Stats(); stats.CyclesSkipped != 1 || stats.CyclesRun != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRunCycleVetoReported(t *testing.T) {
	source := &fakeSource{bars: map[string][]model.Bar{
		"AAPL": barsFromCloses("AAPL", uptrendCloses()),
	}}
	store := execution.NewMemoryStore()
	runner, _ := newTestRunner(source, store)

	// fill the position budget with other symbols
	ctx := context.Background()
	for _, symbol := range []string{"MSFT", "GOOG", "SPY"} {
		if err := store.UpsertPosition(ctx, &model.Position{
			Symbol: symbol, Quantity: 10, AverageEntryPrice: 100, CurrentPrice: 100,
		}); err != nil {
			t.Fatalf("seeding position: %v", err)
		}
	}

	results, err := runner.RunCycle(ctx, []string{"AAPL"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := resultFor(t, results, "AAPL")
	if !result.Vetoed || result.VetoReason == "" {
		t.Fatalf("expected a veto with reason, got %+v", result)
	}
	if result.State != model.CycleStateDone {
		t.Fatalf("a veto is a clean outcome, got state %s", result.State)
	}
	if stats := runner.Stats(); stats.Vetoes != 1 {
		t.Fatalf("veto not counted: %+v", stats)
	}
}

func TestRunCyclePositionCapHoldsAcrossSymbols(t *testing.T) {
	source := &fakeSource{bars: map[string][]model.Bar{
		"AAA": barsFromCloses("AAA", uptrendCloses()),
		"BBB": barsFromCloses("BBB", uptrendCloses()),
	}}
	store := execution.NewMemoryStore()
	engine := execution.NewEngine(store, store, store, 0)
	engine.SetRetryPolicy(1, 0)

	limits := testLimits()
	limits.MaxOpenPositions = 1
	runner := NewRunner(source, signal.NewGenerator(), risk.NewManager(limits),
		engine, &fakeBarSink{}, store, store, testConfig())

	ctx := context.Background()
	results, err := runner.RunCycle(ctx, []string{"AAA", "BBB"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := resultFor(t, results, "AAA")
	if first.Trade == nil || first.Trade.Side != model.SideBuy {
		t.Fatalf("first symbol should fill, got %+v", first)
	}

	second := resultFor(t, results, "BBB")
	if !second.Vetoed {
		t.Fatalf("second symbol must be vetoed at the cap, got %+v", second)
	}
	if second.VetoReason != "max open positions (1) reached" {
		t.Fatalf("veto reason = %q", second.VetoReason)
	}

	open, err := store.GetOpenPositions(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("%d open positions after cycle, cap is 1", len(open))
	}
}

func TestRunCycleCashDebitedAcrossSymbols(t *testing.T) {
	source := &fakeSource{bars: map[string][]model.Bar{
		"AAA": barsFromCloses("AAA", uptrendCloses()),
		"BBB": barsFromCloses("BBB", uptrendCloses()),
	}}
	store := execution.NewMemoryStore()
	engine := execution.NewEngine(store, store, store, 0)
	engine.SetRetryPolicy(1, 0)

	// Sizing that commits roughly 60% of equity per entry, so a second
	// full-size entry in the same cycle cannot be paid for.
	limits := testLimits()
	limits.RiskPerTradePct = 0.9
	limits.MaxPositionPctOfEquity = 0.6
	runner := NewRunner(source, signal.NewGenerator(), risk.NewManager(limits),
		engine, &fakeBarSink{}, store, store, testConfig())

	results, err := runner.RunCycle(context.Background(), []string{"AAA", "BBB"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := resultFor(t, results, "AAA")
	if first.Trade == nil {
		t.Fatalf("first symbol should fill, got %+v", first)
	}

	second := resultFor(t, results, "BBB")
	if !second.Vetoed {
		t.Fatalf("second symbol must be vetoed on remaining cash, got %+v", second)
	}
	if !strings.HasPrefix(second.VetoReason, "insufficient cash") {
		t.Fatalf("veto reason = %q", second.VetoReason)
	}
}

func TestRunCycleForcedCloseOverridesSignal(t *testing.T) {
	// flat series at 94 keeps the signal HOLD while the mark-to-market
	// drags the held position through its stop
	source := &fakeSource{bars: map[string][]model.Bar{
		"AAPL": barsFromCloses("AAPL", flatCloses(94)),
	}}
	store := execution.NewMemoryStore()
	runner, _ := newTestRunner(source, store)

	ctx := context.Background()
	if err := store.UpsertPosition(ctx, &model.Position{
		Symbol: "AAPL", Quantity: 100, AverageEntryPrice: 100, CurrentPrice: 100,
	}); err != nil {
		t.Fatalf("seeding position: %v", err)
	}

	results, err := runner.RunCycle(ctx, []string{"AAPL"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := resultFor(t, results, "AAPL")
	if result.Trade == nil || result.Trade.Side != model.SideSell {
		t.Fatalf("expected a forced close sale, got %+v", result)
	}
	if result.Reason != "stop-loss forced close" {
		t.Fatalf("reason = %q", result.Reason)
	}

	pos, err := store.FindBySymbol(ctx, "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos != nil {
		t.Fatalf("position should be fully closed, got %+v", pos)
	}

	if stats := runner.Stats(); stats.ForcedCloses != 1 {
		t.Fatalf("forced close not counted: %+v", stats)
	}
}

func TestRunCycleInsufficientDataIsNotAFailure(t *testing.T) {
	source := &fakeSource{bars: map[string][]model.Bar{
		"AAPL": barsFromCloses("AAPL", flatCloses(100)[:20]),
	}}
	runner, _ := newTestRunner(source, execution.NewMemoryStore())

	results, err := runner.RunCycle(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := resultFor(t, results, "AAPL")
	if result.State != model.CycleStateDone {
		t.Fatalf("short history should resolve DONE, got %+v", result)
	}
	if stats := runner.Stats(); stats.Failures != 0 {
		t.Fatalf("short history must not count as a failure: %+v", stats)
	}
}

func TestRunCyclePublishesResults(t *testing.T) {
	source := &fakeSource{bars: map[string][]model.Bar{
		"AAPL": barsFromCloses("AAPL", flatCloses(100)),
	}}
	runner, _ := newTestRunner(source, execution.NewMemoryStore())

	var published []model.CycleResult
	runner.SetPublisher(func(results []model.CycleResult) { published = results })

	if _, err := runner.RunCycle(context.Background(), []string{"AAPL"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(published) != 1 || published[0].Symbol != "AAPL" {
		t.Fatalf("publisher not invoked with the results: %+v", published)
	}
}
