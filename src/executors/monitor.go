package executors

import (
	"sync/atomic"
)

// Stats counts cycle outcomes for the status endpoint. All counters are
// cumulative since process start.
type Stats struct {
	cyclesRun        atomic.Int64
	cyclesSkipped    atomic.Int64
	symbolsProcessed atomic.Int64
	tradesExecuted   atomic.Int64
	forcedCloses     atomic.Int64
	vetoes           atomic.Int64
	failures         atomic.Int64
	degradedFetches  atomic.Int64
	lastError        atomic.Value
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	CyclesRun        int64  `json:"cycles_run"`
	CyclesSkipped    int64  `json:"cycles_skipped"`
	SymbolsProcessed int64  `json:"symbols_processed"`
	TradesExecuted   int64  `json:"trades_executed"`
	ForcedCloses     int64  `json:"forced_closes"`
	Vetoes           int64  `json:"vetoes"`
	Failures         int64  `json:"failures"`
	DegradedFetches  int64  `json:"degraded_fetches"`
	LastError        string `json:"last_error,omitempty"`
}

func (s *Stats) recordFailure(reason string) {
	s.failures.Add(1)
	s.lastError.Store(reason)
}

func (s *Stats) Snapshot() StatsSnapshot {
	lastError, _ := s.lastError.Load().(string)
	return StatsSnapshot{
		CyclesRun:        s.cyclesRun.Load(),
		CyclesSkipped:    s.cyclesSkipped.Load(),
		SymbolsProcessed: s.symbolsProcessed.Load(),
		TradesExecuted:   s.tradesExecuted.Load(),
		ForcedCloses:     s.forcedCloses.Load(),
		Vetoes:           s.vetoes.Load(),
		Failures:         s.failures.Load(),
		DegradedFetches:  s.degradedFetches.Load(),
		LastError:        lastError,
	}
}
