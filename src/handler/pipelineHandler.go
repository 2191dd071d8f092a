package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	logger "github.com/sirupsen/logrus"

	"papertrader/src/backtest"
	"papertrader/src/executors"
	"papertrader/src/fetcher"
	"papertrader/src/model"
	"papertrader/src/risk"
	"papertrader/src/signal"
)

type cycleRunner interface {
	RunCycle(ctx context.Context, symbols []string) ([]model.CycleResult, error)
	Stats() executors.StatsSnapshot
}

type barSource interface {
	GetBars(ctx context.Context, symbol, interval string, lookback int) (*fetcher.Result, error)
}

type statusResponse struct {
	Status  string                  `json:"status"`
	Time    time.Time               `json:"time"`
	Symbols []string                `json:"symbols"`
	Stats   executors.StatsSnapshot `json:"stats"`
	Limits  risk.Limits             `json:"limits"`
}

// StatusHandler reports the pipeline's configuration and cumulative counters.
func StatusHandler(runner cycleRunner, symbols []string, limits risk.Limits) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, statusResponse{
			Status:  "ok",
			Time:    time.Now().UTC(),
			Symbols: symbols,
			Stats:   runner.Stats(),
			Limits:  limits,
		})
	}
}

// RunCycleHandler triggers one trading cycle and returns the per-symbol
// results.
func RunCycleHandler(runner cycleRunner, symbols []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := runner.RunCycle(r.Context(), symbols)
		if err != nil {
			logger.WithError(err).Error("manual cycle failed")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, results)
	}
}

type backtestRequest struct {
	Symbol        string  `json:"symbol"`
	Interval      string  `json:"interval"`
	Lookback      int     `json:"lookback"`
	InitialEquity float64 `json:"initial_equity"`
	SlippageBps   int64   `json:"slippage_bps"`
}

// BacktestHandler fetches a historical series and replays it through the
// strategy, returning the performance summary.
func BacktestHandler(source barSource, limits risk.Limits) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req backtestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Symbol == "" {
			http.Error(w, "symbol is required", http.StatusBadRequest)
			return
		}
		if req.Interval == "" {
			req.Interval = "1d"
		}
		if req.Lookback <= 0 {
			req.Lookback = 252
		}
		if req.InitialEquity <= 0 {
			req.InitialEquity = 100000
		}

		result, err := source.GetBars(r.Context(), req.Symbol, req.Interval, req.Lookback)
		if err != nil {
			logger.WithError(err).WithField("symbol", req.Symbol).Error("backtest fetch failed")
			http.Error(w, "market data unavailable", http.StatusBadGateway)
			return
		}

		runner, err := backtest.NewRunner(signal.NewGenerator(), limits, req.InitialEquity, req.SlippageBps)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		summary, err := runner.Run(r.Context(), req.Symbol, result.Bars)
		if err != nil {
			logger.WithError(err).WithField("symbol", req.Symbol).Error("backtest failed")
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		writeJSON(w, summary)
	}
}

// PerformanceHandler summarizes the live account's persisted equity curve
// with the same metrics a backtest reports.
func PerformanceHandler(equity equityHistorian, tradeRepo tradeLister, initialEquity float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := parseLimit(w, r, 5000)
		if !ok {
			return
		}
		history, err := equity.GetHistory(r.Context(), limit)
		if err != nil {
			logger.WithError(err).Error("failed to load equity history")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		trades, err := tradeRepo.ListRecent(r.Context(), limit)
		if err != nil {
			logger.WithError(err).Error("failed to list trades")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, backtest.Summarize(history, len(trades), initialEquity))
	}
}
