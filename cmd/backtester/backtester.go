package backtester

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"papertrader/src/backtest"
	"papertrader/src/fetcher"
	"papertrader/src/risk"
	signalgen "papertrader/src/signal"
)

type Backtester struct{}

// Start fetches the configured symbol's history, replays it, and writes the
// performance summary as JSON to stdout.
func (b *Backtester) Start() error {
	config := GetConfig()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, config.FetchTimeout)
	defer cancel()

	limits, err := risk.GetLimits()
	if err != nil {
		logrus.WithError(err).Error("invalid risk limits")
		return err
	}

	source := fetcher.NewFromConfig(fetcher.GetConfig())
	result, err := source.GetBars(ctx, config.Symbol, config.Interval, config.Lookback)
	if err != nil {
		logrus.WithError(err).WithField("symbol", config.Symbol).Error("failed to fetch history")
		return err
	}

	runner, err := backtest.NewRunner(signalgen.NewGenerator(), limits, config.InitialEquity, config.SlippageBps)
	if err != nil {
		return err
	}

	summary, err := runner.Run(ctx, config.Symbol, result.Bars)
	if err != nil {
		logrus.WithError(err).Error("backtest failed")
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(summary)
}
