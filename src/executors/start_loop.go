package executors

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"

	"papertrader/src/execution"
	"papertrader/src/fetcher"
	"papertrader/src/model"
	"papertrader/src/repository"
	"papertrader/src/risk"
	"papertrader/src/signal"
)

// BuildRunner wires a Runner against the live database repositories and the
// provider-backed fetcher.
func BuildRunner(config Config) (*Runner, error) {
	limits, err := risk.GetLimits()
	if err != nil {
		return nil, err
	}

	tradeRepo := repository.NewTradeRepository()
	positionRepo := repository.NewPositionRepository()
	equityRepo := repository.NewEquityRepository()
	barRepo := repository.NewBarRepository()

	engine := execution.NewEngine(tradeRepo, positionRepo, equityRepo, config.SlippageBps)

	return NewRunner(
		fetcher.NewFromConfig(fetcher.GetConfig()),
		signal.NewGenerator(),
		risk.NewManager(limits),
		engine,
		barRepo,
		positionRepo,
		equityRepo,
		config,
	), nil
}

// StartLoop runs trading cycles on a fixed period until the context is
// cancelled. A failed cycle is logged and the loop keeps going; only a
// broken configuration stops it.
func StartLoop(ctx context.Context) error {
	config := GetConfig()

	if len(config.Symbols) == 0 {
		return errors.New("no trade symbols configured")
	}

	runner, err := BuildRunner(config)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(config.LoopPeriod)
	defer ticker.Stop()

	logger.WithFields(logger.Fields{
		"symbols":     config.Symbols,
		"interval":    config.Interval,
		"loop_period": config.LoopPeriod,
	}).Info("trading loop started")

	runCycle(ctx, runner, config.Symbols)

	for {
		select {
		case <-ctx.Done():
			logger.Info("trading loop stopped")
			return nil

		case <-ticker.C:
			runCycle(ctx, runner, config.Symbols)
		}
	}
}

func runCycle(ctx context.Context, runner *Runner, symbols []string) {
	results, err := runner.RunCycle(ctx, symbols)
	if err != nil {
		logger.WithError(err).Error("cycle failed")
		return
	}
	for _, result := range results {
		entry := logger.WithFields(logger.Fields{
			"symbol": result.Symbol,
			"state":  result.State,
		})
		switch {
		case result.State == model.CycleStateFailed:
			entry.WithField("step", result.FailureStep).Warn(result.Reason)
		case result.Vetoed:
			entry.Info("vetoed: " + result.VetoReason)
		case result.Trade != nil:
			entry.WithFields(logger.Fields{
				"side":     result.Trade.Side,
				"quantity": result.Trade.Quantity,
				"price":    result.Trade.Price,
			}).Info("trade executed")
		default:
			entry.Info("cycle step finished")
		}
	}
}
