// Package server exposes the account state and pipeline controls over HTTP
// plus a websocket stream of cycle results.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"papertrader/src/executors"
	"papertrader/src/fetcher"
	"papertrader/src/handler"
	"papertrader/src/repository"
	"papertrader/src/risk"
)

func StartServer(port string) {
	serverConfig := GetConfig()
	if port == "" {
		port = serverConfig.Port
	}

	config := executors.GetConfig()

	limits, err := risk.GetLimits()
	if err != nil {
		logger.WithError(err).Fatal("invalid risk limits")
	}

	runner, err := executors.BuildRunner(config)
	if err != nil {
		logger.WithError(err).Fatal("failed to build cycle runner")
	}

	hub := NewHub()
	runner.SetPublisher(hub.BroadcastResults)

	source := fetcher.NewFromConfig(fetcher.GetConfig())
	equityRepo := repository.NewEquityRepository()
	tradeRepo := repository.NewTradeRepository()

	r := chi.NewRouter()

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("\"/healthcheck\" error")
		}
	})

	r.Get("/positions", handler.DefaultPositionsHandler())
	r.Get("/trades", handler.DefaultTradesHandler())
	r.Get("/equity", handler.DefaultEquityHandler())
	r.Get("/bars", handler.DefaultBarsHandler())
	r.Get("/performance", handler.PerformanceHandler(equityRepo, tradeRepo, config.InitialEquity))
	r.Get("/status", handler.StatusHandler(runner, config.Symbols, limits))
	r.Post("/cycle", handler.RunCycleHandler(runner, config.Symbols))
	r.Post("/backtest", handler.BacktestHandler(source, limits))
	r.Get("/ws", hub.ServeWS)

	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	hub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
