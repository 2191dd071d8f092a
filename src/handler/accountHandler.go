package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	logger "github.com/sirupsen/logrus"

	"papertrader/src/model"
	"papertrader/src/repository"
)

type positionLister interface {
	GetOpenPositions(ctx context.Context) ([]model.Position, error)
}

type tradeLister interface {
	ListRecent(ctx context.Context, limit int) ([]model.Trade, error)
}

type barHistorian interface {
	FetchRecent(ctx context.Context, symbol string, to time.Time, limit int) ([]model.Bar, error)
}

type equityHistorian interface {
	GetHistory(ctx context.Context, limit int) ([]model.EquitySnapshot, error)
	GetLatest(ctx context.Context) (*model.EquitySnapshot, error)
}

// PositionsHandler returns a handler that lists the open positions.
func PositionsHandler(repo positionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		positions, err := repo.GetOpenPositions(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to list positions")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, positions)
	}
}

// TradesHandler returns a handler that lists recent trades, newest first.
// Supports a limit query parameter, default 50.
func TradesHandler(repo tradeLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := parseLimit(w, r, 50)
		if !ok {
			return
		}
		trades, err := repo.ListRecent(r.Context(), limit)
		if err != nil {
			logger.WithError(err).Error("failed to list trades")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, trades)
	}
}

// EquityHandler returns a handler that lists the equity curve in ascending
// timestamp order. Supports a limit query parameter, default 500.
func EquityHandler(repo equityHistorian) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := parseLimit(w, r, 500)
		if !ok {
			return
		}
		history, err := repo.GetHistory(r.Context(), limit)
		if err != nil {
			logger.WithError(err).Error("failed to load equity history")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, history)
	}
}

// BarsHandler returns a handler that serves the persisted candles for one
// symbol, ascending. Supports a limit query parameter, default 100.
func BarsHandler(repo barHistorian) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			http.Error(w, "symbol is required", http.StatusBadRequest)
			return
		}
		limit, ok := parseLimit(w, r, 100)
		if !ok {
			return
		}
		bars, err := repo.FetchRecent(r.Context(), symbol, time.Now().UTC(), limit)
		if err != nil {
			logger.WithError(err).WithField("symbol", symbol).Error("failed to load bars")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, bars)
	}
}

func parseLimit(w http.ResponseWriter, r *http.Request, fallback int) (int, bool) {
	limitParam := r.URL.Query().Get("limit")
	if limitParam == "" {
		return fallback, true
	}
	limit, err := strconv.Atoi(limitParam)
	if err != nil || limit <= 0 {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return 0, false
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

// DefaultPositionsHandler wires the handler to the production repository.
func DefaultPositionsHandler() http.HandlerFunc {
	return PositionsHandler(repository.NewPositionRepository())
}

// DefaultTradesHandler wires the handler to the production repository.
func DefaultTradesHandler() http.HandlerFunc {
	return TradesHandler(repository.NewTradeRepository())
}

// DefaultEquityHandler wires the handler to the production repository.
func DefaultEquityHandler() http.HandlerFunc {
	return EquityHandler(repository.NewEquityRepository())
}

// DefaultBarsHandler wires the handler to the production repository.
func DefaultBarsHandler() http.HandlerFunc {
	return BarsHandler(repository.NewBarRepository())
}
