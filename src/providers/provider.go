// Package providers contains the bar data provider clients the fetcher
// fails over between.
package providers

import (
	"context"
	"errors"

	"papertrader/src/model"
)

// ErrRateLimited marks a provider rejection caused by request throttling.
// The fetcher treats it differently from ordinary failures: there is no
// point retrying the same provider, so it fails over immediately.
var ErrRateLimited = errors.New("provider rate limited")

// BarProvider fetches an ascending OHLCV series for one symbol.
type BarProvider interface {
	// Name returns the provider identifier (e.g. "tiingo", "alphavantage").
	Name() string

	// FetchBars returns up to lookback bars for the symbol at the given
	// interval, oldest first. Rate-limit rejections are reported as
	// (wrapped) ErrRateLimited.
	FetchBars(ctx context.Context, symbol, interval string, lookback int) ([]model.Bar, error)
}
