// Package fetcher retrieves OHLCV bars through an ordered provider chain
// with caching, bounded retries, and a stale-cache degraded fallback.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"papertrader/src/model"
	"papertrader/src/providers"
	"papertrader/src/quotecache"
	"papertrader/src/security"
	"papertrader/src/utils"
)

// ErrDataUnavailable is returned only after every provider and the cache
// have been exhausted.
var ErrDataUnavailable = errors.New("market data unavailable from all providers and cache")

// Result carries the fetched series plus a degraded flag set when the bars
// came from a stale cache entry because every provider failed.
type Result struct {
	Bars     []model.Bar
	Degraded bool
	Source   string
}

// Fetcher tries the cache first, then each provider in order under a bounded
// retry policy. Cache mutation is the only shared state it touches.
type Fetcher struct {
	providers      []providers.BarProvider
	cache          *quotecache.Cache
	retryAttempts  int
	retryBaseDelay time.Duration
}

func New(chain []providers.BarProvider, cache *quotecache.Cache, retryAttempts int, retryBaseDelay time.Duration) *Fetcher {
	if retryAttempts <= 0 {
		retryAttempts = 3
	}
	if retryBaseDelay <= 0 {
		retryBaseDelay = time.Second
	}
	return &Fetcher{
		providers:      chain,
		cache:          cache,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
	}
}

// NewFromConfig builds the fallback chain in the order FETCHER_PROVIDERS
// names them: tiingo, alphavantage, and binance for crypto watchlists.
func NewFromConfig(config Config) *Fetcher {
	return New(buildChain(config), quotecache.New(config.CacheTTL), config.RetryAttempts, config.RetryBaseDelay)
}

func buildChain(config Config) []providers.BarProvider {
	chain := make([]providers.BarProvider, 0, len(config.Providers))
	for _, name := range config.Providers {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "tiingo":
			if key := credential(config.TiingoAPIKey, "Tiingo"); key != "" {
				chain = append(chain, providers.NewTiingoClient(key, ""))
			} else {
				logger.Warn("Tiingo API key not set, provider disabled")
			}
		case "alphavantage":
			if key := credential(config.AlphaVantageAPIKey, "Alpha Vantage"); key != "" {
				chain = append(chain, providers.NewAlphaVantageClient(key, ""))
			} else {
				logger.Warn("Alpha Vantage API key not set, provider disabled")
			}
		case "binance":
			// Public kline API, no credential needed.
			chain = append(chain, providers.NewBinanceClient(""))
		default:
			logger.WithField("provider", name).Warn("unknown provider in FETCHER_PROVIDERS, skipping")
		}
	}
	return chain
}

// credential resolves an API key that may be stored encrypted under the
// process credentials key, marked by an "enc:" prefix.
func credential(raw, name string) string {
	const encPrefix = "enc:"
	if !strings.HasPrefix(raw, encPrefix) {
		return raw
	}
	key, err := security.DecryptString(strings.TrimPrefix(raw, encPrefix))
	if err != nil {
		logger.WithError(err).WithField("provider", name).Error("failed to decrypt API key, provider disabled")
		return ""
	}
	return key
}

// GetBars returns an ascending, deduplicated series of at most lookback bars.
func (f *Fetcher) GetBars(ctx context.Context, symbol, interval string, lookback int) (*Result, error) {
	if bars, ok := f.cache.Get(symbol, interval); ok {
		logger.WithField("symbol", symbol).Debug("quote cache hit")
		return &Result{Bars: bars, Source: "cache"}, nil
	}

	for _, provider := range f.providers {
		bars, err := f.fetchWithRetry(ctx, provider, symbol, interval, lookback)
		if err != nil {
			logger.WithError(err).WithFields(logger.Fields{
				"provider": provider.Name(),
				"symbol":   symbol,
			}).Warn("provider exhausted, trying next")
			continue
		}

		bars = dedupe(normalize(bars, interval))
		f.cache.Put(symbol, interval, bars)
		return &Result{Bars: bars, Source: provider.Name()}, nil
	}

	// Every provider failed. A stale cache entry is better than nothing,
	// but the caller must know the data is degraded.
	if bars, ok := f.cache.GetStale(symbol, interval); ok {
		logger.WithField("symbol", symbol).Warn("all providers failed, serving stale cached bars")
		return &Result{Bars: bars, Degraded: true, Source: "stale-cache"}, nil
	}

	return nil, fmt.Errorf("%s: %w", symbol, ErrDataUnavailable)
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, provider providers.BarProvider, symbol, interval string, lookback int) ([]model.Bar, error) {
	var bars []model.Bar
	var rateLimited error

	err := utils.Retry(ctx, f.retryAttempts, f.retryBaseDelay, func() error {
		fetched, err := provider.FetchBars(ctx, symbol, interval, lookback)
		if err != nil {
			// A rate limit means this provider is done for now; stop
			// retrying it and let the chain move on.
			if errors.Is(err, providers.ErrRateLimited) {
				rateLimited = err
				return nil
			}
			return err
		}
		bars = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rateLimited != nil {
		return nil, rateLimited
	}
	return bars, nil
}

// normalize truncates bar timestamps to the interval boundary. Providers
// disagree on the time-of-day of a daily bar, and dedupe keys on the exact
// timestamp.
func normalize(bars []model.Bar, interval string) []model.Bar {
	var granularity string
	switch interval {
	case "1d":
		granularity = "day"
	case "1h":
		granularity = "hour"
	case "1m":
		granularity = "minute"
	default:
		return bars
	}
	for i := range bars {
		bars[i].Timestamp = utils.ResetTime(bars[i].Timestamp, granularity)
	}
	return bars
}

// dedupe drops repeated (symbol, timestamp) bars, keeping the first of each.
// The input is already ascending; order is preserved.
func dedupe(bars []model.Bar) []model.Bar {
	if len(bars) < 2 {
		return bars
	}

	out := bars[:1]
	for _, b := range bars[1:] {
		last := out[len(out)-1]
		if b.Symbol == last.Symbol && b.Timestamp.Equal(last.Timestamp) {
			continue
		}
		out = append(out, b)
	}
	return out
}
