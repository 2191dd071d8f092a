package providers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"papertrader/src/model"
)

// BinanceClient serves crypto symbols (e.g. "BTC_USDT"). It sits behind the
// same BarProvider interface as the stock providers, so the fetcher can carry
// it in the fallback chain for crypto watchlists.
type BinanceClient struct {
	exchange goex.API
	interval string
}

// NewBinanceClient creates a client against the public Binance kline API.
// endpoint overrides the base URL for tests; empty means production.
func NewBinanceClient(endpoint string) *BinanceClient {
	if endpoint == "" {
		endpoint = binance.GLOBAL_API_BASE_URL
	}

	apiConfig := &goex.APIConfig{
		HttpClient: http.DefaultClient,
		Endpoint:   endpoint,
	}

	return &BinanceClient{
		exchange: binance.NewWithConfig(apiConfig),
	}
}

func (c *BinanceClient) Name() string {
	return "binance"
}

func (c *BinanceClient) FetchBars(_ context.Context, symbol, interval string, lookback int) ([]model.Bar, error) {
	if lookback <= 0 {
		lookback = 200
	}

	base, quote, found := strings.Cut(symbol, "_")
	if !found {
		return nil, fmt.Errorf("binance symbol %q must be BASE_QUOTE", symbol)
	}
	pair := goex.NewCurrencyPair(goex.Currency{Symbol: base}, goex.Currency{Symbol: quote})

	period, err := parseGoexPeriod(interval)
	if err != nil {
		return nil, err
	}

	klines, err := c.exchange.GetKlineRecords(pair, period, lookback)
	if err != nil {
		if strings.Contains(err.Error(), "429") {
			return nil, fmt.Errorf("binance: %w", ErrRateLimited)
		}
		return nil, fmt.Errorf("binance kline fetch failed: %w", err)
	}
	if len(klines) == 0 {
		return nil, fmt.Errorf("binance returned no klines for %s", symbol)
	}

	bars := make([]model.Bar, 0, len(klines))
	for _, k := range klines {
		bars = append(bars, model.Bar{
			Symbol:    symbol,
			Timestamp: time.Unix(k.Timestamp, 0).UTC(),
			Interval:  interval,
			Open:      decimal.NewFromFloat(k.Open),
			High:      decimal.NewFromFloat(k.High),
			Low:       decimal.NewFromFloat(k.Low),
			Close:     decimal.NewFromFloat(k.Close),
			Volume:    decimal.NewFromFloat(k.Vol),
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })

	logger.WithFields(logger.Fields{
		"symbol": symbol,
		"bars":   len(bars),
	}).Debug("binance bars fetched")

	return bars, nil
}

func parseGoexPeriod(interval string) (goex.KlinePeriod, error) {
	switch interval {
	case "1m":
		return goex.KLINE_PERIOD_1MIN, nil
	case "1h":
		return goex.KLINE_PERIOD_1H, nil
	case "1d", "":
		return goex.KLINE_PERIOD_1DAY, nil
	default:
		return 0, fmt.Errorf("unsupported interval %q", interval)
	}
}
