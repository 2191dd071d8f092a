// REST CLIENT FOR THE TIINGO DAILY PRICES API
// RESTY ONLY + INTERNAL RETRY
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"papertrader/src/model"
)

const (
	// Default retry configuration
	defaultRetryAttempts   = 3
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second

	defaultTiingoBaseURL = "https://api.tiingo.com/tiingo/daily"
)

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 408 {
		return true
	}
	// 429 is deliberately not retried here: the fetcher fails over to the
	// next provider on a rate limit instead of hammering this one.
	return false
}

type tiingoPrice struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// TiingoClient is the primary bar data provider.
type TiingoClient struct {
	apiKey  string
	baseURL string
	http    *resty.Client
}

func NewTiingoClient(apiKey, baseURL string) *TiingoClient {
	retryCount := defaultRetryAttempts - 1

	if baseURL == "" {
		baseURL = defaultTiingoBaseURL
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(retryCount).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &TiingoClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    httpClient,
	}
}

func (c *TiingoClient) Name() string {
	return "tiingo"
}

// FetchBars pulls daily prices for the symbol, newest window sized by lookback.
func (c *TiingoClient) FetchBars(ctx context.Context, symbol, interval string, lookback int) ([]model.Bar, error) {
	if lookback <= 0 {
		lookback = 200
	}

	startDate := time.Now().UTC().AddDate(0, 0, -int(float64(lookback)*1.5)).Format("2006-01-02")

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"token":     c.apiKey,
			"format":    "json",
			"startDate": startDate,
		}).
		Get("/" + symbol + "/prices")
	if err != nil {
		return nil, fmt.Errorf("tiingo request failed: %w", err)
	}

	if resp.StatusCode() == 429 {
		logger.WithField("symbol", symbol).Warn("tiingo rate limit hit")
		return nil, fmt.Errorf("tiingo: %w", ErrRateLimited)
	}
	if resp.StatusCode()/100 != 2 {
		return nil, fmt.Errorf("tiingo non-2xx status %d: %s", resp.StatusCode(), resp.String())
	}

	var prices []tiingoPrice
	if err := json.Unmarshal(resp.Body(), &prices); err != nil {
		return nil, fmt.Errorf("tiingo decode failed: %w", err)
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("tiingo returned no prices for %s", symbol)
	}

	bars := make([]model.Bar, 0, len(prices))
	for _, p := range prices {
		ts, err := time.Parse(time.RFC3339, p.Date)
		if err != nil {
			// Tiingo sometimes returns bare dates
			ts, err = time.Parse("2006-01-02", p.Date)
			if err != nil {
				return nil, fmt.Errorf("tiingo bad date %q: %w", p.Date, err)
			}
		}

		bars = append(bars, model.Bar{
			Symbol:    symbol,
			Timestamp: ts.UTC(),
			Interval:  interval,
			Open:      decimal.NewFromFloat(p.Open),
			High:      decimal.NewFromFloat(p.High),
			Low:       decimal.NewFromFloat(p.Low),
			Close:     decimal.NewFromFloat(p.Close),
			Volume:    decimal.NewFromFloat(p.Volume),
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	if len(bars) > lookback {
		bars = bars[len(bars)-lookback:]
	}

	logger.WithFields(logger.Fields{
		"symbol": symbol,
		"bars":   len(bars),
	}).Debug("tiingo bars fetched")

	return bars, nil
}
