// REST CLIENT FOR THE ALPHA VANTAGE TIME_SERIES_DAILY API
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

const defaultAlphaVantageBaseURL = "https://www.alphavantage.co"

type alphaVantageResponse struct {
	// Alpha Vantage reports throttling as a 200 with a "Note" or
	// "Information" body instead of a 429.
	Note         string                       `json:"Note"`
	Information  string                       `json:"Information"`
	ErrorMessage string                       `json:"Error Message"`
	TimeSeries   map[string]map[string]string `json:"Time Series (Daily)"`
}

// AlphaVantageClient is the secondary bar data provider.
type AlphaVantageClient struct {
	apiKey  string
	baseURL string
	http    *resty.Client
}

func NewAlphaVantageClient(apiKey, baseURL string) *AlphaVantageClient {
	retryCount := defaultRetryAttempts - 1

	if baseURL == "" {
		baseURL = defaultAlphaVantageBaseURL
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(retryCount).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &AlphaVantageClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    httpClient,
	}
}

func (c *AlphaVantageClient) Name() string {
	return "alphavantage"
}

func (c *AlphaVantageClient) FetchBars(ctx context.Context, symbol, interval string, lookback int) ([]model.Bar, error) {
	if lookback <= 0 {
		lookback = 200
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function":   "TIME_SERIES_DAILY",
			"symbol":     symbol,
			"outputsize": "compact",
			"apikey":     c.apiKey,
		}).
		Get("/query")
	if err != nil {
		return nil, fmt.Errorf("alphavantage request failed: %w", err)
	}

	if resp.StatusCode() == 429 {
		logger.WithField("symbol", symbol).Warn("alphavantage rate limit hit")
		return nil, fmt.Errorf("alphavantage: %w", ErrRateLimited)
	}
	if resp.StatusCode()/100 != 2 {
		return nil, fmt.Errorf("alphavantage non-2xx status %d: %s", resp.StatusCode(), resp.String())
	}

	var payload alphaVantageResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("alphavantage decode failed: %w", err)
	}
	if payload.Note != "" || payload.Information != "" {
		logger.WithField("symbol", symbol).Warn("alphavantage throttling note received")
		return nil, fmt.Errorf("alphavantage: %w", ErrRateLimited)
	}
	if payload.ErrorMessage != "" {
		return nil, fmt.Errorf("alphavantage error: %s", payload.ErrorMessage)
	}
	if len(payload.TimeSeries) == 0 {
		return nil, fmt.Errorf("alphavantage returned no time series for %s", symbol)
	}

	bars := make([]model.Bar, 0, len(payload.TimeSeries))
	for date, row := range payload.TimeSeries {
		ts, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("alphavantage bad date %q: %w", date, err)
		}

		bar := model.Bar{
			Symbol:    symbol,
			Timestamp: ts.UTC(),
			Interval:  interval,
		}
		for key, dst := range map[string]*decimal.Decimal{
			"1. open":   &bar.Open,
			"2. high":   &bar.High,
			"3. low":    &bar.Low,
			"4. close":  &bar.Close,
			"5. volume": &bar.Volume,
		} {
			value, ok := row[key]
			if !ok {
				return nil, fmt.Errorf("alphavantage row %s missing %q", date, key)
			}
			d, err := decimal.NewFromString(value)
			if err != nil {
				return nil, fmt.Errorf("alphavantage bad %q value %q: %w", key, value, err)
			}
			*dst = d
		}

		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	if len(bars) > lookback {
		bars = bars[len(bars)-lookback:]
	}

	logger.WithFields(logger.Fields{
		"symbol": symbol,
		"bars":   len(bars),
	}).Debug("alphavantage bars fetched")

	return bars, nil
}
