package fetcher

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Providers          []string      `envconfig:"FETCHER_PROVIDERS" default:"tiingo,alphavantage"`
	TiingoAPIKey       string        `envconfig:"TIINGO_API_KEY"`
	AlphaVantageAPIKey string        `envconfig:"ALPHA_VANTAGE_API_KEY"`
	CacheTTL           time.Duration `envconfig:"QUOTE_CACHE_TTL" default:"5m"`
	RetryAttempts      int           `envconfig:"FETCH_RETRY_ATTEMPTS" default:"3"`
	RetryBaseDelay     time.Duration `envconfig:"FETCH_RETRY_BASE_DELAY" default:"1s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
