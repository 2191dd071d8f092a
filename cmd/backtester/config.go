package backtester

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Symbol        string        `envconfig:"BACKTEST_SYMBOL" default:"AAPL"`
	Interval      string        `envconfig:"BACKTEST_INTERVAL" default:"1d"`
	Lookback      int           `envconfig:"BACKTEST_LOOKBACK" default:"252"`
	InitialEquity float64       `envconfig:"BACKTEST_INITIAL_EQUITY" default:"100000"`
	SlippageBps   int64         `envconfig:"BACKTEST_SLIPPAGE_BPS" default:"0"`
	FetchTimeout  time.Duration `envconfig:"BACKTEST_FETCH_TIMEOUT" default:"2m"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
