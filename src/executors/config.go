package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Symbols         []string      `envconfig:"TRADE_SYMBOLS" default:"AAPL,MSFT,SPY"`
	Interval        string        `envconfig:"BAR_INTERVAL" default:"1d"`
	Lookback        int           `envconfig:"BAR_LOOKBACK" default:"120"`
	LoopPeriod      time.Duration `envconfig:"LOOP_PERIOD" default:"5m"`
	WorkerPoolSize  int           `envconfig:"WORKER_POOL_SIZE" default:"4"`
	InitialEquity   float64       `envconfig:"INITIAL_EQUITY" default:"100000"`
	SlippageBps     int64         `envconfig:"SLIPPAGE_BPS" default:"0"`
	MarketHoursOnly bool          `envconfig:"MARKET_HOURS_ONLY" default:"true"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
