package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SignalBuy  = "BUY"
	SignalSell = "SELL"
	SignalHold = "HOLD"
)

// Indicators holds the technical indicator values a signal was derived from.
type Indicators struct {
	SMAFast float64 `json:"sma_fast"`
	SMASlow float64 `json:"sma_slow"`
	RSI     float64 `json:"rsi"`
}

// Signal is the directional decision for one symbol on the latest bar.
// Signals are derived each cycle and never persisted on their own; the
// Conditions map records every boolean sub-check for explainability.
type Signal struct {
	Symbol     string          `json:"symbol"`
	Timestamp  time.Time       `json:"timestamp"`
	Direction  string          `json:"direction"`
	Price      decimal.Decimal `json:"price"`
	Indicators Indicators      `json:"indicators"`
	Conditions map[string]bool `json:"conditions"`
	Strength   float64         `json:"strength"`
}

func (s *Signal) IsActionable() bool {
	return s.Direction == SignalBuy || s.Direction == SignalSell
}
