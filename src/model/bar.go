package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is a single OHLCV candle. Bars are immutable once fetched and are
// deduplicated by (symbol, timestamp).
type Bar struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Symbol    string          `gorm:"size:20;not null;uniqueIndex:idx_bar_symbol_ts" json:"symbol"`
	Timestamp time.Time       `gorm:"not null;uniqueIndex:idx_bar_symbol_ts" json:"timestamp"`
	Interval  string          `gorm:"size:10;not null;default:1d" json:"interval"`
	Open      decimal.Decimal `gorm:"type:numeric" json:"open"`
	High      decimal.Decimal `gorm:"type:numeric" json:"high"`
	Low       decimal.Decimal `gorm:"type:numeric" json:"low"`
	Close     decimal.Decimal `gorm:"type:numeric" json:"close"`
	Volume    decimal.Decimal `gorm:"type:numeric" json:"volume"`
}

func (Bar) TableName() string {
	return "bars"
}

// Closes extracts closing prices in series order as float64 for indicator math.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Close.InexactFloat64()
	}
	return out
}
