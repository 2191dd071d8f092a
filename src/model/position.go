package model

import "time"

// Position tracks the open holding for one symbol. One row per symbol:
// created on first fill, updated with a weighted-average entry price on
// adds, and deleted once fully closed. Quantity is never negative for the
// long-only strategy.
type Position struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Symbol            string    `gorm:"size:20;not null;uniqueIndex" json:"symbol"`
	Quantity          float64   `json:"quantity"`
	AverageEntryPrice float64   `json:"average_entry_price"`
	CurrentPrice      float64   `json:"current_price"`
	UnrealizedPnl     float64   `json:"unrealized_pnl"`
	UpdatedAt         time.Time `json:"updated_at"`
	CreatedAt         time.Time `json:"created_at"`
}

func (Position) TableName() string {
	return "positions"
}

// MarketValue is the mark-to-market value of the position.
func (p *Position) MarketValue() float64 {
	return p.Quantity * p.CurrentPrice
}
