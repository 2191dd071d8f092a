package model

import "time"

// EquitySnapshot is one point on the equity curve, taken once per cycle.
// Equity always equals cash plus the mark-to-market value of all open
// positions at the snapshot timestamp.
type EquitySnapshot struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"not null;uniqueIndex" json:"timestamp"`
	Equity    float64   `json:"equity"`
	Cash      float64   `json:"cash"`
	CreatedAt time.Time `json:"created_at"`
}

func (EquitySnapshot) TableName() string {
	return "equity_snapshots"
}
