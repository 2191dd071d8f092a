package model

import "time"

const (
	TradeStatusPending   = "pending"
	TradeStatusCompleted = "completed"
	TradeStatusFailed    = "failed"
)

// Trade is one simulated fill. The log is append-only; OrderID is the
// idempotency key, so replaying the same logical order never records a
// second completed trade.
type Trade struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OrderID     string    `gorm:"size:64;not null;uniqueIndex" json:"order_id"`
	Symbol      string    `gorm:"size:20;not null;index" json:"symbol"`
	Side        string    `gorm:"size:10;not null" json:"side"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	Timestamp   time.Time `gorm:"not null" json:"timestamp"`
	StrategyTag string    `gorm:"size:50;not null;default:SMA_RSI" json:"strategy_tag"`
	ProfitLoss  *float64  `json:"profit_loss,omitempty"`
	Status      string    `gorm:"size:50;not null;default:pending" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Trade) TableName() string {
	return "trades"
}
