package model

import "github.com/shopspring/decimal"

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// OrderIntent is a sized, risk-approved order proposal. It is produced by the
// risk manager and consumed by the execution engine within the same cycle.
type OrderIntent struct {
	Symbol         string          `json:"symbol"`
	Side           string          `json:"side"`
	Quantity       float64         `json:"quantity"`
	ReferencePrice decimal.Decimal `json:"reference_price"`
	StopPrice      decimal.Decimal `json:"stop_price"`
	// ForcedClose is set when the intent was raised by the standing
	// stop-loss check rather than a fresh signal.
	ForcedClose bool `json:"forced_close"`
}
