// Package risk sizes order intents and vetoes trades that breach the
// configured limits. A veto is a nil intent, never an error: only
// malformed input errors out.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"papertrader/src/model"
)

// Snapshot is the account state consulted for sizing, captured once at
// cycle start so sibling symbols executing mid-cycle cannot skew vetoes.
type Snapshot struct {
	Equity        float64
	Cash          float64
	OpenPositions []model.Position
}

func (s *Snapshot) position(symbol string) *model.Position {
	for i := range s.OpenPositions {
		if s.OpenPositions[i].Symbol == symbol {
			return &s.OpenPositions[i]
		}
	}
	return nil
}

// ApplyFill folds an executed fill into the snapshot so later symbols in the
// same serialized section are sized against post-fill cash and position
// count. Equity is left alone: a fill swaps cash for position value at the
// fill price.
func (s *Snapshot) ApplyFill(trade *model.Trade) {
	if trade == nil {
		return
	}

	notional := trade.Quantity * trade.Price
	if trade.Side == model.SideBuy {
		s.Cash -= notional
		if pos := s.position(trade.Symbol); pos != nil {
			pos.Quantity += trade.Quantity
			return
		}
		s.OpenPositions = append(s.OpenPositions, model.Position{
			Symbol:            trade.Symbol,
			Quantity:          trade.Quantity,
			AverageEntryPrice: trade.Price,
			CurrentPrice:      trade.Price,
		})
		return
	}

	s.Cash += notional
	for i := range s.OpenPositions {
		if s.OpenPositions[i].Symbol != trade.Symbol {
			continue
		}
		s.OpenPositions[i].Quantity -= trade.Quantity
		if s.OpenPositions[i].Quantity <= 0 {
			s.OpenPositions = append(s.OpenPositions[:i], s.OpenPositions[i+1:]...)
		}
		return
	}
}

// Manager applies the sizing and exposure rules.
type Manager struct {
	limits Limits
}

func NewManager(limits Limits) *Manager {
	return &Manager{limits: limits}
}

func (m *Manager) Limits() Limits {
	return m.limits
}

// SizeOrder turns an actionable signal into a bounded order intent. A veto
// is a nil intent with a human-readable reason, never an error; only
// malformed input errors out.
//
// Sizing takes the minimum of the risk-based quantity
// (equity*risk_per_trade_pct / stop distance) and the exposure cap
// (equity*max_position_pct_of_equity / price), floored to whole shares.
func (m *Manager) SizeOrder(sig *model.Signal, snapshot *Snapshot) (*model.OrderIntent, string, error) {
	if sig == nil || snapshot == nil {
		return nil, "", fmt.Errorf("signal and snapshot are required")
	}
	if sig.Direction == model.SignalHold {
		return nil, "", nil
	}
	price := sig.Price
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, "", fmt.Errorf("signal for %s has non-positive price %s", sig.Symbol, price)
	}

	existing := snapshot.position(sig.Symbol)

	// Position-count cap comes first and applies to any symbol we do not
	// already hold. Closing or adding to a held symbol does not raise the
	// count.
	if existing == nil && len(snapshot.OpenPositions) >= m.limits.MaxOpenPositions {
		return nil, m.veto(sig, fmt.Sprintf("max open positions (%d) reached", m.limits.MaxOpenPositions)), nil
	}

	if sig.Direction == model.SignalSell {
		// Long-only: a sell can only reduce an open position.
		if existing == nil || existing.Quantity <= 0 {
			return nil, m.veto(sig, "no open position to sell"), nil
		}
		return m.sizeSell(sig, existing), "", nil
	}

	equity := decimal.NewFromFloat(snapshot.Equity)
	riskAmount := equity.Mul(decimal.NewFromFloat(m.limits.RiskPerTradePct))
	stopLossPct := decimal.NewFromFloat(m.limits.StopLossPct)

	stopDistance := price.Mul(stopLossPct)
	if stopDistance.LessThanOrEqual(decimal.Zero) {
		return nil, m.veto(sig, "zero stop distance"), nil
	}

	riskBasedQty := riskAmount.Div(stopDistance).IntPart()
	capQty := equity.Mul(decimal.NewFromFloat(m.limits.MaxPositionPctOfEquity)).Div(price).IntPart()

	quantity := riskBasedQty
	if capQty < quantity {
		quantity = capQty
	}
	if quantity <= 0 {
		return nil, m.veto(sig, "sized quantity is zero"), nil
	}

	// Cash check: never buy more than the available cash can pay for.
	required := price.Mul(decimal.NewFromInt(quantity))
	if required.GreaterThan(decimal.NewFromFloat(snapshot.Cash)) {
		return nil, m.veto(sig, fmt.Sprintf("insufficient cash: need %s, have %.2f", required, snapshot.Cash)), nil
	}

	intent := &model.OrderIntent{
		Symbol:         sig.Symbol,
		Side:           model.SideBuy,
		Quantity:       float64(quantity),
		ReferencePrice: price,
		StopPrice:      price.Mul(decimal.NewFromInt(1).Sub(stopLossPct)),
	}

	logger.WithFields(logger.Fields{
		"symbol":         sig.Symbol,
		"side":           intent.Side,
		"quantity":       intent.Quantity,
		"risk_based_qty": riskBasedQty,
		"cap_qty":        capQty,
		"stop_price":     intent.StopPrice,
	}).Info("order intent sized")

	return intent, "", nil
}

func (m *Manager) sizeSell(sig *model.Signal, existing *model.Position) *model.OrderIntent {
	// Sells close the whole holding, clamped to what we actually own.
	quantity := existing.Quantity
	stopLossPct := decimal.NewFromFloat(m.limits.StopLossPct)

	return &model.OrderIntent{
		Symbol:         sig.Symbol,
		Side:           model.SideSell,
		Quantity:       quantity,
		ReferencePrice: sig.Price,
		StopPrice:      sig.Price.Mul(decimal.NewFromInt(1).Add(stopLossPct)),
	}
}

// CheckStops returns a forced-close intent for every open position whose
// current price has crossed its stop. The stop is derived from the average
// entry price each cycle, so limit changes take effect immediately. Forced
// closes run before new entries and override the symbol's signal.
func (m *Manager) CheckStops(snapshot *Snapshot) []model.OrderIntent {
	var intents []model.OrderIntent

	stopLossPct := decimal.NewFromFloat(m.limits.StopLossPct)
	for i := range snapshot.OpenPositions {
		pos := &snapshot.OpenPositions[i]
		if pos.Quantity <= 0 {
			continue
		}

		stop := decimal.NewFromFloat(pos.AverageEntryPrice).Mul(decimal.NewFromInt(1).Sub(stopLossPct))
		current := decimal.NewFromFloat(pos.CurrentPrice)
		if current.GreaterThan(stop) {
			continue
		}

		logger.WithFields(logger.Fields{
			"symbol":        pos.Symbol,
			"entry":         pos.AverageEntryPrice,
			"current_price": pos.CurrentPrice,
			"stop":          stop,
		}).Warn("stop-loss crossed, forcing close")

		intents = append(intents, model.OrderIntent{
			Symbol:         pos.Symbol,
			Side:           model.SideSell,
			Quantity:       pos.Quantity,
			ReferencePrice: current,
			StopPrice:      stop,
			ForcedClose:    true,
		})
	}

	return intents
}

func (m *Manager) veto(sig *model.Signal, reason string) string {
	logger.WithFields(logger.Fields{
		"symbol":    sig.Symbol,
		"direction": sig.Direction,
		"reason":    reason,
	}).Info("risk veto")
	return reason
}
