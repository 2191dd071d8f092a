// Package execution simulates fills for approved order intents and applies
// them to trade, position, and equity state.
package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"papertrader/src/model"
	"papertrader/src/utils"
)

// ErrExecutionFailed is returned once persistence retries are exhausted.
// The failed trade is still recorded so the miss is auditable.
var ErrExecutionFailed = errors.New("order execution failed")

type tradeStore interface {
	UpsertTrade(ctx context.Context, trade *model.Trade) error
	UpdateStatus(ctx context.Context, orderID, status string) error
	FindByOrderID(ctx context.Context, orderID string) (*model.Trade, error)
}

type positionStore interface {
	FindBySymbol(ctx context.Context, symbol string) (*model.Position, error)
	UpsertPosition(ctx context.Context, position *model.Position) error
	DeleteBySymbol(ctx context.Context, symbol string) error
	GetOpenPositions(ctx context.Context) ([]model.Position, error)
}

type equityStore interface {
	UpsertSnapshot(ctx context.Context, snapshot *model.EquitySnapshot) error
	GetLatest(ctx context.Context) (*model.EquitySnapshot, error)
}

// Engine executes one order intent at a time. Callers serialize Execute
// across symbols; the engine itself only guards its idempotency set.
type Engine struct {
	trades    tradeStore
	positions positionStore
	equity    equityStore

	// slippageBps is a fixed basis-point haircut applied against the
	// reference price: buys fill slightly above, sells slightly below.
	slippageBps int64

	retryAttempts  int
	retryBaseDelay time.Duration

	mu   sync.Mutex
	seen map[string]bool

	now        func() time.Time
	newOrderID func() string
}

func NewEngine(trades tradeStore, positions positionStore, equity equityStore, slippageBps int64) *Engine {
	return &Engine{
		trades:         trades,
		positions:      positions,
		equity:         equity,
		slippageBps:    slippageBps,
		retryAttempts:  3,
		retryBaseDelay: 200 * time.Millisecond,
		seen:           make(map[string]bool),
		now:            time.Now,
		newOrderID:     uuid.NewString,
	}
}

// Execute assigns a fresh order id to the intent and runs it. The id is
// generated before any store call so a retry of the same logical intent is
// detectable downstream.
func (e *Engine) Execute(ctx context.Context, intent *model.OrderIntent) (*model.Trade, error) {
	return e.ExecuteWithOrderID(ctx, e.newOrderID(), intent)
}

// ExecuteWithOrderID runs the intent under an explicit idempotency key.
// Replaying a key that already produced a completed trade returns that trade
// without recording a second one.
func (e *Engine) ExecuteWithOrderID(ctx context.Context, orderID string, intent *model.OrderIntent) (*model.Trade, error) {
	if err := validateIntent(orderID, intent); err != nil {
		return nil, err
	}

	if existing, err := e.alreadyExecuted(ctx, orderID); err != nil {
		return nil, err
	} else if existing != nil {
		logger.WithField("order_id", orderID).Info("order id already executed, skipping")
		return existing, nil
	}

	fillPrice := e.fillPrice(intent)
	now := e.now().UTC()

	trade := &model.Trade{
		OrderID:   orderID,
		Symbol:    intent.Symbol,
		Side:      intent.Side,
		Quantity:  intent.Quantity,
		Price:     fillPrice,
		Timestamp: now,
		Status:    model.TradeStatusCompleted,
	}

	err := utils.Retry(ctx, e.retryAttempts, e.retryBaseDelay, func() error {
		return e.applyFill(ctx, trade, intent)
	})
	if err != nil {
		// Record the miss: a dropped intent must stay auditable. A
		// partial persist may already hold the row, so force the
		// status after the insert.
		failed := *trade
		failed.Status = model.TradeStatusFailed
		if recErr := e.trades.UpsertTrade(ctx, &failed); recErr != nil {
			logger.WithError(recErr).WithField("order_id", orderID).
				Error("failed to record failed trade")
		} else if recErr := e.trades.UpdateStatus(ctx, orderID, model.TradeStatusFailed); recErr != nil {
			logger.WithError(recErr).WithField("order_id", orderID).
				Error("failed to mark trade failed")
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrExecutionFailed, intent.Symbol, err)
	}

	// A replay of an order id that previously failed leaves the row
	// FAILED even though this pass applied the fill; settle the status.
	if err := e.trades.UpdateStatus(ctx, orderID, model.TradeStatusCompleted); err != nil {
		logger.WithError(err).WithField("order_id", orderID).Warn("failed to settle trade status")
	}

	e.mu.Lock()
	e.seen[orderID] = true
	e.mu.Unlock()

	logger.WithFields(logger.Fields{
		"order_id": orderID,
		"symbol":   trade.Symbol,
		"side":     trade.Side,
		"quantity": trade.Quantity,
		"price":    trade.Price,
	}).Info("trade executed")

	return trade, nil
}

// alreadyExecuted reports whether the order id has produced a completed
// trade. The storage layer enforces the unique key too, but the engine keeps
// its own record so the invariant holds without a real database behind it.
func (e *Engine) alreadyExecuted(ctx context.Context, orderID string) (*model.Trade, error) {
	existing, err := e.trades.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == model.TradeStatusCompleted {
		return existing, nil
	}

	e.mu.Lock()
	known := e.seen[orderID]
	e.mu.Unlock()
	if known {
		return nil, fmt.Errorf("order id %s already executed but trade record missing", orderID)
	}
	return nil, nil
}

// applyFill persists the trade, reshapes the position, and writes the new
// equity snapshot. Position and equity math runs on the freshly read state,
// so a retry recomputes instead of compounding.
func (e *Engine) applyFill(ctx context.Context, trade *model.Trade, intent *model.OrderIntent) error {
	existing, err := e.positions.FindBySymbol(ctx, trade.Symbol)
	if err != nil {
		return err
	}

	latest, err := e.equity.GetLatest(ctx)
	if err != nil {
		return err
	}
	if latest == nil {
		return fmt.Errorf("no equity snapshot to execute against")
	}

	// A retry after a partial persist must not fold the same fill in
	// twice: a position stamped with this fill's timestamp already
	// absorbed it, and a sell that fully closed leaves no row at all.
	applied := existing != nil && existing.UpdatedAt.Equal(trade.Timestamp)
	if !applied && existing == nil && trade.Side == model.SideSell {
		prior, err := e.trades.FindByOrderID(ctx, trade.OrderID)
		if err != nil {
			return err
		}
		applied = prior != nil
	}

	if !applied {
		updated, realized, err := applyToPosition(existing, trade)
		if err != nil {
			return err
		}
		trade.ProfitLoss = realized

		if err := e.trades.UpsertTrade(ctx, trade); err != nil {
			return err
		}

		if updated.Quantity > 0 {
			if err := e.positions.UpsertPosition(ctx, updated); err != nil {
				return err
			}
		} else {
			if err := e.positions.DeleteBySymbol(ctx, trade.Symbol); err != nil {
				return err
			}
		}
	} else if err := e.trades.UpsertTrade(ctx, trade); err != nil {
		return err
	}

	cash := latest.Cash
	notional := trade.Quantity * trade.Price
	if trade.Side == model.SideBuy {
		cash -= notional
	} else {
		cash += notional
	}

	open, err := e.positions.GetOpenPositions(ctx)
	if err != nil {
		return err
	}
	marked := 0.0
	for i := range open {
		marked += open[i].MarketValue()
	}

	return e.equity.UpsertSnapshot(ctx, &model.EquitySnapshot{
		Timestamp: trade.Timestamp,
		Equity:    cash + marked,
		Cash:      cash,
	})
}

// applyToPosition folds a fill into the symbol's position: weighted-average
// entry on adds, realized P/L on reductions. The returned position carries
// the post-fill quantity; zero quantity means fully closed.
func applyToPosition(existing *model.Position, trade *model.Trade) (*model.Position, *float64, error) {
	if trade.Side == model.SideBuy {
		if existing == nil {
			return &model.Position{
				Symbol:            trade.Symbol,
				Quantity:          trade.Quantity,
				AverageEntryPrice: trade.Price,
				CurrentPrice:      trade.Price,
				UnrealizedPnl:     0,
				UpdatedAt:         trade.Timestamp,
			}, nil, nil
		}

		totalQty := existing.Quantity + trade.Quantity
		totalCost := existing.Quantity*existing.AverageEntryPrice + trade.Quantity*trade.Price
		avg := totalCost / totalQty

		return &model.Position{
			Symbol:            trade.Symbol,
			Quantity:          totalQty,
			AverageEntryPrice: avg,
			CurrentPrice:      trade.Price,
			UnrealizedPnl:     (trade.Price - avg) * totalQty,
			UpdatedAt:         trade.Timestamp,
		}, nil, nil
	}

	if existing == nil || existing.Quantity < trade.Quantity {
		return nil, nil, fmt.Errorf("sell of %v %s exceeds open quantity", trade.Quantity, trade.Symbol)
	}

	realized := (trade.Price - existing.AverageEntryPrice) * trade.Quantity
	remaining := existing.Quantity - trade.Quantity

	return &model.Position{
		Symbol:            trade.Symbol,
		Quantity:          remaining,
		AverageEntryPrice: existing.AverageEntryPrice,
		CurrentPrice:      trade.Price,
		UnrealizedPnl:     (trade.Price - existing.AverageEntryPrice) * remaining,
		UpdatedAt:         trade.Timestamp,
	}, &realized, nil
}

func (e *Engine) fillPrice(intent *model.OrderIntent) float64 {
	price := intent.ReferencePrice
	if e.slippageBps != 0 {
		haircut := decimal.NewFromInt(e.slippageBps).Div(decimal.NewFromInt(10000))
		if intent.Side == model.SideBuy {
			price = price.Mul(decimal.NewFromInt(1).Add(haircut))
		} else {
			price = price.Mul(decimal.NewFromInt(1).Sub(haircut))
		}
	}
	return price.InexactFloat64()
}

func validateIntent(orderID string, intent *model.OrderIntent) error {
	if orderID == "" {
		return fmt.Errorf("order id is required")
	}
	if intent == nil {
		return fmt.Errorf("order intent is required")
	}
	if intent.Symbol == "" {
		return fmt.Errorf("order intent missing symbol")
	}
	if intent.Side != model.SideBuy && intent.Side != model.SideSell {
		return fmt.Errorf("invalid order side %q", intent.Side)
	}
	if intent.Quantity <= 0 {
		return fmt.Errorf("order quantity must be positive, got %v", intent.Quantity)
	}
	if intent.ReferencePrice.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("order reference price must be positive, got %s", intent.ReferencePrice)
	}
	return nil
}

// SetRetryPolicy overrides the persistence retry policy. Test hook.
func (e *Engine) SetRetryPolicy(attempts int, baseDelay time.Duration) {
	e.retryAttempts = attempts
	e.retryBaseDelay = baseDelay
}

// SetNowFunc overrides the clock. Test hook.
func (e *Engine) SetNowFunc(now func() time.Time) {
	e.now = now
}

// SetOrderIDFunc overrides order id generation. Test hook.
func (e *Engine) SetOrderIDFunc(fn func() string) {
	e.newOrderID = fn
}
