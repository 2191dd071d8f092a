package execution

import (
	"context"
	"sort"
	"sync"

	"papertrader/src/model"
)

// MemoryStore is an in-memory implementation of the trade, position, and
// equity stores. The backtester runs the execution engine against it so a
// replay touches no database, and tests use it the same way.
type MemoryStore struct {
	mu        sync.Mutex
	trades    map[string]model.Trade
	tradeLog  []string
	positions map[string]model.Position
	snapshots []model.EquitySnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trades:    make(map[string]model.Trade),
		positions: make(map[string]model.Position),
	}
}

func (s *MemoryStore) UpsertTrade(_ context.Context, trade *model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trades[trade.OrderID]; ok {
		return nil
	}
	s.trades[trade.OrderID] = *trade
	s.tradeLog = append(s.tradeLog, trade.OrderID)
	return nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, orderID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trade, ok := s.trades[orderID]
	if !ok {
		return nil
	}
	trade.Status = status
	s.trades[orderID] = trade
	return nil
}

func (s *MemoryStore) FindByOrderID(_ context.Context, orderID string) (*model.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trade, ok := s.trades[orderID]
	if !ok {
		return nil, nil
	}
	return &trade, nil
}

// Trades returns the trade log in insertion order.
func (s *MemoryStore) Trades() []model.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Trade, 0, len(s.tradeLog))
	for _, id := range s.tradeLog {
		out = append(out, s.trades[id])
	}
	return out
}

func (s *MemoryStore) UpsertPosition(_ context.Context, position *model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions[position.Symbol] = *position
	return nil
}

func (s *MemoryStore) FindBySymbol(_ context.Context, symbol string) (*model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	position, ok := s.positions[symbol]
	if !ok {
		return nil, nil
	}
	return &position, nil
}

func (s *MemoryStore) DeleteBySymbol(_ context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.positions, symbol)
	return nil
}

func (s *MemoryStore) GetOpenPositions(_ context.Context) ([]model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Position, 0, len(s.positions))
	for _, position := range s.positions {
		out = append(out, position)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// MarkPrice updates the current price and unrealized P/L of an open position
// without trading it. The backtester calls it as each historical bar passes.
func (s *MemoryStore) MarkPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	position, ok := s.positions[symbol]
	if !ok {
		return
	}
	position.CurrentPrice = price
	position.UnrealizedPnl = (price - position.AverageEntryPrice) * position.Quantity
	s.positions[symbol] = position
}

func (s *MemoryStore) UpsertSnapshot(_ context.Context, snapshot *model.EquitySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.snapshots {
		if s.snapshots[i].Timestamp.Equal(snapshot.Timestamp) {
			s.snapshots[i] = *snapshot
			return nil
		}
	}
	s.snapshots = append(s.snapshots, *snapshot)
	return nil
}

func (s *MemoryStore) GetLatest(_ context.Context) (*model.EquitySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.snapshots) == 0 {
		return nil, nil
	}
	latest := s.snapshots[len(s.snapshots)-1]
	return &latest, nil
}

// Snapshots returns the equity curve in insertion order.
func (s *MemoryStore) Snapshots() []model.EquitySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.EquitySnapshot, len(s.snapshots))
	copy(out, s.snapshots)
	return out
}
