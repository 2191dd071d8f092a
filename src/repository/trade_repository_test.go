package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"papertrader/src/model"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		sqlDB.Close()
		t.Fatalf("failed to open gorm DB with sqlmock: %v", err)
	}

	return gdb, mock
}

func tradeRows(trades ...model.Trade) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "order_id", "symbol", "side", "quantity", "price",
		"timestamp", "strategy_tag", "profit_loss", "status", "created_at",
	})
	for _, trade := range trades {
		rows.AddRow(trade.ID, trade.OrderID, trade.Symbol, trade.Side, trade.Quantity,
			trade.Price, trade.Timestamp, trade.StrategyTag, trade.ProfitLoss,
			trade.Status, trade.CreatedAt)
	}
	return rows
}

func TestTradeRepositoryFindByOrderID(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := NewTradeRepositoryWithDB(mockDB)

	executedAt := time.Date(2025, time.March, 4, 15, 0, 0, 0, time.UTC)

	t.Run("returns the trade", func(t *testing.T) {
		mock.ExpectQuery(`SELECT \* FROM "trades" WHERE order_id = \$1`).
			WithArgs("order-1", 1).
			WillReturnRows(tradeRows(model.Trade{
				ID: 1, OrderID: "order-1", Symbol: "AAPL", Side: model.SideBuy,
				Quantity: 100, Price: 100, Timestamp: executedAt,
				StrategyTag: "SMA_RSI", Status: model.TradeStatusCompleted,
			}))

		trade, err := repo.FindByOrderID(context.Background(), "order-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if trade == nil || trade.OrderID != "order-1" {
			t.Fatalf("unexpected trade %+v", trade)
		}
	})

	t.Run("missing order id yields nil, not an error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT \* FROM "trades" WHERE order_id = \$1`).
			WithArgs("order-2", 1).
			WillReturnRows(tradeRows())

		trade, err := repo.FindByOrderID(context.Background(), "order-2")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if trade != nil {
			t.Fatalf("expected nil, got %+v", trade)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestTradeRepositoryUpsertTradeIgnoresDuplicates(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := NewTradeRepositoryWithDB(mockDB)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "trades" .* ON CONFLICT \("order_id"\) DO NOTHING`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.UpsertTrade(context.Background(), &model.Trade{
		OrderID: "order-1", Symbol: "AAPL", Side: model.SideBuy,
		Quantity: 100, Price: 100,
		Timestamp: time.Date(2025, time.March, 4, 15, 0, 0, 0, time.UTC),
		Status:    model.TradeStatusCompleted,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestTradeRepositoryUpdateStatus(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := NewTradeRepositoryWithDB(mockDB)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "trades" SET "status"=\$1 WHERE order_id = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.UpdateStatus(context.Background(), "order-1", model.TradeStatusFailed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestTradeRepositoryListRecent(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := NewTradeRepositoryWithDB(mockDB)

	executedAt := time.Date(2025, time.March, 4, 15, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT \* FROM "trades" ORDER BY timestamp DESC, id DESC LIMIT \$1`).
		WithArgs(2).
		WillReturnRows(tradeRows(
			model.Trade{ID: 2, OrderID: "order-2", Symbol: "MSFT", Timestamp: executedAt.Add(time.Hour)},
			model.Trade{ID: 1, OrderID: "order-1", Symbol: "AAPL", Timestamp: executedAt},
		))

	trades, err := repo.ListRecent(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 2 || trades[0].OrderID != "order-2" {
		t.Fatalf("unexpected trades %+v", trades)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}
