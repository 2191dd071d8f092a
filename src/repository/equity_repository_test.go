package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"papertrader/src/model"
)

func snapshotRows(snapshots ...model.EquitySnapshot) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "timestamp", "equity", "cash", "created_at"})
	for _, s := range snapshots {
		rows.AddRow(s.ID, s.Timestamp, s.Equity, s.Cash, s.CreatedAt)
	}
	return rows
}

func TestEquityRepositoryGetLatest(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := NewEquityRepositoryWithDB(mockDB)

	takenAt := time.Date(2025, time.March, 4, 21, 0, 0, 0, time.UTC)

	t.Run("returns the newest snapshot", func(t *testing.T) {
		mock.ExpectQuery(`SELECT \* FROM "equity_snapshots" ORDER BY timestamp DESC`).
			WillReturnRows(snapshotRows(model.EquitySnapshot{
				ID: 7, Timestamp: takenAt, Equity: 101250, Cash: 40000,
			}))

		snapshot, err := repo.GetLatest(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if snapshot == nil || snapshot.Equity != 101250 {
			t.Fatalf("unexpected snapshot %+v", snapshot)
		}
	})

	t.Run("empty curve yields nil, not an error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT \* FROM "equity_snapshots" ORDER BY timestamp DESC`).
			WillReturnRows(snapshotRows())

		snapshot, err := repo.GetLatest(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if snapshot != nil {
			t.Fatalf("expected nil, got %+v", snapshot)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestEquityRepositoryGetHistoryAscending(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := NewEquityRepositoryWithDB(mockDB)

	day1 := time.Date(2025, time.March, 3, 21, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	day3 := day2.Add(24 * time.Hour)

	// The query fetches newest first; the repository reverses before returning.
	mock.ExpectQuery(`SELECT \* FROM "equity_snapshots" ORDER BY timestamp DESC LIMIT \$1`).
		WithArgs(3).
		WillReturnRows(snapshotRows(
			model.EquitySnapshot{ID: 3, Timestamp: day3, Equity: 103000},
			model.EquitySnapshot{ID: 2, Timestamp: day2, Equity: 102000},
			model.EquitySnapshot{ID: 1, Timestamp: day1, Equity: 101000},
		))

	snapshots, err := repo.GetHistory(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshots) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snapshots))
	}
	for i := 1; i < len(snapshots); i++ {
		if snapshots[i].Timestamp.Before(snapshots[i-1].Timestamp) {
			t.Fatalf("history is not in ascending order: %+v", snapshots)
		}
	}
	if snapshots[0].Equity != 101000 || snapshots[2].Equity != 103000 {
		t.Fatalf("unexpected ordering %+v", snapshots)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}
