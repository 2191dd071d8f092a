package quotecache

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"papertrader/src/model"
)

func testBars(symbol string, n int) []model.Bar {
	start := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, n)
	for i := range bars {
		bars[i] = model.Bar{
			Symbol:    symbol,
			Timestamp: start.AddDate(0, 0, i),
			Interval:  "1d",
			Close:     decimal.NewFromInt(int64(100 + i)),
		}
	}
	return bars
}

func TestCacheGetWithinTTL(t *testing.T) {
	current := time.Date(2025, time.March, 4, 12, 0, 0, 0, time.UTC)
	c := New(5 * time.Minute)
	c.SetNowFunc(func() time.Time { return current })

	c.Put("AAPL", "1d", testBars("AAPL", 3))

	current = current.Add(4 * time.Minute)
	bars, ok := c.Get("AAPL", "1d")
	if !ok {
		t.Fatal("entry younger than the TTL should hit")
	}
	if len(bars) != 3 {
		t.Fatalf("got %d bars, want 3", len(bars))
	}
}

func TestCacheGetExpired(t *testing.T) {
	current := time.Date(2025, time.March, 4, 12, 0, 0, 0, time.UTC)
	c := New(5 * time.Minute)
	c.SetNowFunc(func() time.Time { return current })

	c.Put("AAPL", "1d", testBars("AAPL", 3))

	current = current.Add(5 * time.Minute)
	if _, ok := c.Get("AAPL", "1d"); ok {
		t.Fatal("entry at exactly the TTL should miss")
	}

	// the data is still reachable through the stale path
	if _, ok := c.GetStale("AAPL", "1d"); !ok {
		t.Fatal("GetStale should ignore the TTL")
	}
}

func TestCacheKeyedBySymbolAndInterval(t *testing.T) {
	c := New(5 * time.Minute)
	c.Put("AAPL", "1d", testBars("AAPL", 3))

	if _, ok := c.Get("AAPL", "1h"); ok {
		t.Fatal("different interval should miss")
	}
	if _, ok := c.Get("MSFT", "1d"); ok {
		t.Fatal("different symbol should miss")
	}
}

func TestCachePutRefreshesTTL(t *testing.T) {
	current := time.Date(2025, time.March, 4, 12, 0, 0, 0, time.UTC)
	c := New(5 * time.Minute)
	c.SetNowFunc(func() time.Time { return current })

	c.Put("AAPL", "1d", testBars("AAPL", 2))
	current = current.Add(4 * time.Minute)
	c.Put("AAPL", "1d", testBars("AAPL", 4))
	current = current.Add(4 * time.Minute)

	bars, ok := c.Get("AAPL", "1d")
	if !ok {
		t.Fatal("rewrite should restart the TTL")
	}
	if len(bars) != 4 {
		t.Fatalf("got %d bars, want the rewritten series of 4", len(bars))
	}
}

func TestCacheMissOnUnknownKey(t *testing.T) {
	c := New(5 * time.Minute)
	if _, ok := c.Get("AAPL", "1d"); ok {
		t.Fatal("empty cache should miss")
	}
	if _, ok := c.GetStale("AAPL", "1d"); ok {
		t.Fatal("empty cache should miss on the stale path too")
	}
}
