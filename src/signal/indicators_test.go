package signal

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6}

	if got := SMA(values, 3); !almostEqual(got, 5, 1e-9) {
		t.Fatalf("SMA window 3 = %v, want 5", got)
	}
	if got := SMA(values, 6); !almostEqual(got, 3.5, 1e-9) {
		t.Fatalf("SMA window 6 = %v, want 3.5", got)
	}
}

func TestRSIWilderReference(t *testing.T) {
	// Wilder's worked example: 14 changes seeded as a simple mean.
	closes := []float64{
		44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10, 45.42,
		45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28,
	}

	got := RSI(closes, 14)
	if !almostEqual(got, 70.4641, 0.001) {
		t.Fatalf("RSI = %v, want 70.4641", got)
	}
}

func TestRSIBounds(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{
			name:   "all gains pins at 100",
			values: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
			want:   100,
		},
		{
			name:   "all losses pins at 0",
			values: []float64{15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1},
			want:   0,
		},
		{
			name:   "flat series is neutral",
			values: []float64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5},
			want:   50,
		},
		{
			name:   "too short is neutral",
			values: []float64{1, 2, 3},
			want:   50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RSI(tt.values, 14); !almostEqual(got, tt.want, 1e-9) {
				t.Fatalf("RSI = %v, want %v", got, tt.want)
			}
		})
	}
}
