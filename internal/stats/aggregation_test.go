package stats

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{42}, 42},
		{"several", []float64{20, 22, 24}, 22},
		{"negative", []float64{-10, 10}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mean(tt.values); !almostEqual(got, tt.want) {
				t.Errorf("Mean(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestWeightedMean(t *testing.T) {
	tests := []struct {
		name    string
		values  []float64
		weights []float64
		want    float64
	}{
		{"empty", nil, nil, 0},
		{"equal weights", []float64{10, 20}, []float64{1, 1}, 15},
		{"skewed", []float64{10, 20}, []float64{3, 1}, 12.5},
		{"missing weights default to one", []float64{10, 20, 30}, []float64{2}, 17.5},
		{"zero weights fall back to mean", []float64{10, 20}, []float64{0, 0}, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeightedMean(tt.values, tt.weights); !almostEqual(got, tt.want) {
				t.Errorf("WeightedMean(%v, %v) = %v, want %v", tt.values, tt.weights, got, tt.want)
			}
		})
	}
}

func TestEWMA(t *testing.T) {
	// Fold 20, 22, 24 with alpha 0.3: 20 -> 20.6 -> 21.62
	avg := 20.0
	avg = EWMA(avg, 22, 0.3)
	if !almostEqual(avg, 20.6) {
		t.Errorf("after second sample avg = %v, want 20.6", avg)
	}
	avg = EWMA(avg, 24, 0.3)
	if !almostEqual(avg, 21.62) {
		t.Errorf("after third sample avg = %v, want 21.62", avg)
	}

	// alpha 1 means the new sample wins outright.
	if got := EWMA(10, 50, 1); !almostEqual(got, 50) {
		t.Errorf("EWMA alpha=1 = %v, want 50", got)
	}

	// Out-of-range alpha falls back to the default 0.3.
	if got := EWMA(10, 20, -1); !almostEqual(got, 13) {
		t.Errorf("EWMA alpha=-1 = %v, want 13", got)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		v, lo, hi, want float64
	}{
		{50, 0, 100, 50},
		{-5, 0, 100, 0},
		{120, 0, 100, 100},
		{0, 0, 100, 0},
		{100, 0, 100, 100},
	}

	for _, tt := range tests {
		if got := Clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("Clamp(%v, %v, %v) = %v, want %v", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}
