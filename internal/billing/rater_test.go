package billing

import (
	"math"
	"testing"
)

func TestRateCall(t *testing.T) {
	tests := []struct {
		name       string
		elapsed    int
		rate       Rate
		taxPercent float64
		want       RatedCall
	}{
		{
			name:    "rounds up to the increment",
			elapsed: 61,
			rate:    Rate{PerMinute: 10, IncrementSeconds: 60},
			want:    RatedCall{RatedSeconds: 120, Subtotal: 20, Total: 20},
		},
		{
			name:    "exact increment boundary",
			elapsed: 120,
			rate:    Rate{PerMinute: 10, IncrementSeconds: 60},
			want:    RatedCall{RatedSeconds: 120, Subtotal: 20, Total: 20},
		},
		{
			name:    "six second increments",
			elapsed: 7,
			rate:    Rate{PerMinute: 6, IncrementSeconds: 6},
			want:    RatedCall{RatedSeconds: 12, Subtotal: 1.2, Total: 1.2},
		},
		{
			name:    "setup fee applies to zero-duration calls",
			elapsed: 0,
			rate:    Rate{PerMinute: 10, SetupFee: 0.5, IncrementSeconds: 60},
			want:    RatedCall{RatedSeconds: 0, Subtotal: 0.5, Total: 0.5},
		},
		{
			name:       "tax is applied to the subtotal",
			elapsed:    60,
			rate:       Rate{PerMinute: 10, IncrementSeconds: 60},
			taxPercent: 10,
			want:       RatedCall{RatedSeconds: 60, Subtotal: 10, Total: 11},
		},
		{
			name:    "negative elapsed treated as zero",
			elapsed: -5,
			rate:    Rate{PerMinute: 10, IncrementSeconds: 60},
			want:    RatedCall{RatedSeconds: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RateCall(tt.elapsed, tt.rate, tt.taxPercent)
			if got.RatedSeconds != tt.want.RatedSeconds ||
				!closeTo(got.Subtotal, tt.want.Subtotal) ||
				!closeTo(got.Total, tt.want.Total) {
				t.Errorf("RateCall(%d) = %+v, want %+v", tt.elapsed, got, tt.want)
			}
		})
	}
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
