package billing

import "testing"

func TestAllowance(t *testing.T) {
	tests := []struct {
		name    string
		rate    Rate
		balance float64
		want    Allowance
	}{
		{
			name:    "zero balance is insufficient",
			rate:    Rate{PerMinute: 10, IncrementSeconds: 60},
			balance: 0,
			want:    Allowance{Kind: Insufficient},
		},
		{
			name:    "negative balance is insufficient",
			rate:    Rate{PerMinute: 10, IncrementSeconds: 60},
			balance: -5,
			want:    Allowance{Kind: Insufficient},
		},
		{
			name:    "free call with positive balance is unlimited",
			rate:    Rate{},
			balance: 0.01,
			want:    Allowance{Kind: Unlimited},
		},
		{
			name:    "free call but setup fee exceeds balance",
			rate:    Rate{SetupFee: 1},
			balance: 0.5,
			want:    Allowance{Kind: Insufficient},
		},
		{
			name:    "whole minutes",
			rate:    Rate{PerMinute: 10, IncrementSeconds: 60},
			balance: 100,
			want:    Allowance{Kind: Limited, Seconds: 600},
		},
		{
			name:    "setup fee reduces the spendable balance",
			rate:    Rate{PerMinute: 10, SetupFee: 50, IncrementSeconds: 60},
			balance: 100,
			want:    Allowance{Kind: Limited, Seconds: 300},
		},
		{
			name:    "cannot afford one increment",
			rate:    Rate{PerMinute: 60, IncrementSeconds: 60},
			balance: 30,
			want:    Allowance{Kind: Insufficient},
		},
		{
			name:    "six second increments",
			rate:    Rate{PerMinute: 6, IncrementSeconds: 6},
			balance: 3,
			want:    Allowance{Kind: Limited, Seconds: 30},
		},
		{
			name:    "missing increment defaults to a minute",
			rate:    Rate{PerMinute: 10},
			balance: 25,
			want:    Allowance{Kind: Limited, Seconds: 120},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rate.Allowance(tt.balance); got != tt.want {
				t.Errorf("Allowance(%v) = %+v, want %+v", tt.balance, got, tt.want)
			}
		})
	}
}
