package types

import (
	"errors"
	"math"
	"testing"
)

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name    string
		a, b, d uint64
		want    uint64
		wantErr error
	}{
		{"Simple", 1000, 30, 10000, 3, nil},
		{"Floors", 999, 1, 10, 99, nil},
		{"Exact", 10000, 10000, 10000, 10000, nil},
		{"Zero numerator", 0, 12345, 7, 0, nil},
		{"Wide intermediate", math.MaxUint64, 10000, 10000, math.MaxUint64, nil},
		{"Overflowing quotient", math.MaxUint64, 2, 1, 0, ErrOverflow},
		{"Division by zero", 1, 1, 0, 0, ErrDivisionByZero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MulDiv(tt.a, tt.b, tt.d)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error: got %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestApplyBps(t *testing.T) {
	tests := []struct {
		name   string
		amount uint64
		bps    uint64
		want   uint64
	}{
		{"250 bps of 1,000,000", 1_000_000, 250, 25_000},
		{"30 bps of 1000", 1000, 30, 3},
		{"Rounds toward zero", 333, 30, 0},
		{"Full", 777, 10_000, 777},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyBps(tt.amount, tt.bps)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAddSub(t *testing.T) {
	if _, err := Add(math.MaxUint64, 1); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected overflow, got %v", err)
	}
	if got, err := Add(2, 3); err != nil || got != 5 {
		t.Errorf("Add(2,3) = %d, %v", got, err)
	}
	if _, err := Sub(1, 2); !errors.Is(err, ErrUnderflow) {
		t.Errorf("expected underflow, got %v", err)
	}
	if got, err := Sub(5, 3); err != nil || got != 2 {
		t.Errorf("Sub(5,3) = %d, %v", got, err)
	}
}

func TestDisplayHelpers(t *testing.T) {
	if got := BpsPercent(30); got != "0.30%" {
		t.Errorf("BpsPercent(30) = %s", got)
	}
	if got := BpsPercent(500); got != "5.00%" {
		t.Errorf("BpsPercent(500) = %s", got)
	}
	if got := Decimal(4900, 2).String(); got != "49" {
		t.Errorf("Decimal(4900, 2) = %s", got)
	}
	if got := Ratio(1, 4).String(); got != "0.25" {
		t.Errorf("Ratio(1, 4) = %s", got)
	}
	if !Ratio(1, 0).IsZero() {
		t.Error("Ratio with zero denominator should be zero")
	}
}
