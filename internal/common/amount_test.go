package common

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		amount   string
		decimals uint8
		want     string
		wantErr  bool
	}{
		{"1", 6, "1000000", false},
		{"1.5", 18, "1500000000000000000", false},
		{"0.0000001", 6, "0", false},
		{"2.9999999", 6, "2999999", false},
		{"100", 0, "100", false},
		{"1e3", 6, "1000000000", false},
		{"abc", 6, "", true},
		{"-1", 6, "", true},
		{"1e80", 0, "", true},
	}
	for _, tt := range tests {
		got, err := ToBaseUnits(tt.amount, tt.decimals)
		if (err != nil) != tt.wantErr {
			t.Errorf("ToBaseUnits(%q, %d) err = %v", tt.amount, tt.decimals, err)
			continue
		}
		if err == nil && got.Dec() != tt.want {
			t.Errorf("ToBaseUnits(%q, %d) = %s, want %s", tt.amount, tt.decimals, got.Dec(), tt.want)
		}
	}
	if _, err := ToBaseUnits("-0.5", 6); !errors.Is(err, ErrNegativeAmount) {
		t.Errorf("negative amount err = %v", err)
	}
}

func TestFromBaseUnits(t *testing.T) {
	tests := []struct {
		raw      *uint256.Int
		decimals uint8
		want     string
	}{
		{uint256.NewInt(1_500_000), 6, "1.5"},
		{uint256.NewInt(1), 6, "0.000001"},
		{uint256.NewInt(0), 18, "0"},
		{uint256.NewInt(42), 0, "42"},
		{nil, 6, "0"},
	}
	for _, tt := range tests {
		if got := FromBaseUnits(tt.raw, tt.decimals); got != tt.want {
			t.Errorf("FromBaseUnits(%v, %d) = %s, want %s", tt.raw, tt.decimals, got, tt.want)
		}
	}
}
