package types

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestFormatAmount(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"zero", "0", "0"},
		{"one unit", "1000000000000000000", "1"},
		{"fraction", "997000000000000000", "0.997"},
		{"smallest", "1", "0.000000000000000001"},
		{"mixed", "5159503801488349144", "5.159503801488349144"},
		{"trailing zeros trimmed", "1500000000000000000", "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v, err := uint256.FromDecimal(tt.in)
			if err != nil {
				t.Fatalf("FromDecimal: %v", err)
			}
			if got := FormatAmount(v); got != tt.want {
				t.Errorf("FormatAmount(%s) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if got := FormatAmount(nil); got != "0" {
		t.Errorf("FormatAmount(nil) = %q, want 0", got)
	}
}

func TestParseAmount(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"integer", "425", "425000000000000000000"},
		{"fraction", "0.003", "3000000000000000"},
		{"full precision", "1.234567890123456789", "1234567890123456789"},
		{"zero", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseAmount(tt.in)
			if err != nil {
				t.Fatalf("ParseAmount(%q): %v", tt.in, err)
			}
			if got.Dec() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got.Dec(), tt.want)
			}
		})
	}
}

func TestParseAmountRejects(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "abc", "-1", "0.0000000000000000001", "1e100000"} {
		if _, err := ParseAmount(in); err == nil {
			t.Errorf("ParseAmount(%q) succeeded, want error", in)
		}
	}
}

func TestParseFormatRoundtrip(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"0", "1", "0.997", "425", "9.741476423661401936"} {
		v, err := ParseAmount(s)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", s, err)
		}
		if got := FormatAmount(v); got != s {
			t.Errorf("roundtrip %q = %q", s, got)
		}
	}
}

func TestSideHelpers(t *testing.T) {
	t.Parallel()
	if !SideYes.Valid() || !SideNo.Valid() || Side(2).Valid() {
		t.Error("Valid misclassified a side")
	}
	if SideYes.Opposite() != SideNo || SideNo.Opposite() != SideYes {
		t.Error("Opposite is wrong")
	}
	if SideYes.String() != "YES" || SideNo.String() != "NO" {
		t.Error("String is wrong")
	}
}

func TestResultWinningSide(t *testing.T) {
	t.Parallel()
	if side, ok := ResultYes.WinningSide(); !ok || side != SideYes {
		t.Errorf("ResultYes winning side = %v, %v", side, ok)
	}
	if side, ok := ResultNo.WinningSide(); !ok || side != SideNo {
		t.Errorf("ResultNo winning side = %v, %v", side, ok)
	}
	if _, ok := ResultUnresolved.WinningSide(); ok {
		t.Error("ResultUnresolved has a winning side")
	}
}

func TestMarketStatusTradable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		status MarketStatus
		want   bool
	}{
		{StatusUnregistered, false},
		{StatusActive, true},
		{StatusDelistScheduled, true},
		{StatusDelisted, false},
	}
	for _, tt := range tests {
		if got := tt.status.Tradable(); got != tt.want {
			t.Errorf("%s.Tradable() = %v, want %v", tt.status, got, tt.want)
		}
	}
}
