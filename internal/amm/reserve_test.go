package amm

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func wei(s string) *uint256.Int {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		panic(err)
	}
	return v
}

func eth(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1e18))
}

func TestSwapSmallExact(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name               string
		in, out, gross     uint64
		feeBps             uint64
		wantOut, wantFee   uint64
	}{
		{"no fee halves the pool", 10000, 10000, 10000, 0, 5000, 0},
		{"fifty percent fee", 10000, 10000, 10000, 5000, 3334, 5000},
		{"tiny trade rounds to zero out", 10000, 10000, 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, fee, err := Swap(uint256.NewInt(tt.in), uint256.NewInt(tt.out), uint256.NewInt(tt.gross), tt.feeBps)
			if err != nil {
				t.Fatalf("Swap: %v", err)
			}
			if out.Uint64() != tt.wantOut {
				t.Errorf("amountOut = %d, want %d", out.Uint64(), tt.wantOut)
			}
			if fee.Uint64() != tt.wantFee {
				t.Errorf("fee = %d, want %d", fee.Uint64(), tt.wantFee)
			}
		})
	}
}

func TestSwapBootstrapEnter(t *testing.T) {
	t.Parallel()
	// 1 unit into a fresh 425/425 pool at 30 bps.
	out, fee, err := Swap(eth(425), eth(425), eth(1), 30)
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if want := wei("3000000000000000"); !fee.Eq(want) {
		t.Errorf("fee = %s, want %s", fee.Dec(), want.Dec())
	}
	if want := wei("994666629107716722"); !out.Eq(want) {
		t.Errorf("amountOut = %s, want %s", out.Dec(), want.Dec())
	}
}

func TestSwapOutputBelowReserve(t *testing.T) {
	t.Parallel()
	reserveOut := eth(425)
	out, _, err := Swap(eth(425), reserveOut, eth(1_000_000), 30)
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if !out.Lt(reserveOut) {
		t.Errorf("amountOut %s not below reserveOut %s", out.Dec(), reserveOut.Dec())
	}
}

func TestSwapTruncationFavorsPool(t *testing.T) {
	t.Parallel()
	reserveIn, reserveOut := eth(425), eth(425)
	gross := wei("1234567890123456789")
	out, fee, err := Swap(reserveIn, reserveOut, gross, 30)
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}

	// k never decreases: (in+net)*(out-amountOut) >= in*out.
	netIn := new(uint256.Int).Sub(gross, fee)
	newIn := new(uint256.Int).Add(reserveIn, netIn)
	newOut := new(uint256.Int).Sub(reserveOut, out)
	kBefore := new(uint256.Int).Mul(reserveIn, reserveOut)
	kAfter := new(uint256.Int).Mul(newIn, newOut)
	if kAfter.Lt(kBefore) {
		t.Errorf("k decreased: before %s, after %s", kBefore.Dec(), kAfter.Dec())
	}
}

func TestSwapErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name              string
		in, out, gross    *uint256.Int
		feeBps            uint64
	}{
		{"zero input reserve", uint256.NewInt(0), eth(425), eth(1), 30},
		{"drains output side", uint256.NewInt(1), uint256.NewInt(1), uint256.NewInt(10), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, _, err := Swap(tt.in, tt.out, tt.gross, tt.feeBps); !errors.Is(err, ErrArithmetic) {
				t.Errorf("Swap err = %v, want ErrArithmetic", err)
			}
		})
	}
}

func TestSwapOverflow(t *testing.T) {
	t.Parallel()
	huge := new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 255), uint256.NewInt(1))
	if _, _, err := Swap(huge, huge, huge, 0); !errors.Is(err, ErrArithmetic) {
		t.Errorf("Swap err = %v, want ErrArithmetic", err)
	}
}

func TestSwapDoesNotMutateInputs(t *testing.T) {
	t.Parallel()
	reserveIn, reserveOut, gross := eth(425), eth(425), eth(1)
	if _, _, err := Swap(reserveIn, reserveOut, gross, 30); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if !reserveIn.Eq(eth(425)) || !reserveOut.Eq(eth(425)) || !gross.Eq(eth(1)) {
		t.Error("Swap mutated an input")
	}
}
