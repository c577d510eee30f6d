package vault

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	alice = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob   = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

func newTestVault() *Vault {
	return New(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func TestDepositAndBalance(t *testing.T) {
	t.Parallel()
	v := newTestVault()

	if got := v.Balance(alice); !got.IsZero() {
		t.Errorf("fresh balance = %s, want 0", got.Dec())
	}
	if err := v.Deposit(alice, uint256.NewInt(100)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := v.Deposit(alice, uint256.NewInt(50)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if got := v.Balance(alice); got.Uint64() != 150 {
		t.Errorf("balance = %s, want 150", got.Dec())
	}
	if got := v.Balance(bob); !got.IsZero() {
		t.Errorf("bob balance = %s, want 0", got.Dec())
	}
}

func TestDebitCreditRoundtrip(t *testing.T) {
	t.Parallel()
	v := newTestVault()

	if err := v.Deposit(alice, uint256.NewInt(100)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := v.Debit(alice, uint256.NewInt(60)); err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if err := v.Credit(alice, uint256.NewInt(25)); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if got := v.Balance(alice); got.Uint64() != 65 {
		t.Errorf("balance = %s, want 65", got.Dec())
	}
}

func TestDebitInsufficient(t *testing.T) {
	t.Parallel()
	v := newTestVault()

	if err := v.Debit(alice, uint256.NewInt(1)); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("debit empty account err = %v, want ErrInsufficientFunds", err)
	}

	if err := v.Deposit(alice, uint256.NewInt(10)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := v.Debit(alice, uint256.NewInt(11)); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("overdraft err = %v, want ErrInsufficientFunds", err)
	}
	if got := v.Balance(alice); got.Uint64() != 10 {
		t.Errorf("balance changed on failed debit: %s", got.Dec())
	}
}

func TestWithdraw(t *testing.T) {
	t.Parallel()
	v := newTestVault()

	if err := v.Deposit(alice, uint256.NewInt(30)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := v.Withdraw(alice, uint256.NewInt(30)); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if got := v.Balance(alice); !got.IsZero() {
		t.Errorf("balance = %s, want 0", got.Dec())
	}
	if err := v.Withdraw(alice, uint256.NewInt(1)); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("withdraw empty err = %v, want ErrInsufficientFunds", err)
	}
}

func TestZeroAmountIsNoOp(t *testing.T) {
	t.Parallel()
	v := newTestVault()
	zero := new(uint256.Int)

	if err := v.Debit(alice, zero); err != nil {
		t.Errorf("zero debit err = %v", err)
	}
	if err := v.Credit(alice, nil); err != nil {
		t.Errorf("nil credit err = %v", err)
	}
	if got := v.Balance(alice); !got.IsZero() {
		t.Errorf("balance = %s after no-ops, want 0", got.Dec())
	}
}

func TestDepositOverflowLeavesBalance(t *testing.T) {
	t.Parallel()
	v := newTestVault()

	max := new(uint256.Int).SetAllOne()
	if err := v.Deposit(alice, max); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := v.Deposit(alice, uint256.NewInt(1)); err == nil {
		t.Fatal("overflowing deposit succeeded")
	}
	if got := v.Balance(alice); !got.Eq(max) {
		t.Errorf("balance changed on failed deposit: %s", got.Dec())
	}
}

func TestBalanceReturnsCopy(t *testing.T) {
	t.Parallel()
	v := newTestVault()

	if err := v.Deposit(alice, uint256.NewInt(7)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	bal := v.Balance(alice)
	bal.SetUint64(999)
	if got := v.Balance(alice); got.Uint64() != 7 {
		t.Errorf("internal balance mutated through copy: %s", got.Dec())
	}
}
