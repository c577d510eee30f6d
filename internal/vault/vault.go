// Package vault is the native-currency settlement ledger. The engine
// debits it when users enter markets and credits it for redemption
// payouts, resolver rewards, and fee withdrawals.
//
// Balances are 18-decimal fixed-point amounts keyed by address. Every
// operation is all-or-nothing under one mutex: a debit either moves the
// full amount or fails with ErrInsufficientFunds and changes nothing.
package vault

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"roundpool/pkg/types"
)

// ErrInsufficientFunds is returned by Debit and Withdraw when the account
// balance cannot cover the amount.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Vault holds user balances. Safe for concurrent use.
type Vault struct {
	mu       sync.Mutex
	balances map[common.Address]*uint256.Int
	logger   *slog.Logger
}

// New creates an empty vault.
func New(logger *slog.Logger) *Vault {
	return &Vault{
		balances: make(map[common.Address]*uint256.Int),
		logger:   logger.With("component", "vault"),
	}
}

// Deposit adds externally arriving funds to user's balance.
func (v *Vault) Deposit(user common.Address, amount *uint256.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.add(user, amount); err != nil {
		return fmt.Errorf("deposit %s: %w", user.Hex(), err)
	}
	v.logger.Debug("deposit", "user", user.Hex(), "amount", types.FormatAmount(amount))
	return nil
}

// Withdraw removes funds from user's balance for external payout.
func (v *Vault) Withdraw(user common.Address, amount *uint256.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.sub(user, amount); err != nil {
		return fmt.Errorf("withdraw %s: %w", user.Hex(), err)
	}
	v.logger.Debug("withdraw", "user", user.Hex(), "amount", types.FormatAmount(amount))
	return nil
}

// Debit moves amount out of user's balance into the engine.
func (v *Vault) Debit(user common.Address, amount *uint256.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.sub(user, amount); err != nil {
		return fmt.Errorf("debit %s: %w", user.Hex(), err)
	}
	return nil
}

// Credit moves amount from the engine into user's balance.
func (v *Vault) Credit(user common.Address, amount *uint256.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.add(user, amount); err != nil {
		return fmt.Errorf("credit %s: %w", user.Hex(), err)
	}
	return nil
}

// Balance returns a copy of user's balance (zero if unknown).
func (v *Vault) Balance(user common.Address) *uint256.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if bal, ok := v.balances[user]; ok {
		return new(uint256.Int).Set(bal)
	}
	return new(uint256.Int)
}

func (v *Vault) add(user common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	bal := v.balances[user]
	if bal == nil {
		bal = new(uint256.Int)
		v.balances[user] = bal
	}
	sum := new(uint256.Int)
	if _, overflow := sum.AddOverflow(bal, amount); overflow {
		return errors.New("balance overflow")
	}
	bal.Set(sum)
	return nil
}

func (v *Vault) sub(user common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	bal := v.balances[user]
	if bal == nil || bal.Lt(amount) {
		return ErrInsufficientFunds
	}
	bal.Sub(bal, amount)
	return nil
}
