// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the AMM — outcome sides, round
// results, market statuses, the read-model DTOs served by the API, and the
// snapshot structures used for persistence. It has no dependencies on
// internal packages, so it can be imported by any layer.
//
// All native-currency and share amounts are 256-bit unsigned integers with
// 18 implied decimals. DTOs carry them as human-readable decimal strings
// ("0.997" for 997*10^15); snapshots carry them as exact integer strings.
package types

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side is an outcome side of a binary market.
type Side uint8

const (
	SideYes Side = 0
	SideNo  Side = 1
)

// Valid reports whether s is one of the two defined sides.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

func (s Side) String() string {
	switch s {
	case SideYes:
		return "YES"
	case SideNo:
		return "NO"
	default:
		return fmt.Sprintf("Side(%d)", uint8(s))
	}
}

// Result is the settlement outcome of a round.
type Result uint8

const (
	ResultUnresolved Result = 0
	ResultYes        Result = 1
	ResultNo         Result = 2
)

// WinningSide returns the side paid out by this result.
// ok is false while the round is unresolved.
func (r Result) WinningSide() (side Side, ok bool) {
	switch r {
	case ResultYes:
		return SideYes, true
	case ResultNo:
		return SideNo, true
	default:
		return 0, false
	}
}

func (r Result) String() string {
	switch r {
	case ResultUnresolved:
		return "UNRESOLVED"
	case ResultYes:
		return "YES"
	case ResultNo:
		return "NO"
	default:
		return fmt.Sprintf("Result(%d)", uint8(r))
	}
}

// MarketStatus is the lifecycle state of a market in the registry.
type MarketStatus uint8

const (
	StatusUnregistered    MarketStatus = 0
	StatusActive          MarketStatus = 1
	StatusDelistScheduled MarketStatus = 2
	StatusDelisted        MarketStatus = 3
)

// Tradable reports whether enter/exit calls are accepted in this status.
func (st MarketStatus) Tradable() bool {
	return st == StatusActive || st == StatusDelistScheduled
}

func (st MarketStatus) String() string {
	switch st {
	case StatusUnregistered:
		return "UNREGISTERED"
	case StatusActive:
		return "ACTIVE"
	case StatusDelistScheduled:
		return "DELIST_SCHEDULED"
	case StatusDelisted:
		return "DELISTED"
	default:
		return fmt.Sprintf("MarketStatus(%d)", uint8(st))
	}
}

// ————————————————————————————————————————————————————————————————————————
// Amount formatting
// ————————————————————————————————————————————————————————————————————————

// amountDecimals is the implied decimal precision of all amounts.
const amountDecimals = 18

// FormatAmount renders an 18-decimal fixed-point amount as a decimal string
// ("1.5" for 15*10^17). A nil amount renders as "0".
func FormatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v.ToBig(), -amountDecimals).String()
}

// ParseAmount parses a human-readable decimal string into an 18-decimal
// fixed-point amount. Negative values and more than 18 fractional digits
// are rejected.
func ParseAmount(s string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("parse amount %q: negative", s)
	}
	shifted := d.Shift(amountDecimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("parse amount %q: more than %d decimal places", s, amountDecimals)
	}
	v, overflow := uint256.FromBig(shifted.BigInt())
	if overflow {
		return nil, fmt.Errorf("parse amount %q: exceeds 256 bits", s)
	}
	return v, nil
}

// ————————————————————————————————————————————————————————————————————————
// API read models
// ————————————————————————————————————————————————————————————————————————

// RoundInfo is the read model of a single (market, round) state.
type RoundInfo struct {
	MarketID       uint64 `json:"market_id"`
	RoundID        uint64 `json:"round_id"`
	YesReserves    string `json:"yes_reserves"`
	NoReserves     string `json:"no_reserves"`
	Treasury       string `json:"treasury"`
	OutstandingYes string `json:"outstanding_yes"`
	OutstandingNo  string `json:"outstanding_no"`
	Result         string `json:"result"`
}

// UserRoundPosition is a user's share balances in one round.
type UserRoundPosition struct {
	MarketID  uint64 `json:"market_id"`
	RoundID   uint64 `json:"round_id"`
	YesShares string `json:"yes_shares"`
	NoShares  string `json:"no_shares"`
}

// ResolutionStatus reports whether the shared round window has elapsed.
// PendingResolverFee is the accrued incentive the next resolver collects.
type ResolutionStatus struct {
	Resolvable         bool   `json:"resolvable"`
	SecondsLeft        uint64 `json:"seconds_left"`
	PendingResolverFee string `json:"pending_resolver_fee"`
}

// UnclaimedRounds is one page of a user's pending redemption queue.
type UnclaimedRounds struct {
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	RoundIDs []uint64 `json:"round_ids"`
}

// MarketInfo is the registry view of one market.
type MarketInfo struct {
	MarketID     uint64 `json:"market_id"`
	Status       string `json:"status"`
	CurrentRound uint64 `json:"current_round"`
	DelistRound  uint64 `json:"delist_round,omitempty"`
}

// ————————————————————————————————————————————————————————————————————————
// Snapshot persistence
// ————————————————————————————————————————————————————————————————————————

// EngineSnapshot is the full persisted state of the engine. Amounts are
// exact integer strings so a restore is bit-for-bit.
type EngineSnapshot struct {
	TakenAt      time.Time          `json:"taken_at"`
	RoundStart   time.Time          `json:"round_start"`
	Fees         string             `json:"fees"`
	ResolverPool string             `json:"resolver_pool"`
	Markets      []MarketSnapshot   `json:"markets"`
	Positions    []PositionSnapshot `json:"positions"`
	Queues       []QueueSnapshot    `json:"queues"`
}

// MarketSnapshot persists one market and its rounds.
type MarketSnapshot struct {
	ID           uint64          `json:"id"`
	Status       MarketStatus    `json:"status"`
	CurrentRound uint64          `json:"current_round"`
	DelistRound  uint64          `json:"delist_round"`
	Bootstrap    string          `json:"bootstrap"`
	Threshold    string          `json:"threshold"`
	Rounds       []RoundSnapshot `json:"rounds"`
}

// RoundSnapshot persists one round's reserves and liabilities.
type RoundSnapshot struct {
	ID             uint64 `json:"id"`
	YesReserves    string `json:"yes_reserves"`
	NoReserves     string `json:"no_reserves"`
	Treasury       string `json:"treasury"`
	OutstandingYes string `json:"outstanding_yes"`
	OutstandingNo  string `json:"outstanding_no"`
	Result         Result `json:"result"`
}

// PositionSnapshot persists one user's balances in one round.
type PositionSnapshot struct {
	User      string `json:"user"`
	MarketID  uint64 `json:"market_id"`
	RoundID   uint64 `json:"round_id"`
	YesShares string `json:"yes_shares"`
	NoShares  string `json:"no_shares"`
}

// QueueSnapshot persists one user's pending rounds for one market,
// in queue order.
type QueueSnapshot struct {
	User     string   `json:"user"`
	MarketID uint64   `json:"market_id"`
	Rounds   []uint64 `json:"rounds"`
}
