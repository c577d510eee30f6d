package amm

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"roundpool/pkg/types"
)

// Event types published on the engine's event feed.
const (
	EventEnter   = "enter"
	EventExit    = "exit"
	EventRedeem  = "redeem"
	EventResolve = "resolve"
)

// Event is the wrapper for all state-transition notifications.
type Event struct {
	Type      string    // "enter", "exit", "redeem", "resolve"
	Timestamp time.Time // engine-clock time of the transition
	MarketID  uint64
	Data      any // one of EnterEvent, ExitEvent, RedeemEvent, ResolveEvent
}

// EnterEvent records a position entry.
type EnterEvent struct {
	RoundID       uint64
	User          common.Address
	GrossAmountIn *uint256.Int
	Side          types.Side
	AmountOut     *uint256.Int
}

// ExitEvent records a position rebalance.
type ExitEvent struct {
	RoundID                  uint64
	User                     common.Address
	GrossAmountOut           *uint256.Int
	RemainingSellSideBalance *uint256.Int
	NetAmountOut             *uint256.Int
}

// RedeemEvent records one round leaving a user's redemption queue.
// Payout is zero when the user held none of the winning side or the
// winning side had no liability.
type RedeemEvent struct {
	RoundID uint64
	User    common.Address
	Result  types.Result
	Payout  *uint256.Int
}

// ResolveEvent records one market's round settling.
type ResolveEvent struct {
	RoundID       uint64
	Result        types.Result
	TreasurySwept bool // winning side had no liability; treasury went to fees
}
