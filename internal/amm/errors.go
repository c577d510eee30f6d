package amm

import "errors"

// Sentinel errors returned by engine operations. Call sites wrap them with
// fmt.Errorf("...: %w", ...) context; callers match with errors.Is.
var (
	// ErrInvalidInput covers malformed arguments: unknown side, zero
	// amount in, zero market id, or a market not in a tradable status.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidRound is returned for a round id outside the tradable
	// window {current, current+1}.
	ErrInvalidRound = errors.New("invalid round")

	// ErrRoundExpired is returned when trading the current round after
	// its betting window has elapsed.
	ErrRoundExpired = errors.New("round expired")

	// ErrRoundNotYetInitialised is returned when trading the next round
	// while the current round is still in its betting window.
	ErrRoundNotYetInitialised = errors.New("round not yet initialised")

	// ErrSlippageReached is returned when a trade's output falls below
	// the caller's minimum.
	ErrSlippageReached = errors.New("slippage reached")

	// ErrInvalidReserves is returned by exit when the claimed balances
	// do not match the stored position, the sides are equal, or the sell
	// amount exceeds the sell-side balance.
	ErrInvalidReserves = errors.New("invalid reserves")

	// ErrInvalidTimestamp is returned by resolution before the shared
	// round window has elapsed.
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrArithmetic is returned when swap math would overflow 256 bits,
	// divide by zero, or fully drain a reserve.
	ErrArithmetic = errors.New("arithmetic error")

	// ErrNotAuthorised is returned for admin operations invoked by a
	// non-admin caller.
	ErrNotAuthorised = errors.New("not authorised")
)
