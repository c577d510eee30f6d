package api

import (
	"time"

	"roundpool/internal/amm"
	"roundpool/pkg/types"
)

// StreamEvent is the wrapper for all events sent to WebSocket clients.
type StreamEvent struct {
	Type      string    `json:"type"`      // "enter", "exit", "redeem", "resolve"
	Timestamp time.Time `json:"timestamp"` // engine-clock time of the transition
	MarketID  uint64    `json:"market_id"`
	Data      any       `json:"data"` // event-specific payload
}

// EnterEvent is a position entry notification.
type EnterEvent struct {
	RoundID       uint64 `json:"round_id"`
	User          string `json:"user"`
	GrossAmountIn string `json:"gross_amount_in"`
	Side          string `json:"side"`
	AmountOut     string `json:"amount_out"`
}

// ExitEvent is a position rebalance notification.
type ExitEvent struct {
	RoundID                  uint64 `json:"round_id"`
	User                     string `json:"user"`
	GrossAmountOut           string `json:"gross_amount_out"`
	RemainingSellSideBalance string `json:"remaining_sell_side_balance"`
	NetAmountOut             string `json:"net_amount_out"`
}

// RedeemEvent is a redemption notification.
type RedeemEvent struct {
	RoundID uint64 `json:"round_id"`
	User    string `json:"user"`
	Result  string `json:"result"`
	Payout  string `json:"payout"`
}

// ResolveEvent is a round settlement notification.
type ResolveEvent struct {
	RoundID       uint64 `json:"round_id"`
	Result        string `json:"result"`
	TreasurySwept bool   `json:"treasury_swept"`
}

// streamEventFrom converts an engine event into its wire form, with
// amounts rendered as decimal strings.
func streamEventFrom(evt amm.Event) StreamEvent {
	out := StreamEvent{Type: evt.Type, Timestamp: evt.Timestamp, MarketID: evt.MarketID}

	switch data := evt.Data.(type) {
	case amm.EnterEvent:
		out.Data = EnterEvent{
			RoundID:       data.RoundID,
			User:          data.User.Hex(),
			GrossAmountIn: types.FormatAmount(data.GrossAmountIn),
			Side:          data.Side.String(),
			AmountOut:     types.FormatAmount(data.AmountOut),
		}
	case amm.ExitEvent:
		out.Data = ExitEvent{
			RoundID:                  data.RoundID,
			User:                     data.User.Hex(),
			GrossAmountOut:           types.FormatAmount(data.GrossAmountOut),
			RemainingSellSideBalance: types.FormatAmount(data.RemainingSellSideBalance),
			NetAmountOut:             types.FormatAmount(data.NetAmountOut),
		}
	case amm.RedeemEvent:
		out.Data = RedeemEvent{
			RoundID: data.RoundID,
			User:    data.User.Hex(),
			Result:  data.Result.String(),
			Payout:  types.FormatAmount(data.Payout),
		}
	case amm.ResolveEvent:
		out.Data = ResolveEvent{
			RoundID:       data.RoundID,
			Result:        data.Result.String(),
			TreasurySwept: data.TreasurySwept,
		}
	default:
		out.Data = evt.Data
	}
	return out
}
