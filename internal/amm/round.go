package amm

import (
	"github.com/holiman/uint256"

	"roundpool/pkg/types"
)

// Round holds the pool and liability state of one (market, round).
//
// Reserves start at the market's bootstrap liquidity, which is virtual:
// it prices trades but is never redeemable. Treasury is the real
// native-currency value collected from net trade inflows plus exit-fee
// skims; it funds the winning side's payouts. OutstandingYes/No track the
// total share liability per side and always equal the sum of user
// positions for the round. Resolution freezes them implicitly: once the
// market's round counter advances, no trade can touch this round again.
type Round struct {
	ID             uint64
	YesReserves    *uint256.Int
	NoReserves     *uint256.Int
	Treasury       *uint256.Int
	OutstandingYes *uint256.Int
	OutstandingNo  *uint256.Int
	Result         types.Result
}

func newRound(id uint64, bootstrap *uint256.Int) *Round {
	return &Round{
		ID:             id,
		YesReserves:    new(uint256.Int).Set(bootstrap),
		NoReserves:     new(uint256.Int).Set(bootstrap),
		Treasury:       new(uint256.Int),
		OutstandingYes: new(uint256.Int),
		OutstandingNo:  new(uint256.Int),
	}
}

// reserve returns the reserve backing the given side.
func (r *Round) reserve(side types.Side) *uint256.Int {
	if side == types.SideYes {
		return r.YesReserves
	}
	return r.NoReserves
}

// outstanding returns the liability total for the given side.
func (r *Round) outstanding(side types.Side) *uint256.Int {
	if side == types.SideYes {
		return r.OutstandingYes
	}
	return r.OutstandingNo
}

func (r *Round) info(marketID uint64) types.RoundInfo {
	return types.RoundInfo{
		MarketID:       marketID,
		RoundID:        r.ID,
		YesReserves:    types.FormatAmount(r.YesReserves),
		NoReserves:     types.FormatAmount(r.NoReserves),
		Treasury:       types.FormatAmount(r.Treasury),
		OutstandingYes: types.FormatAmount(r.OutstandingYes),
		OutstandingNo:  types.FormatAmount(r.OutstandingNo),
		Result:         r.Result.String(),
	}
}
