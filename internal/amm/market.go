package amm

import (
	"github.com/holiman/uint256"

	"roundpool/pkg/types"
)

// Market is one registered binary market. Rounds are kept for the life of
// the process so resolved rounds remain redeemable; CurrentRound is a
// per-market counter starting at 1 that only resolution advances.
// Re-registering a delisted market continues the counter, so historical
// round ids queued for redemption never collide with new ones.
type Market struct {
	ID           uint64
	Status       types.MarketStatus
	CurrentRound uint64
	DelistRound  uint64 // round the delist was scheduled in; 0 = none
	Bootstrap    *uint256.Int
	Threshold    *uint256.Int // settlement price above which the result is Yes
	Rounds       map[uint64]*Round
}

// round returns the round record for id, or nil.
func (m *Market) round(id uint64) *Round {
	return m.Rounds[id]
}

// ensureRound returns the round record for id, seeding it with bootstrap
// reserves if it does not exist yet.
func (m *Market) ensureRound(id uint64) *Round {
	r := m.Rounds[id]
	if r == nil {
		r = newRound(id, m.Bootstrap)
		m.Rounds[id] = r
	}
	return r
}

func (m *Market) info() types.MarketInfo {
	return types.MarketInfo{
		MarketID:     m.ID,
		Status:       m.Status.String(),
		CurrentRound: m.CurrentRound,
		DelistRound:  m.DelistRound,
	}
}
