package amm

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"roundpool/pkg/types"
)

// Snapshot exports the full engine state for persistence. Output is
// deterministic: markets, rounds, positions, and queues are sorted, and
// amounts are exact integer strings.
func (e *Engine) Snapshot() *types.EngineSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := &types.EngineSnapshot{
		TakenAt:      e.clock.Now(),
		RoundStart:   e.roundStart,
		Fees:         e.fees.Dec(),
		ResolverPool: e.resolverPool.Dec(),
	}

	ids := make([]uint64, 0, len(e.markets))
	for id := range e.markets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		m := e.markets[id]
		ms := types.MarketSnapshot{
			ID:           m.ID,
			Status:       m.Status,
			CurrentRound: m.CurrentRound,
			DelistRound:  m.DelistRound,
			Bootstrap:    m.Bootstrap.Dec(),
			Threshold:    m.Threshold.Dec(),
		}
		rids := make([]uint64, 0, len(m.Rounds))
		for rid := range m.Rounds {
			rids = append(rids, rid)
		}
		sort.Slice(rids, func(i, j int) bool { return rids[i] < rids[j] })
		for _, rid := range rids {
			r := m.Rounds[rid]
			ms.Rounds = append(ms.Rounds, types.RoundSnapshot{
				ID:             r.ID,
				YesReserves:    r.YesReserves.Dec(),
				NoReserves:     r.NoReserves.Dec(),
				Treasury:       r.Treasury.Dec(),
				OutstandingYes: r.OutstandingYes.Dec(),
				OutstandingNo:  r.OutstandingNo.Dec(),
				Result:         r.Result,
			})
		}
		snap.Markets = append(snap.Markets, ms)
	}

	for k, pos := range e.positions {
		snap.Positions = append(snap.Positions, types.PositionSnapshot{
			User:      k.user.Hex(),
			MarketID:  k.market,
			RoundID:   k.round,
			YesShares: pos.YesShares.Dec(),
			NoShares:  pos.NoShares.Dec(),
		})
	}
	sort.Slice(snap.Positions, func(i, j int) bool {
		a, b := snap.Positions[i], snap.Positions[j]
		if a.User != b.User {
			return a.User < b.User
		}
		if a.MarketID != b.MarketID {
			return a.MarketID < b.MarketID
		}
		return a.RoundID < b.RoundID
	})

	for k, q := range e.queues {
		if q.size() == 0 {
			continue
		}
		snap.Queues = append(snap.Queues, types.QueueSnapshot{
			User:     k.user.Hex(),
			MarketID: k.market,
			Rounds:   q.pending(),
		})
	}
	sort.Slice(snap.Queues, func(i, j int) bool {
		a, b := snap.Queues[i], snap.Queues[j]
		if a.User != b.User {
			return a.User < b.User
		}
		return a.MarketID < b.MarketID
	})

	return snap
}

// Restore replaces the engine's state with a previously exported snapshot.
// Meant to be called once at startup, before the engine serves traffic.
func (e *Engine) Restore(snap *types.EngineSnapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	fees, err := parseExact(snap.Fees)
	if err != nil {
		return fmt.Errorf("restore fees: %w", err)
	}
	pool, err := parseExact(snap.ResolverPool)
	if err != nil {
		return fmt.Errorf("restore resolver pool: %w", err)
	}

	markets := make(map[uint64]*Market, len(snap.Markets))
	for _, ms := range snap.Markets {
		m := &Market{
			ID:           ms.ID,
			Status:       ms.Status,
			CurrentRound: ms.CurrentRound,
			DelistRound:  ms.DelistRound,
			Rounds:       make(map[uint64]*Round, len(ms.Rounds)),
		}
		if m.Bootstrap, err = parseExact(ms.Bootstrap); err != nil {
			return fmt.Errorf("restore market %d bootstrap: %w", ms.ID, err)
		}
		if m.Threshold, err = parseExact(ms.Threshold); err != nil {
			return fmt.Errorf("restore market %d threshold: %w", ms.ID, err)
		}
		for _, rs := range ms.Rounds {
			r := &Round{ID: rs.ID, Result: rs.Result}
			if r.YesReserves, err = parseExact(rs.YesReserves); err != nil {
				return fmt.Errorf("restore market %d round %d: %w", ms.ID, rs.ID, err)
			}
			if r.NoReserves, err = parseExact(rs.NoReserves); err != nil {
				return fmt.Errorf("restore market %d round %d: %w", ms.ID, rs.ID, err)
			}
			if r.Treasury, err = parseExact(rs.Treasury); err != nil {
				return fmt.Errorf("restore market %d round %d: %w", ms.ID, rs.ID, err)
			}
			if r.OutstandingYes, err = parseExact(rs.OutstandingYes); err != nil {
				return fmt.Errorf("restore market %d round %d: %w", ms.ID, rs.ID, err)
			}
			if r.OutstandingNo, err = parseExact(rs.OutstandingNo); err != nil {
				return fmt.Errorf("restore market %d round %d: %w", ms.ID, rs.ID, err)
			}
			m.Rounds[rs.ID] = r
		}
		if m.round(m.CurrentRound) == nil {
			return fmt.Errorf("restore market %d: current round %d missing", ms.ID, ms.CurrentRound)
		}
		markets[ms.ID] = m
	}

	positions := make(map[posKey]*Position, len(snap.Positions))
	for _, ps := range snap.Positions {
		pos := newPosition()
		if pos.YesShares, err = parseExact(ps.YesShares); err != nil {
			return fmt.Errorf("restore position %s/%d/%d: %w", ps.User, ps.MarketID, ps.RoundID, err)
		}
		if pos.NoShares, err = parseExact(ps.NoShares); err != nil {
			return fmt.Errorf("restore position %s/%d/%d: %w", ps.User, ps.MarketID, ps.RoundID, err)
		}
		k := posKey{user: common.HexToAddress(ps.User), market: ps.MarketID, round: ps.RoundID}
		positions[k] = pos
	}

	queues := make(map[queueKey]*pendingQueue, len(snap.Queues))
	for _, qs := range snap.Queues {
		q := newPendingQueue()
		for _, rid := range qs.Rounds {
			q.register(rid)
		}
		queues[queueKey{user: common.HexToAddress(qs.User), market: qs.MarketID}] = q
	}

	e.markets = markets
	e.positions = positions
	e.queues = queues
	e.fees = fees
	e.resolverPool = pool
	e.roundStart = snap.RoundStart
	e.logger.Info("state restored",
		"markets", len(markets), "positions", len(positions), "taken_at", snap.TakenAt)
	return nil
}

func parseExact(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", s, err)
	}
	return v, nil
}
