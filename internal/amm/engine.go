// Package amm implements a round-based dual-outcome constant-product
// market maker for binary prediction markets.
//
// The engine owns four cooperating pieces of state:
//
//	markets    — registry of binary markets, each with a per-market round
//	             counter and a map of historical rounds
//	rounds     — per-round reserves (virtual bootstrap liquidity), a real
//	             native-currency treasury, and per-side liability totals
//	positions  — per (user, market, round) YES/NO share balances
//	queues     — per (user, market) pending-redemption round ids
//
// A single process-wide clock anchor gates all markets at once: every
// market's current round opens and expires together, and a permissionless
// ResolveMarkets call settles all of them against the oracle and restarts
// the window.
//
// Every operation serializes on one mutex. A call runs to completion
// before the next is admitted, so no partial state transition is ever
// observable; error paths return before the first state write, and
// resolution stages all oracle reads up front so an oracle failure aborts
// with nothing mutated.
package amm

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"roundpool/pkg/types"
)

// Vault moves native currency between user accounts and the engine.
// Both operations are all-or-nothing.
type Vault interface {
	Debit(user common.Address, amount *uint256.Int) error
	Credit(user common.Address, amount *uint256.Int) error
}

// PriceSource reports the settlement reference price for a market.
type PriceSource interface {
	SettlementPrice(ctx context.Context, marketID uint64) (*uint256.Int, error)
}

// Params holds the engine's fixed configuration.
type Params struct {
	Admin               common.Address
	RoundDuration       time.Duration
	FeeRateBps          uint64 // trade fee, basis points of gross
	ProtocolFeeShareBps uint64 // share of each enter fee kept by the protocol; the rest rewards the resolver
	Bootstrap           *uint256.Int
	Threshold           *uint256.Int // settlement price above which a round resolves Yes
	RedemptionPageSize  int
	InitialMarkets      []uint64
}

func (p Params) validate() error {
	if p.Admin == (common.Address{}) {
		return fmt.Errorf("admin address is zero")
	}
	if p.RoundDuration <= 0 {
		return fmt.Errorf("round duration must be > 0")
	}
	if p.FeeRateBps >= feeDenominator {
		return fmt.Errorf("fee rate %d bps must be < %d", p.FeeRateBps, feeDenominator)
	}
	if p.ProtocolFeeShareBps > feeDenominator {
		return fmt.Errorf("protocol fee share %d bps must be <= %d", p.ProtocolFeeShareBps, feeDenominator)
	}
	if p.Bootstrap == nil || p.Bootstrap.IsZero() {
		return fmt.Errorf("bootstrap liquidity must be > 0")
	}
	if p.Threshold == nil {
		return fmt.Errorf("threshold is required")
	}
	if p.RedemptionPageSize <= 0 {
		return fmt.Errorf("redemption page size must be > 0")
	}
	return nil
}

type posKey struct {
	user          common.Address
	market, round uint64
}

type queueKey struct {
	user   common.Address
	market uint64
}

// Position is a user's share balances in one round.
type Position struct {
	YesShares *uint256.Int
	NoShares  *uint256.Int
}

func newPosition() *Position {
	return &Position{YesShares: new(uint256.Int), NoShares: new(uint256.Int)}
}

func (p *Position) shares(side types.Side) *uint256.Int {
	if side == types.SideYes {
		return p.YesShares
	}
	return p.NoShares
}

// Engine is the AMM state machine. All exported methods are safe for
// concurrent use.
type Engine struct {
	mu     sync.Mutex
	params Params
	clock  Clock
	vault  Vault
	prices PriceSource

	markets    map[uint64]*Market
	roundStart time.Time

	fees         *uint256.Int // protocol fee treasury
	resolverPool *uint256.Int // accrued incentive for the next resolver

	positions map[posKey]*Position
	queues    map[queueKey]*pendingQueue

	events chan Event
	logger *slog.Logger
}

// New creates an engine with the given collaborators and registers the
// configured initial markets, each opening at round 1. The round window
// starts at the clock's current time.
func New(params Params, clock Clock, vault Vault, prices PriceSource, logger *slog.Logger) (*Engine, error) {
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("engine params: %w", err)
	}

	e := &Engine{
		params:       params,
		clock:        clock,
		vault:        vault,
		prices:       prices,
		markets:      make(map[uint64]*Market),
		roundStart:   clock.Now(),
		fees:         new(uint256.Int),
		resolverPool: new(uint256.Int),
		positions:    make(map[posKey]*Position),
		queues:       make(map[queueKey]*pendingQueue),
		events:       make(chan Event, 256),
		logger:       logger.With("component", "amm-engine"),
	}

	for _, id := range params.InitialMarkets {
		if err := e.registerLocked(id); err != nil {
			return nil, fmt.Errorf("initial market %d: %w", id, err)
		}
	}
	return e, nil
}

// Events returns the engine's event feed. Events are dropped if the
// consumer falls behind the channel buffer.
func (e *Engine) Events() <-chan Event {
	return e.events
}

func (e *Engine) emit(typ string, marketID uint64, data any) {
	evt := Event{Type: typ, Timestamp: e.clock.Now(), MarketID: marketID, Data: data}
	select {
	case e.events <- evt:
	default:
	}
}

// ————————————————————————————————————————————————————————————————————————
// Registry (admin)
// ————————————————————————————————————————————————————————————————————————

// RegisterMarket lists a market. A fresh id opens at round 1, immediately
// tradable with bootstrap reserves. Re-registering a delisted id clears
// the delist marker and opens a fresh round continuing the old counter.
func (e *Engine) RegisterMarket(caller common.Address, marketID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.params.Admin {
		return fmt.Errorf("register market %d: %w", marketID, ErrNotAuthorised)
	}
	return e.registerLocked(marketID)
}

func (e *Engine) registerLocked(marketID uint64) error {
	if marketID == 0 {
		return fmt.Errorf("register market: zero id: %w", ErrInvalidInput)
	}
	m := e.markets[marketID]
	if m == nil {
		m = &Market{
			ID:           marketID,
			Status:       types.StatusActive,
			CurrentRound: 1,
			Bootstrap:    new(uint256.Int).Set(e.params.Bootstrap),
			Threshold:    new(uint256.Int).Set(e.params.Threshold),
			Rounds:       make(map[uint64]*Round),
		}
		m.ensureRound(1)
		e.markets[marketID] = m
		e.logger.Info("market registered", "market", marketID, "round", m.CurrentRound)
		return nil
	}
	if m.Status != types.StatusDelisted {
		return fmt.Errorf("register market %d: already listed: %w", marketID, ErrInvalidInput)
	}
	m.Status = types.StatusActive
	m.DelistRound = 0
	m.CurrentRound++
	m.ensureRound(m.CurrentRound)
	e.logger.Info("market re-registered", "market", marketID, "round", m.CurrentRound)
	return nil
}

// PutMarketOnDelist schedules a market for delisting at the current round.
// Trading continues until DelistMarket completes the removal.
func (e *Engine) PutMarketOnDelist(caller common.Address, marketID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.params.Admin {
		return fmt.Errorf("delist schedule market %d: %w", marketID, ErrNotAuthorised)
	}
	m := e.markets[marketID]
	if m == nil || m.Status != types.StatusActive {
		return fmt.Errorf("delist schedule market %d: not active: %w", marketID, ErrInvalidInput)
	}
	m.Status = types.StatusDelistScheduled
	m.DelistRound = m.CurrentRound
	e.logger.Info("market delist scheduled", "market", marketID, "round", m.DelistRound)
	return nil
}

// DelistMarket completes a scheduled delisting. It requires the round
// counter to have advanced past the scheduled round, so traders who
// entered before the schedule got a full round to settle. Unresolved
// round treasuries are written off to the protocol fee treasury; no
// oracle will ever settle them.
func (e *Engine) DelistMarket(caller common.Address, marketID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.params.Admin {
		return fmt.Errorf("delist market %d: %w", marketID, ErrNotAuthorised)
	}
	m := e.markets[marketID]
	if m == nil || m.Status != types.StatusDelistScheduled {
		return fmt.Errorf("delist market %d: not scheduled: %w", marketID, ErrInvalidInput)
	}
	if m.CurrentRound <= m.DelistRound {
		return fmt.Errorf("delist market %d: round %d not past scheduled round %d: %w",
			marketID, m.CurrentRound, m.DelistRound, ErrInvalidInput)
	}
	for _, rid := range []uint64{m.CurrentRound, m.CurrentRound + 1} {
		r := m.round(rid)
		if r != nil && r.Result == types.ResultUnresolved && !r.Treasury.IsZero() {
			e.fees.Add(e.fees, r.Treasury)
			r.Treasury.Clear()
		}
	}
	m.Status = types.StatusDelisted
	e.logger.Info("market delisted", "market", marketID, "round", m.CurrentRound)
	return nil
}

// WithdrawFees sends the accrued protocol fee treasury to the given
// address and resets it. Admin only.
func (e *Engine) WithdrawFees(caller, to common.Address) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.params.Admin {
		return nil, fmt.Errorf("withdraw fees: %w", ErrNotAuthorised)
	}
	amount := new(uint256.Int).Set(e.fees)
	if amount.IsZero() {
		return amount, nil
	}
	if err := e.vault.Credit(to, amount); err != nil {
		return nil, fmt.Errorf("withdraw fees: %w", err)
	}
	e.fees.Clear()
	e.logger.Info("fees withdrawn", "to", to.Hex(), "amount", types.FormatAmount(amount))
	return amount, nil
}

// ————————————————————————————————————————————————————————————————————————
// Round window
// ————————————————————————————————————————————————————————————————————————

func (e *Engine) bettingOpen() bool {
	return e.clock.Now().Sub(e.roundStart) < e.params.RoundDuration
}

// tradableRound validates roundID against the market's two-round trading
// window and the shared betting phase. With seed set, a next-round id is
// lazily created with bootstrap reserves; without it, a transient unsaved
// round is returned so read-only previews never mutate state.
func (e *Engine) tradableRound(m *Market, roundID uint64, seed bool) (*Round, error) {
	cur := m.CurrentRound
	switch roundID {
	case cur:
		if !e.bettingOpen() {
			return nil, ErrRoundExpired
		}
	case cur + 1:
		if e.bettingOpen() {
			return nil, ErrRoundNotYetInitialised
		}
	default:
		return nil, ErrInvalidRound
	}
	if seed {
		return m.ensureRound(roundID), nil
	}
	if r := m.round(roundID); r != nil {
		return r, nil
	}
	return newRound(roundID, m.Bootstrap), nil
}

// CheckResolutionStatus reports whether the shared round window has
// elapsed, the whole seconds remaining if not, and the resolver incentive
// accrued so far.
func (e *Engine) CheckResolutionStatus() types.ResolutionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := types.ResolutionStatus{PendingResolverFee: types.FormatAmount(e.resolverPool)}
	remaining := e.params.RoundDuration - e.clock.Now().Sub(e.roundStart)
	if remaining <= 0 {
		st.Resolvable = true
		return st
	}
	st.SecondsLeft = uint64((remaining + time.Second - 1) / time.Second)
	return st
}

// ————————————————————————————————————————————————————————————————————————
// Trading
// ————————————————————————————————————————————————————————————————————————

// EnterMarket buys amountOut shares of side in (marketID, roundID) for
// grossAmountIn native currency, debited from caller's vault balance.
// Fails with ErrSlippageReached when the output falls below minAmountOut.
func (e *Engine) EnterMarket(caller common.Address, minAmountOut *uint256.Int, marketID, roundID uint64, side types.Side, grossAmountIn *uint256.Int) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !side.Valid() {
		return nil, fmt.Errorf("enter market %d: side %d: %w", marketID, side, ErrInvalidInput)
	}
	if grossAmountIn == nil || grossAmountIn.IsZero() {
		return nil, fmt.Errorf("enter market %d: zero amount in: %w", marketID, ErrInvalidInput)
	}
	m := e.markets[marketID]
	if m == nil || !m.Status.Tradable() {
		return nil, fmt.Errorf("enter market %d: not tradable: %w", marketID, ErrInvalidInput)
	}
	r, err := e.tradableRound(m, roundID, true)
	if err != nil {
		return nil, fmt.Errorf("enter market %d round %d: %w", marketID, roundID, err)
	}

	// Buying side X pays into the opposite reserve and draws from X's.
	reserveIn := r.reserve(side.Opposite())
	reserveOut := r.reserve(side)

	amountOut, fee, err := Swap(reserveIn, reserveOut, grossAmountIn, e.params.FeeRateBps)
	if err != nil {
		return nil, fmt.Errorf("enter market %d round %d: %w", marketID, roundID, err)
	}
	if minAmountOut != nil && amountOut.Lt(minAmountOut) {
		return nil, fmt.Errorf("enter market %d round %d: out %s < min %s: %w",
			marketID, roundID, types.FormatAmount(amountOut), types.FormatAmount(minAmountOut), ErrSlippageReached)
	}
	protocolCut, err := feePortion(fee, e.params.ProtocolFeeShareBps)
	if err != nil {
		return nil, fmt.Errorf("enter market %d round %d: %w", marketID, roundID, err)
	}

	if err := e.vault.Debit(caller, grossAmountIn); err != nil {
		return nil, fmt.Errorf("enter market %d: %w", marketID, err)
	}

	netIn := new(uint256.Int).Sub(grossAmountIn, fee)
	reserveIn.Add(reserveIn, netIn)
	reserveOut.Sub(reserveOut, amountOut)
	r.Treasury.Add(r.Treasury, netIn)

	e.fees.Add(e.fees, protocolCut)
	e.resolverPool.Add(e.resolverPool, new(uint256.Int).Sub(fee, protocolCut))

	pos := e.ensurePosition(caller, marketID, roundID)
	pos.shares(side).Add(pos.shares(side), amountOut)
	r.outstanding(side).Add(r.outstanding(side), amountOut)

	e.ensureQueue(caller, marketID).register(roundID)

	e.logger.Info("market entered",
		"market", marketID, "round", roundID, "user", caller.Hex(),
		"side", side.String(), "in", types.FormatAmount(grossAmountIn), "out", types.FormatAmount(amountOut))
	e.emit(EventEnter, marketID, EnterEvent{
		RoundID:       roundID,
		User:          caller,
		GrossAmountIn: new(uint256.Int).Set(grossAmountIn),
		Side:          side,
		AmountOut:     new(uint256.Int).Set(amountOut),
	})
	return amountOut, nil
}

// ExitMarket rebalances caller's position in (marketID, roundID): it sells
// amountToSell shares of the larger-held side back through the curve and
// credits the net output to the smaller side. No native currency moves;
// the output-side fee accrues to the round treasury. The claimed balances
// must match the stored position exactly.
//
// amountToSell of zero is a no-op probe: it validates the market and round
// and succeeds without touching state.
func (e *Engine) ExitMarket(caller common.Address, minAmountOut *uint256.Int, marketID, roundID uint64, claimedYes, claimedNo, amountToSell *uint256.Int) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := e.markets[marketID]
	if m == nil || !m.Status.Tradable() {
		return nil, fmt.Errorf("exit market %d: not tradable: %w", marketID, ErrInvalidInput)
	}
	// Seed the round only for a real trade; the zero-amount probe must
	// not persist anything.
	selling := amountToSell != nil && !amountToSell.IsZero()
	r, err := e.tradableRound(m, roundID, selling)
	if err != nil {
		return nil, fmt.Errorf("exit market %d round %d: %w", marketID, roundID, err)
	}
	if !selling {
		return new(uint256.Int), nil
	}

	haveYes, haveNo := new(uint256.Int), new(uint256.Int)
	pos := e.positions[posKey{user: caller, market: marketID, round: roundID}]
	if pos != nil {
		haveYes.Set(pos.YesShares)
		haveNo.Set(pos.NoShares)
	}
	if claimedYes == nil {
		claimedYes = new(uint256.Int)
	}
	if claimedNo == nil {
		claimedNo = new(uint256.Int)
	}
	if !claimedYes.Eq(haveYes) || !claimedNo.Eq(haveNo) {
		return nil, fmt.Errorf("exit market %d round %d: claimed balances do not match: %w", marketID, roundID, ErrInvalidReserves)
	}
	if claimedYes.Eq(claimedNo) {
		return nil, fmt.Errorf("exit market %d round %d: balanced position: %w", marketID, roundID, ErrInvalidReserves)
	}

	sell := types.SideYes
	if claimedNo.Gt(claimedYes) {
		sell = types.SideNo
	}
	buy := sell.Opposite()
	if amountToSell.Gt(pos.shares(sell)) {
		return nil, fmt.Errorf("exit market %d round %d: sell %s exceeds balance %s: %w",
			marketID, roundID, types.FormatAmount(amountToSell), types.FormatAmount(pos.shares(sell)), ErrInvalidReserves)
	}

	// Sold shares pay into their own reserve; the fee is skimmed from the
	// gross output instead of the input.
	gross, _, err := Swap(r.reserve(sell), r.reserve(buy), amountToSell, 0)
	if err != nil {
		return nil, fmt.Errorf("exit market %d round %d: %w", marketID, roundID, err)
	}
	feeOut, err := feePortion(gross, e.params.FeeRateBps)
	if err != nil {
		return nil, fmt.Errorf("exit market %d round %d: %w", marketID, roundID, err)
	}
	netOut := new(uint256.Int).Sub(gross, feeOut)
	if minAmountOut != nil && netOut.Lt(minAmountOut) {
		return nil, fmt.Errorf("exit market %d round %d: out %s < min %s: %w",
			marketID, roundID, types.FormatAmount(netOut), types.FormatAmount(minAmountOut), ErrSlippageReached)
	}

	r.reserve(sell).Add(r.reserve(sell), amountToSell)
	r.reserve(buy).Sub(r.reserve(buy), gross)
	r.Treasury.Add(r.Treasury, feeOut)

	pos.shares(sell).Sub(pos.shares(sell), amountToSell)
	pos.shares(buy).Add(pos.shares(buy), netOut)
	r.outstanding(sell).Sub(r.outstanding(sell), amountToSell)
	r.outstanding(buy).Add(r.outstanding(buy), netOut)

	remaining := new(uint256.Int).Set(pos.shares(sell))
	e.logger.Info("market exited",
		"market", marketID, "round", roundID, "user", caller.Hex(),
		"sold", types.FormatAmount(amountToSell), "net_out", types.FormatAmount(netOut))
	e.emit(EventExit, marketID, ExitEvent{
		RoundID:                  roundID,
		User:                     caller,
		GrossAmountOut:           gross,
		RemainingSellSideBalance: remaining,
		NetAmountOut:             new(uint256.Int).Set(netOut),
	})
	return netOut, nil
}

// AmountOut previews EnterMarket with identical validation and pricing.
// It never mutates state: a next round that is open but not yet seeded is
// priced against bootstrap reserves without being created.
func (e *Engine) AmountOut(grossAmountIn *uint256.Int, marketID, roundID uint64, side types.Side) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !side.Valid() {
		return nil, fmt.Errorf("amount out market %d: side %d: %w", marketID, side, ErrInvalidInput)
	}
	if grossAmountIn == nil || grossAmountIn.IsZero() {
		return nil, fmt.Errorf("amount out market %d: zero amount in: %w", marketID, ErrInvalidInput)
	}
	m := e.markets[marketID]
	if m == nil || !m.Status.Tradable() {
		return nil, fmt.Errorf("amount out market %d: not tradable: %w", marketID, ErrInvalidInput)
	}
	r, err := e.tradableRound(m, roundID, false)
	if err != nil {
		return nil, fmt.Errorf("amount out market %d round %d: %w", marketID, roundID, err)
	}
	amountOut, _, err := Swap(r.reserve(side.Opposite()), r.reserve(side), grossAmountIn, e.params.FeeRateBps)
	if err != nil {
		return nil, fmt.Errorf("amount out market %d round %d: %w", marketID, roundID, err)
	}
	return amountOut, nil
}

// ————————————————————————————————————————————————————————————————————————
// Resolution
// ————————————————————————————————————————————————————————————————————————

// ResolveMarkets settles the current round of every listed market against
// the oracle and restarts the shared round window. Permissionless: the
// caller collects the accrued resolver incentive. Fails with
// ErrInvalidTimestamp before the window elapses; an oracle failure aborts
// the whole call with nothing mutated.
func (e *Engine) ResolveMarkets(ctx context.Context, caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	remaining := e.params.RoundDuration - e.clock.Now().Sub(e.roundStart)
	if remaining > 0 {
		return fmt.Errorf("resolve: %s remaining: %w", remaining, ErrInvalidTimestamp)
	}

	ids := make([]uint64, 0, len(e.markets))
	for id, m := range e.markets {
		if m.Status.Tradable() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	// Stage every oracle read before the first mutation.
	results := make(map[uint64]types.Result, len(ids))
	for _, id := range ids {
		price, err := e.prices.SettlementPrice(ctx, id)
		if err != nil {
			return fmt.Errorf("resolve market %d: settlement price: %w", id, err)
		}
		if price.Gt(e.markets[id].Threshold) {
			results[id] = types.ResultYes
		} else {
			results[id] = types.ResultNo
		}
	}

	for _, id := range ids {
		m := e.markets[id]
		r := m.round(m.CurrentRound)
		r.Result = results[id]

		winSide, _ := r.Result.WinningSide()
		swept := false
		if r.outstanding(winSide).IsZero() && !r.Treasury.IsZero() {
			// Nobody holds the winning side; the pot goes to the protocol.
			e.fees.Add(e.fees, r.Treasury)
			r.Treasury.Clear()
			swept = true
		}

		m.CurrentRound++
		// A lazily-seeded next round may already hold trades; keep it.
		m.ensureRound(m.CurrentRound)

		e.logger.Info("round resolved",
			"market", id, "round", r.ID, "result", r.Result.String(), "swept", swept)
		e.emit(EventResolve, id, ResolveEvent{RoundID: r.ID, Result: r.Result, TreasurySwept: swept})
	}

	e.roundStart = e.clock.Now()

	reward := new(uint256.Int).Set(e.resolverPool)
	e.resolverPool.Clear()
	if !reward.IsZero() {
		// Resolution is committed at this point. A credit failure
		// (256-bit balance overflow of the caller) forfeits the reward
		// but leaves every round correctly settled.
		if err := e.vault.Credit(caller, reward); err != nil {
			return fmt.Errorf("resolve: resolver reward: %w", err)
		}
	}
	e.logger.Info("markets resolved",
		"count", len(ids), "resolver", caller.Hex(), "reward", types.FormatAmount(reward))
	return nil
}

// ————————————————————————————————————————————————————————————————————————
// Redemption
// ————————————————————————————————————————————————————————————————————————

// RedeemPendingRounds settles every resolved round in caller's redemption
// queue for marketID. Unresolved rounds stay queued. A user with nothing
// queued is a no-op.
func (e *Engine) RedeemPendingRounds(caller common.Address, marketID uint64) error {
	return e.redeem(caller, marketID, 0)
}

// RedeemRoundsCapped is RedeemPendingRounds bounded to the configured page
// size per call, oldest first; repeated calls drain the queue.
func (e *Engine) RedeemRoundsCapped(caller common.Address, marketID uint64) error {
	return e.redeem(caller, marketID, e.params.RedemptionPageSize)
}

func (e *Engine) redeem(caller common.Address, marketID uint64, limit int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := e.markets[marketID]
	if m == nil {
		return fmt.Errorf("redeem market %d: unknown market: %w", marketID, ErrInvalidInput)
	}
	q := e.queues[queueKey{user: caller, market: marketID}]
	if q == nil || q.size() == 0 {
		return nil
	}

	// A credit fails only when the recipient balance would overflow 256
	// bits. Rounds paid before such a failure stay settled and removed;
	// the failing round stays queued for a retry.
	var creditErr error
	q.drain(limit, func(roundID uint64) bool {
		r := m.round(roundID)
		if r == nil || r.Result == types.ResultUnresolved {
			return false
		}
		payout := e.payoutFor(caller, m, r)
		if !payout.IsZero() {
			if err := e.vault.Credit(caller, payout); err != nil {
				creditErr = fmt.Errorf("redeem market %d round %d: %w", marketID, roundID, err)
				return false
			}
		}
		e.logger.Info("round redeemed",
			"market", marketID, "round", roundID, "user", caller.Hex(),
			"result", r.Result.String(), "payout", types.FormatAmount(payout))
		e.emit(EventRedeem, marketID, RedeemEvent{
			RoundID: roundID,
			User:    caller,
			Result:  r.Result,
			Payout:  payout,
		})
		return true
	})
	return creditErr
}

// payoutFor computes the caller's pro-rata claim on a resolved round's
// treasury: winShares * treasury / outstandingWin, truncating. Zero when
// the winning side has no liability (the treasury was swept at
// resolution) or the caller held none of it.
func (e *Engine) payoutFor(caller common.Address, m *Market, r *Round) *uint256.Int {
	winSide, ok := r.Result.WinningSide()
	if !ok {
		return new(uint256.Int)
	}
	out := r.outstanding(winSide)
	if out.IsZero() {
		return new(uint256.Int)
	}
	pos := e.positions[posKey{user: caller, market: m.ID, round: r.ID}]
	if pos == nil || pos.shares(winSide).IsZero() {
		return new(uint256.Int)
	}
	// shares * treasury can exceed 256 bits; go through big.Int. The
	// quotient is bounded by the treasury, so it always fits.
	num := new(big.Int).Mul(pos.shares(winSide).ToBig(), r.Treasury.ToBig())
	num.Div(num, out.ToBig())
	payout, _ := uint256.FromBig(num)
	return payout
}

// ————————————————————————————————————————————————————————————————————————
// Views
// ————————————————————————————————————————————————————————————————————————

// CurrentRoundInfo returns the state of marketID's current round.
func (e *Engine) CurrentRoundInfo(marketID uint64) (types.RoundInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := e.markets[marketID]
	if m == nil {
		return types.RoundInfo{}, fmt.Errorf("round info market %d: unknown market: %w", marketID, ErrInvalidInput)
	}
	return m.round(m.CurrentRound).info(marketID), nil
}

// RoundInfo returns the state of any historical or current round.
func (e *Engine) RoundInfo(marketID, roundID uint64) (types.RoundInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := e.markets[marketID]
	if m == nil {
		return types.RoundInfo{}, fmt.Errorf("round info market %d: unknown market: %w", marketID, ErrInvalidInput)
	}
	r := m.round(roundID)
	if r == nil {
		return types.RoundInfo{}, fmt.Errorf("round info market %d round %d: %w", marketID, roundID, ErrInvalidRound)
	}
	return r.info(marketID), nil
}

// UserCurrentRoundPosition returns user's share balances in marketID's
// current round (zero balances if they never entered it).
func (e *Engine) UserCurrentRoundPosition(user common.Address, marketID uint64) (types.UserRoundPosition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := e.markets[marketID]
	if m == nil {
		return types.UserRoundPosition{}, fmt.Errorf("user position market %d: unknown market: %w", marketID, ErrInvalidInput)
	}
	view := types.UserRoundPosition{
		MarketID:  marketID,
		RoundID:   m.CurrentRound,
		YesShares: "0",
		NoShares:  "0",
	}
	if pos := e.positions[posKey{user: user, market: marketID, round: m.CurrentRound}]; pos != nil {
		view.YesShares = types.FormatAmount(pos.YesShares)
		view.NoShares = types.FormatAmount(pos.NoShares)
	}
	return view, nil
}

// UserUnclaimedRounds returns the round ids queued for redemption, in
// queue order.
func (e *Engine) UserUnclaimedRounds(user common.Address, marketID uint64) []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	q := e.queues[queueKey{user: user, market: marketID}]
	if q == nil {
		return nil
	}
	return q.pending()
}

// UserUnclaimedRoundsPage returns one page of the redemption queue plus
// the total pending count. Pages are the redemption page size, oldest
// first; an out-of-range page returns an empty slice.
func (e *Engine) UserUnclaimedRoundsPage(user common.Address, marketID uint64, page int) types.UnclaimedRounds {
	e.mu.Lock()
	defer e.mu.Unlock()

	view := types.UnclaimedRounds{Page: page}
	q := e.queues[queueKey{user: user, market: marketID}]
	if q == nil || page < 0 {
		return view
	}
	all := q.pending()
	view.Total = len(all)
	size := e.params.RedemptionPageSize
	lo := page * size
	if lo >= len(all) {
		return view
	}
	hi := lo + size
	if hi > len(all) {
		hi = len(all)
	}
	view.RoundIDs = all[lo:hi]
	return view
}

// Markets returns the registry view, sorted by id.
func (e *Engine) Markets() []types.MarketInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.MarketInfo, 0, len(e.markets))
	for _, m := range e.markets {
		out = append(out, m.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarketID < out[j].MarketID })
	return out
}

// Fees returns a copy of the accrued protocol fee treasury.
func (e *Engine) Fees() *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return new(uint256.Int).Set(e.fees)
}

func (e *Engine) ensurePosition(user common.Address, marketID, roundID uint64) *Position {
	k := posKey{user: user, market: marketID, round: roundID}
	pos := e.positions[k]
	if pos == nil {
		pos = newPosition()
		e.positions[k] = pos
	}
	return pos
}

func (e *Engine) ensureQueue(user common.Address, marketID uint64) *pendingQueue {
	k := queueKey{user: user, market: marketID}
	q := e.queues[k]
	if q == nil {
		q = newPendingQueue()
		e.queues[k] = q
	}
	return q
}
