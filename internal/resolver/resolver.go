// Package resolver runs the built-in keeper loop. Resolution is
// permissionless and pays the caller the accrued resolver incentive, so
// any party can run one of these; the service ships its own so rounds
// advance even with no external keepers watching.
package resolver

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"roundpool/pkg/types"
)

// Engine is the subset of the AMM engine the keeper needs.
type Engine interface {
	CheckResolutionStatus() types.ResolutionStatus
	ResolveMarkets(ctx context.Context, caller common.Address) error
}

// Runner polls the resolution window and fires ResolveMarkets when it
// elapses, collecting the incentive to its configured address.
type Runner struct {
	engine   Engine
	address  common.Address
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a keeper that resolves as address every interval check.
func New(engine Engine, address common.Address, interval time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		engine:   engine,
		address:  address,
		interval: interval,
		logger:   logger.With("component", "resolver"),
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop in a goroutine.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go r.run(ctx)
	r.logger.Info("resolver started", "address", r.address.Hex(), "interval", r.interval)
}

// Stop halts the loop and waits for it to finish.
func (r *Runner) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.logger.Info("resolver stopped")
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := r.engine.CheckResolutionStatus()
			if !st.Resolvable {
				continue
			}
			if err := r.engine.ResolveMarkets(ctx, r.address); err != nil {
				// Another keeper may have beaten us to it; that is fine.
				r.logger.Warn("resolve failed", "error", err)
				continue
			}
			r.logger.Info("resolved markets", "reward", st.PendingResolverFee)
		}
	}
}
