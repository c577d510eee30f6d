package resolver

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"roundpool/pkg/types"
)

var keeperAddr = common.HexToAddress("0x15d34AAf54267DB7D7c367839AAf71A00a2C6A65")

// fakeEngine scripts CheckResolutionStatus and records ResolveMarkets calls.
type fakeEngine struct {
	mu         sync.Mutex
	resolvable bool
	resolveErr error
	calls      []common.Address
}

func (f *fakeEngine) CheckResolutionStatus() types.ResolutionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return types.ResolutionStatus{Resolvable: f.resolvable, PendingResolverFee: "0"}
}

func (f *fakeEngine) ResolveMarkets(_ context.Context, caller common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, caller)
	if f.resolveErr != nil {
		return f.resolveErr
	}
	f.resolvable = false
	return nil
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeEngine) setResolvable(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolvable = v
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestRunnerResolvesWhenWindowElapses(t *testing.T) {
	t.Parallel()
	eng := &fakeEngine{resolvable: true}
	r := New(eng, keeperAddr, 10*time.Millisecond, testLogger())
	r.Start()
	defer r.Stop()

	waitFor(t, func() bool { return eng.callCount() == 1 })

	if eng.calls[0] != keeperAddr {
		t.Errorf("resolved as %s, want %s", eng.calls[0].Hex(), keeperAddr.Hex())
	}

	// Not resolvable anymore: no further calls.
	time.Sleep(50 * time.Millisecond)
	if got := eng.callCount(); got != 1 {
		t.Errorf("calls = %d after window closed, want 1", got)
	}
}

func TestRunnerWaitsWhileBettingOpen(t *testing.T) {
	t.Parallel()
	eng := &fakeEngine{}
	r := New(eng, keeperAddr, 10*time.Millisecond, testLogger())
	r.Start()
	defer r.Stop()

	time.Sleep(50 * time.Millisecond)
	if got := eng.callCount(); got != 0 {
		t.Errorf("calls = %d while betting open, want 0", got)
	}

	eng.setResolvable(true)
	waitFor(t, func() bool { return eng.callCount() >= 1 })
}

func TestRunnerSurvivesResolveFailure(t *testing.T) {
	t.Parallel()
	eng := &fakeEngine{resolvable: true, resolveErr: errors.New("beaten by another keeper")}
	r := New(eng, keeperAddr, 10*time.Millisecond, testLogger())
	r.Start()
	defer r.Stop()

	// Failures are logged and retried on the next tick.
	waitFor(t, func() bool { return eng.callCount() >= 2 })
}

func TestRunnerStopIdempotent(t *testing.T) {
	t.Parallel()
	eng := &fakeEngine{}
	r := New(eng, keeperAddr, 10*time.Millisecond, testLogger())

	// Stop before Start is a no-op.
	r.Stop()

	r.Start()
	r.Stop()
}
