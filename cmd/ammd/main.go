// Roundpool — a round-based dual-outcome constant-product AMM for binary
// prediction markets.
//
// Architecture:
//
//	main.go              — entry point: loads config, wires components, waits for SIGINT/SIGTERM
//	amm/engine.go        — the AMM state machine: registry, rounds, trading, resolution, redemption
//	amm/reserve.go       — constant-product swap math over 256-bit fixed point
//	amm/queue.go         — per-user pending-redemption queues with O(page) capped draining
//	vault/vault.go       — native-currency settlement ledger (debits entries, credits payouts)
//	oracle/oracle.go     — settlement price sources: REST client + static fixture for dry runs
//	resolver/resolver.go — keeper loop firing permissionless resolution for the incentive
//	api/server.go        — HTTP views, trade endpoints, WebSocket event stream
//	store/store.go       — crash-safe JSON snapshots of the full engine state
//
// How a round works:
//
//	All markets share one betting window. Users buy YES or NO shares
//	against virtual bootstrap reserves; net inflows accumulate in each
//	round's treasury. When the window elapses anyone may resolve: the
//	oracle price picks each market's winning side, the next round opens,
//	and the resolver collects the accrued incentive. Winners then redeem
//	a pro-rata share of the round treasury through their redemption queue.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"roundpool/internal/amm"
	"roundpool/internal/api"
	"roundpool/internal/config"
	"roundpool/internal/oracle"
	"roundpool/internal/resolver"
	"roundpool/internal/store"
	"roundpool/internal/vault"
	"roundpool/pkg/types"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("ROUNDPOOL_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Set up logger
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	// Amounts were validated by cfg.Validate
	bootstrap, _ := types.ParseAmount(cfg.AMM.BootstrapLiquidity)
	threshold, _ := types.ParseAmount(cfg.AMM.Threshold)

	params := amm.Params{
		Admin:               common.HexToAddress(cfg.Admin),
		RoundDuration:       cfg.AMM.RoundDuration,
		FeeRateBps:          cfg.AMM.FeeRateBps,
		ProtocolFeeShareBps: cfg.AMM.ProtocolFeeShareBps,
		Bootstrap:           bootstrap,
		Threshold:           threshold,
		RedemptionPageSize:  cfg.AMM.RedemptionPageSize,
		InitialMarkets:      cfg.AMM.InitialMarkets,
	}

	v := vault.New(logger)

	var prices amm.PriceSource
	if cfg.DryRun {
		staticPrice, _ := types.ParseAmount(cfg.Oracle.StaticPrice)
		prices = oracle.NewStatic(staticPrice)
	} else {
		prices = oracle.NewHTTPSource(cfg.Oracle, logger)
	}

	eng, err := amm.New(params, amm.SystemClock{}, v, prices, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	// Restore persisted state if a snapshot exists
	st, err := store.Open(cfg.Store.DataDir)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	if snap, err := st.LoadSnapshot(); err != nil {
		logger.Error("failed to load snapshot", "error", err)
		os.Exit(1)
	} else if snap != nil {
		if err := eng.Restore(snap); err != nil {
			logger.Error("failed to restore snapshot", "error", err)
			os.Exit(1)
		}
	}

	// Start API server if enabled
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg.API, eng, v, cfg.DryRun, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("api server failed", "error", err)
			}
		}()
		logger.Info("api started", "url", fmt.Sprintf("http://localhost:%d", cfg.API.Port))
	}

	// Start keeper loop if enabled
	var keeper *resolver.Runner
	if cfg.Resolver.Enabled {
		keeper = resolver.New(eng, common.HexToAddress(cfg.Resolver.Address), cfg.Resolver.PollInterval, logger)
		keeper.Start()
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — static oracle prices, API deposits enabled")
	}

	logger.Info("roundpool started",
		"markets", len(cfg.AMM.InitialMarkets),
		"round_duration", cfg.AMM.RoundDuration,
		"fee_bps", cfg.AMM.FeeRateBps,
		"dry_run", cfg.DryRun,
	)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop api server", "error", err)
		}
	}
	if keeper != nil {
		keeper.Stop()
	}

	if err := st.SaveSnapshot(eng.Snapshot()); err != nil {
		logger.Error("failed to save snapshot", "error", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
