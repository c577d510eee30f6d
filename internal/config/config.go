// Package config defines all configuration for the AMM service.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// fields overridable via ROUNDPOOL_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"roundpool/pkg/types"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun   bool           `mapstructure:"dry_run"`
	Admin    string         `mapstructure:"admin"`
	AMM      AMMConfig      `mapstructure:"amm"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	API      APIConfig      `mapstructure:"api"`
}

// AMMConfig tunes the market maker itself.
//
//   - RoundDuration: length of the shared betting window (all markets).
//   - FeeRateBps: trade fee in basis points of the gross amount (30 = 0.3%).
//   - ProtocolFeeShareBps: share of each enter fee kept by the protocol;
//     the remainder accrues as the resolver incentive.
//   - BootstrapLiquidity: virtual reserves seeding each side of a new
//     round, as a human-readable decimal ("425" = 425 units).
//   - Threshold: settlement price above which a round resolves YES.
//   - RedemptionPageSize: max queue entries visited per capped redemption.
//   - InitialMarkets: market ids registered at startup.
type AMMConfig struct {
	RoundDuration       time.Duration `mapstructure:"round_duration"`
	FeeRateBps          uint64        `mapstructure:"fee_rate_bps"`
	ProtocolFeeShareBps uint64        `mapstructure:"protocol_fee_share_bps"`
	BootstrapLiquidity  string        `mapstructure:"bootstrap_liquidity"`
	Threshold           string        `mapstructure:"threshold"`
	RedemptionPageSize  int           `mapstructure:"redemption_page_size"`
	InitialMarkets      []uint64      `mapstructure:"initial_markets"`
}

// OracleConfig points at the settlement price service. In dry-run mode no
// HTTP calls are made and StaticPrice is served for every market.
type OracleConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RetryCount  int           `mapstructure:"retry_count"`
	StaticPrice string        `mapstructure:"static_price"`
}

// ResolverConfig controls the built-in keeper loop that fires resolution
// once the round window elapses. Address collects the resolver incentive.
type ResolverConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Address      string        `mapstructure:"address"`
}

// StoreConfig sets where engine snapshots are persisted (JSON files).
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// APIConfig controls the HTTP/WebSocket view server.
type APIConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load reads config from a YAML file with env var overrides
// (ROUNDPOOL_ADMIN, ROUNDPOOL_DRY_RUN, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ROUNDPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if admin := os.Getenv("ROUNDPOOL_ADMIN"); admin != "" {
		cfg.Admin = admin
	}
	if os.Getenv("ROUNDPOOL_DRY_RUN") == "true" || os.Getenv("ROUNDPOOL_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if !common.IsHexAddress(c.Admin) {
		return fmt.Errorf("admin must be a hex address (set ROUNDPOOL_ADMIN)")
	}
	if c.AMM.RoundDuration <= 0 {
		return fmt.Errorf("amm.round_duration must be > 0")
	}
	if c.AMM.FeeRateBps >= 10_000 {
		return fmt.Errorf("amm.fee_rate_bps must be < 10000")
	}
	if c.AMM.ProtocolFeeShareBps > 10_000 {
		return fmt.Errorf("amm.protocol_fee_share_bps must be <= 10000")
	}
	boot, err := types.ParseAmount(c.AMM.BootstrapLiquidity)
	if err != nil {
		return fmt.Errorf("amm.bootstrap_liquidity: %w", err)
	}
	if boot.IsZero() {
		return fmt.Errorf("amm.bootstrap_liquidity must be > 0")
	}
	if _, err := types.ParseAmount(c.AMM.Threshold); err != nil {
		return fmt.Errorf("amm.threshold: %w", err)
	}
	if c.AMM.RedemptionPageSize <= 0 {
		return fmt.Errorf("amm.redemption_page_size must be > 0")
	}
	for _, id := range c.AMM.InitialMarkets {
		if id == 0 {
			return fmt.Errorf("amm.initial_markets must not contain 0")
		}
	}
	if c.DryRun {
		if _, err := types.ParseAmount(c.Oracle.StaticPrice); err != nil {
			return fmt.Errorf("oracle.static_price (required in dry-run): %w", err)
		}
	} else if c.Oracle.BaseURL == "" {
		return fmt.Errorf("oracle.base_url is required")
	}
	if c.Resolver.Enabled {
		if c.Resolver.PollInterval <= 0 {
			return fmt.Errorf("resolver.poll_interval must be > 0")
		}
		if !common.IsHexAddress(c.Resolver.Address) {
			return fmt.Errorf("resolver.address must be a hex address")
		}
	}
	if c.API.Enabled && c.API.Port <= 0 {
		return fmt.Errorf("api.port must be > 0")
	}
	return nil
}
