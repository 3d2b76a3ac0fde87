package config

import (
	"time"

	"github.com/canopy-network/holderscan/pkg/locator"
	"github.com/canopy-network/holderscan/pkg/replay"
	"github.com/canopy-network/holderscan/pkg/utils"
)

// Default values for optional configuration fields.
const (
	DefaultRPCURL          = "http://localhost:8545"
	DefaultRPCTimeout      = 30 * time.Second
	DefaultOutputPrefix    = "sift-snapshot-"
	DefaultCron            = "0 0 10 * * *"
	DefaultRedisChannel    = "holderscan.snapshots"
	DefaultClickHouseAddr  = "localhost:9000"
	DefaultClickHouseDB    = "holderscan"
	DefaultPrimaryName     = "primary"
	DefaultLegacyName      = "legacy"
	DefaultOutputDirectory = "."
	DefaultSettleDelay     = 30 * time.Second
	DefaultSettleAttempts  = 20
)

// Default returns the configuration of the SIFT / XSFT deployment: SIFT is the primary
// asset, XSFT the six-decimal legacy one, and the exchange hot wallet carries a fixed
// correction for XSFT it issued without backing.
func Default() *Config {
	cfg := &Config{
		Assets: AssetsConfig{
			Primary: AssetConfig{
				Name:     "SIFT",
				Contract: "0x8a187d5285d316bcbc9adafc08b51d70a0d8e000",
				Genesis:  4102075,
				Decimals: 0,
			},
			Legacy: AssetConfig{
				Name:     "XSFT",
				Contract: "0x1d074266bca9481bdeee504836cfefee69092a28",
				Genesis:  5242598,
				Decimals: 6,
			},
		},
		Corrections: []CorrectionConfig{{
			Asset:   "legacy",
			Address: "0x43b0eb4dfe7a3a86b4805b6db07e80c285b54553",
			Delta:   "-1122",
			Note:    "hot wallet XSFT issued for SIFT that was never deposited",
		}},
		ExpectedTotal: "722935",
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	// RPC defaults
	if len(c.RPC.Endpoints) == 0 {
		c.RPC.Endpoints = utils.SplitList(utils.Env("RPC_URL", DefaultRPCURL))
	}
	if c.RPC.Timeout == 0 {
		c.RPC.Timeout = DefaultRPCTimeout
	}

	// Locator defaults
	l := locator.DefaultConfig()
	if c.Locator.AvgBlockTime == 0 {
		c.Locator.AvgBlockTime = l.AvgBlockTime
	}
	if c.Locator.BackDivisor == 0 {
		c.Locator.BackDivisor = l.BackDivisor
	}
	if c.Locator.ForwardDivisor == 0 {
		c.Locator.ForwardDivisor = l.ForwardDivisor
	}
	if c.Locator.BackNudge == 0 {
		c.Locator.BackNudge = l.BackNudge
	}
	if c.Locator.ForwardNudge == 0 {
		c.Locator.ForwardNudge = l.ForwardNudge
	}
	if c.Locator.Tolerance == 0 {
		c.Locator.Tolerance = l.Tolerance
	}
	if c.Locator.MaxBounces == 0 {
		c.Locator.MaxBounces = l.MaxBounces
	}
	if c.Locator.MaxIterations == 0 {
		c.Locator.MaxIterations = l.MaxIterations
	}

	// Replay defaults
	r := replay.DefaultConfig()
	if c.Replay.InitialWindow == 0 {
		c.Replay.InitialWindow = r.InitialWindow
	}
	if c.Replay.MaxAttempts == 0 {
		c.Replay.MaxAttempts = r.MaxAttempts
	}
	if c.Replay.Backoff == 0 {
		c.Replay.Backoff = r.Backoff
	}
	if c.Replay.MaxBackoff == 0 {
		c.Replay.MaxBackoff = r.MaxBackoff
	}

	// Asset defaults
	if c.Assets.Primary.Name == "" {
		c.Assets.Primary.Name = DefaultPrimaryName
	}
	if c.Assets.Legacy.Name == "" {
		c.Assets.Legacy.Name = DefaultLegacyName
	}

	// Output defaults
	if c.Output.Dir == "" {
		c.Output.Dir = DefaultOutputDirectory
	}
	if c.Output.Prefix == "" {
		c.Output.Prefix = DefaultOutputPrefix
	}

	// Sink and notification defaults
	if c.Store.ClickHouse.Addr == "" {
		c.Store.ClickHouse.Addr = utils.Env("CLICKHOUSE_ADDR", DefaultClickHouseAddr)
	}
	if c.Store.ClickHouse.Database == "" {
		c.Store.ClickHouse.Database = utils.Env("CLICKHOUSE_DB", DefaultClickHouseDB)
	}
	if c.Notify.Redis.Channel == "" {
		c.Notify.Redis.Channel = DefaultRedisChannel
	}

	if c.Schedule.Cron == "" {
		c.Schedule.Cron = DefaultCron
	}
	if c.Schedule.SettleDelay == 0 {
		c.Schedule.SettleDelay = DefaultSettleDelay
	}
	if c.Schedule.SettleAttempts == 0 {
		c.Schedule.SettleAttempts = DefaultSettleAttempts
	}
}
