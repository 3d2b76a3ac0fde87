// Package config loads the YAML configuration of a snapshot deployment: which node to
// read, which assets to replay, the corrections to apply and where results go.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/canopy-network/holderscan/pkg/consolidate"
	"github.com/canopy-network/holderscan/pkg/db/models/snapshot"
	"github.com/canopy-network/holderscan/pkg/locator"
	"github.com/canopy-network/holderscan/pkg/replay"
	"github.com/canopy-network/holderscan/pkg/rpc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Config is the root configuration.
type Config struct {
	RPC         RPCConfig          `yaml:"rpc"`
	Locator     LocatorConfig      `yaml:"locator"`
	Replay      ReplayConfig       `yaml:"replay"`
	Assets      AssetsConfig       `yaml:"assets"`
	BurnAddress string             `yaml:"burn_address"`
	Corrections []CorrectionConfig `yaml:"corrections"`
	// ExpectedTotal, when set, is compared against the consolidated total after a scan.
	ExpectedTotal string         `yaml:"expected_total"`
	Output        OutputConfig   `yaml:"output"`
	Store         StoreConfig    `yaml:"store"`
	Notify        NotifyConfig   `yaml:"notify"`
	Schedule      ScheduleConfig `yaml:"schedule"`
}

// RPCConfig configures the JSON-RPC client.
type RPCConfig struct {
	Endpoints       []string      `yaml:"endpoints"`
	Timeout         time.Duration `yaml:"timeout"`
	RPS             int           `yaml:"rps"`
	Burst           int           `yaml:"burst"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// LocatorConfig tunes the block search.
type LocatorConfig struct {
	AvgBlockTime   time.Duration `yaml:"avg_block_time"`
	BackDivisor    int64         `yaml:"back_divisor"`
	ForwardDivisor int64         `yaml:"forward_divisor"`
	BackNudge      int64         `yaml:"back_nudge"`
	ForwardNudge   int64         `yaml:"forward_nudge"`
	Tolerance      time.Duration `yaml:"tolerance"`
	MaxBounces     int           `yaml:"max_bounces"`
	MaxIterations  int           `yaml:"max_iterations"`
}

// ReplayConfig tunes event windows and retries.
type ReplayConfig struct {
	InitialWindow uint64        `yaml:"initial_window"`
	MaxAttempts   int           `yaml:"max_attempts"`
	Backoff       time.Duration `yaml:"backoff"`
	MaxBackoff    time.Duration `yaml:"max_backoff"`
}

// AssetsConfig names the two assets that are consolidated.
type AssetsConfig struct {
	Primary AssetConfig `yaml:"primary"`
	Legacy  AssetConfig `yaml:"legacy"`
}

// AssetConfig describes one tracked token.
type AssetConfig struct {
	Name     string `yaml:"name"`
	Contract string `yaml:"contract"`
	Genesis  uint64 `yaml:"genesis"`
	Decimals int32  `yaml:"decimals"`
}

// CorrectionConfig is a one-off balance adjustment. Asset is "primary" or "legacy".
type CorrectionConfig struct {
	Asset   string `yaml:"asset"`
	Address string `yaml:"address"`
	Delta   string `yaml:"delta"`
	Note    string `yaml:"note"`
}

// OutputConfig controls the snapshot file.
type OutputConfig struct {
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`
}

// StoreConfig configures the optional final-snapshot sink.
type StoreConfig struct {
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// ClickHouseConfig points at the ClickHouse server holding holder_snapshots.
type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
}

// NotifyConfig configures completion notifications.
type NotifyConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig enables publishing a run summary. Connection settings come from REDIS_* env vars.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Channel string `yaml:"channel"`
}

// ScheduleConfig configures schedule mode.
type ScheduleConfig struct {
	Cron string `yaml:"cron"`
	// SettleDelay is the wait between attempts while the chain has no block after the tick yet.
	SettleDelay    time.Duration `yaml:"settle_delay"`
	SettleAttempts int           `yaml:"settle_attempts"`
}

// LocatorConfig returns the locator settings.
func (c *Config) LocatorConfig() locator.Config {
	l := c.Locator
	return locator.Config{
		AvgBlockTime:   l.AvgBlockTime,
		BackDivisor:    l.BackDivisor,
		ForwardDivisor: l.ForwardDivisor,
		BackNudge:      l.BackNudge,
		ForwardNudge:   l.ForwardNudge,
		Tolerance:      l.Tolerance,
		MaxBounces:     l.MaxBounces,
		MaxIterations:  l.MaxIterations,
	}
}

// ReplayConfig returns the replay engine settings.
func (c *Config) ReplayConfig() replay.Config {
	return replay.Config{
		InitialWindow: c.Replay.InitialWindow,
		MaxAttempts:   c.Replay.MaxAttempts,
		Backoff:       c.Replay.Backoff,
		MaxBackoff:    c.Replay.MaxBackoff,
	}
}

// RPCOpts returns the HTTP client options.
func (c *Config) RPCOpts() rpc.Opts {
	return rpc.Opts{
		Endpoints:       c.RPC.Endpoints,
		Timeout:         c.RPC.Timeout,
		RPS:             c.RPC.RPS,
		Burst:           c.RPC.Burst,
		BreakerFailures: c.RPC.BreakerFailures,
		BreakerCooldown: c.RPC.BreakerCooldown,
	}
}

// Asset converts an asset section into the replay engine's form.
func (a AssetConfig) Asset() (replay.Asset, error) {
	if !common.IsHexAddress(a.Contract) {
		return replay.Asset{}, fmt.Errorf("invalid contract address %q", a.Contract)
	}
	return replay.Asset{
		Name:     a.Name,
		Contract: common.HexToAddress(a.Contract),
		Genesis:  a.Genesis,
		Decimals: a.Decimals,
	}, nil
}

// Burn returns the address excluded from consolidated snapshots.
func (c *Config) Burn() (common.Address, error) {
	if c.BurnAddress == "" {
		return snapshot.BurnAddress, nil
	}
	if !common.IsHexAddress(c.BurnAddress) {
		return common.Address{}, fmt.Errorf("invalid burn_address %q", c.BurnAddress)
	}
	return common.HexToAddress(c.BurnAddress), nil
}

// ConsolidateOptions returns the burn exclusion and parsed corrections.
func (c *Config) ConsolidateOptions() (consolidate.Options, error) {
	burn, err := c.Burn()
	if err != nil {
		return consolidate.Options{}, err
	}
	corrections := make([]snapshot.Correction, 0, len(c.Corrections))
	for i, cc := range c.Corrections {
		corr, err := cc.Correction()
		if err != nil {
			return consolidate.Options{}, fmt.Errorf("corrections[%d]: %w", i, err)
		}
		corrections = append(corrections, corr)
	}
	return consolidate.Options{Burn: burn, Corrections: corrections}, nil
}

// Correction parses the adjustment.
func (cc CorrectionConfig) Correction() (snapshot.Correction, error) {
	asset := strings.ToLower(strings.TrimSpace(cc.Asset))
	if asset != consolidate.AssetPrimary && asset != consolidate.AssetLegacy {
		return snapshot.Correction{}, fmt.Errorf("asset must be %q or %q, got %q",
			consolidate.AssetPrimary, consolidate.AssetLegacy, cc.Asset)
	}
	if !common.IsHexAddress(cc.Address) {
		return snapshot.Correction{}, fmt.Errorf("invalid address %q", cc.Address)
	}
	delta, err := decimal.NewFromString(cc.Delta)
	if err != nil {
		return snapshot.Correction{}, fmt.Errorf("invalid delta %q: %w", cc.Delta, err)
	}
	return snapshot.Correction{
		Asset:   asset,
		Address: common.HexToAddress(cc.Address),
		Delta:   delta,
		Note:    cc.Note,
	}, nil
}

// Expected returns the configured expected total, if any.
func (c *Config) Expected() (decimal.Decimal, bool, error) {
	if c.ExpectedTotal == "" {
		return decimal.Zero, false, nil
	}
	d, err := decimal.NewFromString(c.ExpectedTotal)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("invalid expected_total %q: %w", c.ExpectedTotal, err)
	}
	return d, true, nil
}
