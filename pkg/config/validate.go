package config

import (
	"errors"
	"fmt"

	"github.com/canopy-network/holderscan/pkg/db/models/snapshot"
	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if len(c.RPC.Endpoints) == 0 {
		return errors.New("rpc.endpoints is required")
	}

	if err := c.Assets.Primary.validate("assets.primary"); err != nil {
		return err
	}
	if err := c.Assets.Legacy.validate("assets.legacy"); err != nil {
		return err
	}

	if c.Locator.BackDivisor < 1 {
		return errors.New("locator.back_divisor must be >= 1")
	}
	if c.Locator.ForwardDivisor < 1 {
		return errors.New("locator.forward_divisor must be >= 1")
	}
	if c.Locator.AvgBlockTime <= 0 {
		return errors.New("locator.avg_block_time must be > 0")
	}
	if c.Replay.InitialWindow < 1 {
		return errors.New("replay.initial_window must be >= 1")
	}
	if c.Replay.MaxAttempts < 1 {
		return errors.New("replay.max_attempts must be >= 1")
	}
	if c.Replay.Backoff < 0 {
		return errors.New("replay.backoff must be >= 0")
	}

	if _, err := c.ConsolidateOptions(); err != nil {
		return err
	}
	if _, _, err := c.Expected(); err != nil {
		return err
	}

	if c.Store.ClickHouse.Enabled && c.Store.ClickHouse.Addr == "" {
		return errors.New("store.clickhouse.addr is required when enabled")
	}
	if c.Notify.Redis.Enabled && c.Notify.Redis.Channel == "" {
		return errors.New("notify.redis.channel is required when enabled")
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Schedule.Cron); err != nil {
		return fmt.Errorf("schedule.cron %q: %w", c.Schedule.Cron, err)
	}
	if c.Schedule.SettleAttempts < 1 {
		return errors.New("schedule.settle_attempts must be >= 1")
	}
	if c.Schedule.SettleDelay < 0 {
		return errors.New("schedule.settle_delay must be >= 0")
	}

	return nil
}

func (a *AssetConfig) validate(prefix string) error {
	if a.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if !common.IsHexAddress(a.Contract) {
		return fmt.Errorf("%s.contract must be a hex address, got %q", prefix, a.Contract)
	}
	// Stored balances keep BalanceScale fractional digits.
	if a.Decimals < 0 || a.Decimals > snapshot.BalanceScale {
		return fmt.Errorf("%s.decimals must be between 0 and %d, got %d", prefix, snapshot.BalanceScale, a.Decimals)
	}
	return nil
}
