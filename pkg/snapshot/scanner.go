// Package snapshot runs a complete holder snapshot: locate the block for a target time,
// replay both assets up to it and consolidate the results.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/holderscan/pkg/consolidate"
	snapshotmodels "github.com/canopy-network/holderscan/pkg/db/models/snapshot"
	"github.com/canopy-network/holderscan/pkg/replay"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BlockLocator finds the last block at or before a time.
type BlockLocator interface {
	BlockBefore(ctx context.Context, target time.Time) (uint64, error)
}

// Replayer rebuilds the balances of one asset up to a height.
type Replayer interface {
	Replay(ctx context.Context, asset replay.Asset, target uint64) ([]snapshotmodels.Item, error)
}

// Config describes what a Scanner snapshots.
type Config struct {
	Primary     replay.Asset
	Legacy      replay.Asset
	Consolidate consolidate.Options
	// ExpectedTotal, when set, is compared against the consolidated total.
	ExpectedTotal *decimal.Decimal
}

// Scanner produces consolidated holder snapshots. A Scanner runs one snapshot at a time.
type Scanner struct {
	locator BlockLocator
	engine  Replayer
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

// NewScanner wires a scanner from its locator and replay engine.
func NewScanner(locator BlockLocator, engine Replayer, cfg Config, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		locator: locator,
		engine:  engine,
		cfg:     cfg,
		logger:  logger.Named("scanner"),
		now:     time.Now,
	}
}

// Scan computes the snapshot at target. Any failure aborts the run without a partial result.
func (s *Scanner) Scan(ctx context.Context, target time.Time) (*snapshotmodels.Result, error) {
	res := &snapshotmodels.Result{
		RunID:     uuid.New(),
		Target:    target.UTC(),
		StartedAt: s.now().UTC(),
	}
	logger := s.logger.With(zap.String("run_id", res.RunID.String()))
	logger.Info("Snapshot started", zap.Time("target", res.Target))

	height, err := s.locator.BlockBefore(ctx, res.Target)
	if err != nil {
		return nil, fmt.Errorf("locate block before %s: %w", res.Target.Format(time.RFC3339), err)
	}
	res.Height = height

	primary, err := s.engine.Replay(ctx, s.cfg.Primary, height)
	if err != nil {
		return nil, err
	}
	legacy, err := s.engine.Replay(ctx, s.cfg.Legacy, height)
	if err != nil {
		return nil, err
	}

	opts := s.cfg.Consolidate
	opts.OnApplied = func(c snapshotmodels.Correction) {
		logger.Info("Correction applied",
			zap.String("asset", c.Asset),
			zap.String("address", c.Address.Hex()),
			zap.String("delta", c.Delta.String()),
			zap.String("note", c.Note))
	}
	res.Items = consolidate.Consolidate(primary, legacy, opts)
	res.Total = snapshotmodels.Total(res.Items)
	res.FinishedAt = s.now().UTC()

	if s.cfg.ExpectedTotal != nil && !res.Total.Equal(*s.cfg.ExpectedTotal) {
		logger.Warn("Snapshot total does not match expected",
			zap.String("total", res.Total.String()),
			zap.String("expected", s.cfg.ExpectedTotal.String()))
	}

	logger.Info("Snapshot complete",
		zap.Uint64("height", res.Height),
		zap.Int("holders", res.Holders()),
		zap.String("total", res.Total.String()),
		zap.Duration("duration", res.FinishedAt.Sub(res.StartedAt)))
	return res, nil
}
