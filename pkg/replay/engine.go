package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/holderscan/pkg/db/models/snapshot"
	"github.com/canopy-network/holderscan/pkg/retry"
	"github.com/canopy-network/holderscan/pkg/rpc"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// EventSource is the slice of the remote ledger client the engine reads.
type EventSource interface {
	TransferEvents(ctx context.Context, asset common.Address, from, to uint64) ([]snapshot.TransferEvent, error)
}

// Asset identifies a tracked token and where its history starts.
type Asset struct {
	Name     string
	Contract common.Address
	// Genesis is the height of the contract's first transfer (usually its deployment block).
	Genesis uint64
	// Decimals is the exponent raw amounts are scaled down by. Zero leaves them as is.
	Decimals int32
}

// Config controls window sizing and per-window retries.
type Config struct {
	// InitialWindow is the number of heights requested per call before any shrinking.
	InitialWindow uint64
	// MaxAttempts is the number of failed calls tolerated for one window start.
	MaxAttempts int
	// Backoff is the delay before the first retry; zero retries immediately.
	Backoff time.Duration
	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration
}

// DefaultConfig returns the production window and retry settings.
func DefaultConfig() Config {
	return Config{
		InitialWindow: 65000,
		MaxAttempts:   10,
		Backoff:       250 * time.Millisecond,
		MaxBackoff:    5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.InitialWindow == 0 {
		c.InitialWindow = d.InitialWindow
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	return c
}

// Engine rebuilds holder balances by replaying every transfer event of an asset.
type Engine struct {
	source EventSource
	cfg    Config
	logger *zap.Logger
}

// NewEngine returns an Engine reading events from source.
func NewEngine(source EventSource, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		source: source,
		cfg:    cfg.withDefaults(),
		logger: logger.Named("replay"),
	}
}

// Replay applies every transfer of asset from its genesis height up to and including
// target and returns the non-zero balances, unordered. The burn address is included.
//
// Each request covers a window of heights. A retriable failure halves the window and
// retries the same start; the window never grows back for the rest of the run.
func (e *Engine) Replay(ctx context.Context, asset Asset, target uint64) ([]snapshot.Item, error) {
	ledger := NewLedger(asset.Decimals)
	if target < asset.Genesis {
		e.logger.Warn("Target height precedes asset genesis, nothing to replay",
			zap.String("asset", asset.Name),
			zap.Uint64("genesis", asset.Genesis),
			zap.Uint64("target", target))
		return ledger.Items(), nil
	}

	window := e.cfg.InitialWindow
	retryCfg := retry.Config{
		MaxRetries:   e.cfg.MaxAttempts,
		InitialDelay: e.cfg.Backoff,
		MaxDelay:     e.cfg.MaxBackoff,
		Multiplier:   2.0,
		Retryable:    rpc.IsRetriable,
	}

	started := time.Now()
	var events, windows int

	e.logger.Info("Replaying transfers",
		zap.String("asset", asset.Name),
		zap.String("contract", asset.Contract.Hex()),
		zap.Uint64("from", asset.Genesis),
		zap.Uint64("to", target),
		zap.Uint64("window", window))

	for start := asset.Genesis; start <= target; {
		var (
			batch []snapshot.TransferEvent
			end   uint64
		)
		op := fmt.Sprintf("transfer_events %s from %d", asset.Name, start)
		err := retry.WithBackoff(ctx, retryCfg, e.logger, op, func() error {
			end = windowEnd(start, window, target)
			var err error
			batch, err = e.source.TransferEvents(ctx, asset.Contract, start, end)
			if err != nil && rpc.IsRetriable(err) && window > 1 {
				window /= 2
				e.logger.Debug("Shrinking window",
					zap.String("asset", asset.Name),
					zap.Uint64("start", start),
					zap.Uint64("window", window))
			}
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("replay %s: %w", asset.Name, err)
		}

		for _, ev := range batch {
			ledger.Apply(ev)
		}
		events += len(batch)
		windows++

		e.logger.Debug("Window replayed",
			zap.String("asset", asset.Name),
			zap.Uint64("start", start),
			zap.Uint64("end", end),
			zap.Int("events", len(batch)))

		if end == target {
			break
		}
		start = end + 1
	}

	items := ledger.Items()
	e.logger.Info("Replay complete",
		zap.String("asset", asset.Name),
		zap.Int("windows", windows),
		zap.Int("events", events),
		zap.Int("holders", len(items)),
		zap.Duration("duration", time.Since(started)))
	return items, nil
}

// windowEnd returns the last height of a window starting at start, clamped to target.
func windowEnd(start, window, target uint64) uint64 {
	if target-start < window {
		return target
	}
	return start + window - 1
}
