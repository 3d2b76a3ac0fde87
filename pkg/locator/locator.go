package locator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/canopy-network/holderscan/pkg/db/models/snapshot"
	"go.uber.org/zap"
)

var (
	// ErrTargetInFuture is returned for targets after the current wall-clock time.
	ErrTargetInFuture = errors.New("target time is in the future")
	// ErrExhaustedSearch is returned when no block after the target exists up to the chain head.
	ErrExhaustedSearch = errors.New("could not find a block immediately before target")
	// ErrBeforeGenesis is returned when the genesis block is already later than the target.
	ErrBeforeGenesis = fmt.Errorf("%w: target precedes the genesis block", ErrExhaustedSearch)
	// ErrNoConvergence is returned when the convergence loop hits its iteration guard.
	ErrNoConvergence = errors.New("block search did not converge")
)

// BlockSource is the slice of the remote ledger client the locator reads.
type BlockSource interface {
	ChainHead(ctx context.Context) (uint64, error)
	BlockByHeight(ctx context.Context, height uint64) (*snapshot.Block, error)
}

// Locator maps a wall-clock instant to the last block committed at or before it.
type Locator struct {
	source BlockSource
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// Option customises a Locator.
type Option func(*Locator)

// WithClock replaces time.Now, which seeds the first height estimate.
func WithClock(now func() time.Time) Option {
	return func(l *Locator) {
		l.now = now
	}
}

// New returns a Locator reading blocks from source.
func New(source BlockSource, cfg Config, logger *zap.Logger, opts ...Option) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Locator{
		source: source,
		cfg:    cfg.withDefaults(),
		logger: logger.Named("locator"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// BlockBefore returns the greatest height whose block time is <= target.
//
// It estimates a start height from the average block time, converges on the target
// with proportional steps, then walks forward one block at a time so the answer is
// exact even where timestamps are irregular.
func (l *Locator) BlockBefore(ctx context.Context, target time.Time) (uint64, error) {
	target = target.UTC()
	now := l.now()
	if target.After(now) {
		return 0, fmt.Errorf("%w: %s", ErrTargetInFuture, target.Format(time.RFC3339))
	}

	head, err := l.source.ChainHead(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain head: %w", err)
	}

	start := estimate(head, now.Sub(target), l.cfg.AvgBlockTime)
	l.logger.Info("Locating block",
		zap.Time("target", target),
		zap.Uint64("head", head),
		zap.Int64("estimate", start))

	behind, err := l.converge(ctx, target, int64(head), start)
	if err != nil {
		return 0, err
	}

	height, err := l.confirm(ctx, target, int64(head), behind)
	if err != nil {
		return 0, err
	}

	l.logger.Info("Located last block before target",
		zap.Time("target", target),
		zap.Uint64("height", height))
	return height, nil
}

// estimate assumes a constant block time between target and now.
func estimate(head uint64, age, avgBlockTime time.Duration) int64 {
	h := int64(head) - int64(age/avgBlockTime)
	if h < 0 {
		return 0
	}
	return h
}

// converge moves from start towards target until it sits at or behind it, close
// enough (Tolerance) or after enough direction flips (MaxBounces).
func (l *Locator) converge(ctx context.Context, target time.Time, head, start int64) (int64, error) {
	height := start
	var (
		lastStep    int64
		bounces     int
		lastForward bool
	)

	block, err := l.fetch(ctx, height)
	if err != nil {
		return 0, err
	}

	for i := 0; ; i++ {
		if i >= l.cfg.MaxIterations {
			return 0, fmt.Errorf("%w after %d iterations, last height %d at %s",
				ErrNoConvergence, i, height, block.Time.Format(time.RFC3339))
		}

		switch {
		case block.Time.After(target):
			if height == 0 {
				return 0, fmt.Errorf("%w: genesis at %s, target %s",
					ErrBeforeGenesis, block.Time.Format(time.RFC3339), target.Format(time.RFC3339))
			}
			diff := int64(block.Time.Sub(target) / time.Second)
			step := diff / l.cfg.BackDivisor
			if step == lastStep {
				step += l.cfg.BackNudge
			}
			lastStep = step
			if lastForward {
				bounces++
			} else {
				bounces = 0
			}
			lastForward = false

			height -= step
			if height < 0 {
				height = 0
			}
			l.logger.Debug("Overshot target, moving back",
				zap.Int64("step", step),
				zap.Int64("height", height),
				zap.Int("bounces", bounces))

		case block.Time.Before(target):
			gap := target.Sub(block.Time)
			if gap < l.cfg.Tolerance || bounces > l.cfg.MaxBounces || height >= head {
				return height, nil
			}
			step := int64(gap/time.Second) / l.cfg.ForwardDivisor
			if step == lastStep {
				step -= l.cfg.ForwardNudge
			}
			if step < 1 {
				step = 1
			}
			if !lastForward {
				bounces++
			} else {
				bounces = 0
			}
			lastForward = true
			lastStep = step

			height += step
			if height > head {
				height = head
			}
			l.logger.Debug("Behind target, moving forward",
				zap.Int64("step", step),
				zap.Int64("height", height),
				zap.Int("bounces", bounces))

		default:
			return height, nil
		}

		if block, err = l.fetch(ctx, height); err != nil {
			return 0, err
		}
	}
}

// confirm walks forward from a height known to be at or behind target and returns
// the height just before the first block committed after target.
func (l *Locator) confirm(ctx context.Context, target time.Time, head, from int64) (uint64, error) {
	for h := from + 1; h <= head; h++ {
		block, err := l.fetch(ctx, h)
		if err != nil {
			return 0, err
		}
		if block.Time.After(target) {
			return uint64(h - 1), nil
		}
		if (h-from)%10 == 0 {
			l.logger.Debug("Walking forward",
				zap.Int64("height", h),
				zap.Time("block_time", block.Time))
		}
	}
	return 0, fmt.Errorf("%w %s: reached head %d", ErrExhaustedSearch, target.Format(time.RFC3339), head)
}

func (l *Locator) fetch(ctx context.Context, height int64) (*snapshot.Block, error) {
	block, err := l.source.BlockByHeight(ctx, uint64(height))
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", height, err)
	}
	return block, nil
}
