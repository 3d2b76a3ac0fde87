package locator

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/canopy-network/holderscan/pkg/db/models/snapshot"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errMissingBlock = errors.New("missing block")

type fakeChain struct {
	times   []time.Time
	fetches int
	failAt  map[uint64]error
}

func (c *fakeChain) ChainHead(context.Context) (uint64, error) {
	return uint64(len(c.times) - 1), nil
}

func (c *fakeChain) BlockByHeight(_ context.Context, h uint64) (*snapshot.Block, error) {
	c.fetches++
	if err, ok := c.failAt[h]; ok {
		return nil, err
	}
	if h >= uint64(len(c.times)) {
		return nil, errMissingBlock
	}
	return &snapshot.Block{Height: h, Time: c.times[h]}, nil
}

func (c *fakeChain) last() time.Time {
	return c.times[len(c.times)-1]
}

var genesis = time.Date(2017, 7, 1, 0, 0, 0, 0, time.UTC)

// uniformChain returns n blocks spaced exactly every spacing.
func uniformChain(n int, spacing time.Duration) *fakeChain {
	times := make([]time.Time, n)
	for i := range times {
		times[i] = genesis.Add(time.Duration(i) * spacing)
	}
	return &fakeChain{times: times}
}

// irregularChain returns n blocks with gaps drawn from [0, maxGap] seconds.
func irregularChain(n int, maxGap int, seed int64) *fakeChain {
	rng := rand.New(rand.NewSource(seed))
	times := make([]time.Time, n)
	t := genesis
	for i := range times {
		times[i] = t
		t = t.Add(time.Duration(rng.Intn(maxGap+1)) * time.Second)
	}
	return &fakeChain{times: times}
}

// expectedHeight is the brute-force answer: the last height with time <= target.
func expectedHeight(c *fakeChain, target time.Time) uint64 {
	var h uint64
	for i, t := range c.times {
		if t.After(target) {
			break
		}
		h = uint64(i)
	}
	return h
}

func newTestLocator(t *testing.T, chain *fakeChain, cfg Config) *Locator {
	now := chain.last().Add(30 * time.Second)
	return New(chain, cfg, zaptest.NewLogger(t), WithClock(func() time.Time { return now }))
}

func TestBlockBeforeUniformChain(t *testing.T) {
	chain := uniformChain(50000, 14*time.Second)
	loc := newTestLocator(t, chain, DefaultConfig())

	tests := []struct {
		name   string
		target time.Time
	}{
		{name: "between blocks", target: genesis.Add(14*20000*time.Second + 5*time.Second)},
		{name: "exactly on a block", target: genesis.Add(14 * 31000 * time.Second)},
		{name: "near genesis", target: genesis.Add(14*3*time.Second + time.Second)},
		{name: "a day before head", target: chain.last().Add(-24 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := loc.BlockBefore(context.Background(), tt.target)
			require.NoError(t, err)
			require.Equal(t, expectedHeight(chain, tt.target), h)
			require.False(t, chain.times[h].After(tt.target))
			require.True(t, chain.times[h+1].After(tt.target))
		})
	}
}

func TestBlockBeforeIrregularChain(t *testing.T) {
	chain := irregularChain(40000, 30, 42)
	loc := newTestLocator(t, chain, DefaultConfig())
	rng := rand.New(rand.NewSource(7))

	span := chain.last().Add(-2 * time.Hour).Sub(genesis)
	for i := 0; i < 25; i++ {
		target := genesis.Add(time.Duration(rng.Int63n(int64(span))))
		h, err := loc.BlockBefore(context.Background(), target)
		require.NoError(t, err, "target %s", target)
		require.Equal(t, expectedHeight(chain, target), h, "target %s", target)
	}
}

func TestBlockBeforeSharedTimestampReturnsLastOfRun(t *testing.T) {
	chain := uniformChain(2000, 14*time.Second)
	shared := chain.times[100]
	for h := 101; h <= 104; h++ {
		chain.times[h] = shared
	}
	loc := newTestLocator(t, chain, DefaultConfig())

	h, err := loc.BlockBefore(context.Background(), shared)
	require.NoError(t, err)
	require.Equal(t, uint64(104), h)
}

func TestBlockBeforeTargetBeforeGenesis(t *testing.T) {
	chain := uniformChain(5000, 14*time.Second)
	loc := newTestLocator(t, chain, DefaultConfig())

	_, err := loc.BlockBefore(context.Background(), genesis.Add(-time.Hour))
	require.ErrorIs(t, err, ErrBeforeGenesis)
	require.ErrorIs(t, err, ErrExhaustedSearch)
}

func TestBlockBeforeTargetInFuture(t *testing.T) {
	chain := uniformChain(100, 14*time.Second)
	loc := newTestLocator(t, chain, DefaultConfig())

	_, err := loc.BlockBefore(context.Background(), chain.last().Add(time.Hour))
	require.ErrorIs(t, err, ErrTargetInFuture)
	require.Zero(t, chain.fetches)
}

func TestBlockBeforeTargetAfterHeadIsExhausted(t *testing.T) {
	chain := uniformChain(1000, 14*time.Second)
	loc := newTestLocator(t, chain, DefaultConfig())

	_, err := loc.BlockBefore(context.Background(), chain.last().Add(5*time.Second))
	require.ErrorIs(t, err, ErrExhaustedSearch)
	require.NotErrorIs(t, err, ErrBeforeGenesis)
}

func TestBlockBeforeIterationGuard(t *testing.T) {
	chain := uniformChain(50000, 14*time.Second)
	cfg := DefaultConfig()
	cfg.AvgBlockTime = time.Second // first estimate lands far behind the target
	cfg.MaxIterations = 1
	loc := newTestLocator(t, chain, cfg)

	_, err := loc.BlockBefore(context.Background(), genesis.Add(14*25000*time.Second))
	require.ErrorIs(t, err, ErrNoConvergence)
}

func TestBlockBeforePropagatesLookupFailure(t *testing.T) {
	chain := uniformChain(50000, 14*time.Second)
	target := genesis.Add(14*20000*time.Second + 5*time.Second)
	lookupErr := errors.New("height does not resolve")
	chain.failAt = map[uint64]error{20000: lookupErr}
	loc := newTestLocator(t, chain, DefaultConfig())

	_, err := loc.BlockBefore(context.Background(), target)
	require.ErrorIs(t, err, lookupErr)
}

func TestEstimateClampsAtGenesis(t *testing.T) {
	require.Equal(t, int64(0), estimate(10, time.Hour, 14*time.Second))
	require.Equal(t, int64(90), estimate(100, 140*time.Second, 14*time.Second))
}
