package locator

import "time"

// Config tunes the convergence loop. The defaults were tuned against Ethereum mainnet
// block spacing; change them only with evidence from the target chain.
type Config struct {
	// AvgBlockTime seeds the first height estimate.
	AvgBlockTime time.Duration
	// BackDivisor converts an overshoot in seconds into a backward step in heights.
	BackDivisor int64
	// ForwardDivisor converts an undershoot in seconds into a forward step in heights.
	ForwardDivisor int64
	// BackNudge is added to a backward step that repeats the previous step.
	BackNudge int64
	// ForwardNudge is subtracted from a forward step that repeats the previous step.
	ForwardNudge int64
	// Tolerance is how far behind the target the loop may stop before walking forward.
	Tolerance time.Duration
	// MaxBounces is the number of direction flips after which any undershoot is accepted.
	MaxBounces int
	// MaxIterations bounds the convergence loop.
	MaxIterations int
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		AvgBlockTime:   14 * time.Second,
		BackDivisor:    9,
		ForwardDivisor: 7,
		BackNudge:      2,
		ForwardNudge:   3,
		Tolerance:      600 * time.Second,
		MaxBounces:     5,
		MaxIterations:  1000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.AvgBlockTime <= 0 {
		c.AvgBlockTime = d.AvgBlockTime
	}
	if c.BackDivisor <= 0 {
		c.BackDivisor = d.BackDivisor
	}
	if c.ForwardDivisor <= 0 {
		c.ForwardDivisor = d.ForwardDivisor
	}
	if c.BackNudge <= 0 {
		c.BackNudge = d.BackNudge
	}
	if c.ForwardNudge <= 0 {
		c.ForwardNudge = d.ForwardNudge
	}
	if c.Tolerance <= 0 {
		c.Tolerance = d.Tolerance
	}
	if c.MaxBounces <= 0 {
		c.MaxBounces = d.MaxBounces
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	return c
}
