package synthetic

import "github.com/peter-kozarec/arbiter/pkg/utility/fixed"

type Option func(*Generator)

// WithCorrelation sets the pairwise correlation of the instrument shocks.
func WithCorrelation(rho float64) Option {
	return func(g *Generator) {
		g.correlation = rho
	}
}

func WithSpreadVolatility(volatility float64) Option {
	return func(g *Generator) {
		g.spreadVolatility = volatility
	}
}

// WithGapProbability makes an instrument skip a bar with probability p. The
// skipped bar repeats the previous quote marked stale.
func WithGapProbability(p float64) Option {
	return func(g *Generator) {
		g.gapProbability = p
	}
}

// WithLiquidityHoles removes one side of a fresh quote with probability p.
func WithLiquidityHoles(p float64) Option {
	return func(g *Generator) {
		g.holeProbability = p
	}
}

func WithVolume(volume fixed.Point) Option {
	return func(g *Generator) {
		g.volume = volume
	}
}
