package synthetic

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/arbiter/pkg/common"
	"github.com/peter-kozarec/arbiter/pkg/datasource"
	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

const secondsPerYear = 365.25 * 24 * 3600

var pointFive = fixed.FromInt64(5, 1)

// Instrument describes the random walk of one symbol. Mu and Sigma are
// annualized drift and volatility.
type Instrument struct {
	Symbol     string
	StartPrice fixed.Point
	Spread     fixed.Point
	Mu         float64
	Sigma      float64
	Digits     int
}

type walk struct {
	Instrument

	deltaLogPre1 fixed.Point
	deltaLogPre2 fixed.Point

	minSpread fixed.Point
	maxSpread fixed.Point

	lastPrice     fixed.Point
	currentSpread fixed.Point
	last          common.Quote
}

// Generator produces snapshots of correlated geometric Brownian motions, one
// per bar. The same seed always yields the same stream.
type Generator struct {
	logger *zap.Logger
	rng    *rand.Rand

	walks  []*walk
	period time.Duration
	steps  int64
	t      int64
	now    time.Time

	correlation      float64
	spreadVolatility float64
	gapProbability   float64
	holeProbability  float64
	volume           fixed.Point
}

func NewGenerator(logger *zap.Logger, seed int64, start time.Time, period time.Duration, steps int64, instruments []Instrument, options ...Option) (*Generator, error) {
	if period <= 0 {
		return nil, fmt.Errorf("bar period must be positive, got %s", period)
	}
	if len(instruments) == 0 {
		return nil, fmt.Errorf("no instruments to generate")
	}

	g := &Generator{
		logger:           logger,
		rng:              rand.New(rand.NewSource(seed)), // #nosec G404
		period:           period,
		steps:            steps,
		now:              start,
		spreadVolatility: 0.1,
		volume:           fixed.One,
	}
	for _, option := range options {
		option(g)
	}
	if g.correlation < -1 || g.correlation > 1 {
		return nil, fmt.Errorf("correlation %v out of range [-1, 1]", g.correlation)
	}

	deltaT := fixed.FromFloat64(period.Seconds() / secondsPerYear)

	seen := make(map[string]struct{}, len(instruments))
	for _, instrument := range instruments {
		if _, ok := seen[instrument.Symbol]; ok {
			return nil, fmt.Errorf("duplicate instrument %q", instrument.Symbol)
		}
		seen[instrument.Symbol] = struct{}{}
		if !instrument.StartPrice.IsPositive() || !instrument.Spread.IsPositive() {
			return nil, fmt.Errorf("instrument %q needs a positive start price and spread", instrument.Symbol)
		}

		mu := fixed.FromFloat64(instrument.Mu)
		sigma := fixed.FromFloat64(instrument.Sigma)
		g.walks = append(g.walks, &walk{
			Instrument:    instrument,
			deltaLogPre1:  mu.Sub(sigma.Mul(sigma).Mul(pointFive)).Mul(deltaT),
			deltaLogPre2:  sigma.Mul(deltaT.Sqrt()),
			minSpread:     instrument.Spread.Mul(pointFive),
			maxSpread:     instrument.Spread.Mul(fixed.FromInt64(15, 1)),
			lastPrice:     instrument.StartPrice,
			currentSpread: instrument.Spread,
		})
	}

	logger.Debug("synthetic generator configured",
		zap.Int64("seed", seed),
		zap.Int("instruments", len(g.walks)),
		zap.Duration("period", period),
		zap.Int64("steps", steps),
		zap.Float64("correlation", g.correlation))

	return g, nil
}

func (g *Generator) Next(ctx context.Context) (common.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return common.Snapshot{}, err
	}
	if g.t >= g.steps {
		return common.Snapshot{}, datasource.ErrEof
	}

	g.now = g.now.Add(g.period)
	market := g.rng.NormFloat64()
	idiosyncratic := math.Sqrt(1 - g.correlation*g.correlation)

	snapshot := common.NewSnapshot(g.now)
	for _, w := range g.walks {
		z := g.correlation*market + idiosyncratic*g.rng.NormFloat64()
		deltaLog := w.deltaLogPre1.Add(w.deltaLogPre2.Mul(fixed.FromFloat64(z)))
		w.lastPrice = w.lastPrice.Mul(deltaLog.Exp())
		g.updateSpread(w)

		if g.t > 0 && g.rng.Float64() < g.gapProbability {
			stale := w.last
			stale.Stale = true
			snapshot.Quotes[w.Symbol] = stale
			continue
		}

		quote := g.quote(w)
		w.last = quote
		snapshot.Quotes[w.Symbol] = quote
	}

	g.t++
	return snapshot, nil
}

func (g *Generator) quote(w *walk) common.Quote {
	half := w.currentSpread.DivInt(2)
	quote := common.Quote{
		Symbol:    w.Symbol,
		Bid:       w.lastPrice.Sub(half),
		Ask:       w.lastPrice.Add(half),
		BidSize:   g.volume,
		AskSize:   g.volume,
		TimeStamp: g.now,
	}
	g.addNoise(&quote, w.currentSpread)

	quote.Bid = quote.Bid.Rescale(w.Digits)
	quote.Ask = quote.Ask.Rescale(w.Digits)
	if quote.Bid.Gte(quote.Ask) {
		quote.Ask = quote.Bid.Add(fixed.FromInt(1, w.Digits))
	}

	if g.holeProbability > 0 && g.rng.Float64() < g.holeProbability {
		if g.rng.Intn(2) == 0 {
			quote.Bid = fixed.Zero
		} else {
			quote.Ask = fixed.Zero
		}
	}
	return quote
}

func (g *Generator) updateSpread(w *walk) {
	if g.spreadVolatility <= 0 {
		return
	}

	spreadChange := g.rng.NormFloat64() * g.spreadVolatility
	newSpread := w.currentSpread.Mul(fixed.FromFloat64(1.0 + spreadChange))

	if newSpread.Lt(w.minSpread) {
		w.currentSpread = w.minSpread
	} else if newSpread.Gt(w.maxSpread) {
		w.currentSpread = w.maxSpread
	} else {
		w.currentSpread = newSpread
	}
}

func (g *Generator) addNoise(quote *common.Quote, spread fixed.Point) {
	tickSize := spread.DivInt64(10)

	askNoise := fixed.FromFloat64(g.rng.NormFloat64() * 0.1).Mul(tickSize)
	bidNoise := fixed.FromFloat64(g.rng.NormFloat64() * 0.1).Mul(tickSize)

	quote.Ask = quote.Ask.Add(askNoise)
	quote.Bid = quote.Bid.Add(bidNoise)

	if quote.Bid.Gte(quote.Ask) {
		mid := quote.Bid.Add(quote.Ask).DivInt64(2)
		quote.Bid = mid.Sub(tickSize)
		quote.Ask = mid.Add(tickSize)
	}
}
