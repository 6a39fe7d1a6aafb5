package datasource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/arbiter/pkg/common"
	"github.com/peter-kozarec/arbiter/pkg/exchange"
)

type lane struct {
	symbol    string
	source    QuoteSource
	head      *common.Quote
	last      common.Quote
	seen      bool
	exhausted bool
}

// Synchronizer aligns per-instrument quote streams into snapshots. With a
// positive period it emits one snapshot per bar, stamped at the bar close;
// otherwise every distinct quote timestamp becomes a snapshot. Instruments
// without a fresh quote carry their previous one, marked stale. Snapshots
// start once every instrument has quoted at least once.
type Synchronizer struct {
	logger *zap.Logger
	period time.Duration
	lanes  []*lane

	primed   bool
	boundary time.Time
	emitted  int64
	warmup   int64
}

func NewSynchronizer(logger *zap.Logger, period time.Duration, sources map[string]QuoteSource) *Synchronizer {
	s := &Synchronizer{
		logger: logger,
		period: period,
		lanes:  make([]*lane, 0, len(sources)),
	}
	for symbol, source := range sources {
		s.lanes = append(s.lanes, &lane{symbol: symbol, source: source})
	}
	sort.Slice(s.lanes, func(i, j int) bool { return s.lanes[i].symbol < s.lanes[j].symbol })
	return s
}

func (s *Synchronizer) Next(ctx context.Context) (common.Snapshot, error) {
	if !s.primed {
		if err := s.prime(ctx); err != nil {
			return common.Snapshot{}, err
		}
	}

	for {
		if s.drained() {
			s.logger.Debug("synchronizer drained",
				zap.Int64("emitted", s.emitted),
				zap.Int64("warmup_bars", s.warmup))
			return common.Snapshot{}, ErrEof
		}

		cutoff, inclusive := s.cutoff()
		fresh, err := s.advance(ctx, cutoff, inclusive)
		if err != nil {
			return common.Snapshot{}, err
		}

		ts := cutoff
		if s.period > 0 {
			s.boundary = s.boundary.Add(s.period)
		}
		if !fresh {
			continue
		}
		if !s.complete() {
			s.warmup++
			continue
		}

		s.emitted++
		return s.snapshot(ts), nil
	}
}

func (s *Synchronizer) prime(ctx context.Context) error {
	s.primed = true
	for _, l := range s.lanes {
		if err := s.pull(ctx, l); err != nil {
			return err
		}
	}
	if s.period > 0 {
		if earliest, ok := s.earliest(); ok {
			s.boundary = earliest.Truncate(s.period).Add(s.period)
		}
	}
	return nil
}

// cutoff returns the time up to which quotes belong to the next snapshot.
func (s *Synchronizer) cutoff() (time.Time, bool) {
	if s.period > 0 {
		return s.boundary, false
	}
	earliest, _ := s.earliest()
	return earliest, true
}

// advance consumes every head quote before the cutoff and reports whether
// any instrument got a fresh quote.
func (s *Synchronizer) advance(ctx context.Context, cutoff time.Time, inclusive bool) (bool, error) {
	fresh := false
	for _, l := range s.lanes {
		l.last.Stale = true
		for l.head != nil && (l.head.TimeStamp.Before(cutoff) || (inclusive && l.head.TimeStamp.Equal(cutoff))) {
			l.last = *l.head
			l.last.Stale = false
			l.seen = true
			fresh = true
			if err := s.pull(ctx, l); err != nil {
				return false, err
			}
		}
	}
	return fresh, nil
}

func (s *Synchronizer) pull(ctx context.Context, l *lane) error {
	if l.exhausted {
		l.head = nil
		return nil
	}

	quote, err := l.source.Next(ctx)
	if errors.Is(err, ErrEof) {
		l.exhausted = true
		l.head = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("unable to read quote for %s: %w", l.symbol, err)
	}

	if l.head != nil && quote.TimeStamp.Before(l.head.TimeStamp) {
		return fmt.Errorf("%s quote at %s precedes %s: %w",
			l.symbol, quote.TimeStamp.Format(time.RFC3339Nano), l.head.TimeStamp.Format(time.RFC3339Nano), exchange.ErrDataSync)
	}

	quote.Symbol = l.symbol
	l.head = &quote
	return nil
}

func (s *Synchronizer) earliest() (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, l := range s.lanes {
		if l.head == nil {
			continue
		}
		if !found || l.head.TimeStamp.Before(earliest) {
			earliest = l.head.TimeStamp
			found = true
		}
	}
	return earliest, found
}

func (s *Synchronizer) drained() bool {
	for _, l := range s.lanes {
		if l.head != nil {
			return false
		}
	}
	return true
}

func (s *Synchronizer) complete() bool {
	for _, l := range s.lanes {
		if !l.seen {
			return false
		}
	}
	return len(s.lanes) > 0
}

func (s *Synchronizer) snapshot(ts time.Time) common.Snapshot {
	snapshot := common.Snapshot{
		TimeStamp: ts,
		Quotes:    make(map[string]common.Quote, len(s.lanes)),
	}
	for _, l := range s.lanes {
		snapshot.Quotes[l.symbol] = l.last
	}
	return snapshot
}
