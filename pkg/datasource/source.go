package datasource

import (
	"context"
	"errors"

	"github.com/peter-kozarec/arbiter/pkg/common"
)

var ErrEof = errors.New("EOF")

// SnapshotSource yields synchronized snapshots in non-decreasing time order
// and ErrEof once exhausted.
type SnapshotSource interface {
	Next(ctx context.Context) (common.Snapshot, error)
}

// QuoteSource yields the quotes of a single instrument in time order.
type QuoteSource interface {
	Next(ctx context.Context) (common.Quote, error)
}

type SliceSource struct {
	snapshots []common.Snapshot
	idx       int
}

func NewSliceSource(snapshots ...common.Snapshot) *SliceSource {
	return &SliceSource{snapshots: snapshots}
}

func (s *SliceSource) Next(ctx context.Context) (common.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return common.Snapshot{}, err
	}
	if s.idx >= len(s.snapshots) {
		return common.Snapshot{}, ErrEof
	}
	snapshot := s.snapshots[s.idx]
	s.idx++
	return snapshot, nil
}

type SliceQuoteSource struct {
	quotes []common.Quote
	idx    int
}

func NewSliceQuoteSource(quotes ...common.Quote) *SliceQuoteSource {
	return &SliceQuoteSource{quotes: quotes}
}

func (s *SliceQuoteSource) Next(ctx context.Context) (common.Quote, error) {
	if err := ctx.Err(); err != nil {
		return common.Quote{}, err
	}
	if s.idx >= len(s.quotes) {
		return common.Quote{}, ErrEof
	}
	quote := s.quotes[s.idx]
	s.idx++
	return quote, nil
}

// Collect drains source into memory. A fixed stream can then be replayed to
// any number of sessions.
func Collect(ctx context.Context, source SnapshotSource) ([]common.Snapshot, error) {
	var snapshots []common.Snapshot
	for {
		snapshot, err := source.Next(ctx)
		if errors.Is(err, ErrEof) {
			return snapshots, nil
		}
		if err != nil {
			return snapshots, err
		}
		snapshots = append(snapshots, snapshot)
	}
}
