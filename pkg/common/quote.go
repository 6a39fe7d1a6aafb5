package common

import (
	"time"

	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

// Quote is the top of book for one instrument. A side with a non-positive
// price is absent.
type Quote struct {
	Bid     fixed.Point `json:"bid"`
	Ask     fixed.Point `json:"ask"`
	BidSize fixed.Point `json:"bid_size"`
	AskSize fixed.Point `json:"ask_size"`

	// Stale marks a value carried over from an earlier bar.
	Stale bool `json:"stale,omitempty"`

	Symbol    string    `json:"symbol,omitempty"`
	TimeStamp time.Time `json:"ts"`
}

func (q Quote) HasBid() bool { return q.Bid.IsPositive() }
func (q Quote) HasAsk() bool { return q.Ask.IsPositive() }

// Mid is the midpoint of a two-sided quote. A one-sided quote yields the
// side that is present and an empty quote yields zero.
func (q Quote) Mid() fixed.Point {
	switch {
	case q.HasBid() && q.HasAsk():
		return q.Bid.Add(q.Ask).DivInt(2)
	case q.HasBid():
		return q.Bid
	case q.HasAsk():
		return q.Ask
	default:
		return fixed.Zero
	}
}

// Snapshot is one synchronized cross-instrument observation.
type Snapshot struct {
	TimeStamp time.Time        `json:"ts"`
	Quotes    map[string]Quote `json:"quotes"`
}

func NewSnapshot(ts time.Time, quotes ...Quote) Snapshot {
	snapshot := Snapshot{
		TimeStamp: ts,
		Quotes:    make(map[string]Quote, len(quotes)),
	}
	for _, quote := range quotes {
		snapshot.Quotes[quote.Symbol] = quote
	}
	return snapshot
}

func (s Snapshot) Quote(symbol string) (Quote, bool) {
	q, ok := s.Quotes[symbol]
	return q, ok
}
