package historical

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/peter-kozarec/arbiter/pkg/common"
	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

// BinaryQuote is the on-disk record of one quote. Files hold records in
// native little-endian layout, sorted by TimeStamp.
type BinaryQuote struct {
	TimeStamp int64
	Bid       float64
	Ask       float64
	BidSize   float64
	AskSize   float64
}

func (b BinaryQuote) ToQuote(symbol string, digits int) common.Quote {
	return common.Quote{
		Symbol:    symbol,
		Bid:       fixed.FromFloat64(b.Bid).Rescale(digits),
		Ask:       fixed.FromFloat64(b.Ask).Rescale(digits),
		BidSize:   fixed.FromFloat64(b.BidSize),
		AskSize:   fixed.FromFloat64(b.AskSize),
		TimeStamp: time.Unix(0, b.TimeStamp).UTC(),
	}
}

func FromQuote(quote common.Quote) BinaryQuote {
	bid, _ := quote.Bid.Float64()
	ask, _ := quote.Ask.Float64()
	bidSize, _ := quote.BidSize.Float64()
	askSize, _ := quote.AskSize.Float64()
	return BinaryQuote{
		TimeStamp: quote.TimeStamp.UnixNano(),
		Bid:       bid,
		Ask:       ask,
		BidSize:   bidSize,
		AskSize:   askSize,
	}
}

// WriteQuotes appends records in the layout Source reads.
func WriteQuotes(w io.Writer, quotes ...BinaryQuote) error {
	for _, quote := range quotes {
		if err := binary.Write(w, binary.LittleEndian, quote); err != nil {
			return fmt.Errorf("unable to write quote at %d: %w", quote.TimeStamp, err)
		}
	}
	return nil
}
