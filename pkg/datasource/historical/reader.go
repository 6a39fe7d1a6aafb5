package historical

import (
	"context"
	"fmt"
	"time"

	"github.com/peter-kozarec/arbiter/pkg/common"
	"github.com/peter-kozarec/arbiter/pkg/datasource"
)

const invalidIndex = -1

// QuoteReader streams the quotes of one instrument between from and to.
type QuoteReader struct {
	source *Source[BinaryQuote]

	symbol string
	digits int
	from   int64
	to     int64
	idx    int64
}

func NewQuoteReader(source *Source[BinaryQuote], symbol string, digits int, from, to time.Time) *QuoteReader {
	return &QuoteReader{
		source: source,
		symbol: symbol,
		digits: digits,
		from:   from.UnixNano(),
		to:     to.UnixNano(),
		idx:    invalidIndex,
	}
}

func (r *QuoteReader) Next(ctx context.Context) (common.Quote, error) {
	if err := ctx.Err(); err != nil {
		return common.Quote{}, err
	}

	if r.idx == invalidIndex {
		if err := r.lookupStartIndex(); err != nil {
			return common.Quote{}, err
		}
	}

	var record BinaryQuote
	if err := r.source.Read(r.idx, &record); err != nil {
		return common.Quote{}, err
	}
	r.idx++

	if record.TimeStamp < r.from {
		return common.Quote{}, fmt.Errorf("%s: record %d is before the requested range", r.symbol, r.idx-1)
	}
	if record.TimeStamp > r.to {
		return common.Quote{}, datasource.ErrEof
	}

	return record.ToQuote(r.symbol, r.digits), nil
}

func (r *QuoteReader) lookupStartIndex() error {
	entryCount, err := r.source.EntryCount()
	if err != nil {
		return fmt.Errorf("error getting entry count: %w", err)
	}
	if entryCount == 0 {
		return datasource.ErrEof
	}

	var entry BinaryQuote

	low := int64(0)
	high := entryCount - 1

	for low <= high {
		mid := (low + high) / 2

		if err := r.source.Read(mid, &entry); err != nil {
			return fmt.Errorf("error reading entry at index %d: %w", mid, err)
		}

		if entry.TimeStamp < r.from {
			low = mid + 1
		} else {
			high = mid - 1
		}
	}

	if low >= entryCount {
		return datasource.ErrEof
	}

	r.idx = low
	return nil
}
