package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/peter-kozarec/arbiter/pkg/datasource/historical"
)

const timeLayout = "2006-01-02 15:04:05.999999999Z07:00"

var errOutOfOrder = errors.New("quotes are not sorted by time")

// converter carries the last timestamp across files so a multi-file dump
// stays sorted as a whole.
type converter struct {
	last int64
}

func (c *converter) convert(r io.Reader, w io.Writer) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 5

	if _, err := reader.Read(); err != nil {
		return 0, fmt.Errorf("unable to read header: %w", err)
	}

	n := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}

		quote, err := parseRecord(record)
		if err != nil {
			return n, fmt.Errorf("line %d: %w", n+2, err)
		}
		if quote.TimeStamp < c.last {
			return n, fmt.Errorf("line %d: %w", n+2, errOutOfOrder)
		}
		c.last = quote.TimeStamp

		if err := historical.WriteQuotes(w, quote); err != nil {
			return n, err
		}
		n++
	}
}

func parseRecord(record []string) (historical.BinaryQuote, error) {
	ts, err := time.Parse(timeLayout, record[0])
	if err != nil {
		return historical.BinaryQuote{}, err
	}

	var values [4]float64
	for i := range values {
		if values[i], err = strconv.ParseFloat(record[i+1], 64); err != nil {
			return historical.BinaryQuote{}, err
		}
	}

	return historical.BinaryQuote{
		TimeStamp: ts.UnixNano(),
		Bid:       values[0],
		Ask:       values[1],
		BidSize:   values[2],
		AskSize:   values[3],
	}, nil
}
