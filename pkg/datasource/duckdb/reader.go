package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/peter-kozarec/arbiter/pkg/common"
	"github.com/peter-kozarec/arbiter/pkg/datasource"
	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

const DefaultTable = "quotes"

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Reader loads quotes from a table with the columns
// (symbol, ts, bid, ask, bid_size, ask_size).
type Reader struct {
	dataSourceName string
	table          string
	db             *sql.DB
}

func NewReader(dataSourceName, table string) (*Reader, error) {
	if table == "" {
		table = DefaultTable
	}
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Reader{
		dataSourceName: dataSourceName,
		table:          table,
	}, nil
}

func (r *Reader) Connect() error {
	db, err := sql.Open("duckdb", r.dataSourceName)
	if err != nil {
		return fmt.Errorf("unable to open duckdb %q: %w", r.dataSourceName, err)
	}
	r.db = db
	return nil
}

func (r *Reader) Close() {
	if r.db != nil {
		_ = r.db.Close()
	}
}

// LoadQuotes returns the quotes of symbol with from <= ts <= to in time order.
func (r *Reader) LoadQuotes(ctx context.Context, symbol string, digits int, from, to time.Time) ([]common.Quote, error) {
	query := fmt.Sprintf(`SELECT ts, bid, ask, bid_size, ask_size FROM %s WHERE symbol = ? AND ts BETWEEN ? AND ? ORDER BY ts`, r.table)

	rows, err := r.db.QueryContext(ctx, query, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("error preparing query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var quotes []common.Quote
	for rows.Next() {
		var (
			timeStamp                  time.Time
			bid, ask, bidSize, askSize float64
		)
		if err := rows.Scan(&timeStamp, &bid, &ask, &bidSize, &askSize); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		quotes = append(quotes, common.Quote{
			Symbol:    symbol,
			Bid:       fixed.FromFloat64(bid).Rescale(digits),
			Ask:       fixed.FromFloat64(ask).Rescale(digits),
			BidSize:   fixed.FromFloat64(bidSize),
			AskSize:   fixed.FromFloat64(askSize),
			TimeStamp: timeStamp.UTC(),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning rows: %w", err)
	}

	return quotes, nil
}

// Source loads symbol eagerly and serves it as a quote stream.
func (r *Reader) Source(ctx context.Context, symbol string, digits int, from, to time.Time) (datasource.QuoteSource, error) {
	quotes, err := r.LoadQuotes(ctx, symbol, digits, from, to)
	if err != nil {
		return nil, fmt.Errorf("unable to load %s: %w", symbol, err)
	}
	return datasource.NewSliceQuoteSource(quotes...), nil
}
