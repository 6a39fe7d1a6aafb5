package ledger

import (
	"fmt"
	"time"

	"github.com/peter-kozarec/arbiter/pkg/common"
	"github.com/peter-kozarec/arbiter/pkg/exchange"
	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

type roundTrip struct {
	openTime time.Time
	gross    fixed.Point
	fees     fixed.Point
}

// Ledger is the authoritative position and P&L state of one session. It is
// not safe for concurrent use; a session owns exactly one ledger.
type Ledger struct {
	instruments exchange.InstrumentTable
	symbols     []string

	commission  CommissionHandler
	markMode    MarkMode
	constraints Constraints

	initialCash fixed.Point
	cash        fixed.Point
	realized    fixed.Point
	fees        fixed.Point

	positions  map[string]*common.Position
	roundTrips map[string]*roundTrip
	lastQuotes map[string]common.Quote

	sequence int64
	bars     int64
	now      time.Time

	fills  []common.Fill
	trades []common.Trade
	equity []common.Equity
}

func New(instruments exchange.InstrumentTable, symbols []string, startCash fixed.Point, options ...Option) (*Ledger, error) {
	l := &Ledger{
		instruments: instruments,
		symbols:     make([]string, 0, len(symbols)),
		constraints: Constraints{AllowShort: true},
		initialCash: startCash,
		cash:        startCash,
		positions:   make(map[string]*common.Position, len(symbols)),
		roundTrips:  make(map[string]*roundTrip, len(symbols)),
		lastQuotes:  make(map[string]common.Quote, len(symbols)),
	}

	for _, symbol := range symbols {
		if _, err := instruments.Get(symbol); err != nil {
			return nil, err
		}
		if _, ok := l.positions[symbol]; ok {
			return nil, fmt.Errorf("%s: %w", symbol, exchange.ErrDuplicateInstrument)
		}
		l.symbols = append(l.symbols, symbol)
		l.positions[symbol] = &common.Position{Symbol: symbol}
	}

	for _, option := range options {
		option(l)
	}

	return l, nil
}

// Check reports whether a fill of size on side would keep the ledger inside
// its constraints. It never mutates the ledger.
func (l *Ledger) Check(symbol string, side common.OrderSide, size fixed.Point) error {
	position, ok := l.positions[symbol]
	if !ok {
		return fmt.Errorf("%s is not registered in the ledger: %w", symbol, exchange.ErrConstraintViolation)
	}
	if !size.IsPositive() {
		return fmt.Errorf("fill size %s must be positive: %w", size, exchange.ErrConstraintViolation)
	}

	next := position.Quantity.Add(size.Mul(side.Sign()))
	if !l.constraints.AllowShort && next.IsNegative() {
		return fmt.Errorf("%s: resulting quantity %s is short: %w", symbol, next, exchange.ErrConstraintViolation)
	}
	if l.constraints.MaxPosition.IsPositive() && next.Abs().Gt(l.constraints.MaxPosition) {
		return fmt.Errorf("%s: resulting quantity %s exceeds limit %s: %w",
			symbol, next, l.constraints.MaxPosition, exchange.ErrConstraintViolation)
	}
	return nil
}

// ApplyFill books fill into the position, cash and P&L. The returned fill
// carries the assigned sequence, fee and realized P&L. A fill that would
// break a constraint is rejected before anything changes.
func (l *Ledger) ApplyFill(fill common.Fill) (common.Fill, error) {
	if err := l.Check(fill.Symbol, fill.Side, fill.Size); err != nil {
		return fill, err
	}
	instrument, err := l.instruments.Get(fill.Symbol)
	if err != nil {
		return fill, fmt.Errorf("%w: %w", exchange.ErrConstraintViolation, err)
	}

	position := l.positions[fill.Symbol]
	multiplier := instrument.Multiplier()
	signed := fill.SignedSize()
	current := position.Quantity

	fee := fixed.Zero
	if l.commission != nil {
		fee = l.commission(instrument, fill)
	}

	realized := fixed.Zero
	trip := l.roundTrips[fill.Symbol]

	if current.IsZero() || current.Sign() == signed.Sign() {
		next := current.Add(signed)
		position.AvgPrice = position.AvgPrice.Mul(current.Abs()).Add(fill.Price.Mul(fill.Size)).Div(next.Abs())
		position.Quantity = next
		if current.IsZero() {
			position.OpenTime = fill.TimeStamp
			position.OpenBar = fill.Bar
			trip = &roundTrip{openTime: fill.TimeStamp}
			l.roundTrips[fill.Symbol] = trip
		}
		trip.fees = trip.fees.Add(fee)
	} else {
		closed := fixed.Min(current.Abs(), fill.Size)
		sign := fixed.One
		if current.IsNegative() {
			sign = fixed.NegOne
		}
		realized = fill.Price.Sub(position.AvgPrice).Mul(closed).Mul(sign).Mul(multiplier)

		next := current.Add(signed)
		trip.gross = trip.gross.Add(realized)
		trip.fees = trip.fees.Add(fee)

		switch {
		case next.IsZero():
			position.AvgPrice = fixed.Zero
			l.closeRoundTrip(fill.Symbol, fill.TimeStamp)
		case next.Sign() != current.Sign():
			position.AvgPrice = fill.Price
			position.OpenTime = fill.TimeStamp
			position.OpenBar = fill.Bar
			l.closeRoundTrip(fill.Symbol, fill.TimeStamp)
			l.roundTrips[fill.Symbol] = &roundTrip{openTime: fill.TimeStamp}
		}
		position.Quantity = next
	}

	position.RealizedPnL = position.RealizedPnL.Add(realized)
	position.Fees = position.Fees.Add(fee)
	position.TimeStamp = fill.TimeStamp

	l.cash = l.cash.Sub(signed.Mul(fill.Price).Mul(multiplier)).Sub(fee)
	l.realized = l.realized.Add(realized)
	l.fees = l.fees.Add(fee)
	l.now = fill.TimeStamp

	l.sequence++
	fill.Sequence = l.sequence
	fill.Fee = fee
	fill.RealizedPnL = realized
	l.fills = append(l.fills, fill)

	l.mark(position, multiplier)

	return fill, nil
}

// MarkToMarket revalues every position from the snapshot and appends one
// point to the equity curve.
func (l *Ledger) MarkToMarket(snapshot common.Snapshot) common.Equity {
	for _, symbol := range l.symbols {
		if quote, ok := snapshot.Quote(symbol); ok {
			l.lastQuotes[symbol] = quote
		}
		instrument, _ := l.instruments.Get(symbol)
		l.mark(l.positions[symbol], instrument.Multiplier())
	}

	l.now = snapshot.TimeStamp
	point := l.equityPoint()
	point.Bar = l.bars
	l.bars++
	l.equity = append(l.equity, point)
	return point
}

func (l *Ledger) Position(symbol string) (common.Position, bool) {
	position, ok := l.positions[symbol]
	if !ok {
		return common.Position{}, false
	}
	return *position, true
}

// LastQuote returns the most recent quote seen for symbol.
func (l *Ledger) LastQuote(symbol string) (common.Quote, bool) {
	quote, ok := l.lastQuotes[symbol]
	return quote, ok
}

func (l *Ledger) Symbols() []string {
	symbols := make([]string, len(l.symbols))
	copy(symbols, l.symbols)
	return symbols
}

func (l *Ledger) Fills() []common.Fill {
	fills := make([]common.Fill, len(l.fills))
	copy(fills, l.fills)
	return fills
}

func (l *Ledger) Trades() []common.Trade {
	trades := make([]common.Trade, len(l.trades))
	copy(trades, l.trades)
	return trades
}

func (l *Ledger) EquityCurve() []common.Equity {
	equity := make([]common.Equity, len(l.equity))
	copy(equity, l.equity)
	return equity
}

func (l *Ledger) mark(position *common.Position, multiplier fixed.Point) {
	quote, ok := l.lastQuotes[position.Symbol]
	if !ok {
		position.UnrealizedPnL = fixed.Zero
		return
	}

	markPrice := quote.Mid()
	if l.markMode == MarkClosingSide {
		switch {
		case position.IsLong():
			markPrice = quote.Bid
		case position.IsShort():
			markPrice = quote.Ask
		}
	}
	if markPrice.IsPositive() {
		position.MarkPrice = markPrice
	}

	if position.IsFlat() || !position.MarkPrice.IsPositive() {
		position.UnrealizedPnL = fixed.Zero
		return
	}
	position.UnrealizedPnL = position.MarkPrice.Sub(position.AvgPrice).Mul(position.Quantity).Mul(multiplier)
}

func (l *Ledger) equityPoint() common.Equity {
	value := l.cash
	unrealized := fixed.Zero
	for _, symbol := range l.symbols {
		position := l.positions[symbol]
		if position.IsFlat() {
			continue
		}
		instrument, _ := l.instruments.Get(symbol)
		markPrice := position.MarkPrice
		if !markPrice.IsPositive() {
			markPrice = position.AvgPrice
		}
		value = value.Add(position.Quantity.Mul(markPrice).Mul(instrument.Multiplier()))
		unrealized = unrealized.Add(position.UnrealizedPnL)
	}

	return common.Equity{
		Cash:          l.cash,
		Value:         value,
		RealizedPnL:   l.realized,
		UnrealizedPnL: unrealized,
		Fees:          l.fees,
		TimeStamp:     l.now,
	}
}

func (l *Ledger) closeRoundTrip(symbol string, closeTime time.Time) {
	trip, ok := l.roundTrips[symbol]
	if !ok {
		return
	}
	l.trades = append(l.trades, common.Trade{
		Symbol:      symbol,
		OpenTime:    trip.openTime,
		CloseTime:   closeTime,
		GrossProfit: trip.gross,
		Fees:        trip.fees,
		NetProfit:   trip.gross.Sub(trip.fees),
	})
	delete(l.roundTrips, symbol)
}
