package ledger

import (
	"time"

	"github.com/peter-kozarec/arbiter/pkg/common"
	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

// View is a read-only copy of a ledger. It shares no memory with the ledger
// it was taken from.
type View struct {
	InitialCash   fixed.Point                `json:"initial_cash"`
	Cash          fixed.Point                `json:"cash"`
	Equity        fixed.Point                `json:"equity"`
	RealizedPnL   fixed.Point                `json:"realized_pnl"`
	UnrealizedPnL fixed.Point                `json:"unrealized_pnl"`
	Fees          fixed.Point                `json:"fees"`
	Positions     map[string]common.Position `json:"positions"`
	FillCount     int                        `json:"fill_count"`
	Bar           int64                      `json:"bar"`
	TimeStamp     time.Time                  `json:"ts"`
}

// Position returns the position for symbol, flat when unknown.
func (v View) Position(symbol string) common.Position {
	if position, ok := v.Positions[symbol]; ok {
		return position
	}
	return common.Position{Symbol: symbol}
}

// NetPnL is realized plus unrealized P&L after fees.
func (v View) NetPnL() fixed.Point {
	return v.RealizedPnL.Add(v.UnrealizedPnL).Sub(v.Fees)
}

func (l *Ledger) Snapshot() View {
	point := l.equityPoint()
	view := View{
		InitialCash:   l.initialCash,
		Cash:          point.Cash,
		Equity:        point.Value,
		RealizedPnL:   point.RealizedPnL,
		UnrealizedPnL: point.UnrealizedPnL,
		Fees:          point.Fees,
		Positions:     make(map[string]common.Position, len(l.positions)),
		FillCount:     len(l.fills),
		Bar:           l.bars - 1,
		TimeStamp:     l.now,
	}
	for symbol, position := range l.positions {
		view.Positions[symbol] = *position
	}
	return view
}
