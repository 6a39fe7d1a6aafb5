package common

import (
	"time"

	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

type Position struct {
	// Quantity is signed: positive is long, negative is short.
	Quantity      fixed.Point `json:"quantity"`
	AvgPrice      fixed.Point `json:"avg_price"`
	MarkPrice     fixed.Point `json:"mark_price"`
	RealizedPnL   fixed.Point `json:"realized_pnl"`
	UnrealizedPnL fixed.Point `json:"unrealized_pnl"`
	Fees          fixed.Point `json:"fees"`

	OpenTime time.Time `json:"open_time,omitempty"`
	OpenBar  int64     `json:"open_bar"`

	Symbol    string    `json:"symbol,omitempty"`
	TimeStamp time.Time `json:"ts"`
}

func (p Position) IsFlat() bool  { return p.Quantity.IsZero() }
func (p Position) IsLong() bool  { return p.Quantity.IsPositive() }
func (p Position) IsShort() bool { return p.Quantity.IsNegative() }

// ClosingSide is the order side that reduces the position.
func (p Position) ClosingSide() OrderSide {
	switch {
	case p.IsLong():
		return OrderSideSell
	case p.IsShort():
		return OrderSideBuy
	default:
		return OrderSideNone
	}
}

// Trade is one round trip: from flat to flat, or up to a reversal.
type Trade struct {
	Symbol      string      `json:"symbol"`
	OpenTime    time.Time   `json:"open_time"`
	CloseTime   time.Time   `json:"close_time"`
	GrossProfit fixed.Point `json:"gross_profit"`
	Fees        fixed.Point `json:"fees"`
	NetProfit   fixed.Point `json:"net_profit"`
}
