package common

import (
	"time"

	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

type Fill struct {
	Sequence int64       `json:"seq"`
	OrderId  OrderId     `json:"order_id"`
	Kind     OrderKind   `json:"kind"`
	Side     OrderSide   `json:"side"`
	Price    fixed.Point `json:"price"`
	Size     fixed.Point `json:"size"`
	Fee      fixed.Point `json:"fee"`

	// RealizedPnL is the gross profit booked by this fill, fees excluded.
	RealizedPnL fixed.Point `json:"realized_pnl"`

	Symbol    string    `json:"symbol,omitempty"`
	Bar       int64     `json:"bar"`
	TimeStamp time.Time `json:"ts"`
}

// SignedSize is positive for buys and negative for sells.
func (f Fill) SignedSize() fixed.Point {
	return f.Size.Mul(f.Side.Sign())
}
