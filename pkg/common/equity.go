package common

import (
	"time"

	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

// Equity is one point of a session's account time series.
type Equity struct {
	Cash          fixed.Point `json:"cash"`
	Value         fixed.Point `json:"value"`
	RealizedPnL   fixed.Point `json:"realized_pnl"`
	UnrealizedPnL fixed.Point `json:"unrealized_pnl"`
	Fees          fixed.Point `json:"fees"`

	Bar       int64     `json:"bar"`
	TimeStamp time.Time `json:"ts"`
}
