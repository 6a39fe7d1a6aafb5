package ledger

import (
	"fmt"
	"strings"

	"github.com/peter-kozarec/arbiter/pkg/common"
	"github.com/peter-kozarec/arbiter/pkg/exchange"
	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

type Option func(*Ledger)
type CommissionHandler func(exchange.InstrumentInfo, common.Fill) fixed.Point

type MarkMode int

const (
	// MarkClosingSide marks longs at the bid and shorts at the ask.
	MarkClosingSide MarkMode = iota
	MarkMid
)

func (m MarkMode) String() string {
	if m == MarkMid {
		return "mid"
	}
	return "closing-side"
}

func ParseMarkMode(s string) (MarkMode, error) {
	switch strings.ToLower(s) {
	case "", "closing-side":
		return MarkClosingSide, nil
	case "mid":
		return MarkMid, nil
	default:
		return 0, fmt.Errorf("unknown mark mode %q", s)
	}
}

type Constraints struct {
	// AllowShort permits negative quantities.
	AllowShort bool
	// MaxPosition caps the absolute quantity per instrument. Zero disables it.
	MaxPosition fixed.Point
}

// RateCommission charges rate times the notional of every fill.
func RateCommission(rate fixed.Point) CommissionHandler {
	return func(instrument exchange.InstrumentInfo, fill common.Fill) fixed.Point {
		return fill.Price.Mul(fill.Size).Mul(instrument.Multiplier()).Mul(rate)
	}
}

func WithCommissionHandler(handler CommissionHandler) Option {
	return func(l *Ledger) {
		l.commission = handler
	}
}

func WithCommissionRate(rate fixed.Point) Option {
	return WithCommissionHandler(RateCommission(rate))
}

func WithMarkMode(mode MarkMode) Option {
	return func(l *Ledger) {
		l.markMode = mode
	}
}

func WithConstraints(constraints Constraints) Option {
	return func(l *Ledger) {
		l.constraints = constraints
	}
}
