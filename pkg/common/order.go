package common

import (
	"time"

	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

type OrderId = int64
type OrderCommand int
type OrderKind int
type OrderSide int
type OrderStatus string
type TimeInForce int

const (
	OrderCommandSubmit OrderCommand = iota
	OrderCommandCancel
)

const (
	OrderKindLimitBuy OrderKind = iota
	OrderKindLimitSell
	OrderKindMarketBuy
	OrderKindMarketSell
	OrderKindTakeProfitPrice
	OrderKindStopLossPrice
	OrderKindTakeProfitTime
	OrderKindStopLossTime
)

const (
	OrderSideNone OrderSide = iota
	OrderSideBuy
	OrderSideSell
)

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusResting   OrderStatus = "resting"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusExpired   OrderStatus = "expired"
)

const (
	TimeInForceGoodTillCancel TimeInForce = iota
	TimeInForceDay
	TimeInForceGoodTillDate
)

func (k OrderKind) String() string {
	switch k {
	case OrderKindLimitBuy:
		return "limit-buy"
	case OrderKindLimitSell:
		return "limit-sell"
	case OrderKindMarketBuy:
		return "market-buy"
	case OrderKindMarketSell:
		return "market-sell"
	case OrderKindTakeProfitPrice:
		return "take-profit-price"
	case OrderKindStopLossPrice:
		return "stop-loss-price"
	case OrderKindTakeProfitTime:
		return "take-profit-time"
	case OrderKindStopLossTime:
		return "stop-loss-time"
	default:
		return "unknown"
	}
}

func (k OrderKind) IsValid() bool {
	return k >= OrderKindLimitBuy && k <= OrderKindStopLossTime
}

func (k OrderKind) IsMarket() bool {
	return k == OrderKindMarketBuy || k == OrderKindMarketSell
}

func (k OrderKind) IsLimit() bool {
	return k == OrderKindLimitBuy || k == OrderKindLimitSell
}

// IsProtective reports whether the kind closes an existing position rather
// than opening one.
func (k OrderKind) IsProtective() bool {
	return k >= OrderKindTakeProfitPrice && k <= OrderKindStopLossTime
}

func (k OrderKind) IsPriceTriggered() bool {
	return k == OrderKindTakeProfitPrice || k == OrderKindStopLossPrice
}

func (k OrderKind) IsTimeTriggered() bool {
	return k == OrderKindTakeProfitTime || k == OrderKindStopLossTime
}

// ImpliedSide returns the side carried by entry kinds. Protective kinds take
// their side from the position they protect.
func (k OrderKind) ImpliedSide() OrderSide {
	switch k {
	case OrderKindLimitBuy, OrderKindMarketBuy:
		return OrderSideBuy
	case OrderKindLimitSell, OrderKindMarketSell:
		return OrderSideSell
	default:
		return OrderSideNone
	}
}

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "buy"
	case OrderSideSell:
		return "sell"
	default:
		return "none"
	}
}

func (s OrderSide) Opposite() OrderSide {
	switch s {
	case OrderSideBuy:
		return OrderSideSell
	case OrderSideSell:
		return OrderSideBuy
	default:
		return OrderSideNone
	}
}

// Sign is +1 for buys and -1 for sells.
func (s OrderSide) Sign() fixed.Point {
	if s == OrderSideSell {
		return fixed.NegOne
	}
	return fixed.One
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled || s == OrderStatusExpired
}

// CanTransitionTo enforces pending -> resting -> {filled, cancelled, expired}.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case "":
		return next == OrderStatusPending
	case OrderStatusPending:
		return next == OrderStatusResting
	case OrderStatusResting:
		return next.IsTerminal()
	default:
		return false
	}
}

type OrderStatusChange struct {
	Status    OrderStatus `json:"status"`
	Reason    string      `json:"reason,omitempty"`
	Bar       int64       `json:"bar"`
	TimeStamp time.Time   `json:"ts"`
}

type Order struct {
	Command OrderCommand `json:"command"`
	Id      OrderId      `json:"id"`
	Kind    OrderKind    `json:"kind"`
	Side    OrderSide    `json:"side"`
	Status  OrderStatus  `json:"status"`

	// Price is the limit price for limit kinds and the trigger price for
	// price-triggered kinds.
	Price fixed.Point `json:"price"`
	Size  fixed.Point `json:"size"`

	// TriggerTime arms take-profit-time orders.
	TriggerTime time.Time `json:"trigger_time,omitempty"`
	// HoldBars and HoldFor bound the holding period of stop-loss-time
	// orders; whichever is set and reached first triggers.
	HoldBars int64         `json:"hold_bars,omitempty"`
	HoldFor  time.Duration `json:"hold_for,omitempty"`

	TimeInForce TimeInForce `json:"time_in_force"`
	ExpireTime  time.Time   `json:"expire_time,omitempty"`

	// Attempts counts snapshots on which a market-equivalent fill found no
	// liquidity.
	Attempts int `json:"attempts,omitempty"`

	Comment   string              `json:"comment,omitempty"`
	Symbol    string              `json:"symbol,omitempty"`
	TimeStamp time.Time           `json:"ts"`
	History   []OrderStatusChange `json:"history,omitempty"`
}

// Clone returns a copy that shares no mutable state with o.
func (o Order) Clone() Order {
	if o.History != nil {
		history := make([]OrderStatusChange, len(o.History))
		copy(history, o.History)
		o.History = history
	}
	return o
}

func NewCancel(id OrderId) Order {
	return Order{
		Command: OrderCommandCancel,
		Id:      id,
	}
}

// OrderRejected reports a submission or fill attempt that did not go
// through. Transient rejections are retried on a later snapshot.
type OrderRejected struct {
	Order     Order     `json:"order"`
	Reason    string    `json:"reason"`
	Transient bool      `json:"transient,omitempty"`
	Bar       int64     `json:"bar"`
	TimeStamp time.Time `json:"ts"`
}
