package sandbox

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/peter-kozarec/arbiter/pkg/common"
	"github.com/peter-kozarec/arbiter/pkg/exchange"
)

var errIllegalTransition = errors.New("illegal order status transition")

// orderBook keeps every order a session has accepted. Terminal orders stay
// in orders as audit records but leave the resting set.
type orderBook struct {
	nextId  common.OrderId
	orders  map[common.OrderId]*common.Order
	pending []*common.Order
	resting []*common.Order
}

func newOrderBook() *orderBook {
	return &orderBook{
		orders: make(map[common.OrderId]*common.Order),
	}
}

func (b *orderBook) add(order common.Order) *common.Order {
	b.nextId++
	o := order.Clone()
	o.Id = b.nextId
	o.Status = ""
	o.History = nil
	o.Attempts = 0
	b.orders[o.Id] = &o
	b.pending = append(b.pending, &o)
	return &o
}

func (b *orderBook) get(id common.OrderId) (*common.Order, bool) {
	o, ok := b.orders[id]
	return o, ok
}

// absorb moves pending orders into the resting set, keeping id order.
func (b *orderBook) absorb() []*common.Order {
	absorbed := make([]*common.Order, 0, len(b.pending))
	for _, o := range b.pending {
		if o.Status == common.OrderStatusPending {
			absorbed = append(absorbed, o)
			b.resting = append(b.resting, o)
		}
	}
	b.pending = b.pending[:0]
	return absorbed
}

// evaluationOrder returns the resting orders in the sequence they are
// evaluated on one snapshot.
func (b *orderBook) evaluationOrder(priority FillPriority) []*common.Order {
	orders := make([]*common.Order, len(b.resting))
	copy(orders, b.resting)

	if priority == PriorityProtectiveFirst {
		sort.SliceStable(orders, func(i, j int) bool {
			return orders[i].Kind.IsProtective() && !orders[j].Kind.IsProtective()
		})
	}
	return orders
}

// prune drops terminal orders from the resting set.
func (b *orderBook) prune() {
	resting := b.resting[:0]
	for _, o := range b.resting {
		if !o.Status.IsTerminal() {
			resting = append(resting, o)
		}
	}
	for i := len(resting); i < len(b.resting); i++ {
		b.resting[i] = nil
	}
	b.resting = resting
}

// active returns pending and resting orders in id order.
func (b *orderBook) active() []*common.Order {
	active := make([]*common.Order, 0, len(b.pending)+len(b.resting))
	for _, o := range b.resting {
		if !o.Status.IsTerminal() {
			active = append(active, o)
		}
	}
	for _, o := range b.pending {
		if !o.Status.IsTerminal() {
			active = append(active, o)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Id < active[j].Id })
	return active
}

func (b *orderBook) all() []common.Order {
	orders := make([]common.Order, 0, len(b.orders))
	for _, o := range b.orders {
		orders = append(orders, o.Clone())
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].Id < orders[j].Id })
	return orders
}

func transition(order *common.Order, status common.OrderStatus, reason string, bar int64, ts time.Time) error {
	if !order.Status.CanTransitionTo(status) {
		return fmt.Errorf("order %d from %q to %q: %w", order.Id, order.Status, status, errIllegalTransition)
	}
	order.Status = status
	order.History = append(order.History, common.OrderStatusChange{
		Status:    status,
		Reason:    reason,
		Bar:       bar,
		TimeStamp: ts,
	})
	return nil
}

// validateOrder checks an order at submission and fills in the side
// implied by entry kinds.
func validateOrder(order *common.Order, symbols map[string]struct{}) error {
	if order.Command != common.OrderCommandSubmit {
		return fmt.Errorf("unexpected command %d: %w", order.Command, exchange.ErrInvalidOrder)
	}
	if !order.Kind.IsValid() {
		return fmt.Errorf("unknown order kind %d: %w", order.Kind, exchange.ErrInvalidOrder)
	}
	if _, ok := symbols[order.Symbol]; !ok {
		return fmt.Errorf("instrument %q is not registered: %w", order.Symbol, exchange.ErrInvalidOrder)
	}
	if !order.Size.IsPositive() {
		return fmt.Errorf("size %s must be positive: %w", order.Size, exchange.ErrInvalidOrder)
	}

	if implied := order.Kind.ImpliedSide(); implied != common.OrderSideNone {
		if order.Side != common.OrderSideNone && order.Side != implied {
			return fmt.Errorf("%s order with side %s: %w", order.Kind, order.Side, exchange.ErrInvalidOrder)
		}
		order.Side = implied
	} else if order.Side != common.OrderSideNone && order.Side != common.OrderSideBuy && order.Side != common.OrderSideSell {
		return fmt.Errorf("unknown side %d: %w", order.Side, exchange.ErrInvalidOrder)
	}

	switch {
	case order.Kind.IsLimit() || order.Kind.IsPriceTriggered():
		if !order.Price.IsPositive() {
			return fmt.Errorf("%s order without price: %w", order.Kind, exchange.ErrInvalidOrder)
		}
	case order.Kind == common.OrderKindTakeProfitTime:
		if order.TriggerTime.IsZero() {
			return fmt.Errorf("%s order without trigger time: %w", order.Kind, exchange.ErrInvalidOrder)
		}
	case order.Kind == common.OrderKindStopLossTime:
		if order.HoldBars < 0 || order.HoldFor < 0 {
			return fmt.Errorf("%s order with negative holding period: %w", order.Kind, exchange.ErrInvalidOrder)
		}
		if order.HoldBars == 0 && order.HoldFor == 0 {
			return fmt.Errorf("%s order without holding period: %w", order.Kind, exchange.ErrInvalidOrder)
		}
	}

	switch order.TimeInForce {
	case common.TimeInForceGoodTillCancel, common.TimeInForceDay:
	case common.TimeInForceGoodTillDate:
		if order.ExpireTime.IsZero() {
			return fmt.Errorf("good-till-date order without expire time: %w", exchange.ErrInvalidOrder)
		}
	default:
		return fmt.Errorf("unknown time in force %d: %w", order.TimeInForce, exchange.ErrInvalidOrder)
	}
	return nil
}
