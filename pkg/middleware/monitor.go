package middleware

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/peter-kozarec/arbiter/pkg/bus"
	"github.com/peter-kozarec/arbiter/pkg/common"
)

type MonitorFlags uint16

//goland:noinspection GoUnusedConst
const (
	MonitorNone MonitorFlags = 1 << iota
	MonitorAll
	MonitorSnapshots
	MonitorOrders
	MonitorOrdersRejected
	MonitorFills
	MonitorPositions
	MonitorEquity
)

var monitorFlagNames = map[string]MonitorFlags{
	"none":      MonitorNone,
	"all":       MonitorAll,
	"snapshots": MonitorSnapshots,
	"orders":    MonitorOrders,
	"rejected":  MonitorOrdersRejected,
	"fills":     MonitorFills,
	"positions": MonitorPositions,
	"equity":    MonitorEquity,
}

func ParseMonitorFlags(names []string) (MonitorFlags, error) {
	var flags MonitorFlags
	for _, name := range names {
		flag, ok := monitorFlagNames[strings.ToLower(name)]
		if !ok {
			return 0, fmt.Errorf("unknown monitor flag %q", name)
		}
		flags |= flag
	}
	return flags, nil
}

// Monitor logs the events of one session.
type Monitor struct {
	logger *zap.Logger
	flags  MonitorFlags
}

func NewMonitor(logger *zap.Logger, flags MonitorFlags) *Monitor {
	return &Monitor{
		logger: logger,
		flags:  flags,
	}
}

func (m *Monitor) enabled(flag MonitorFlags) bool {
	return m.flags&flag != 0 || m.flags&MonitorAll != 0
}

func (m *Monitor) WithSnapshot(handler bus.SnapshotEventHandler) bus.SnapshotEventHandler {
	return func(ctx context.Context, snapshot common.Snapshot) {
		if m.enabled(MonitorSnapshots) {
			m.logger.Info("snapshot",
				zap.Time("ts", snapshot.TimeStamp),
				zap.Int("quotes", len(snapshot.Quotes)))
		}
		handler(ctx, snapshot)
	}
}

func (m *Monitor) WithOrder(handler bus.OrderEventHandler) bus.OrderEventHandler {
	return func(ctx context.Context, order common.Order) {
		if m.enabled(MonitorOrders) {
			m.logger.Info("order",
				zap.Int64("id", order.Id),
				zap.Stringer("kind", order.Kind),
				zap.String("symbol", order.Symbol),
				zap.String("status", string(order.Status)),
				zap.Stringer("size", order.Size))
		}
		handler(ctx, order)
	}
}

func (m *Monitor) WithOrderRejection(handler bus.OrderRejectionEventHandler) bus.OrderRejectionEventHandler {
	return func(ctx context.Context, rejected common.OrderRejected) {
		if m.enabled(MonitorOrdersRejected) {
			m.logger.Warn("order rejected",
				zap.Int64("id", rejected.Order.Id),
				zap.String("reason", rejected.Reason),
				zap.Bool("transient", rejected.Transient))
		}
		handler(ctx, rejected)
	}
}

func (m *Monitor) WithFill(handler bus.FillEventHandler) bus.FillEventHandler {
	return func(ctx context.Context, fill common.Fill) {
		if m.enabled(MonitorFills) {
			m.logger.Info("fill",
				zap.Int64("seq", fill.Sequence),
				zap.Int64("order_id", fill.OrderId),
				zap.String("symbol", fill.Symbol),
				zap.Stringer("side", fill.Side),
				zap.Stringer("price", fill.Price),
				zap.Stringer("size", fill.Size),
				zap.Stringer("realized_pnl", fill.RealizedPnL))
		}
		handler(ctx, fill)
	}
}

func (m *Monitor) WithPosition(handler bus.PositionEventHandler) bus.PositionEventHandler {
	return func(ctx context.Context, position common.Position) {
		if m.enabled(MonitorPositions) {
			m.logger.Info("position",
				zap.String("symbol", position.Symbol),
				zap.Stringer("quantity", position.Quantity),
				zap.Stringer("avg_price", position.AvgPrice))
		}
		handler(ctx, position)
	}
}

func (m *Monitor) WithEquity(handler bus.EquityEventHandler) bus.EquityEventHandler {
	return func(ctx context.Context, equity common.Equity) {
		if m.enabled(MonitorEquity) {
			m.logger.Info("equity",
				zap.Int64("bar", equity.Bar),
				zap.Stringer("value", equity.Value),
				zap.Stringer("cash", equity.Cash))
		}
		handler(ctx, equity)
	}
}
