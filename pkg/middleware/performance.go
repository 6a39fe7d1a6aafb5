package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/arbiter/pkg/bus"
	"github.com/peter-kozarec/arbiter/pkg/common"
)

type handlerStats struct {
	count    int64
	duration time.Duration
}

func (s *handlerStats) fields(name string) []zap.Field {
	if s.count == 0 {
		return nil
	}
	return []zap.Field{
		zap.Int64(name+"_events", s.count),
		zap.Duration(name+"_avg_duration", s.duration/time.Duration(s.count)),
		zap.Duration(name+"_total_duration", s.duration),
	}
}

// Performance measures how long the wrapped handlers of one session take.
type Performance struct {
	logger *zap.Logger

	snapshot handlerStats
	order    handlerStats
	fill     handlerStats
	equity   handlerStats
}

func NewPerformance(logger *zap.Logger) *Performance {
	return &Performance{
		logger: logger,
	}
}

func measure[T any](stats *handlerStats, handler func(context.Context, T)) func(context.Context, T) {
	return func(ctx context.Context, event T) {
		startTime := time.Now()
		handler(ctx, event)
		stats.duration += time.Since(startTime)
		stats.count++
	}
}

func (p *Performance) WithSnapshot(handler bus.SnapshotEventHandler) bus.SnapshotEventHandler {
	return measure[common.Snapshot](&p.snapshot, handler)
}

func (p *Performance) WithOrder(handler bus.OrderEventHandler) bus.OrderEventHandler {
	return measure[common.Order](&p.order, handler)
}

func (p *Performance) WithFill(handler bus.FillEventHandler) bus.FillEventHandler {
	return measure[common.Fill](&p.fill, handler)
}

func (p *Performance) WithEquity(handler bus.EquityEventHandler) bus.EquityEventHandler {
	return measure[common.Equity](&p.equity, handler)
}

func (p *Performance) PrintStatistics() {
	var fields []zap.Field
	fields = append(fields, p.snapshot.fields("snapshot")...)
	fields = append(fields, p.order.fields("order")...)
	fields = append(fields, p.fill.fields("fill")...)
	fields = append(fields, p.equity.fields("equity")...)
	p.logger.Info("handler performance", fields...)
}
