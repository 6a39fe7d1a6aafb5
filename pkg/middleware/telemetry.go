package middleware

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/peter-kozarec/arbiter/pkg/bus"
	"github.com/peter-kozarec/arbiter/pkg/common"
)

// Telemetry holds the prometheus metrics shared by all sessions. Each
// session reports through its own SessionTelemetry.
type Telemetry struct {
	snapshots       *prometheus.CounterVec
	orders          *prometheus.CounterVec
	fills           *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	aborted         *prometheus.CounterVec
	equity          *prometheus.GaugeVec
	processDuration *prometheus.HistogramVec
}

func NewTelemetry(registerer prometheus.Registerer) *Telemetry {
	factory := promauto.With(registerer)
	buckets := []float64{
		0.000005, 0.00001, 0.000025, 0.00005, 0.0001,
		0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01,
	}

	return &Telemetry{
		snapshots: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbiter_snapshots_processed_total",
			Help: "Snapshots processed by the matching engine",
		}, []string{"session"}),
		orders: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbiter_order_status_changes_total",
			Help: "Order status changes",
		}, []string{"session", "status"}),
		fills: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbiter_fills_total",
			Help: "Fills booked into the ledger",
		}, []string{"session", "symbol"}),
		rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbiter_order_rejections_total",
			Help: "Rejected submissions and fill attempts",
		}, []string{"session", "reason"}),
		aborted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbiter_sessions_aborted_total",
			Help: "Sessions terminated by an error",
		}, []string{"session"}),
		equity: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arbiter_session_equity",
			Help: "Last marked equity of a session",
		}, []string{"session"}),
		processDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arbiter_process_duration_seconds",
			Help:    "Time to match one snapshot",
			Buckets: buckets,
		}, []string{"session"}),
	}
}

func (t *Telemetry) Session(name string) *SessionTelemetry {
	return &SessionTelemetry{
		telemetry: t,
		session:   name,
	}
}

type SessionTelemetry struct {
	telemetry *Telemetry
	session   string
}

func (s *SessionTelemetry) ObserveProcess(duration time.Duration) {
	s.telemetry.processDuration.WithLabelValues(s.session).Observe(duration.Seconds())
}

func (s *SessionTelemetry) Aborted() {
	s.telemetry.aborted.WithLabelValues(s.session).Inc()
}

func (s *SessionTelemetry) WithSnapshot(handler bus.SnapshotEventHandler) bus.SnapshotEventHandler {
	counter := s.telemetry.snapshots.WithLabelValues(s.session)
	return func(ctx context.Context, snapshot common.Snapshot) {
		counter.Inc()
		handler(ctx, snapshot)
	}
}

func (s *SessionTelemetry) WithOrder(handler bus.OrderEventHandler) bus.OrderEventHandler {
	return func(ctx context.Context, order common.Order) {
		s.telemetry.orders.WithLabelValues(s.session, string(order.Status)).Inc()
		handler(ctx, order)
	}
}

func (s *SessionTelemetry) WithOrderRejection(handler bus.OrderRejectionEventHandler) bus.OrderRejectionEventHandler {
	return func(ctx context.Context, rejected common.OrderRejected) {
		s.telemetry.rejections.WithLabelValues(s.session, rejected.Reason).Inc()
		handler(ctx, rejected)
	}
}

func (s *SessionTelemetry) WithFill(handler bus.FillEventHandler) bus.FillEventHandler {
	return func(ctx context.Context, fill common.Fill) {
		s.telemetry.fills.WithLabelValues(s.session, fill.Symbol).Inc()
		handler(ctx, fill)
	}
}

func (s *SessionTelemetry) WithEquity(handler bus.EquityEventHandler) bus.EquityEventHandler {
	gauge := s.telemetry.equity.WithLabelValues(s.session)
	return func(ctx context.Context, equity common.Equity) {
		if value, ok := equity.Value.Float64(); ok {
			gauge.Set(value)
		}
		handler(ctx, equity)
	}
}
