package backtest

import (
	"time"

	"github.com/peter-kozarec/arbiter/pkg/bus"
	"github.com/peter-kozarec/arbiter/pkg/middleware"
)

type SessionOption func(*Session)

func WithMonitor(monitor *middleware.Monitor) SessionOption {
	return func(s *Session) {
		s.monitor = monitor
	}
}

func WithTelemetry(telemetry *middleware.SessionTelemetry) SessionOption {
	return func(s *Session) {
		s.telemetry = telemetry
	}
}

func WithPerformance(performance *middleware.Performance) SessionOption {
	return func(s *Session) {
		s.performance = performance
	}
}

func WithFillHandler(handler bus.FillEventHandler) SessionOption {
	return func(s *Session) {
		s.fillHandlers = append(s.fillHandlers, handler)
	}
}

func WithOrderHandler(handler bus.OrderEventHandler) SessionOption {
	return func(s *Session) {
		s.orderHandlers = append(s.orderHandlers, handler)
	}
}

func WithEquityHandler(handler bus.EquityEventHandler) SessionOption {
	return func(s *Session) {
		s.equityHandlers = append(s.equityHandlers, handler)
	}
}

// WithAuditInterval thins the equity curve used for the report to at most
// one point per interval.
func WithAuditInterval(interval time.Duration) SessionOption {
	return func(s *Session) {
		s.auditInterval = interval
	}
}

type RunnerOption func(*Runner)

// WithParallelism bounds how many sessions run at once. Zero or less means
// no bound.
func WithParallelism(n int) RunnerOption {
	return func(r *Runner) {
		r.parallelism = n
	}
}

// WithSessionTelemetry reports every session under its name.
func WithSessionTelemetry(telemetry *middleware.Telemetry) RunnerOption {
	return func(r *Runner) {
		r.telemetry = telemetry
	}
}

func WithMonitorFlags(flags middleware.MonitorFlags) RunnerOption {
	return func(r *Runner) {
		r.monitorFlags = flags
	}
}

func WithHandlerPerformance(enabled bool) RunnerOption {
	return func(r *Runner) {
		r.performance = enabled
	}
}

// Hook returns extra options for the session named name.
type Hook func(name string) []SessionOption

func WithHook(hook Hook) RunnerOption {
	return func(r *Runner) {
		r.hooks = append(r.hooks, hook)
	}
}
