package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/arbiter/pkg/bus"
	"github.com/peter-kozarec/arbiter/pkg/common"
	"github.com/peter-kozarec/arbiter/pkg/datasource"
	"github.com/peter-kozarec/arbiter/pkg/exchange"
	"github.com/peter-kozarec/arbiter/pkg/exchange/sandbox"
	"github.com/peter-kozarec/arbiter/pkg/journal"
	"github.com/peter-kozarec/arbiter/pkg/middleware"
	"github.com/peter-kozarec/arbiter/pkg/utility"
	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

type SessionConfig struct {
	Name      string
	StartCash fixed.Point
	// RebalanceEvery invokes the strategy on every Kth snapshot only. The
	// engine still matches resting orders on the snapshots in between.
	RebalanceEvery int
	Options        []sandbox.Option
}

// Outcome is the closed session together with its report and the digest of
// its fill journal.
type Outcome struct {
	sandbox.Result
	Report  Report
	Digest  string
	Stopped bool
}

// Session replays one snapshot stream through one strategy and one engine
// session. Each snapshot is handed to the strategy first and then matched,
// so orders placed on a snapshot can fill on that same snapshot.
type Session struct {
	logger   *zap.Logger
	engine   *sandbox.Engine
	source   datasource.SnapshotSource
	strategy Strategy
	cfg      SessionConfig
	journal  *journal.Journal
	events   *bus.Router

	monitor       *middleware.Monitor
	telemetry     *middleware.SessionTelemetry
	performance   *middleware.Performance
	auditInterval time.Duration

	fillHandlers   []bus.FillEventHandler
	orderHandlers  []bus.OrderEventHandler
	equityHandlers []bus.EquityEventHandler
}

func NewSession(logger *zap.Logger, engine *sandbox.Engine, source datasource.SnapshotSource, strategy Strategy, cfg SessionConfig, options ...SessionOption) *Session {
	if cfg.RebalanceEvery < 1 {
		cfg.RebalanceEvery = 1
	}
	s := &Session{
		logger:   logger,
		engine:   engine,
		source:   source,
		strategy: strategy,
		cfg:      cfg,
		journal:  journal.New(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Run drives the session until the source is exhausted, the strategy stops
// or the session aborts, then closes it. Session-fatal failures end up in
// Outcome.Err; the returned error only reports that the session could not
// be run at all.
func (s *Session) Run(ctx context.Context) (Outcome, error) {
	options := make([]sandbox.Option, 0, len(s.cfg.Options)+1)
	options = append(options, s.cfg.Options...)
	s.events = s.router()
	options = append(options, sandbox.WithRouter(s.events))

	id, err := s.engine.Open(s.cfg.Name, s.cfg.StartCash, options...)
	if err != nil {
		return Outcome{}, fmt.Errorf("unable to open session %s: %w", s.cfg.Name, err)
	}
	logger := s.logger.With(zap.String("session_name", s.cfg.Name), zap.Stringer("session", id))

	startTime := time.Now()
	stopped := s.replay(ctx, id, logger)

	if s.telemetry != nil && s.engine.Err(id) != nil {
		s.telemetry.Aborted()
	}

	result, err := s.engine.Close(context.WithoutCancel(ctx), id)
	if err != nil {
		return Outcome{}, fmt.Errorf("unable to close session %s: %w", s.cfg.Name, err)
	}

	audit := NewAudit(s.auditInterval)
	for _, equity := range result.EquityCurve {
		audit.AddEquity(equity)
	}
	for _, trade := range result.Trades {
		audit.AddTrade(trade)
	}
	report := audit.GenerateReport()
	report.Bars = result.Bars
	report.Fills = len(result.Fills)
	report.TotalCommission = result.View.Fees
	report.RunTime = time.Since(startTime)

	if s.performance != nil {
		s.performance.PrintStatistics()
		s.events.Statistics().Print(logger)
	}

	return Outcome{
		Result:  result,
		Report:  report,
		Digest:  s.journal.Digest(),
		Stopped: stopped,
	}, nil
}

func (s *Session) replay(ctx context.Context, id utility.SessionId, logger *zap.Logger) bool {
	for bar := 0; ; bar++ {
		snapshot, err := s.source.Next(ctx)
		if errors.Is(err, datasource.ErrEof) {
			return false
		}
		if err != nil {
			s.abort(id, fmt.Errorf("unable to read snapshot %d: %w", bar, err))
			return false
		}

		if bar%s.cfg.RebalanceEvery == 0 {
			stop, err := s.rebalance(ctx, id, snapshot, logger)
			if err != nil {
				s.abort(id, err)
				return false
			}
			if stop {
				logger.Info("strategy stopped", zap.Int("bar", bar))
				return true
			}
		}

		startTime := time.Now()
		err = s.engine.Process(ctx, id, snapshot)
		if s.telemetry != nil {
			s.telemetry.ObserveProcess(time.Since(startTime))
		}
		if err != nil {
			return false
		}
	}
}

func (s *Session) rebalance(ctx context.Context, id utility.SessionId, snapshot common.Snapshot, logger *zap.Logger) (bool, error) {
	view, err := s.engine.View(id)
	if err != nil {
		return false, err
	}

	orders, err := s.strategy.OnSnapshot(ctx, snapshot, view)
	if errors.Is(err, ErrStop) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("strategy failed at %s: %w", snapshot.TimeStamp, err)
	}

	for _, order := range orders {
		if order.Command == common.OrderCommandCancel {
			if err := s.engine.Cancel(ctx, id, order.Id); err != nil {
				if !errors.Is(err, exchange.ErrUnknownOrder) {
					return false, err
				}
				logger.Warn("cancel rejected", zap.Int64("order_id", order.Id), zap.Error(err))
			}
			continue
		}

		if _, err := s.engine.Submit(ctx, id, order); err != nil {
			if !errors.Is(err, exchange.ErrInvalidOrder) {
				return false, err
			}
			logger.Warn("order rejected",
				zap.Stringer("kind", order.Kind),
				zap.String("symbol", order.Symbol),
				zap.Error(err))
		}
	}
	return false, nil
}

func (s *Session) abort(id utility.SessionId, cause error) {
	if err := s.engine.Abort(id, cause); err != nil {
		s.logger.Warn("unable to abort session", zap.Error(err))
	}
}

func (s *Session) router() *bus.Router {
	router := bus.NewRouter()

	fills := []bus.EventHandler[common.Fill]{s.journal.OnFill}
	if h, ok := s.strategy.(FillHandler); ok {
		fills = append(fills, h.OnFill)
	}
	for _, h := range s.fillHandlers {
		fills = append(fills, h)
	}

	var orders []bus.EventHandler[common.Order]
	if h, ok := s.strategy.(OrderStatusHandler); ok {
		orders = append(orders, h.OnOrderStatus)
	}
	for _, h := range s.orderHandlers {
		orders = append(orders, h)
	}

	rejections := bus.OrderRejectionEventHandler(middleware.NoopOrderRjctHdl)
	if h, ok := s.strategy.(RejectionHandler); ok {
		rejections = h.OnOrderRejected
	}

	var equities []bus.EventHandler[common.Equity]
	for _, h := range s.equityHandlers {
		equities = append(equities, h)
	}

	var (
		snapshotChain  []func(bus.SnapshotEventHandler) bus.SnapshotEventHandler
		orderChain     []func(bus.OrderEventHandler) bus.OrderEventHandler
		rejectionChain []func(bus.OrderRejectionEventHandler) bus.OrderRejectionEventHandler
		fillChain      []func(bus.FillEventHandler) bus.FillEventHandler
		positionChain  []func(bus.PositionEventHandler) bus.PositionEventHandler
		equityChain    []func(bus.EquityEventHandler) bus.EquityEventHandler
	)
	if s.monitor != nil {
		snapshotChain = append(snapshotChain, s.monitor.WithSnapshot)
		orderChain = append(orderChain, s.monitor.WithOrder)
		rejectionChain = append(rejectionChain, s.monitor.WithOrderRejection)
		fillChain = append(fillChain, s.monitor.WithFill)
		positionChain = append(positionChain, s.monitor.WithPosition)
		equityChain = append(equityChain, s.monitor.WithEquity)
	}
	if s.telemetry != nil {
		snapshotChain = append(snapshotChain, s.telemetry.WithSnapshot)
		orderChain = append(orderChain, s.telemetry.WithOrder)
		rejectionChain = append(rejectionChain, s.telemetry.WithOrderRejection)
		fillChain = append(fillChain, s.telemetry.WithFill)
		equityChain = append(equityChain, s.telemetry.WithEquity)
	}
	if s.performance != nil {
		snapshotChain = append(snapshotChain, s.performance.WithSnapshot)
		orderChain = append(orderChain, s.performance.WithOrder)
		fillChain = append(fillChain, s.performance.WithFill)
		equityChain = append(equityChain, s.performance.WithEquity)
	}

	router.OnSnapshot = middleware.Chain(snapshotChain...)(middleware.NoopSnapshotHdl)
	router.OnOrder = middleware.Chain(orderChain...)(bus.MergeHandlers(orders...))
	router.OnOrderRejection = middleware.Chain(rejectionChain...)(rejections)
	router.OnFill = middleware.Chain(fillChain...)(bus.MergeHandlers(fills...))
	router.OnPosition = middleware.Chain(positionChain...)(middleware.NoopPositionHdl)
	router.OnEquity = middleware.Chain(equityChain...)(bus.MergeHandlers(equities...))
	return router
}
