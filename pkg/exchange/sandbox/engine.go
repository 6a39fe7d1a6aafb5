package sandbox

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/peter-kozarec/arbiter/pkg/bus"
	"github.com/peter-kozarec/arbiter/pkg/common"
	"github.com/peter-kozarec/arbiter/pkg/exchange"
	"github.com/peter-kozarec/arbiter/pkg/ledger"
	"github.com/peter-kozarec/arbiter/pkg/utility"
	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

// Engine matches orders for many independent sessions. Sessions share the
// read-only instrument table and nothing else; the registry lock is held
// only while a session is looked up, never while it processes.
//
// Calls addressing one session must come from a single goroutine at a
// time. Different sessions may be driven concurrently.
type Engine struct {
	logger      *zap.Logger
	instruments exchange.InstrumentTable
	defaults    []Option

	mu       sync.RWMutex
	sessions map[utility.SessionId]*session
}

// Result is everything left of a session once it is closed.
type Result struct {
	Id          utility.SessionId
	Name        string
	View        ledger.View
	Orders      []common.Order
	Fills       []common.Fill
	Trades      []common.Trade
	EquityCurve []common.Equity
	Bars        int64
	Err         error
}

func NewEngine(logger *zap.Logger, instruments exchange.InstrumentTable, defaults ...Option) *Engine {
	return &Engine{
		logger:      logger,
		instruments: instruments,
		defaults:    defaults,
		sessions:    make(map[utility.SessionId]*session),
	}
}

func (e *Engine) Instruments() exchange.InstrumentTable {
	return e.instruments
}

// Open creates a session with its own order book and ledger. Engine
// defaults apply first, then options.
func (e *Engine) Open(name string, startCash fixed.Point, options ...Option) (utility.SessionId, error) {
	cfg := sessionConfig{
		symbols:     e.instruments.Symbols(),
		constraints: ledger.Constraints{AllowShort: true},
	}
	for _, option := range e.defaults {
		option(&cfg)
	}
	for _, option := range options {
		option(&cfg)
	}
	if len(cfg.symbols) == 0 {
		return utility.SessionId{}, fmt.Errorf("session %s has no instruments: %w", name, exchange.ErrInstrumentNotPresent)
	}
	if cfg.router == nil {
		cfg.router = bus.NewRouter()
	}

	ledgerOptions := append([]ledger.Option{ledger.WithConstraints(cfg.constraints)}, cfg.ledgerOptions...)
	l, err := ledger.New(e.instruments, cfg.symbols, startCash, ledgerOptions...)
	if err != nil {
		return utility.SessionId{}, fmt.Errorf("unable to create ledger for session %s: %w", name, err)
	}

	id := utility.NewSessionId()
	s := &session{
		id:      id,
		name:    name,
		logger:  e.logger.With(zap.String("session_name", name), zap.Stringer("session", id)),
		cfg:     cfg,
		symbols: make(map[string]struct{}, len(cfg.symbols)),
		router:  cfg.router,
		book:    newOrderBook(),
		ledger:  l,
		bar:     -1,
	}
	for _, symbol := range cfg.symbols {
		s.symbols[symbol] = struct{}{}
	}

	e.mu.Lock()
	e.sessions[id] = s
	e.mu.Unlock()

	s.logger.Info("session opened",
		zap.Strings("symbols", cfg.symbols),
		zap.Stringer("start_cash", startCash),
		zap.Stringer("liquidity_policy", cfg.liquidityPolicy),
		zap.Stringer("fill_priority", cfg.priority))
	return id, nil
}

func (e *Engine) lookup(id utility.SessionId) (*session, error) {
	e.mu.RLock()
	s, ok := e.sessions[id]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, exchange.ErrUnknownSession)
	}
	return s, nil
}

// Submit queues an order. It rests from the next processed snapshot on.
func (e *Engine) Submit(ctx context.Context, id utility.SessionId, order common.Order) (common.OrderId, error) {
	s, err := e.lookup(id)
	if err != nil {
		return 0, err
	}
	if err := s.usable(); err != nil {
		return 0, err
	}
	return s.submit(ctx, order)
}

// Cancel withdraws a pending or resting order.
func (e *Engine) Cancel(ctx context.Context, id utility.SessionId, orderId common.OrderId) error {
	s, err := e.lookup(id)
	if err != nil {
		return err
	}
	if err := s.usable(); err != nil {
		return err
	}
	return s.cancel(ctx, orderId, reasonCancelled)
}

// Process matches one snapshot. Any error it returns has aborted the
// session; sibling sessions are unaffected.
func (e *Engine) Process(ctx context.Context, id utility.SessionId, snapshot common.Snapshot) error {
	s, err := e.lookup(id)
	if err != nil {
		return err
	}
	if err := s.usable(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		s.abort(err)
		return err
	}

	if err := s.process(ctx, snapshot); err != nil {
		s.abort(err)
		return err
	}
	return nil
}

// View returns a copy of the session's ledger. It stays available after
// the session is aborted.
func (e *Engine) View(id utility.SessionId) (ledger.View, error) {
	s, err := e.lookup(id)
	if err != nil {
		return ledger.View{}, err
	}
	return s.ledger.Snapshot(), nil
}

func (e *Engine) Orders(id utility.SessionId) ([]common.Order, error) {
	s, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	return s.book.all(), nil
}

func (e *Engine) Fills(id utility.SessionId) ([]common.Fill, error) {
	s, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	return s.ledger.Fills(), nil
}

// Err reports why a session was aborted, or nil while it is healthy.
func (e *Engine) Err(id utility.SessionId) error {
	s, err := e.lookup(id)
	if err != nil {
		return err
	}
	return s.failure()
}

// Abort stops a session. Its ledger stays as it was and can still be read
// until the session is closed. Abort may be called from any goroutine.
func (e *Engine) Abort(id utility.SessionId, cause error) error {
	s, err := e.lookup(id)
	if err != nil {
		return err
	}
	s.abort(cause)
	return nil
}

// Close removes a session from the engine and returns its final state.
// Healthy sessions cancel their open orders and, when configured, flatten
// their positions first.
func (e *Engine) Close(ctx context.Context, id utility.SessionId) (Result, error) {
	e.mu.Lock()
	s, ok := e.sessions[id]
	delete(e.sessions, id)
	e.mu.Unlock()
	if !ok {
		return Result{}, fmt.Errorf("%s: %w", id, exchange.ErrUnknownSession)
	}

	if s.failure() == nil {
		if err := s.cancelActive(ctx, reasonClosed); err != nil {
			s.abort(err)
		}
	}
	if s.failure() == nil && s.cfg.closeOnTeardown {
		if err := s.closeOut(ctx); err != nil {
			s.abort(err)
		} else if err := s.cancelActive(ctx, reasonClosed); err != nil {
			s.abort(err)
		}
	}

	result := Result{
		Id:          s.id,
		Name:        s.name,
		View:        s.ledger.Snapshot(),
		Orders:      s.book.all(),
		Fills:       s.ledger.Fills(),
		Trades:      s.ledger.Trades(),
		EquityCurve: s.ledger.EquityCurve(),
		Bars:        s.bar + 1,
		Err:         s.failure(),
	}

	s.router.Statistics().Print(s.logger)
	s.logger.Info("session closed",
		zap.Int64("bars", result.Bars),
		zap.Int("fills", len(result.Fills)),
		zap.Stringer("equity", result.View.Equity),
		zap.Error(result.Err))
	return result, nil
}
