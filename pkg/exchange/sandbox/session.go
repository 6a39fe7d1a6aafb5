package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/arbiter/pkg/bus"
	"github.com/peter-kozarec/arbiter/pkg/common"
	"github.com/peter-kozarec/arbiter/pkg/exchange"
	"github.com/peter-kozarec/arbiter/pkg/ledger"
	"github.com/peter-kozarec/arbiter/pkg/utility"
)

const (
	reasonSubmitted    = "submitted"
	reasonCancelled    = "cancelled by strategy"
	reasonClosed       = "session closed"
	reasonTimeInForce  = "time in force elapsed"
	reasonNoLiquidity  = "no liquidity"
	reasonInvalidOrder = "invalid order"
	commentCloseOut    = "close-out"
)

// session is one partition of the engine. Everything except the abort
// cause is owned by the goroutine driving the session.
type session struct {
	id     utility.SessionId
	name   string
	logger *zap.Logger
	cfg    sessionConfig

	symbols map[string]struct{}
	router  *bus.Router
	book    *orderBook
	ledger  *ledger.Ledger

	bar          int64
	now          time.Time
	lastSnapshot common.Snapshot

	mu    sync.Mutex
	cause error
}

func (s *session) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

func (s *session) abort(cause error) {
	if cause == nil {
		cause = exchange.ErrSessionAborted
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cause != nil {
		return
	}
	s.cause = cause
	s.logger.Error("session aborted", zap.Int64("bar", s.bar), zap.Error(cause))
}

func (s *session) usable() error {
	if cause := s.failure(); cause != nil {
		if errors.Is(cause, exchange.ErrSessionAborted) {
			return cause
		}
		return fmt.Errorf("%w: %w", exchange.ErrSessionAborted, cause)
	}
	return nil
}

func (s *session) post(ctx context.Context, id bus.EventId, data any) {
	if err := s.router.Post(ctx, id, data); err != nil {
		s.logger.Warn("unable to post event", zap.Stringer("event", id), zap.Error(err))
	}
}

func (s *session) transition(ctx context.Context, order *common.Order, status common.OrderStatus, reason string) error {
	if err := transition(order, status, reason, s.bar, s.now); err != nil {
		return err
	}
	s.post(ctx, bus.OrderEvent, order.Clone())
	return nil
}

func (s *session) submit(ctx context.Context, order common.Order) (common.OrderId, error) {
	if err := validateOrder(&order, s.symbols); err != nil {
		s.post(ctx, bus.OrderRejectedEvent, common.OrderRejected{
			Order:     order.Clone(),
			Reason:    reasonInvalidOrder,
			Bar:       s.bar,
			TimeStamp: s.now,
		})
		return 0, err
	}

	if order.TimeStamp.IsZero() {
		order.TimeStamp = s.now
	}
	o := s.book.add(order)
	if err := s.transition(ctx, o, common.OrderStatusPending, reasonSubmitted); err != nil {
		return 0, err
	}
	return o.Id, nil
}

func (s *session) cancel(ctx context.Context, id common.OrderId, reason string) error {
	order, ok := s.book.get(id)
	if !ok || order.Status.IsTerminal() {
		return fmt.Errorf("order %d is not pending or resting: %w", id, exchange.ErrUnknownOrder)
	}
	if order.Status == common.OrderStatusPending {
		if err := s.transition(ctx, order, common.OrderStatusResting, reason); err != nil {
			return err
		}
	}
	return s.transition(ctx, order, common.OrderStatusCancelled, reason)
}

func (s *session) validate(snapshot common.Snapshot) error {
	if s.bar >= 0 && snapshot.TimeStamp.Before(s.now) {
		return fmt.Errorf("snapshot at %s precedes %s: %w",
			snapshot.TimeStamp.Format(time.RFC3339Nano), s.now.Format(time.RFC3339Nano), exchange.ErrDataSync)
	}
	for _, symbol := range s.cfg.symbols {
		if _, ok := snapshot.Quotes[symbol]; !ok {
			return fmt.Errorf("snapshot at %s has no quote for %s: %w",
				snapshot.TimeStamp.Format(time.RFC3339Nano), symbol, exchange.ErrDataSync)
		}
	}
	return nil
}

// process runs one matching cycle: absorb submissions, evaluate resting
// orders in priority order and mark the ledger.
func (s *session) process(ctx context.Context, snapshot common.Snapshot) error {
	if err := s.validate(snapshot); err != nil {
		return err
	}

	s.bar++
	s.now = snapshot.TimeStamp
	s.lastSnapshot = snapshot
	s.post(ctx, bus.SnapshotEvent, snapshot)

	// An order is created on the snapshot it first rests on; the submit
	// stamp only reflects the previous snapshot.
	for _, order := range s.book.absorb() {
		order.TimeStamp = snapshot.TimeStamp
		if err := s.transition(ctx, order, common.OrderStatusResting, ""); err != nil {
			return err
		}
	}

	if err := s.match(ctx, snapshot); err != nil {
		return err
	}

	equity := s.ledger.MarkToMarket(snapshot)
	s.post(ctx, bus.EquityEvent, equity)
	return nil
}

func (s *session) match(ctx context.Context, snapshot common.Snapshot) error {
	defer s.book.prune()

	for _, order := range s.book.evaluationOrder(s.cfg.priority) {
		if order.Status.IsTerminal() {
			continue
		}
		if expired(order, snapshot.TimeStamp) {
			if err := s.transition(ctx, order, common.OrderStatusExpired, reasonTimeInForce); err != nil {
				return err
			}
			continue
		}

		m, ok, err := s.evaluate(order, snapshot.Quotes[order.Symbol], snapshot.TimeStamp)
		if errors.Is(err, exchange.ErrNoLiquidity) {
			if err := s.noLiquidity(ctx, order, err); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := s.fill(ctx, order, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) fill(ctx context.Context, order *common.Order, m match) error {
	fill, err := s.ledger.ApplyFill(common.Fill{
		OrderId:   order.Id,
		Kind:      order.Kind,
		Side:      m.side,
		Price:     m.price,
		Size:      m.size,
		Symbol:    order.Symbol,
		Bar:       s.bar,
		TimeStamp: s.now,
	})
	if err != nil {
		return fmt.Errorf("order %d: %w", order.Id, err)
	}
	if err := s.transition(ctx, order, common.OrderStatusFilled, ""); err != nil {
		return err
	}

	s.post(ctx, bus.FillEvent, fill)
	if position, ok := s.ledger.Position(order.Symbol); ok {
		s.post(ctx, bus.PositionEvent, position)
	}
	return nil
}

func (s *session) noLiquidity(ctx context.Context, order *common.Order, cause error) error {
	order.Attempts++
	final := s.cfg.liquidityPolicy == LiquidityExpire ||
		(s.cfg.maxAttempts > 0 && order.Attempts >= s.cfg.maxAttempts)

	s.logger.Debug("no liquidity",
		zap.Int64("order_id", order.Id),
		zap.Int("attempts", order.Attempts),
		zap.Error(cause))
	s.post(ctx, bus.OrderRejectedEvent, common.OrderRejected{
		Order:     order.Clone(),
		Reason:    reasonNoLiquidity,
		Transient: !final,
		Bar:       s.bar,
		TimeStamp: s.now,
	})

	if final {
		return s.transition(ctx, order, common.OrderStatusExpired, reasonNoLiquidity)
	}
	return nil
}

func (s *session) cancelActive(ctx context.Context, reason string) error {
	for _, order := range s.book.active() {
		if err := s.cancel(ctx, order.Id, reason); err != nil {
			return err
		}
	}
	s.book.absorb()
	s.book.prune()
	return nil
}

// closeOut flattens every open position with market orders at the last
// snapshot.
func (s *session) closeOut(ctx context.Context) error {
	if s.bar < 0 {
		return nil
	}

	for _, symbol := range s.ledger.Symbols() {
		position, _ := s.ledger.Position(symbol)
		if position.IsFlat() {
			continue
		}

		kind := common.OrderKindMarketSell
		if position.ClosingSide() == common.OrderSideBuy {
			kind = common.OrderKindMarketBuy
		}
		if _, err := s.submit(ctx, common.Order{
			Kind:    kind,
			Size:    position.Quantity.Abs(),
			Symbol:  symbol,
			Comment: commentCloseOut,
		}); err != nil {
			return err
		}
	}

	for _, order := range s.book.absorb() {
		if err := s.transition(ctx, order, common.OrderStatusResting, ""); err != nil {
			return err
		}
	}
	return s.match(ctx, s.lastSnapshot)
}
