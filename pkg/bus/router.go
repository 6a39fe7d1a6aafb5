package bus

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidEventData = errors.New("invalid event data")
	ErrUnsupportedEvent = errors.New("unsupported event id")
)

// Router dispatches the events of one session synchronously, in the order
// they are posted. It belongs to a single session and is not safe for
// concurrent use.
type Router struct {
	OnSnapshot       SnapshotEventHandler
	OnOrder          OrderEventHandler
	OnOrderRejection OrderRejectionEventHandler
	OnFill           FillEventHandler
	OnPosition       PositionEventHandler
	OnEquity         EquityEventHandler

	dispatchTime  time.Duration
	postCount     uint64
	dispatchCount uint64
	dispatchFails uint64
	unhandled     uint64
}

func NewRouter() *Router {
	return &Router{}
}

// Post delivers data to the handler registered for id before returning.
// Events without a handler are counted and dropped.
func (r *Router) Post(ctx context.Context, id EventId, data any) error {
	r.postCount++

	start := time.Now()
	defer func() {
		r.dispatchTime += time.Since(start)
	}()

	if err := r.dispatch(ctx, id, data); err != nil {
		r.dispatchFails++
		return err
	}
	r.dispatchCount++
	return nil
}

func (r *Router) Statistics() Statistics {
	return Statistics{
		DispatchTime:  r.dispatchTime,
		PostCount:     r.postCount,
		DispatchCount: r.dispatchCount,
		DispatchFails: r.dispatchFails,
		Unhandled:     r.unhandled,
	}
}

func (r *Router) dispatch(ctx context.Context, id EventId, data any) error {
	switch id {
	case SnapshotEvent:
		return handle(r, ctx, id, data, r.OnSnapshot)
	case OrderEvent:
		return handle(r, ctx, id, data, r.OnOrder)
	case OrderRejectedEvent:
		return handle(r, ctx, id, data, r.OnOrderRejection)
	case FillEvent:
		return handle(r, ctx, id, data, r.OnFill)
	case PositionEvent:
		return handle(r, ctx, id, data, r.OnPosition)
	case EquityEvent:
		return handle(r, ctx, id, data, r.OnEquity)
	default:
		return fmt.Errorf("%d: %w", id, ErrUnsupportedEvent)
	}
}

func handle[T any, H ~func(context.Context, T)](r *Router, ctx context.Context, id EventId, data any, handler H) error {
	event, ok := data.(T)
	if !ok {
		return fmt.Errorf("%s event carries %T: %w", id, data, ErrInvalidEventData)
	}
	fn := (func(context.Context, T))(handler)
	if fn == nil {
		r.unhandled++
		return nil
	}
	fn(ctx, event)
	return nil
}
