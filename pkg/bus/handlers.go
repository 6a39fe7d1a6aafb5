package bus

import (
	"context"

	"github.com/peter-kozarec/arbiter/pkg/common"
)

type EventHandler[T any] = func(context.Context, T)

type SnapshotEventHandler EventHandler[common.Snapshot]
type OrderEventHandler EventHandler[common.Order]
type OrderRejectionEventHandler EventHandler[common.OrderRejected]
type FillEventHandler EventHandler[common.Fill]
type PositionEventHandler EventHandler[common.Position]
type EquityEventHandler EventHandler[common.Equity]

func MergeHandlers[T any](handlers ...EventHandler[T]) EventHandler[T] {
	return func(ctx context.Context, event T) {
		for _, handler := range handlers {
			if handler != nil {
				handler(ctx, event)
			}
		}
	}
}
