package backtest

import (
	"context"
	"errors"

	"github.com/peter-kozarec/arbiter/pkg/common"
	"github.com/peter-kozarec/arbiter/pkg/ledger"
)

// ErrStop ends a session normally when returned by a strategy.
var ErrStop = errors.New("strategy requested stop")

// Strategy turns a snapshot into orders. view reflects every fill up to and
// including the previous snapshot. Cancellations are orders whose Command is
// common.OrderCommandCancel.
type Strategy interface {
	OnSnapshot(ctx context.Context, snapshot common.Snapshot, view ledger.View) ([]common.Order, error)
}

// StrategyFunc adapts a plain function to Strategy.
type StrategyFunc func(ctx context.Context, snapshot common.Snapshot, view ledger.View) ([]common.Order, error)

func (f StrategyFunc) OnSnapshot(ctx context.Context, snapshot common.Snapshot, view ledger.View) ([]common.Order, error) {
	return f(ctx, snapshot, view)
}

// A strategy may also implement any of the following to hear about its own
// orders while a snapshot is matched.

type FillHandler interface {
	OnFill(ctx context.Context, fill common.Fill)
}

type OrderStatusHandler interface {
	OnOrderStatus(ctx context.Context, order common.Order)
}

type RejectionHandler interface {
	OnOrderRejected(ctx context.Context, rejected common.OrderRejected)
}
