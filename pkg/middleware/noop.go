package middleware

import (
	"context"

	"github.com/peter-kozarec/arbiter/pkg/common"
)

//goland:noinspection ALL
var (
	NoopSnapshotHdl  = func(context.Context, common.Snapshot) {}
	NoopOrderHdl     = func(context.Context, common.Order) {}
	NoopOrderRjctHdl = func(context.Context, common.OrderRejected) {}
	NoopFillHdl      = func(context.Context, common.Fill) {}
	NoopPositionHdl  = func(context.Context, common.Position) {}
	NoopEquityHdl    = func(context.Context, common.Equity) {}
)
