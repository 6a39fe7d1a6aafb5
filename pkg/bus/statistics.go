package bus

import (
	"time"

	"go.uber.org/zap"
)

type Statistics struct {
	DispatchTime  time.Duration
	PostCount     uint64
	DispatchCount uint64
	DispatchFails uint64
	Unhandled     uint64
}

func (s Statistics) Print(logger *zap.Logger) {
	logger.Info("router statistics",
		zap.Duration("dispatch_time", s.DispatchTime),
		zap.Uint64("post_count", s.PostCount),
		zap.Uint64("dispatch_count", s.DispatchCount),
		zap.Uint64("dispatch_fails", s.DispatchFails),
		zap.Uint64("unhandled", s.Unhandled))
}
