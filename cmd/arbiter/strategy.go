package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/peter-kozarec/arbiter/examples/strategy"
	"github.com/peter-kozarec/arbiter/pkg/backtest"
	"github.com/peter-kozarec/arbiter/pkg/config"
)

func newStrategy(logger *zap.Logger, cfg config.Strategy) (backtest.Strategy, error) {
	switch cfg.Kind {
	case "spread":
		if len(cfg.Legs) != 2 {
			return nil, fmt.Errorf("spread strategy needs exactly two legs, got %d", len(cfg.Legs))
		}
		return strategy.NewSpreadArbitrage(logger, strategy.SpreadConfig{
			Legs:       [2]string{cfg.Legs[0], cfg.Legs[1]},
			Size:       cfg.Size,
			Threshold:  cfg.Threshold,
			TakeProfit: cfg.TakeProfit,
			HoldBars:   cfg.HoldBars,
			Window:     cfg.Window,
			ZEntry:     cfg.ZEntry,
		})
	default:
		return nil, fmt.Errorf("unknown strategy kind %q", cfg.Kind)
	}
}
