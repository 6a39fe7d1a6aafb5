package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/peter-kozarec/arbiter/pkg/common"
	"github.com/peter-kozarec/arbiter/pkg/config"
	"github.com/peter-kozarec/arbiter/pkg/datasource"
	"github.com/peter-kozarec/arbiter/pkg/datasource/duckdb"
	"github.com/peter-kozarec/arbiter/pkg/datasource/historical"
	"github.com/peter-kozarec/arbiter/pkg/datasource/synthetic"
	"github.com/peter-kozarec/arbiter/pkg/exchange"
)

// loadSnapshots materializes the configured stream once so that every
// session replays the same snapshots.
func loadSnapshots(ctx context.Context, logger *zap.Logger, cfg *config.Config, instruments exchange.InstrumentTable) ([]common.Snapshot, error) {
	switch cfg.Data.Kind {
	case config.DataSynthetic:
		return loadSynthetic(ctx, logger, cfg, instruments)
	case config.DataBinary:
		return loadBinary(ctx, logger, cfg, instruments)
	case config.DataDuckDB:
		return loadDuckDB(ctx, logger, cfg, instruments)
	default:
		return nil, fmt.Errorf("unknown data kind %q", cfg.Data.Kind)
	}
}

func loadSynthetic(ctx context.Context, logger *zap.Logger, cfg *config.Config, instruments exchange.InstrumentTable) ([]common.Snapshot, error) {
	data := cfg.Data.Synthetic

	walks := make([]synthetic.Instrument, 0, len(data.Instruments))
	for _, instrument := range data.Instruments {
		info, err := instruments.Get(instrument.Symbol)
		if err != nil {
			return nil, err
		}
		walks = append(walks, synthetic.Instrument{
			Symbol:     instrument.Symbol,
			StartPrice: instrument.StartPrice,
			Spread:     instrument.Spread,
			Mu:         instrument.Mu,
			Sigma:      instrument.Sigma,
			Digits:     info.Digits,
		})
	}

	generator, err := synthetic.NewGenerator(logger, data.Seed, cfg.Data.From, cfg.Data.Period, data.Steps, walks,
		synthetic.WithCorrelation(data.Correlation),
		synthetic.WithGapProbability(data.GapProbability),
		synthetic.WithLiquidityHoles(data.HoleProbability))
	if err != nil {
		return nil, err
	}
	return datasource.Collect(ctx, generator)
}

func loadBinary(ctx context.Context, logger *zap.Logger, cfg *config.Config, instruments exchange.InstrumentTable) ([]common.Snapshot, error) {
	lanes := make(map[string]datasource.QuoteSource, instruments.Len())
	for _, symbol := range instruments.Symbols() {
		info, err := instruments.Get(symbol)
		if err != nil {
			return nil, err
		}

		source := historical.NewSource[historical.BinaryQuote](cfg.Data.Files[symbol])
		if err := source.Open(); err != nil {
			return nil, err
		}
		defer source.Close()

		lanes[symbol] = historical.NewQuoteReader(source, symbol, info.Digits, cfg.Data.From, cfg.Data.To)
	}
	return datasource.Collect(ctx, datasource.NewSynchronizer(logger, cfg.Data.Period, lanes))
}

func loadDuckDB(ctx context.Context, logger *zap.Logger, cfg *config.Config, instruments exchange.InstrumentTable) ([]common.Snapshot, error) {
	reader, err := duckdb.NewReader(cfg.Data.DSN, cfg.Data.Table)
	if err != nil {
		return nil, err
	}
	if err := reader.Connect(); err != nil {
		return nil, err
	}
	defer reader.Close()

	lanes := make(map[string]datasource.QuoteSource, instruments.Len())
	for _, symbol := range instruments.Symbols() {
		info, err := instruments.Get(symbol)
		if err != nil {
			return nil, err
		}
		lanes[symbol], err = reader.Source(ctx, symbol, info.Digits, cfg.Data.From, cfg.Data.To)
		if err != nil {
			return nil, err
		}
	}
	return datasource.Collect(ctx, datasource.NewSynchronizer(logger, cfg.Data.Period, lanes))
}
