package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/peter-kozarec/arbiter/pkg/backtest"
	"github.com/peter-kozarec/arbiter/pkg/config"
	"github.com/peter-kozarec/arbiter/pkg/datasource"
	"github.com/peter-kozarec/arbiter/pkg/exchange/sandbox"
	"github.com/peter-kozarec/arbiter/pkg/middleware"
	"github.com/peter-kozarec/arbiter/pkg/store/psql"
	"github.com/peter-kozarec/arbiter/pkg/utility/logging"
)

const Version = "0.3.0"

func main() {
	configPath := flag.String("config", "backtest.yaml", "backtest configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := logging.NewLogger(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	logger.Info("arbiter", zap.String("version", Version), zap.String("config", *configPath))
	defer logger.Info("done")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("backtest failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *zap.Logger, cfg *config.Config) error {
	instruments, err := cfg.InstrumentTable()
	if err != nil {
		return err
	}
	engineOptions, err := cfg.EngineOptions()
	if err != nil {
		return err
	}
	monitorFlags, err := middleware.ParseMonitorFlags(cfg.Logging.Monitor)
	if err != nil {
		return err
	}

	snapshots, err := loadSnapshots(ctx, logger, cfg, instruments)
	if err != nil {
		return err
	}
	logger.Info("snapshots loaded", zap.Int("count", len(snapshots)))

	servers, err := startServers(logger, cfg)
	if err != nil {
		return err
	}
	defer servers.shutdown()

	jobs := make([]backtest.Job, 0, len(cfg.Sessions))
	for _, session := range cfg.Sessions {
		strategy, err := newStrategy(logger.With(zap.String("session_name", session.Name)), session.Strategy)
		if err != nil {
			return fmt.Errorf("session %s: %w", session.Name, err)
		}
		jobs = append(jobs, backtest.Job{
			Config: backtest.SessionConfig{
				Name:           session.Name,
				StartCash:      session.StartCash,
				RebalanceEvery: session.RebalanceEvery,
			},
			Source:   datasource.NewSliceSource(snapshots...),
			Strategy: strategy,
		})
	}

	runnerOptions := []backtest.RunnerOption{
		backtest.WithParallelism(cfg.Runner.Parallelism),
		backtest.WithMonitorFlags(monitorFlags),
		backtest.WithHandlerPerformance(cfg.Logging.Performance),
	}
	if servers.telemetry != nil {
		runnerOptions = append(runnerOptions, backtest.WithSessionTelemetry(servers.telemetry))
	}
	if servers.hub != nil {
		hub := servers.hub
		runnerOptions = append(runnerOptions, backtest.WithHook(func(name string) []backtest.SessionOption {
			return []backtest.SessionOption{
				backtest.WithFillHandler(hub.FillHandler(name)),
				backtest.WithOrderHandler(hub.OrderHandler(name)),
				backtest.WithEquityHandler(hub.EquityHandler(name)),
			}
		}))
	}
	if cfg.Runner.AuditInterval > 0 {
		interval := cfg.Runner.AuditInterval
		runnerOptions = append(runnerOptions, backtest.WithHook(func(string) []backtest.SessionOption {
			return []backtest.SessionOption{backtest.WithAuditInterval(interval)}
		}))
	}

	var store *psql.Store
	if cfg.Persist.DSN != "" {
		if store, err = psql.Connect(ctx, cfg.Persist.DSN); err != nil {
			return fmt.Errorf("unable to connect result store: %w", err)
		}
		defer func() {
			_ = store.Close()
		}()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}

	engine := sandbox.NewEngine(logger, instruments, engineOptions...)
	outcomes, err := backtest.NewRunner(logger, engine, runnerOptions...).Run(ctx, jobs)

	for _, outcome := range outcomes {
		if outcome.Name == "" {
			continue
		}
		sessionLogger := logger.With(zap.String("session_name", outcome.Name), zap.Stringer("session", outcome.Id))
		outcome.Report.Print(sessionLogger)
		sessionLogger.Info("session result",
			zap.Stringer("equity", outcome.View.Equity),
			zap.Stringer("net_pnl", outcome.View.NetPnL()),
			zap.String("journal_digest", outcome.Digest),
			zap.Bool("stopped", outcome.Stopped),
			zap.Error(outcome.Err))

		if store != nil {
			if err := store.SaveOutcome(context.WithoutCancel(ctx), outcome); err != nil {
				sessionLogger.Warn("unable to store session", zap.Error(err))
			}
		}
	}
	return err
}
