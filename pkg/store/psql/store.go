package psql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/peter-kozarec/arbiter/pkg/backtest"
	"github.com/peter-kozarec/arbiter/pkg/common"
)

const schema = `
CREATE TABLE IF NOT EXISTS arbiter_sessions (
	session_id     UUID PRIMARY KEY,
	name           TEXT NOT NULL,
	bars           BIGINT NOT NULL,
	fills          BIGINT NOT NULL,
	equity         NUMERIC NOT NULL,
	net_pnl        NUMERIC NOT NULL,
	commission     NUMERIC NOT NULL,
	max_drawdown   NUMERIC NOT NULL,
	journal_digest TEXT NOT NULL,
	error          TEXT
);
CREATE TABLE IF NOT EXISTS arbiter_trades (
	session_id   UUID NOT NULL REFERENCES arbiter_sessions (session_id),
	seq          INTEGER NOT NULL,
	symbol       TEXT NOT NULL,
	open_time    TIMESTAMPTZ NOT NULL,
	close_time   TIMESTAMPTZ NOT NULL,
	gross_profit NUMERIC NOT NULL,
	fees         NUMERIC NOT NULL,
	net_profit   NUMERIC NOT NULL,
	PRIMARY KEY (session_id, seq)
);`

// Store persists finished sessions. It is written once per session after
// the run and never sits on the replay path.
type Store struct {
	db *sql.DB
}

func Connect(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("unable to create schema: %w", err)
	}
	return nil
}

// SaveOutcome stores the session summary and its round trips in one
// transaction. Saving the same session twice is a no-op.
func (s *Store) SaveOutcome(ctx context.Context, outcome backtest.Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var sessionErr sql.NullString
	if outcome.Err != nil {
		sessionErr = sql.NullString{String: outcome.Err.Error(), Valid: true}
	}

	result, err := tx.ExecContext(ctx, `
	INSERT INTO arbiter_sessions (
		session_id,
		name,
		bars,
		fills,
		equity,
		net_pnl,
		commission,
		max_drawdown,
		journal_digest,
		error
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (session_id) DO NOTHING;
	`,
		outcome.Id.String(),
		outcome.Name,
		outcome.Report.Bars,
		outcome.Report.Fills,
		outcome.View.Equity.String(),
		outcome.View.NetPnL().String(),
		outcome.Report.TotalCommission.String(),
		outcome.Report.MaxDrawdown.String(),
		outcome.Digest,
		sessionErr,
	)
	if err != nil {
		return fmt.Errorf("unable to insert session %s: %w", outcome.Name, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil
	}

	for i, trade := range outcome.Trades {
		if err := insertTrade(ctx, tx, outcome, i, trade); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertTrade(ctx context.Context, tx *sql.Tx, outcome backtest.Outcome, seq int, trade common.Trade) error {
	_, err := tx.ExecContext(ctx, `
	INSERT INTO arbiter_trades (
		session_id,
		seq,
		symbol,
		open_time,
		close_time,
		gross_profit,
		fees,
		net_profit
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`,
		outcome.Id.String(),
		seq,
		trade.Symbol,
		trade.OpenTime,
		trade.CloseTime,
		trade.GrossProfit.String(),
		trade.Fees.String(),
		trade.NetProfit.String(),
	)
	if err != nil {
		return fmt.Errorf("unable to insert trade %d of session %s: %w", seq, outcome.Name, err)
	}
	return nil
}
