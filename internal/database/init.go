package database

import (
	"context"
	"fmt"

	"github.com/yourusername/prop-edge/internal/config"
)

// schema holds the tables the run repository writes to. Applied with
// IF NOT EXISTS, so Initialize is safe to call on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	id UUID PRIMARY KEY,
	run_date TIMESTAMPTZ NOT NULL,
	start_date DATE NOT NULL,
	end_date DATE NOT NULL,
	initial_bankroll DOUBLE PRECISION NOT NULL,
	final_bankroll DOUBLE PRECISION NOT NULL,
	total_bets INTEGER NOT NULL,
	winning_bets INTEGER NOT NULL,
	win_rate DOUBLE PRECISION NOT NULL,
	roi DOUBLE PRECISION NOT NULL,
	profit_loss DOUBLE PRECISION NOT NULL,
	max_drawdown DOUBLE PRECISION NOT NULL,
	sharpe_ratio DOUBLE PRECISION NOT NULL,
	optimal_kelly DOUBLE PRECISION NOT NULL,
	var_95 DOUBLE PRECISION NOT NULL,
	expected_shortfall DOUBLE PRECISION NOT NULL,
	stopped_early BOOLEAN NOT NULL,
	stop_reason TEXT,
	full_results JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS simulated_bets (
	id UUID PRIMARY KEY,
	run_id UUID NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
	placed_at TIMESTAMPTZ NOT NULL,
	candidate_id TEXT NOT NULL,
	prop_type TEXT NOT NULL,
	model TEXT NOT NULL,
	side TEXT NOT NULL,
	stake DOUBLE PRECISION NOT NULL,
	odds DOUBLE PRECISION NOT NULL,
	closing_odds DOUBLE PRECISION,
	status TEXT NOT NULL,
	actual_value DOUBLE PRECISION,
	profit_loss DOUBLE PRECISION
);

CREATE INDEX IF NOT EXISTS idx_simulated_bets_run_id ON simulated_bets(run_id);
CREATE INDEX IF NOT EXISTS idx_backtest_runs_run_date ON backtest_runs(run_date DESC);
`

// Initialize creates a database connection pool and applies the schema.
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	if _, err := db.pool.Exec(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return db, nil
}
