package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yourusername/prop-edge/internal/database"
	"github.com/yourusername/prop-edge/internal/models"
)

const errScanRun = "failed to scan backtest run: %w"

// PostgresRunRepository implements RunRepository for PostgreSQL
type PostgresRunRepository struct {
	db *database.DB
}

// NewPostgresRunRepository creates a new backtest run repository
func NewPostgresRunRepository(db *database.DB) RunRepository {
	return &PostgresRunRepository{db: db}
}

// SaveRun inserts a run summary and its bet log in one transaction
func (r *PostgresRunRepository) SaveRun(ctx context.Context, result *models.BacktestResult, bets []models.SimulatedBet) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO backtest_runs (
				id, run_date, start_date, end_date,
				initial_bankroll, final_bankroll, total_bets, winning_bets,
				win_rate, roi, profit_loss, max_drawdown, sharpe_ratio,
				optimal_kelly, var_95, expected_shortfall,
				stopped_early, stop_reason, full_results
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		`

		_, err := tx.Exec(ctx, query,
			result.ID, result.RunDate, result.StartDate, result.EndDate,
			result.InitialBankroll, result.FinalBankroll, result.TotalBets, result.WinningBets,
			result.WinRate, result.ROI, result.ProfitLoss, result.MaxDrawdown, result.SharpeRatio,
			result.OptimalKelly, result.ValueAtRisk95, result.ExpectedShortfall,
			result.StoppedEarly, result.StopReason, result.ToJSON(),
		)
		if err != nil {
			return fmt.Errorf("failed to save backtest run: %w", err)
		}

		betQuery := `
			INSERT INTO simulated_bets (
				id, run_id, placed_at, candidate_id, prop_type, model,
				side, stake, odds, closing_odds, status, actual_value, profit_loss
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		`
		for _, bet := range bets {
			_, err := tx.Exec(ctx, betQuery,
				bet.ID, result.ID, bet.PlacedAt, bet.Candidate.ID, bet.Candidate.PropType, bet.Prediction.Model,
				string(bet.Side), bet.Stake, bet.Odds, bet.ClosingOdds, string(bet.Status), bet.ActualValue, bet.ProfitLoss,
			)
			if err != nil {
				return fmt.Errorf("failed to save simulated bet: %w", err)
			}
		}
		return nil
	})
}

// GetByID retrieves a run by ID
func (r *PostgresRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BacktestResult, error) {
	query := `SELECT full_results FROM backtest_runs WHERE id = $1`

	var raw []byte
	if err := r.db.GetPool().QueryRow(ctx, query, id).Scan(&raw); err != nil {
		return nil, fmt.Errorf("failed to query backtest run: %w", err)
	}

	result := &models.BacktestResult{}
	if err := json.Unmarshal(raw, result); err != nil {
		return nil, fmt.Errorf(errScanRun, err)
	}
	return result, nil
}

// GetLatest retrieves the most recent runs
func (r *PostgresRunRepository) GetLatest(ctx context.Context, limit int) ([]*models.BacktestResult, error) {
	query := `SELECT full_results FROM backtest_runs ORDER BY run_date DESC LIMIT $1`

	rows, err := r.db.GetPool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest backtest runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// GetByDateRange retrieves runs executed within a date range
func (r *PostgresRunRepository) GetByDateRange(ctx context.Context, start, end time.Time) ([]*models.BacktestResult, error) {
	query := `SELECT full_results FROM backtest_runs WHERE run_date >= $1 AND run_date <= $2 ORDER BY run_date DESC`

	rows, err := r.db.GetPool().Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest runs by date range: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// GetBetsByRunID retrieves the bet log for a run
func (r *PostgresRunRepository) GetBetsByRunID(ctx context.Context, runID uuid.UUID) ([]models.SimulatedBet, error) {
	query := `
		SELECT id, placed_at, candidate_id, prop_type, model,
			side, stake, odds, closing_odds, status, actual_value, profit_loss
		FROM simulated_bets WHERE run_id = $1 ORDER BY placed_at
	`
	rows, err := r.db.GetPool().Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query simulated bets: %w", err)
	}
	defer rows.Close()

	var bets []models.SimulatedBet
	for rows.Next() {
		var bet models.SimulatedBet
		var side, status string
		if err := rows.Scan(
			&bet.ID, &bet.PlacedAt, &bet.Candidate.ID, &bet.Candidate.PropType, &bet.Prediction.Model,
			&side, &bet.Stake, &bet.Odds, &bet.ClosingOdds, &status, &bet.ActualValue, &bet.ProfitLoss,
		); err != nil {
			return nil, fmt.Errorf("failed to scan simulated bet: %w", err)
		}
		bet.Side = models.BetSide(side)
		bet.Status = models.BetStatus(status)
		bets = append(bets, bet)
	}
	return bets, rows.Err()
}

// Delete removes a run and its bet log
func (r *PostgresRunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.GetPool().Exec(ctx, `DELETE FROM backtest_runs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete backtest run: %w", err)
	}
	return nil
}

func scanRuns(rows pgx.Rows) ([]*models.BacktestResult, error) {
	var results []*models.BacktestResult
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf(errScanRun, err)
		}
		result := &models.BacktestResult{}
		if err := json.Unmarshal(raw, result); err != nil {
			return nil, fmt.Errorf(errScanRun, err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
