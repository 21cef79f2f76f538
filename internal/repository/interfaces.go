package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/prop-edge/internal/models"
)

// RunRepository defines the interface for backtest run persistence
type RunRepository interface {
	SaveRun(ctx context.Context, result *models.BacktestResult, bets []models.SimulatedBet) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.BacktestResult, error)
	GetLatest(ctx context.Context, limit int) ([]*models.BacktestResult, error)
	GetByDateRange(ctx context.Context, start, end time.Time) ([]*models.BacktestResult, error)
	GetBetsByRunID(ctx context.Context, runID uuid.UUID) ([]models.SimulatedBet, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
