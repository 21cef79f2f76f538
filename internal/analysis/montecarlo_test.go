package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/prop-edge/internal/models"
)

func mcBet(confidence, stake, odds float64) models.SimulatedBet {
	pnl := stake * (odds - 1.0)
	return models.SimulatedBet{
		ID:         uuid.New(),
		PlacedAt:   time.Now(),
		Prediction: models.Prediction{Confidence: confidence},
		Stake:      stake,
		Odds:       odds,
		Status:     models.BetStatusWon,
		ProfitLoss: &pnl,
	}
}

func TestMonteCarloDeterministicWithSeed(t *testing.T) {
	bets := []models.SimulatedBet{
		mcBet(0.6, 100, 2.0),
		mcBet(0.55, 80, 1.9),
		mcBet(0.7, 120, 1.8),
	}
	cfg := MonteCarloConfig{Iterations: 500, Seed: 42, InitialBankroll: 1000}

	first, err := RunMonteCarlo(context.Background(), bets, cfg)
	require.NoError(t, err)
	second, err := RunMonteCarlo(context.Background(), bets, cfg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 500, first.Iterations)
}

func TestMonteCarloSureThingAlwaysProfits(t *testing.T) {
	bets := []models.SimulatedBet{mcBet(1.0, 100, 2.0)}
	cfg := MonteCarloConfig{Iterations: 200, Seed: 7, InitialBankroll: 1000}

	result, err := RunMonteCarlo(context.Background(), bets, cfg)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, result.ProbabilityOfProfit, 1e-9)
	assert.InDelta(t, 0.0, result.ProbabilityOfRuin, 1e-9)
	assert.InDelta(t, 0.1, result.MeanReturn, 1e-9)
	assert.InDelta(t, 0.0, result.StdReturn, 1e-9)
}

func TestMonteCarloCertainLossRuinsFullStake(t *testing.T) {
	bet := mcBet(0.0, 1000, 2.0)
	bet.Candidate = models.Candidate{Odds: 0} // no implied fallback either
	cfg := MonteCarloConfig{Iterations: 100, Seed: 7, InitialBankroll: 1000}

	result, err := RunMonteCarlo(context.Background(), []models.SimulatedBet{bet}, cfg)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, result.ProbabilityOfRuin, 1e-9)
	assert.InDelta(t, 0.0, result.ProbabilityOfProfit, 1e-9)
	assert.InDelta(t, -1.0, result.MeanReturn, 1e-9)
}

func TestMonteCarloSkipsUnresolvedBets(t *testing.T) {
	pending := mcBet(0.6, 100, 2.0)
	pending.Status = models.BetStatusPending
	cfg := MonteCarloConfig{Iterations: 50, Seed: 3, InitialBankroll: 1000}

	result, err := RunMonteCarlo(context.Background(), []models.SimulatedBet{pending}, cfg)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, result.MeanReturn, 1e-9)
	assert.InDelta(t, 0.0, result.StdReturn, 1e-9)
	assert.InDelta(t, 0.0, result.ProbabilityOfProfit, 1e-9)
}

func TestMonteCarloCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunMonteCarlo(ctx, []models.SimulatedBet{mcBet(0.6, 100, 2.0)}, MonteCarloConfig{Iterations: 10, Seed: 1, InitialBankroll: 1000})
	assert.ErrorIs(t, err, context.Canceled)
}
