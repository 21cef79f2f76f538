package analysis

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/yourusername/prop-edge/internal/models"
)

func resolvedBet(won bool, stake, odds float64, placedAt time.Time) models.SimulatedBet {
	status := models.BetStatusLost
	pnl := -stake
	if won {
		status = models.BetStatusWon
		pnl = stake * (odds - 1.0)
	}
	return models.SimulatedBet{
		ID:         uuid.New(),
		PlacedAt:   placedAt,
		Stake:      stake,
		Odds:       odds,
		Status:     status,
		Strategy:   "line_value",
		ProfitLoss: &pnl,
	}
}

func TestMetricsCounts(t *testing.T) {
	now := time.Now()
	bets := []models.SimulatedBet{
		resolvedBet(true, 100, 2.5, now),
		resolvedBet(false, 100, 2.0, now),
	}

	m := NewAnalyzer(DefaultConfig()).Metrics(bets)

	assert.Equal(t, 2, m.TotalBets)
	assert.Equal(t, 1, m.WinningBets)
	assert.InDelta(t, 0.5, m.WinRate, 1e-9)
	assert.InDelta(t, 200.0, m.TotalStake, 1e-9)
	assert.InDelta(t, 250.0, m.TotalReturn, 1e-9)
	// (250 - 200) / 200
	assert.InDelta(t, 0.25, m.ROI, 1e-9)
	assert.InDelta(t, 50.0, m.ProfitByStrategy["line_value"], 1e-9)
}

func TestMetricsExcludePendingAndVoided(t *testing.T) {
	now := time.Now()
	zero := 0.0
	bets := []models.SimulatedBet{
		resolvedBet(true, 100, 2.0, now),
		{ID: uuid.New(), PlacedAt: now, Stake: 50, Odds: 2.0, Status: models.BetStatusPending},
		{ID: uuid.New(), PlacedAt: now, Stake: 50, Odds: 2.0, Status: models.BetStatusVoided, ProfitLoss: &zero},
	}

	m := NewAnalyzer(DefaultConfig()).Metrics(bets)
	assert.Equal(t, 1, m.TotalBets)
	assert.InDelta(t, 100.0, m.TotalStake, 1e-9)
}

func TestMetricsIdempotent(t *testing.T) {
	now := time.Now()
	bets := []models.SimulatedBet{
		resolvedBet(true, 100, 2.0, now),
		resolvedBet(false, 50, 1.9, now),
		resolvedBet(true, 75, 2.2, now),
	}

	analyzer := NewAnalyzer(DefaultConfig())
	first := analyzer.Metrics(bets)
	second := analyzer.Metrics(bets)
	assert.Equal(t, first, second)
}

func TestMetricsStrategyTagsAlwaysPresent(t *testing.T) {
	m := NewAnalyzer(DefaultConfig()).Metrics(nil)
	for _, tag := range StrategyTags {
		_, ok := m.ProfitByStrategy[tag]
		assert.True(t, ok, "missing strategy tag %q", tag)
	}
}

func TestMetricsSince(t *testing.T) {
	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()
	bets := []models.SimulatedBet{
		resolvedBet(false, 100, 2.0, old),
		resolvedBet(true, 100, 2.0, recent),
	}

	analyzer := NewAnalyzer(DefaultConfig())
	m := analyzer.MetricsSince(bets, time.Now().Add(-time.Hour))
	assert.Equal(t, 1, m.TotalBets)
	assert.Equal(t, 1, m.WinningBets)
}

func TestCLV(t *testing.T) {
	// beat the close: positive CLV
	assert.InDelta(t, (2.0-1.9)/1.9*100.0, CLV(2.0, 1.9), 1e-9)
	// worse than the close: negative
	assert.Negative(t, CLV(1.8, 1.9))
	assert.Zero(t, CLV(2.0, 0))
}

func TestMetricsCLVAggregation(t *testing.T) {
	now := time.Now()
	closing := 1.9
	bet := resolvedBet(true, 100, 2.0, now)
	bet.ClosingOdds = &closing
	bet.Candidate = models.Candidate{ID: "c1", Line: 20.0, Odds: 2.0}
	bet.Prediction = models.Prediction{Value: 24.0, Confidence: 0.8}
	bet.Side = models.BetSideOver

	m := NewAnalyzer(DefaultConfig()).Metrics([]models.SimulatedBet{bet})

	expectedCLV := (2.0 - 1.9) / 1.9 * 100.0
	assert.InDelta(t, expectedCLV, m.AvgCLV, 1e-9)
	assert.InDelta(t, 100.0-expectedCLV*10.0, m.MarketEfficiencyScore, 1e-9)
	assert.Positive(t, m.EdgeRetention)
}

func TestDecimalFromAmerican(t *testing.T) {
	assert.InDelta(t, 2.5, DecimalFromAmerican(150), 1e-9)
	assert.InDelta(t, 1.5, DecimalFromAmerican(-200), 1e-9)
	assert.InDelta(t, 2.0, DecimalFromAmerican(100), 1e-9)
	assert.Zero(t, DecimalFromAmerican(0))
}

func TestSharpeRatio(t *testing.T) {
	assert.Zero(t, SharpeRatio(nil, 0))
	assert.Zero(t, SharpeRatio([]float64{0.5, 0.5}, 0)) // zero variance

	// mean 0.25, stddev 0.75
	sharpe := SharpeRatio([]float64{1.0, -0.5}, 0)
	assert.InDelta(t, 0.25/0.75, sharpe, 1e-9)
}

func TestValueAtRiskAndShortfall(t *testing.T) {
	returns := []float64{-1.0, -0.5, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9}

	// n=10, 95%: tail index floor(0.05*10)=0 -> worst return
	assert.InDelta(t, 1.0, ValueAtRisk(returns, 0.95), 1e-9)
	assert.InDelta(t, 1.0, ExpectedShortfall(returns, 0.95), 1e-9)

	// 80%: tail index 2 -> third-worst; shortfall averages the three worst
	assert.InDelta(t, -0.9, ValueAtRisk(returns, 0.80), 1e-9)
	assert.InDelta(t, -(-1.0-0.5+0.9)/3.0, ExpectedShortfall(returns, 0.80), 1e-9)

	assert.Zero(t, ValueAtRisk(nil, 0.95))
	assert.Zero(t, ExpectedShortfall(nil, 0.95))
}
