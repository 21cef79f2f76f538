package backtest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/prop-edge/internal/feed"
	"github.com/yourusername/prop-edge/internal/lineup"
	"github.com/yourusername/prop-edge/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type fakeProvider struct {
	days map[string]*feed.DaySheet
	err  error
}

func (f *fakeProvider) FetchDays(ctx context.Context, start, end time.Time, propTypes []string) (map[string]*feed.DaySheet, error) {
	return f.days, f.err
}

func (f *fakeProvider) Name() string { return "fake_provider" }

type fakeOracle struct {
	preds   map[string]models.Prediction
	failing map[string]error
}

func (f *fakeOracle) Predict(ctx context.Context, candidate models.Candidate) (*models.Prediction, error) {
	if err, ok := f.failing[candidate.ID]; ok {
		return nil, err
	}
	pred, ok := f.preds[candidate.ID]
	if !ok {
		return nil, fmt.Errorf("%w: no prediction for %s", models.ErrOracleFailure, candidate.ID)
	}
	return &pred, nil
}

func (f *fakeOracle) Name() string { return "fake_oracle" }

func day(t *testing.T, date string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	return parsed
}

// overCandidate builds a candidate at line 20 odds 2.0 with a confident OVER
// prediction (value 24 -> win probability 0.7, edge 0.2).
func overCandidate(id, date string) (models.Candidate, models.Prediction) {
	gameDate, _ := time.Parse("2006-01-02", date)
	candidate := models.Candidate{
		ID:       id,
		Sport:    "basketball",
		PropType: "points",
		Player:   "Test Player",
		Team:     "AAA",
		Opponent: "BBB",
		Line:     20.0,
		Odds:     2.0,
		GameDate: gameDate,
	}
	pred := models.Prediction{
		Model:      "test_model",
		Value:      24.0,
		Confidence: 0.8,
	}
	return candidate, pred
}

type fixture struct {
	provider *fakeProvider
	oracle   *fakeOracle
}

func newFixture() *fixture {
	return &fixture{
		provider: &fakeProvider{days: make(map[string]*feed.DaySheet)},
		oracle:   &fakeOracle{preds: make(map[string]models.Prediction), failing: make(map[string]error)},
	}
}

// addDay registers one candidate for the date with the given actual.
func (f *fixture) addDay(t *testing.T, date string, actual float64) string {
	t.Helper()
	id := "cand-" + date
	candidate, pred := overCandidate(id, date)
	f.provider.days[date] = &feed.DaySheet{
		Date:        date,
		Candidates:  []models.Candidate{candidate},
		Actuals:     map[string]float64{id: actual},
		ClosingOdds: map[string]float64{id: 1.9},
	}
	f.oracle.preds[id] = pred
	return id
}

func fixedStakeConfig(t *testing.T, start, end string) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.StartDate = day(t, start)
	cfg.EndDate = day(t, end)
	cfg.StakeMode = StakeModeFixed
	cfg.FixedStake = 100
	cfg.MaxPositionSize = 0.2
	cfg.Workers = 1
	return cfg
}

func TestEngineValidatesConfig(t *testing.T) {
	f := newFixture()
	cfg := fixedStakeConfig(t, "2025-01-02", "2025-01-01") // inverted range

	_, err := NewEngine(cfg, f.provider, f.oracle, nil, nil, nil, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestEngineRequiresCollaborators(t *testing.T) {
	f := newFixture()
	cfg := fixedStakeConfig(t, "2025-01-01", "2025-01-02")

	_, err := NewEngine(cfg, nil, f.oracle, nil, nil, nil, testLogger())
	assert.ErrorIs(t, err, models.ErrConfiguration)

	_, err = NewEngine(cfg, f.provider, nil, nil, nil, nil, testLogger())
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestRunWinningDay(t *testing.T) {
	f := newFixture()
	f.addDay(t, "2025-01-01", 25.0) // actual above the line, OVER wins

	cfg := fixedStakeConfig(t, "2025-01-01", "2025-01-01")
	engine, err := NewEngine(cfg, f.provider, f.oracle, nil, nil, nil, testLogger())
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalBets)
	assert.Equal(t, 1, result.WinningBets)
	assert.Equal(t, 1100.0, result.FinalBankroll)
	assert.Equal(t, 100.0, result.ProfitLoss)
	assert.False(t, result.StoppedEarly)
	assert.Empty(t, result.Diagnostics)
	assert.Contains(t, result.ByModel, "test_model")
	assert.Contains(t, result.ByPropType, "points")
}

func TestRunStopLoss(t *testing.T) {
	f := newFixture()
	dates := []string{"2025-01-01", "2025-01-02", "2025-01-03", "2025-01-04", "2025-01-05"}
	for _, d := range dates {
		f.addDay(t, d, 15.0) // actual below the line, OVER loses
	}

	cfg := fixedStakeConfig(t, "2025-01-01", "2025-01-05")
	cfg.StopLoss = 0.2
	cfg.MaxDrawdownLimit = 0.5

	engine, err := NewEngine(cfg, f.provider, f.oracle, nil, nil, nil, testLogger())
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	// 1000 -> 900 -> 800: the first day ending at or below 800 stops the run
	assert.True(t, result.StoppedEarly)
	assert.Contains(t, result.StopReason, "stop loss")
	assert.Equal(t, 2, result.TotalBets)
	assert.Equal(t, 800.0, result.FinalBankroll)
}

func TestRunMaxDrawdownStop(t *testing.T) {
	f := newFixture()
	dates := []string{"2025-01-01", "2025-01-02", "2025-01-03", "2025-01-04", "2025-01-05", "2025-01-06"}
	for _, d := range dates {
		f.addDay(t, d, 15.0)
	}

	cfg := fixedStakeConfig(t, "2025-01-01", "2025-01-06")
	cfg.StopLoss = 0.9
	cfg.MaxDrawdownLimit = 0.15

	engine, err := NewEngine(cfg, f.provider, f.oracle, nil, nil, nil, testLogger())
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.StoppedEarly)
	assert.Contains(t, result.StopReason, "drawdown")
	assert.GreaterOrEqual(t, result.MaxDrawdown, 0.15)
}

func TestRunDataGapSkipsDay(t *testing.T) {
	f := newFixture()
	f.addDay(t, "2025-01-01", 25.0)
	f.addDay(t, "2025-01-03", 25.0)
	// 01-02 and 01-04 have no data

	cfg := fixedStakeConfig(t, "2025-01-01", "2025-01-04")
	engine, err := NewEngine(cfg, f.provider, f.oracle, nil, nil, nil, testLogger())
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalBets)
	require.Len(t, result.Diagnostics, 2)
	for _, diag := range result.Diagnostics {
		assert.Equal(t, models.DiagnosticDataGap, diag.Kind)
	}
}

func TestRunOracleFailureExcludesCandidate(t *testing.T) {
	f := newFixture()
	id := f.addDay(t, "2025-01-01", 25.0)
	f.oracle.failing[id] = fmt.Errorf("%w: model unavailable", models.ErrOracleFailure)

	cfg := fixedStakeConfig(t, "2025-01-01", "2025-01-01")
	engine, err := NewEngine(cfg, f.provider, f.oracle, nil, nil, nil, testLogger())
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalBets)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, models.DiagnosticOracleFailure, result.Diagnostics[0].Kind)
	assert.Equal(t, id, result.Diagnostics[0].CandidateID)
}

func TestRunMissingActualRecordsDiagnostic(t *testing.T) {
	f := newFixture()
	id := f.addDay(t, "2025-01-01", 25.0)
	delete(f.provider.days["2025-01-01"].Actuals, id)

	cfg := fixedStakeConfig(t, "2025-01-01", "2025-01-01")
	engine, err := NewEngine(cfg, f.provider, f.oracle, nil, nil, nil, testLogger())
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalBets)
	assert.Equal(t, 1000.0, result.FinalBankroll)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, models.DiagnosticUnknownOutcome, result.Diagnostics[0].Kind)
}

func TestRunPushVoidsBet(t *testing.T) {
	f := newFixture()
	id := f.addDay(t, "2025-01-01", 20.0) // lands exactly on the line

	cfg := fixedStakeConfig(t, "2025-01-01", "2025-01-01")
	engine, err := NewEngine(cfg, f.provider, f.oracle, nil, nil, nil, testLogger())
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	// stake refunded, nothing resolved
	assert.Equal(t, 0, result.TotalBets)
	assert.Equal(t, 1000.0, result.FinalBankroll)

	bets := engine.Ledger().Bets()
	require.Len(t, bets, 1)
	assert.Equal(t, models.BetStatusVoided, bets[0].Status)
	assert.Equal(t, id, bets[0].Candidate.ID)
}

func TestRunConservationAndDrawdown(t *testing.T) {
	f := newFixture()
	actuals := []float64{25, 15, 15, 25, 25, 15, 25}
	for i, actual := range actuals {
		f.addDay(t, fmt.Sprintf("2025-01-%02d", i+1), actual)
	}

	cfg := fixedStakeConfig(t, "2025-01-01", "2025-01-07")
	cfg.StopLoss = 0.9
	cfg.MaxDrawdownLimit = 0.9

	engine, err := NewEngine(cfg, f.provider, f.oracle, nil, nil, nil, testLogger())
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	state := engine.Ledger().State()
	assert.InDelta(t, state.Initial+state.TotalProfit, state.Current, 1e-9)
	assert.Equal(t, state.Current, result.FinalBankroll)

	// reported max drawdown dominates every equity sample
	require.NotEmpty(t, result.EquityCurve)
	for _, point := range result.EquityCurve {
		assert.LessOrEqual(t, point.Drawdown, result.MaxDrawdown+1e-9)
	}
}

func TestRunWorkerPoolMatchesSerial(t *testing.T) {
	build := func(workers int) *models.BacktestResult {
		f := newFixture()
		date := "2025-01-01"
		sheet := &feed.DaySheet{
			Date:        date,
			Actuals:     make(map[string]float64),
			ClosingOdds: make(map[string]float64),
		}
		for i := 0; i < 8; i++ {
			id := fmt.Sprintf("cand-%d", i)
			candidate, pred := overCandidate(id, date)
			candidate.Team = fmt.Sprintf("team-%d", i)
			sheet.Candidates = append(sheet.Candidates, candidate)
			sheet.Actuals[id] = 25.0
			f.oracle.preds[id] = pred
		}
		f.provider.days[date] = sheet

		cfg := fixedStakeConfig(t, date, date)
		cfg.FixedStake = 10
		cfg.Workers = workers

		engine, err := NewEngine(cfg, f.provider, f.oracle, nil, nil, nil, testLogger())
		require.NoError(t, err)
		result, err := engine.Run(context.Background())
		require.NoError(t, err)
		return result
	}

	serial := build(1)
	parallel := build(4)

	assert.Equal(t, serial.TotalBets, parallel.TotalBets)
	assert.Equal(t, serial.FinalBankroll, parallel.FinalBankroll)
	assert.Equal(t, 8, parallel.TotalBets)
}

func TestRunLowConfidenceRejected(t *testing.T) {
	f := newFixture()
	id := f.addDay(t, "2025-01-01", 25.0)
	pred := f.oracle.preds[id]
	pred.Confidence = 0.5
	f.oracle.preds[id] = pred

	cfg := fixedStakeConfig(t, "2025-01-01", "2025-01-01")
	engine, err := NewEngine(cfg, f.provider, f.oracle, nil, nil, nil, testLogger())
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalBets)
	assert.Equal(t, 1000.0, result.FinalBankroll)
}

func TestRunProviderFailure(t *testing.T) {
	f := newFixture()
	f.provider.err = feed.NewProviderError("fake", feed.ErrCodeNetworkError, "connection refused", errors.New("dial tcp"))

	cfg := fixedStakeConfig(t, "2025-01-01", "2025-01-02")
	engine, err := NewEngine(cfg, f.provider, f.oracle, nil, nil, nil, testLogger())
	require.NoError(t, err)

	_, err = engine.Run(context.Background())
	require.Error(t, err)

	var provErr feed.ProviderError
	assert.ErrorAs(t, err, &provErr)
}

func TestRunContextCancellation(t *testing.T) {
	f := newFixture()
	f.addDay(t, "2025-01-01", 25.0)

	cfg := fixedStakeConfig(t, "2025-01-01", "2025-01-01")
	engine, err := NewEngine(cfg, f.provider, f.oracle, nil, nil, nil, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = engine.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunKellyStakesBounded(t *testing.T) {
	f := newFixture()
	for i := 1; i <= 5; i++ {
		f.addDay(t, fmt.Sprintf("2025-01-%02d", i), 25.0)
	}

	cfg := DefaultConfig()
	cfg.StartDate = day(t, "2025-01-01")
	cfg.EndDate = day(t, "2025-01-05")
	cfg.Workers = 1

	engine, err := NewEngine(cfg, f.provider, f.oracle, nil, nil, nil, testLogger())
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 5, result.TotalBets)
	bets := engine.Ledger().Bets()
	prior := cfg.InitialBankroll
	for _, bet := range bets {
		assert.Positive(t, bet.Stake)
		assert.LessOrEqual(t, bet.Stake, prior*cfg.MaxPositionSize+1e-9)
		prior += bet.PnL()
	}
}

type failingOptimizer struct{}

func (failingOptimizer) Select(ctx context.Context, picks []lineup.Pick, constraints lineup.Constraints) ([]lineup.Pick, error) {
	return nil, fmt.Errorf("%w: no feasible lineup", models.ErrConfiguration)
}

func TestRunLineupFailureRecordsDiagnostic(t *testing.T) {
	f := newFixture()
	f.addDay(t, "2025-01-01", 25.0)

	cfg := fixedStakeConfig(t, "2025-01-01", "2025-01-01")
	cfg.MaxLegs = 2

	engine, err := NewEngine(cfg, f.provider, f.oracle, failingOptimizer{}, nil, nil, testLogger())
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalBets)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, models.DiagnosticLineupFailure, result.Diagnostics[0].Kind)
	for _, diag := range result.Diagnostics {
		assert.NotEqual(t, models.DiagnosticOracleFailure, diag.Kind)
	}
}

func TestRunEquityStampedWithSimulatedDay(t *testing.T) {
	f := newFixture()
	f.addDay(t, "2025-01-01", 25.0)
	f.addDay(t, "2025-01-02", 15.0)
	f.addDay(t, "2025-01-03", 25.0)

	cfg := fixedStakeConfig(t, "2025-01-01", "2025-01-03")
	engine, err := NewEngine(cfg, f.provider, f.oracle, nil, nil, nil, testLogger())
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.EquityCurve, 3)
	for i, want := range []string{"2025-01-01", "2025-01-02", "2025-01-03"} {
		assert.Equal(t, day(t, want), result.EquityCurve[i].Time)
	}
}
