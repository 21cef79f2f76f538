package bankroll

import (
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/prop-edge/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func placeBet(t *testing.T, l *Ledger, stake, odds float64) uuid.UUID {
	t.Helper()
	handle, err := l.PlaceBet(&models.SimulatedBet{Stake: stake, Odds: odds})
	require.NoError(t, err)
	return handle
}

func TestPlaceAndResolveWin(t *testing.T) {
	ledger := NewLedger(1000, testLogger())

	handle := placeBet(t, ledger, 100, 2.0)
	assert.Equal(t, 900.0, ledger.Current())

	require.NoError(t, ledger.ResolveBet(handle, true))

	state := ledger.State()
	assert.Equal(t, 1100.0, state.Current)
	assert.Equal(t, 100.0, state.TotalProfit)
	assert.Equal(t, 1, state.WinningBets)
	assert.Equal(t, 100.0, state.LargestWin)
	assert.Equal(t, 10.0, state.ROI)
}

func TestPlaceAndResolveLoss(t *testing.T) {
	ledger := NewLedger(1000, testLogger())

	handle := placeBet(t, ledger, 100, 2.0)
	require.NoError(t, ledger.ResolveBet(handle, false))

	state := ledger.State()
	assert.Equal(t, 900.0, state.Current)
	assert.Equal(t, -100.0, state.TotalProfit)
	assert.Equal(t, 100.0, state.LargestLoss)
	assert.Equal(t, 0, state.WinningBets)
}

func TestConservationInvariant(t *testing.T) {
	ledger := NewLedger(1000, testLogger())

	outcomes := []bool{true, false, false, true, true, false}
	for _, won := range outcomes {
		handle := placeBet(t, ledger, 50, 1.9)
		require.NoError(t, ledger.ResolveBet(handle, won))

		state := ledger.State()
		assert.InDelta(t, state.Initial+state.TotalProfit, state.Current, 1e-9)
	}
}

func TestInsufficientBankroll(t *testing.T) {
	ledger := NewLedger(100, testLogger())

	_, err := ledger.PlaceBet(&models.SimulatedBet{Stake: 150, Odds: 2.0})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInsufficientBankroll)

	// balance untouched after the rejection
	assert.Equal(t, 100.0, ledger.Current())
	assert.Equal(t, 0, ledger.State().TotalBets)
}

func TestInvalidStakeAndOdds(t *testing.T) {
	ledger := NewLedger(1000, testLogger())

	_, err := ledger.PlaceBet(&models.SimulatedBet{Stake: 0, Odds: 2.0})
	assert.ErrorIs(t, err, models.ErrInvalidBetState)

	_, err = ledger.PlaceBet(&models.SimulatedBet{Stake: 10, Odds: 1.0})
	assert.ErrorIs(t, err, models.ErrInvalidBetState)
}

func TestResolveTwiceFails(t *testing.T) {
	ledger := NewLedger(1000, testLogger())

	handle := placeBet(t, ledger, 100, 2.0)
	require.NoError(t, ledger.ResolveBet(handle, true))

	err := ledger.ResolveBet(handle, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidBetState)

	// second resolution must not credit again
	assert.Equal(t, 1100.0, ledger.Current())
}

func TestResolveUnknownHandle(t *testing.T) {
	ledger := NewLedger(1000, testLogger())

	err := ledger.ResolveBet(uuid.New(), true)
	assert.ErrorIs(t, err, models.ErrInvalidBetState)
}

func TestVoidBetRefundsStake(t *testing.T) {
	ledger := NewLedger(1000, testLogger())

	handle := placeBet(t, ledger, 100, 2.0)
	require.NoError(t, ledger.VoidBet(handle))

	state := ledger.State()
	assert.Equal(t, 1000.0, state.Current)
	assert.Equal(t, 0.0, state.TotalProfit)
	assert.Equal(t, 0, state.TotalBets)
	assert.Equal(t, 0.0, state.AverageBetSize)

	bets := ledger.Bets()
	require.Len(t, bets, 1)
	assert.Equal(t, models.BetStatusVoided, bets[0].Status)
	assert.Equal(t, 0.0, bets[0].PnL())
}

func TestVoidBetPreservesAverage(t *testing.T) {
	ledger := NewLedger(1000, testLogger())

	h1 := placeBet(t, ledger, 100, 2.0)
	placeBet(t, ledger, 40, 2.0)
	require.NoError(t, ledger.VoidBet(h1))

	state := ledger.State()
	assert.Equal(t, 1, state.TotalBets)
	assert.InDelta(t, 40.0, state.AverageBetSize, 1e-9)
}

func TestStreakTracking(t *testing.T) {
	ledger := NewLedger(10000, testLogger())

	sequence := []bool{true, true, true, false, false, true}
	for _, won := range sequence {
		handle := placeBet(t, ledger, 10, 2.0)
		require.NoError(t, ledger.ResolveBet(handle, won))
	}

	state := ledger.State()
	assert.Equal(t, 3, state.BestWinStreak)
	assert.Equal(t, 2, state.WorstLossStreak)
	assert.Equal(t, models.StreakWin, state.StreakType)
	assert.Equal(t, 1, state.CurrentStreak)
}

func TestAverageBetSize(t *testing.T) {
	ledger := NewLedger(1000, testLogger())

	for _, stake := range []float64{10, 20, 30} {
		placeBet(t, ledger, stake, 2.0)
	}

	state := ledger.State()
	assert.InDelta(t, 20.0, state.AverageBetSize, 1e-9)
	assert.Equal(t, 30.0, state.LargestBet)
}

func TestProfitFactor(t *testing.T) {
	ledger := NewLedger(1000, testLogger())

	h1 := placeBet(t, ledger, 100, 2.0)
	require.NoError(t, ledger.ResolveBet(h1, true)) // +100
	h2 := placeBet(t, ledger, 50, 2.0)
	require.NoError(t, ledger.ResolveBet(h2, false)) // -50

	assert.InDelta(t, 2.0, ledger.ProfitFactor(), 1e-9)
}

func TestProfitFactorNoLosses(t *testing.T) {
	ledger := NewLedger(1000, testLogger())

	handle := placeBet(t, ledger, 100, 2.0)
	require.NoError(t, ledger.ResolveBet(handle, true))

	assert.Equal(t, 999.0, ledger.ProfitFactor())
	assert.Equal(t, 0.0, NewLedger(1000, testLogger()).ProfitFactor())
}

func TestResolvedReturnsExcludePendingAndVoided(t *testing.T) {
	ledger := NewLedger(1000, testLogger())

	h1 := placeBet(t, ledger, 100, 2.0)
	require.NoError(t, ledger.ResolveBet(h1, true))
	h2 := placeBet(t, ledger, 100, 2.0)
	require.NoError(t, ledger.VoidBet(h2))
	placeBet(t, ledger, 100, 2.0) // stays pending

	returns := ledger.ResolvedReturns()
	require.Len(t, returns, 1)
	assert.InDelta(t, 1.0, returns[0], 1e-9)
}

func TestReset(t *testing.T) {
	ledger := NewLedger(1000, testLogger())

	handle := placeBet(t, ledger, 100, 2.0)
	require.NoError(t, ledger.ResolveBet(handle, false))

	ledger.Reset(500)

	state := ledger.State()
	assert.Equal(t, 500.0, state.Initial)
	assert.Equal(t, 500.0, state.Current)
	assert.Equal(t, 0, state.TotalBets)
	assert.Empty(t, ledger.Bets())
}
