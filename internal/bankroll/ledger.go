// Package bankroll owns the simulated bankroll state machine: every debit and
// credit flows through the ledger's place/resolve operations.
package bankroll

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/prop-edge/internal/models"
)

// Ledger tracks the current bankroll, the full simulated bet history, and
// derived performance counters. All mutation happens through PlaceBet,
// ResolveBet and VoidBet so the conservation invariant
// current == initial + totalProfit holds after every resolution.
type Ledger struct {
	mu      sync.Mutex
	state   models.BankrollState
	history []*models.SimulatedBet
	pending map[uuid.UUID]*models.SimulatedBet
	logger  *logrus.Logger
}

// NewLedger creates a ledger with the given starting bankroll.
func NewLedger(initial float64, logger *logrus.Logger) *Ledger {
	if logger == nil {
		logger = logrus.New()
	}
	return &Ledger{
		state: models.BankrollState{
			Initial:    initial,
			Current:    initial,
			StreakType: models.StreakNone,
		},
		pending: make(map[uuid.UUID]*models.SimulatedBet),
		logger:  logger,
	}
}

// PlaceBet debits the stake and records the bet as pending. The bet must carry
// a positive stake and decimal odds above 1. Returns the handle used to
// resolve the bet. Fails with ErrInsufficientBankroll when the stake exceeds
// the current balance.
func (l *Ledger) PlaceBet(bet *models.SimulatedBet) (uuid.UUID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if bet == nil || bet.Stake <= 0 {
		return uuid.Nil, fmt.Errorf("%w: stake must be positive", models.ErrInvalidBetState)
	}
	if bet.Odds <= 1 {
		return uuid.Nil, fmt.Errorf("%w: odds must exceed 1", models.ErrInvalidBetState)
	}
	if bet.Stake > l.state.Current {
		return uuid.Nil, fmt.Errorf("%w: stake %.2f exceeds balance %.2f",
			models.ErrInsufficientBankroll, bet.Stake, l.state.Current)
	}

	if bet.ID == uuid.Nil {
		bet.ID = uuid.New()
	}
	if bet.PlacedAt.IsZero() {
		bet.PlacedAt = time.Now().UTC()
	}
	bet.Status = models.BetStatusPending

	l.state.Current -= bet.Stake
	l.state.TotalBets++
	// running mean over all placed bets
	l.state.AverageBetSize += (bet.Stake - l.state.AverageBetSize) / float64(l.state.TotalBets)
	if bet.Stake > l.state.LargestBet {
		l.state.LargestBet = bet.Stake
	}

	l.pending[bet.ID] = bet
	l.history = append(l.history, bet)

	l.logger.WithFields(logrus.Fields{
		"bet_id":  bet.ID,
		"stake":   bet.Stake,
		"odds":    bet.Odds,
		"balance": l.state.Current,
	}).Debug("Bet placed")

	return bet.ID, nil
}

// ResolveBet settles a pending bet. On a win the full payout stake*odds is
// credited back; on a loss the stake stays debited. Resolving a bet that is
// not pending fails with ErrInvalidBetState.
func (l *Ledger) ResolveBet(handle uuid.UUID, won bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bet, ok := l.pending[handle]
	if !ok {
		return fmt.Errorf("%w: bet %s is not pending", models.ErrInvalidBetState, handle)
	}
	delete(l.pending, handle)

	now := time.Now().UTC()
	bet.ResolvedAt = &now

	var pnl float64
	if won {
		pnl = bet.Stake * (bet.Odds - 1.0)
		bet.Status = models.BetStatusWon
		l.state.Current += bet.Stake * bet.Odds
		l.state.WinningBets++
		if pnl > l.state.LargestWin {
			l.state.LargestWin = pnl
		}
		l.extendStreak(models.StreakWin)
	} else {
		pnl = -bet.Stake
		bet.Status = models.BetStatusLost
		if bet.Stake > l.state.LargestLoss {
			l.state.LargestLoss = bet.Stake
		}
		l.extendStreak(models.StreakLoss)
	}
	bet.ProfitLoss = &pnl

	l.state.TotalProfit += pnl
	if l.state.Initial > 0 {
		l.state.ROI = l.state.TotalProfit / l.state.Initial * 100
	}

	l.logger.WithFields(logrus.Fields{
		"bet_id":  bet.ID,
		"won":     won,
		"pnl":     pnl,
		"balance": l.state.Current,
	}).Debug("Bet resolved")

	return nil
}

// VoidBet refunds a pending bet's stake without touching profit totals or
// streaks. Used for pushes, where the actual lands exactly on the line.
func (l *Ledger) VoidBet(handle uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bet, ok := l.pending[handle]
	if !ok {
		return fmt.Errorf("%w: bet %s is not pending", models.ErrInvalidBetState, handle)
	}
	delete(l.pending, handle)

	now := time.Now().UTC()
	bet.ResolvedAt = &now
	bet.Status = models.BetStatusVoided
	zero := 0.0
	bet.ProfitLoss = &zero

	l.state.Current += bet.Stake
	// voided bets do not count toward the resolved totals
	if l.state.TotalBets > 1 {
		l.state.AverageBetSize = (l.state.AverageBetSize*float64(l.state.TotalBets) - bet.Stake) / float64(l.state.TotalBets-1)
	} else {
		l.state.AverageBetSize = 0
	}
	l.state.TotalBets--
	return nil
}

func (l *Ledger) extendStreak(kind models.StreakType) {
	if l.state.StreakType == kind {
		l.state.CurrentStreak++
	} else {
		l.state.StreakType = kind
		l.state.CurrentStreak = 1
	}
	switch kind {
	case models.StreakWin:
		if l.state.CurrentStreak > l.state.BestWinStreak {
			l.state.BestWinStreak = l.state.CurrentStreak
		}
	case models.StreakLoss:
		if l.state.CurrentStreak > l.state.WorstLossStreak {
			l.state.WorstLossStreak = l.state.CurrentStreak
		}
	}
}

// Reset clears all state and history for a fresh run.
func (l *Ledger) Reset(initial float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state = models.BankrollState{
		Initial:    initial,
		Current:    initial,
		StreakType: models.StreakNone,
	}
	l.history = nil
	l.pending = make(map[uuid.UUID]*models.SimulatedBet)
}

// State returns a snapshot of the bankroll state.
func (l *Ledger) State() models.BankrollState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Current returns the current balance.
func (l *Ledger) Current() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Current
}

// Bets returns copies of all recorded bets in placement order.
func (l *Ledger) Bets() []models.SimulatedBet {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.SimulatedBet, 0, len(l.history))
	for _, bet := range l.history {
		out = append(out, *bet)
	}
	return out
}

// ResolvedReturns returns the per-stake return series of resolved bets, the
// input for trailing variance and Sharpe computations.
func (l *Ledger) ResolvedReturns() []float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	returns := make([]float64, 0, len(l.history))
	for _, bet := range l.history {
		if bet.Status == models.BetStatusWon || bet.Status == models.BetStatusLost {
			returns = append(returns, bet.Return())
		}
	}
	return returns
}

// ProfitFactor returns gross profit over gross loss for resolved bets.
func (l *Ledger) ProfitFactor() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	grossProfit := 0.0
	grossLoss := 0.0
	for _, bet := range l.history {
		pnl := bet.PnL()
		if pnl > 0 {
			grossProfit += pnl
		} else if pnl < 0 {
			grossLoss += -pnl
		}
	}
	if grossLoss == 0 {
		if grossProfit > 0 {
			return 999
		}
		return 0
	}
	return grossProfit / grossLoss
}
