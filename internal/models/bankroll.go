package models

// StreakType labels the direction of the current run of results.
type StreakType string

const (
	StreakNone StreakType = "none"
	StreakWin  StreakType = "win"
	StreakLoss StreakType = "loss"
)

// BankrollState is a snapshot of the ledger: balance, running totals, derived
// ratios, extremes, and streak counters. Invariant after any resolved bet:
// Current == Initial + TotalProfit.
type BankrollState struct {
	Initial     float64 `json:"initial"`
	Current     float64 `json:"current"`
	TotalBets   int     `json:"total_bets"`
	WinningBets int     `json:"winning_bets"`
	TotalProfit float64 `json:"total_profit"`
	ROI         float64 `json:"roi"`

	AverageBetSize float64 `json:"average_bet_size"`
	LargestBet     float64 `json:"largest_bet"`
	LargestWin     float64 `json:"largest_win"`
	LargestLoss    float64 `json:"largest_loss"`

	CurrentStreak   int        `json:"current_streak"`
	StreakType      StreakType `json:"streak_type"`
	BestWinStreak   int        `json:"best_win_streak"`
	WorstLossStreak int        `json:"worst_loss_streak"`
}

// WinRate returns the fraction of resolved bets that won.
func (s BankrollState) WinRate() float64 {
	if s.TotalBets == 0 {
		return 0
	}
	return float64(s.WinningBets) / float64(s.TotalBets)
}
