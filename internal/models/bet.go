package models

import (
	"time"

	"github.com/google/uuid"
)

// BetSide represents the chosen side of a prop bet
type BetSide string

const (
	BetSideOver  BetSide = "OVER"
	BetSideUnder BetSide = "UNDER"
)

// BetStatus represents the lifecycle state of a simulated bet.
// Transitions: pending -> won | lost | voided. Terminal once resolved.
type BetStatus string

const (
	BetStatusPending BetStatus = "pending"
	BetStatusWon     BetStatus = "won"
	BetStatusLost    BetStatus = "lost"
	BetStatusVoided  BetStatus = "voided"
)

// SimulatedBet is the unit of historical replay: a candidate snapshot, the
// prediction that motivated it, the sizing decision, and the observed result.
// Created exactly once per placed bet and immutable after resolution.
type SimulatedBet struct {
	ID          uuid.UUID  `json:"id"`
	PlacedAt    time.Time  `json:"placed_at"`
	Candidate   Candidate  `json:"candidate"`
	Prediction  Prediction `json:"prediction"`
	Side        BetSide    `json:"side"`
	Stake       float64    `json:"stake" validate:"gt=0"`
	Odds        float64    `json:"odds" validate:"gt=1"`
	ClosingOdds *float64   `json:"closing_odds,omitempty"`
	Strategy    string     `json:"strategy"`
	Status      BetStatus  `json:"status"`
	ActualValue *float64   `json:"actual_value,omitempty"`
	ProfitLoss  *float64   `json:"profit_loss,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// IsResolved reports whether the bet has reached a terminal state.
func (b *SimulatedBet) IsResolved() bool {
	return b.Status != BetStatusPending
}

// Won reports whether the bet was resolved as a winner.
func (b *SimulatedBet) Won() bool {
	return b.Status == BetStatusWon
}

// PnL returns the realized profit and loss, 0 while pending or voided.
func (b *SimulatedBet) PnL() float64 {
	if b.ProfitLoss == nil {
		return 0
	}
	return *b.ProfitLoss
}

// Return is the per-stake return of the bet, the unit used for the
// analyzer's return series.
func (b *SimulatedBet) Return() float64 {
	if b.Stake == 0 {
		return 0
	}
	return b.PnL() / b.Stake
}
