package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DiagnosticKind classifies a recoverable failure recorded during a run.
type DiagnosticKind string

const (
	DiagnosticDataGap        DiagnosticKind = "data_gap"
	DiagnosticOracleFailure  DiagnosticKind = "oracle_failure"
	DiagnosticUnknownOutcome DiagnosticKind = "unknown_outcome"
	DiagnosticLineupFailure  DiagnosticKind = "lineup_failure"
)

// Diagnostic records a partial failure that did not abort the run.
type Diagnostic struct {
	Date        string         `json:"date"`
	Kind        DiagnosticKind `json:"kind"`
	CandidateID string         `json:"candidate_id,omitempty"`
	Message     string         `json:"message"`
}

// Breakdown aggregates results for one grouping key (model or prop type).
type Breakdown struct {
	Bets        int     `json:"bets"`
	WinningBets int     `json:"winning_bets"`
	ProfitLoss  float64 `json:"profit_loss"`
	TotalStake  float64 `json:"total_stake"`
}

// EquityPoint is one sample of the bankroll time series.
type EquityPoint struct {
	Time     time.Time `json:"time"`
	Value    float64   `json:"value"`
	Drawdown float64   `json:"drawdown"`
}

// BacktestResult summarizes a completed run: counts, risk figures, breakdowns,
// and the diagnostics accumulated along the way.
type BacktestResult struct {
	ID        uuid.UUID `json:"id"`
	RunDate   time.Time `json:"run_date"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	InitialBankroll float64 `json:"initial_bankroll"`
	FinalBankroll   float64 `json:"final_bankroll"`

	TotalBets   int     `json:"total_bets"`
	WinningBets int     `json:"winning_bets"`
	LosingBets  int     `json:"losing_bets"`
	WinRate     float64 `json:"win_rate"`
	ROI         float64 `json:"roi"`
	ProfitLoss  float64 `json:"profit_loss"`

	MaxDrawdown       float64 `json:"max_drawdown"`
	SharpeRatio       float64 `json:"sharpe_ratio"`
	OptimalKelly      float64 `json:"optimal_kelly"`
	ValueAtRisk95     float64 `json:"var_95"`
	ExpectedShortfall float64 `json:"expected_shortfall"`

	ByModel    map[string]*Breakdown `json:"by_model"`
	ByPropType map[string]*Breakdown `json:"by_prop_type"`

	EquityCurve []EquityPoint `json:"equity_curve,omitempty"`

	StoppedEarly bool   `json:"stopped_early"`
	StopReason   string `json:"stop_reason,omitempty"`

	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// ToJSON exports the result to JSON
func (r *BacktestResult) ToJSON() string {
	data, _ := json.Marshal(r)
	return string(data)
}
