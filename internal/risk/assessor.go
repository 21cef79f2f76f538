// Package risk computes per-candidate risk metrics and the go/no-go gate that
// approves or rejects bets before sizing.
package risk

import (
	"math"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/prop-edge/internal/sizing"
)

// Level classifies a candidate's overall risk.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Config holds the thresholds driving the bet gate and classification.
type Config struct {
	MinConfidence         float64
	RiskTolerance         float64
	VolatilityThreshold   float64
	DrawdownLimit         float64
	MinWinRate            float64
	MinProfitFactor       float64
	MinBankrollPercentage float64
	MaxBankrollPercentage float64
}

// DefaultConfig returns the standard gate thresholds.
func DefaultConfig() Config {
	return Config{
		MinConfidence:         0.6,
		RiskTolerance:         0.5,
		VolatilityThreshold:   0.3,
		DrawdownLimit:         0.2,
		MinWinRate:            0.4,
		MinProfitFactor:       1.2,
		MinBankrollPercentage: 0.01,
		MaxBankrollPercentage: 0.10,
	}
}

// Metrics is the per-candidate derived risk record, computed fresh at
// evaluation time and not persisted beyond the simulated bet.
type Metrics struct {
	KellyFraction      float64 `json:"kelly_fraction"`
	ExpectedValue      float64 `json:"expected_value"`
	RiskAdjustedReturn float64 `json:"risk_adjusted_return"`
	Variance           float64 `json:"variance"`
	SharpeRatio        float64 `json:"sharpe_ratio"`
	Uncertainty        float64 `json:"uncertainty"`
	Volatility         float64 `json:"volatility"`
	MaxDrawdown        float64 `json:"max_drawdown"`
	WinRate            float64 `json:"win_rate"`
	ProfitFactor       float64 `json:"profit_factor"`
}

// History carries the trailing performance figures the gate checks against,
// sourced from the ledger.
type History struct {
	WinRate      float64
	ProfitFactor float64
	MaxDrawdown  float64
	Returns      []float64 // per-stake returns of recent resolved bets
}

// Volatility is the standard deviation of the trailing return series.
func (h History) Volatility() float64 {
	if len(h.Returns) == 0 {
		return 0
	}
	mean := 0.0
	for _, r := range h.Returns {
		mean += r
	}
	mean /= float64(len(h.Returns))
	variance := 0.0
	for _, r := range h.Returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(h.Returns))
	return math.Sqrt(variance)
}

// Assessor evaluates candidates against configured risk thresholds.
type Assessor struct {
	cfg    Config
	logger *logrus.Logger
}

// NewAssessor creates an assessor.
func NewAssessor(cfg Config, logger *logrus.Logger) *Assessor {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = DefaultConfig().MinConfidence
	}
	return &Assessor{cfg: cfg, logger: logger}
}

// Evaluate computes the risk metrics for one candidate: win probability p,
// decimal odds, model confidence, against the trailing history.
//
// The payoff variance follows the binomial structure of a fixed-odds bet per
// unit staked: win pays odds-1, loss costs 1.
func (a *Assessor) Evaluate(p, odds, confidence float64, hist History) Metrics {
	winAmt := odds - 1.0
	lossAmt := 1.0
	ev := p*winAmt - (1.0-p)*lossAmt

	variance := Variance(p, winAmt, lossAmt)
	sharpe := 0.0
	if variance > 0 {
		sharpe = ev / math.Sqrt(variance)
	}

	return Metrics{
		KellyFraction:      sizing.RawKelly(p, odds),
		ExpectedValue:      ev,
		RiskAdjustedReturn: sharpe,
		Variance:           variance,
		SharpeRatio:        sharpe,
		Uncertainty:        1.0 - confidence,
		Volatility:         hist.Volatility(),
		MaxDrawdown:        hist.MaxDrawdown,
		WinRate:            hist.WinRate,
		ProfitFactor:       hist.ProfitFactor,
	}
}

// ShouldPlaceBet approves a candidate only when every gate condition holds.
// Rejection is silent; the candidate is skipped, never retried.
func (a *Assessor) ShouldPlaceBet(m Metrics, confidence float64) bool {
	if confidence < a.cfg.MinConfidence {
		return false
	}
	if m.ExpectedValue <= 0 {
		return false
	}
	if m.RiskAdjustedReturn <= 0 {
		return false
	}
	if m.Uncertainty > a.cfg.RiskTolerance {
		return false
	}
	if m.Volatility > a.cfg.VolatilityThreshold {
		return false
	}
	if m.MaxDrawdown > a.cfg.DrawdownLimit {
		return false
	}
	if m.WinRate < a.cfg.MinWinRate {
		return false
	}
	if m.ProfitFactor < a.cfg.MinProfitFactor {
		return false
	}
	return true
}

// Classify derives the risk level from the stake as a fraction of bankroll
// combined with confidence and edge.
func (a *Assessor) Classify(stakeFraction, confidence, edge float64) Level {
	if stakeFraction <= a.cfg.MinBankrollPercentage && confidence >= 0.8 && edge >= 0.1 {
		return LevelLow
	}
	if stakeFraction <= a.cfg.MaxBankrollPercentage && confidence >= 0.6 && edge >= 0.05 {
		return LevelMedium
	}
	return LevelHigh
}

// Variance computes the payoff variance of a binomial bet:
// Var = p*(winAmt-EV)^2 + (1-p)*(-lossAmt-EV)^2 with EV = p*winAmt - (1-p)*lossAmt.
func Variance(p, winAmt, lossAmt float64) float64 {
	ev := p*winAmt - (1.0-p)*lossAmt
	winDev := winAmt - ev
	lossDev := -lossAmt - ev
	return p*winDev*winDev + (1.0-p)*lossDev*lossDev
}

// Sharpe is EV over payoff standard deviation, 0 when variance is 0.
func Sharpe(ev, variance float64) float64 {
	if variance <= 0 {
		return 0
	}
	return ev / math.Sqrt(variance)
}
