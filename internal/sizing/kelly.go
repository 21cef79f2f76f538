// Package sizing computes bounded stake fractions from the Kelly Criterion
// with adaptive risk dampening.
package sizing

import (
	"math"

	"github.com/sirupsen/logrus"
)

// Mode selects how the dampened Kelly fraction is transformed into the final
// position size.
type Mode string

const (
	ModeFixed    Mode = "fixed"
	ModeDynamic  Mode = "dynamic"
	ModeAdaptive Mode = "adaptive"
)

// Config bounds and shapes the sizer's output.
type Config struct {
	Mode                  Mode
	BaseFraction          float64 // constant size used by ModeFixed
	MinFraction           float64
	MaxFraction           float64
	DrawdownLimit         float64 // trailing drawdown beyond which sizing is dampened
	MaxBankrollPercentage float64 // hard cap, never exceeded regardless of mode
}

// DefaultConfig returns conservative sizing bounds.
func DefaultConfig() Config {
	return Config{
		Mode:                  ModeAdaptive,
		BaseFraction:          0.02,
		MinFraction:           0.0,
		MaxFraction:           0.10,
		DrawdownLimit:         0.15,
		MaxBankrollPercentage: 0.10,
	}
}

// Batch carries the trailing context shared by all candidates sized in one
// pass: recent prediction probabilities (for volatility), drawdown, win rate,
// and the factors feeding the adaptive multiplier.
type Batch struct {
	RecentProbabilities []float64
	MaxDrawdown         float64
	WinRate             float64
	AvgConfidence       float64
	RiskScore           float64 // 0 = safest, 1 = riskiest
}

// Volatility is the standard deviation of the batch's prediction probabilities.
func (b Batch) Volatility() float64 {
	return stddev(b.RecentProbabilities)
}

// Sizer produces bounded stake fractions of bankroll.
type Sizer struct {
	cfg    Config
	logger *logrus.Logger
}

// NewSizer creates a sizer with the given bounds.
func NewSizer(cfg Config, logger *logrus.Logger) *Sizer {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.MaxFraction <= 0 {
		cfg.MaxFraction = DefaultConfig().MaxFraction
	}
	if cfg.MaxBankrollPercentage <= 0 {
		cfg.MaxBankrollPercentage = DefaultConfig().MaxBankrollPercentage
	}
	return &Sizer{cfg: cfg, logger: logger}
}

// RawKelly computes the unadjusted Kelly fraction for win probability p and
// decimal odds o: f = (p*(o-1) - (1-p)) / (o-1), floored at 0. Negative edges
// size to zero, as does any o <= 1 where no edge is possible.
func RawKelly(p, odds float64) float64 {
	if odds <= 1 || p <= 0 {
		return 0
	}
	if p > 1 {
		p = 1
	}
	b := odds - 1.0
	f := (p*b - (1.0 - p)) / b
	return math.Max(0, f)
}

// Fraction applies the adaptive adjustment pipeline to the raw Kelly fraction
// and returns a stake fraction guaranteed to lie in [0, MaxFraction] and never
// above MaxBankrollPercentage.
//
// Adjustments run in a fixed order: volatility dampening, drawdown dampening,
// losing-record dampening, the sizing-mode transform, then the bound clamp.
func (s *Sizer) Fraction(p, odds float64, batch Batch) float64 {
	f := RawKelly(p, odds)
	if f == 0 {
		return 0
	}

	vol := batch.Volatility()
	if vol > 0 {
		f *= math.Max(0, 1.0-vol)
	}
	if batch.MaxDrawdown > s.cfg.DrawdownLimit {
		f *= math.Max(0, 1.0-batch.MaxDrawdown)
	}
	if batch.WinRate < 0.5 {
		f *= batch.WinRate
	}

	switch s.cfg.Mode {
	case ModeFixed:
		f = s.cfg.BaseFraction
	case ModeDynamic:
		f *= 1.0 + batch.WinRate - 0.5
	case ModeAdaptive:
		f *= s.adaptiveMultiplier(batch)
	}

	return s.clamp(f)
}

// Stake converts a fraction into an absolute stake against the bankroll.
// A non-positive bankroll sizes to zero; the engine treats that as terminal.
func (s *Sizer) Stake(p, odds, bankroll float64, batch Batch) float64 {
	if bankroll <= 0 {
		return 0
	}
	return s.Fraction(p, odds, batch) * bankroll
}

// adaptiveMultiplier averages a confidence factor, an inverse-risk factor and
// a performance factor into a single dampener in [0,1].
func (s *Sizer) adaptiveMultiplier(batch Batch) float64 {
	confidence := clamp01(batch.AvgConfidence)
	inverseRisk := clamp01(1.0 - batch.RiskScore)
	performance := clamp01(batch.WinRate)
	return (confidence + inverseRisk + performance) / 3.0
}

func (s *Sizer) clamp(f float64) float64 {
	if f < s.cfg.MinFraction {
		f = s.cfg.MinFraction
	}
	if f > s.cfg.MaxFraction {
		f = s.cfg.MaxFraction
	}
	if f > s.cfg.MaxBankrollPercentage {
		f = s.cfg.MaxBankrollPercentage
	}
	return math.Max(0, f)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}
