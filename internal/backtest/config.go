package backtest

import (
	"fmt"
	"time"

	"github.com/yourusername/prop-edge/internal/models"
)

// StakeMode selects how stakes are sized during the run.
type StakeMode string

const (
	StakeModeFixed StakeMode = "fixed"
	StakeModeKelly StakeMode = "kelly"
)

// Config holds all parameters for one backtest run. Invalid combinations are
// rejected at construction, before any simulation begins.
type Config struct {
	StartDate       time.Time
	EndDate         time.Time
	InitialBankroll float64

	PropTypes []string

	// lineup shape
	MinLegs     int
	MaxLegs     int
	MaxSameTeam int

	// qualification thresholds
	MinConfidence float64
	MinEdge       float64
	MaxRisk       float64

	// staking
	StakeMode       StakeMode
	FixedStake      float64
	MaxPositionSize float64 // fraction of bankroll per bet

	// stop conditions
	StopLoss         float64 // fraction of initial bankroll
	MaxDrawdownLimit float64

	RiskFreeRate float64

	// per-day candidate evaluation parallelism
	Workers int
}

// DefaultConfig returns a runnable single-leg configuration.
func DefaultConfig() Config {
	return Config{
		InitialBankroll:  1000,
		MinLegs:          1,
		MaxLegs:          1,
		MaxSameTeam:      2,
		MinConfidence:    0.6,
		MinEdge:          0.03,
		MaxRisk:          0.6,
		StakeMode:        StakeModeKelly,
		MaxPositionSize:  0.10,
		StopLoss:         0.30,
		MaxDrawdownLimit: 0.25,
		RiskFreeRate:     0.02,
		Workers:          4,
	}
}

// Validate checks configuration consistency. All violations are reported as
// ErrConfiguration.
func (c Config) Validate() error {
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return fmt.Errorf("%w: date range is required", models.ErrConfiguration)
	}
	if c.StartDate.After(c.EndDate) {
		return fmt.Errorf("%w: start date must not be after end date", models.ErrConfiguration)
	}
	if c.InitialBankroll <= 0 {
		return fmt.Errorf("%w: initial bankroll must be positive", models.ErrConfiguration)
	}
	if c.MinLegs <= 0 || c.MaxLegs < c.MinLegs {
		return fmt.Errorf("%w: leg range %d..%d", models.ErrConfiguration, c.MinLegs, c.MaxLegs)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("%w: min confidence must be in [0,1]", models.ErrConfiguration)
	}
	if c.MinEdge < 0 {
		return fmt.Errorf("%w: min edge cannot be negative", models.ErrConfiguration)
	}
	if c.MaxRisk <= 0 || c.MaxRisk > 1 {
		return fmt.Errorf("%w: max risk must be in (0,1]", models.ErrConfiguration)
	}
	switch c.StakeMode {
	case StakeModeFixed:
		if c.FixedStake <= 0 {
			return fmt.Errorf("%w: fixed stake must be positive", models.ErrConfiguration)
		}
	case StakeModeKelly:
	default:
		return fmt.Errorf("%w: unknown stake mode %q", models.ErrConfiguration, c.StakeMode)
	}
	if c.MaxPositionSize <= 0 || c.MaxPositionSize > 1 {
		return fmt.Errorf("%w: max position size must be in (0,1]", models.ErrConfiguration)
	}
	if c.StopLoss <= 0 || c.StopLoss > 1 {
		return fmt.Errorf("%w: stop loss must be in (0,1]", models.ErrConfiguration)
	}
	if c.MaxDrawdownLimit <= 0 || c.MaxDrawdownLimit > 1 {
		return fmt.Errorf("%w: max drawdown limit must be in (0,1]", models.ErrConfiguration)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers cannot be negative", models.ErrConfiguration)
	}
	return nil
}
