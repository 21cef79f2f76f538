package sizing

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestRawKelly(t *testing.T) {
	// f = (p*(o-1) - (1-p)) / (o-1)
	assert.InDelta(t, 0.2, RawKelly(0.6, 2.0), 1e-9)
	assert.InDelta(t, 0.1, RawKelly(0.55, 2.0), 1e-9)
	assert.InDelta(t, 0.25, RawKelly(0.5, 3.0), 1e-9)
}

func TestRawKellyNoEdge(t *testing.T) {
	assert.Zero(t, RawKelly(0.5, 2.0))
	assert.Zero(t, RawKelly(0.3, 2.0))
}

func TestRawKellyDegenerateInputs(t *testing.T) {
	assert.Zero(t, RawKelly(0.6, 1.0))
	assert.Zero(t, RawKelly(0.6, 0.5))
	assert.Zero(t, RawKelly(0, 2.0))
	assert.Zero(t, RawKelly(-0.1, 2.0))

	// p above 1 is clamped, not amplified
	assert.InDelta(t, 1.0, RawKelly(1.5, 2.0), 1e-9)
}

func TestVolatilityDampening(t *testing.T) {
	// probabilities {0.5, 0.7} have stddev exactly 0.1
	sizer := NewSizer(Config{
		Mode:                  ModeDynamic,
		MaxFraction:           1.0,
		DrawdownLimit:         0.15,
		MaxBankrollPercentage: 1.0,
	}, testLogger())

	batch := Batch{
		RecentProbabilities: []float64{0.5, 0.7},
		WinRate:             0.5, // dynamic multiplier is 1.0
	}
	assert.InDelta(t, 0.1, batch.Volatility(), 1e-9)

	// 0.2 raw * (1 - 0.1) = 0.18
	assert.InDelta(t, 0.18, sizer.Fraction(0.6, 2.0, batch), 1e-9)
}

func TestDrawdownDampening(t *testing.T) {
	sizer := NewSizer(Config{
		Mode:                  ModeDynamic,
		MaxFraction:           1.0,
		DrawdownLimit:         0.15,
		MaxBankrollPercentage: 1.0,
	}, testLogger())

	batch := Batch{MaxDrawdown: 0.25, WinRate: 0.5}
	// 0.2 * (1 - 0.25) = 0.15
	assert.InDelta(t, 0.15, sizer.Fraction(0.6, 2.0, batch), 1e-9)

	// at or below the limit no dampening applies
	batch.MaxDrawdown = 0.15
	assert.InDelta(t, 0.2, sizer.Fraction(0.6, 2.0, batch), 1e-9)
}

func TestLosingRecordDampening(t *testing.T) {
	sizer := NewSizer(Config{
		Mode:                  ModeDynamic,
		MaxFraction:           1.0,
		DrawdownLimit:         0.15,
		MaxBankrollPercentage: 1.0,
	}, testLogger())

	batch := Batch{WinRate: 0.4}
	// 0.2 * 0.4 (losing record) * 0.9 (dynamic: 1 + 0.4 - 0.5) = 0.072
	assert.InDelta(t, 0.072, sizer.Fraction(0.6, 2.0, batch), 1e-9)

	// a record with no wins at all sizes to zero
	batch.WinRate = 0
	assert.Zero(t, sizer.Fraction(0.6, 2.0, batch))
}

func TestFixedMode(t *testing.T) {
	sizer := NewSizer(Config{
		Mode:                  ModeFixed,
		BaseFraction:          0.03,
		MaxFraction:           0.10,
		DrawdownLimit:         0.15,
		MaxBankrollPercentage: 0.10,
	}, testLogger())

	// fixed mode ignores the dampened Kelly value
	assert.InDelta(t, 0.03, sizer.Fraction(0.9, 3.0, Batch{WinRate: 0.5}), 1e-9)
	// but still sizes zero when there is no edge
	assert.Zero(t, sizer.Fraction(0.5, 2.0, Batch{WinRate: 0.5}))
}

func TestAdaptiveMode(t *testing.T) {
	sizer := NewSizer(Config{
		Mode:                  ModeAdaptive,
		MaxFraction:           1.0,
		DrawdownLimit:         0.15,
		MaxBankrollPercentage: 1.0,
	}, testLogger())

	batch := Batch{WinRate: 0.6, AvgConfidence: 0.9, RiskScore: 0.3}
	// multiplier = (0.9 + 0.7 + 0.6) / 3
	expected := 0.2 * (0.9 + 0.7 + 0.6) / 3.0
	assert.InDelta(t, expected, sizer.Fraction(0.6, 2.0, batch), 1e-9)
}

func TestBoundednessGrid(t *testing.T) {
	sizer := NewSizer(DefaultConfig(), testLogger())

	probs := []float64{0, 0.1, 0.3, 0.5, 0.55, 0.6, 0.75, 0.9, 1.0}
	oddsGrid := []float64{1.01, 1.5, 1.91, 2.0, 3.0, 5.0, 10.0}
	batches := []Batch{
		{},
		{WinRate: 0.5},
		{WinRate: 0.2, MaxDrawdown: 0.5, RecentProbabilities: []float64{0.2, 0.9}},
		{WinRate: 0.9, AvgConfidence: 1.0, RiskScore: 0},
	}

	for _, p := range probs {
		for _, odds := range oddsGrid {
			for _, batch := range batches {
				f := sizer.Fraction(p, odds, batch)
				assert.GreaterOrEqual(t, f, 0.0, "p=%v odds=%v", p, odds)
				assert.LessOrEqual(t, f, DefaultConfig().MaxFraction, "p=%v odds=%v", p, odds)
				assert.LessOrEqual(t, f, DefaultConfig().MaxBankrollPercentage, "p=%v odds=%v", p, odds)
			}
		}
	}
}

func TestStake(t *testing.T) {
	sizer := NewSizer(Config{
		Mode:                  ModeDynamic,
		MaxFraction:           1.0,
		DrawdownLimit:         0.15,
		MaxBankrollPercentage: 1.0,
	}, testLogger())

	batch := Batch{WinRate: 0.5}
	assert.InDelta(t, 200.0, sizer.Stake(0.6, 2.0, 1000, batch), 1e-9)
}

func TestStakeNonPositiveBankroll(t *testing.T) {
	sizer := NewSizer(DefaultConfig(), testLogger())

	assert.Zero(t, sizer.Stake(0.6, 2.0, 0, Batch{WinRate: 0.5}))
	assert.Zero(t, sizer.Stake(0.6, 2.0, -100, Batch{WinRate: 0.5}))
}

func TestBatchVolatilityEmpty(t *testing.T) {
	assert.Zero(t, Batch{}.Volatility())
	assert.Zero(t, Batch{RecentProbabilities: []float64{0.6}}.Volatility())
}
