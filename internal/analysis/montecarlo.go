package analysis

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/yourusername/prop-edge/internal/models"
)

// MonteCarloConfig configures outcome resampling over a bet log.
type MonteCarloConfig struct {
	Iterations      int
	Seed            int64
	InitialBankroll float64
}

// MonteCarloResult holds the resampled bankroll distribution and derived
// tail-risk figures.
type MonteCarloResult struct {
	Iterations          int     `json:"iterations"`
	MeanReturn          float64 `json:"mean_return"`
	StdReturn           float64 `json:"std_return"`
	VaR95               float64 `json:"var_95"`
	VaR99               float64 `json:"var_99"`
	ProbabilityOfProfit float64 `json:"probability_of_profit"`
	ProbabilityOfRuin   float64 `json:"probability_of_ruin"`
}

// RunMonteCarlo reshuffles bet outcomes using each bet's model win
// probability, producing a distribution of terminal bankrolls. It answers
// how much of the realized result was path luck rather than edge.
func RunMonteCarlo(ctx context.Context, bets []models.SimulatedBet, cfg MonteCarloConfig) (MonteCarloResult, error) {
	if cfg.Iterations <= 0 {
		cfg.Iterations = 1000
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	rng := rand.New(rand.NewSource(seed))
	distribution := make([]float64, cfg.Iterations)

	for i := 0; i < cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return MonteCarloResult{}, err
		}
		bankroll := cfg.InitialBankroll
		for _, bet := range bets {
			if bet.Status != models.BetStatusWon && bet.Status != models.BetStatusLost {
				continue
			}
			prob := winProbability(bet)
			if rng.Float64() < prob {
				bankroll += bet.Stake * (bet.Odds - 1.0)
			} else {
				bankroll -= bet.Stake
			}
			if bankroll <= 0 {
				bankroll = 0
				break
			}
		}
		distribution[i] = bankroll
	}

	mu, sd := meanStd(distribution)
	initial := cfg.InitialBankroll

	result := MonteCarloResult{
		Iterations:          cfg.Iterations,
		ProbabilityOfProfit: fractionAbove(distribution, initial),
		ProbabilityOfRuin:   fractionAtOrBelow(distribution, 0),
	}
	if initial > 0 {
		result.MeanReturn = (mu - initial) / initial
		result.StdReturn = sd / initial
		result.VaR95 = (percentile(distribution, 0.05) - initial) / initial
		result.VaR99 = (percentile(distribution, 0.01) - initial) / initial
	}
	return result, nil
}

// winProbability maps a bet's prediction confidence to a resampling
// probability, falling back to the market-implied probability.
func winProbability(bet models.SimulatedBet) float64 {
	if bet.Prediction.Confidence > 0 {
		return bet.Prediction.Confidence
	}
	return bet.Candidate.ImpliedProbability()
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mu := mean(values)
	variance := 0.0
	for _, v := range values {
		diff := v - mu
		variance += diff * diff
	}
	variance /= float64(len(values))
	return mu, math.Sqrt(variance)
}

func percentile(values []float64, p float64) float64 {
	sorted := sortedCopy(values)
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Floor(p * float64(len(sorted)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func fractionAbove(values []float64, threshold float64) float64 {
	if len(values) == 0 {
		return 0
	}
	count := 0
	for _, v := range values {
		if v > threshold {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

func fractionAtOrBelow(values []float64, threshold float64) float64 {
	if len(values) == 0 {
		return 0
	}
	count := 0
	for _, v := range values {
		if v <= threshold {
			count++
		}
	}
	return float64(count) / float64(len(values))
}
