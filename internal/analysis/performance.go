// Package analysis computes post-hoc performance and risk metrics over a
// simulated bet log.
package analysis

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/yourusername/prop-edge/internal/models"
)

// Canonical strategy tags. Every breakdown map carries all of them so
// downstream consumers never see missing keys.
var StrategyTags = []string{"arbitrage", "middle", "line_value"}

// Metrics summarizes a bet log.
type Metrics struct {
	TotalBets   int     `json:"total_bets"`
	WinningBets int     `json:"winning_bets"`
	WinRate     float64 `json:"win_rate"`

	TotalStake  float64 `json:"total_stake"`
	TotalReturn float64 `json:"total_return"`
	ROI         float64 `json:"roi"`

	AvgCLV                float64 `json:"avg_clv"`
	EdgeRetention         float64 `json:"edge_retention"`
	MarketEfficiencyScore float64 `json:"market_efficiency_score"`

	SharpeRatio       float64 `json:"sharpe_ratio"`
	ValueAtRisk       float64 `json:"value_at_risk"`
	ExpectedShortfall float64 `json:"expected_shortfall"`

	ProfitByStrategy map[string]float64 `json:"profit_by_strategy"`
}

// Config tunes the analyzer.
type Config struct {
	RiskFreeRate   float64 // annualized, scaled to the per-bet period
	VaRConfidence  float64
	PeriodsPerYear float64
}

// DefaultConfig returns the standard analyzer settings.
func DefaultConfig() Config {
	return Config{
		RiskFreeRate:   0.02,
		VaRConfidence:  0.95,
		PeriodsPerYear: 252,
	}
}

// Analyzer computes metrics over a bet log. Results are cached against the
// log length, so repeated queries with no new bets return identical values.
type Analyzer struct {
	cfg Config

	mu          sync.Mutex
	cached      *Metrics
	cachedCount int
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(cfg Config) *Analyzer {
	if cfg.VaRConfidence <= 0 || cfg.VaRConfidence >= 1 {
		cfg.VaRConfidence = DefaultConfig().VaRConfidence
	}
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = DefaultConfig().PeriodsPerYear
	}
	return &Analyzer{cfg: cfg}
}

// Metrics computes (or serves cached) metrics for the full bet log.
func (a *Analyzer) Metrics(bets []models.SimulatedBet) Metrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != nil && a.cachedCount == len(bets) {
		return *a.cached
	}

	m := a.compute(bets)
	a.cached = &m
	a.cachedCount = len(bets)
	return m
}

// MetricsSince computes metrics over the bets placed at or after the cutoff.
// Timeframe queries bypass the cache.
func (a *Analyzer) MetricsSince(bets []models.SimulatedBet, since time.Time) Metrics {
	filtered := make([]models.SimulatedBet, 0, len(bets))
	for _, b := range bets {
		if !b.PlacedAt.Before(since) {
			filtered = append(filtered, b)
		}
	}
	return a.compute(filtered)
}

func (a *Analyzer) compute(bets []models.SimulatedBet) Metrics {
	m := Metrics{ProfitByStrategy: make(map[string]float64, len(StrategyTags))}
	for _, tag := range StrategyTags {
		m.ProfitByStrategy[tag] = 0
	}

	returns := make([]float64, 0, len(bets))
	clvValues := make([]float64, 0, len(bets))
	retentionValues := make([]float64, 0, len(bets))

	for _, bet := range bets {
		if bet.Status != models.BetStatusWon && bet.Status != models.BetStatusLost {
			continue
		}
		m.TotalBets++
		m.TotalStake += bet.Stake
		if bet.Won() {
			m.WinningBets++
			m.TotalReturn += bet.Stake * bet.Odds
		}
		returns = append(returns, bet.Return())

		if bet.Strategy != "" {
			m.ProfitByStrategy[bet.Strategy] += bet.PnL()
		}

		if bet.ClosingOdds != nil && *bet.ClosingOdds > 1 {
			clvValues = append(clvValues, CLV(bet.Odds, *bet.ClosingOdds))
			if retention, ok := edgeRetention(bet, *bet.ClosingOdds); ok {
				retentionValues = append(retentionValues, retention)
			}
		}
	}

	if m.TotalBets > 0 {
		m.WinRate = float64(m.WinningBets) / float64(m.TotalBets)
	}
	if m.TotalStake > 0 {
		m.ROI = (m.TotalReturn - m.TotalStake) / m.TotalStake
	}

	m.AvgCLV = mean(clvValues)
	m.EdgeRetention = mean(retentionValues)
	m.MarketEfficiencyScore = math.Max(0, 100.0-meanAbs(clvValues)*10.0)

	m.SharpeRatio = SharpeRatio(returns, a.cfg.RiskFreeRate/a.cfg.PeriodsPerYear)
	m.ValueAtRisk = ValueAtRisk(returns, a.cfg.VaRConfidence)
	m.ExpectedShortfall = ExpectedShortfall(returns, a.cfg.VaRConfidence)

	return m
}

// CLV is the closing-line value in percent for decimal odds: positive when
// the placed price beat the closing price.
func CLV(placedOdds, closingOdds float64) float64 {
	if closingOdds <= 0 {
		return 0
	}
	return (placedOdds - closingOdds) / closingOdds * 100.0
}

// DecimalFromAmerican converts American odds to decimal form.
func DecimalFromAmerican(american float64) float64 {
	if american == 0 {
		return 0
	}
	if american > 0 {
		return 1.0 + american/100.0
	}
	return 1.0 + 100.0/(-american)
}

func edgeRetention(bet models.SimulatedBet, closingOdds float64) (float64, bool) {
	pred := bet.Prediction.Value
	line := bet.Candidate.Line
	if line == 0 {
		return 0, false
	}
	// edges measured against implied probability at each price
	prob := impliedWinProbability(pred, line, bet.Side)
	placedEdge := math.Abs(prob - 1.0/bet.Odds)
	closingEdge := math.Abs(prob - 1.0/closingOdds)
	if closingEdge == 0 {
		return 0, false
	}
	return placedEdge / closingEdge * 100.0, true
}

// impliedWinProbability is a crude monotone mapping of the predicted margin
// over the line into a win probability, used only for edge retention.
func impliedWinProbability(pred, line float64, side models.BetSide) float64 {
	margin := (pred - line) / math.Max(1.0, math.Abs(line))
	if side == models.BetSideUnder {
		margin = -margin
	}
	return clamp01(0.5 + margin)
}

// SharpeRatio over a return series: (mean - riskFree) / stddev, 0 when the
// variance is 0.
func SharpeRatio(returns []float64, riskFreePerPeriod float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mu := mean(returns)
	sd := stddev(returns)
	if sd == 0 {
		return 0
	}
	return (mu - riskFreePerPeriod) / sd
}

// ValueAtRisk at the given confidence: the negated (1-confidence)-quantile of
// the sorted return distribution.
func ValueAtRisk(returns []float64, confidence float64) float64 {
	q, ok := tailQuantile(returns, confidence)
	if !ok {
		return 0
	}
	return -q
}

// ExpectedShortfall is the negated mean of the tail at or beyond the VaR
// quantile.
func ExpectedShortfall(returns []float64, confidence float64) float64 {
	sorted := sortedCopy(returns)
	if len(sorted) == 0 {
		return 0
	}
	idx := tailIndex(len(sorted), confidence)
	tail := sorted[:idx+1]
	return -mean(tail)
}

func tailQuantile(returns []float64, confidence float64) (float64, bool) {
	sorted := sortedCopy(returns)
	if len(sorted) == 0 {
		return 0, false
	}
	return sorted[tailIndex(len(sorted), confidence)], true
}

func tailIndex(n int, confidence float64) int {
	idx := int(math.Floor((1.0 - confidence) * float64(n)))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

func sortedCopy(values []float64) []float64 {
	out := append([]float64{}, values...)
	sort.Float64s(out)
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func meanAbs(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += math.Abs(v)
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mu := mean(values)
	variance := 0.0
	for _, v := range values {
		diff := v - mu
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
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
