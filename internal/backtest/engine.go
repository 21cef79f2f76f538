// Package backtest drives the day-by-day historical replay of betting
// opportunities against the bankroll ledger.
package backtest

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/prop-edge/internal/analysis"
	"github.com/yourusername/prop-edge/internal/bankroll"
	"github.com/yourusername/prop-edge/internal/feed"
	"github.com/yourusername/prop-edge/internal/lineup"
	"github.com/yourusername/prop-edge/internal/metrics"
	"github.com/yourusername/prop-edge/internal/models"
	"github.com/yourusername/prop-edge/internal/risk"
	"github.com/yourusername/prop-edge/internal/sizing"
)

// warmupBets is the number of resolved bets before trailing win rate and
// profit factor become binding in the risk gate.
const warmupBets = 10

// minStake filters out dust bets.
const minStake = 0.01

// Engine replays a historical window chronologically. Each run owns its
// ledger; engines are not shared across runs.
type Engine struct {
	cfg       Config
	provider  feed.HistoricalDataProvider
	oracle    feed.PredictionOracle
	optimizer lineup.Optimizer
	ledger    *bankroll.Ledger
	sizer     *sizing.Sizer
	assessor  *risk.Assessor
	analyzer  *analysis.Analyzer
	logger    *logrus.Logger

	peakBankroll float64
	maxDrawdown  float64
	equity       []models.EquityPoint

	diagMu      sync.Mutex
	diagnostics []models.Diagnostic
}

// NewEngine validates the configuration and wires an engine. A nil optimizer
// falls back to the greedy selector when multi-leg lineups are configured.
func NewEngine(cfg Config, provider feed.HistoricalDataProvider, oracle feed.PredictionOracle,
	optimizer lineup.Optimizer, sizer *sizing.Sizer, assessor *risk.Assessor, logger *logrus.Logger) (*Engine, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: historical data provider is required", models.ErrConfiguration)
	}
	if oracle == nil {
		return nil, fmt.Errorf("%w: prediction oracle is required", models.ErrConfiguration)
	}
	if sizer == nil {
		sizer = sizing.NewSizer(sizing.DefaultConfig(), logger)
	}
	if assessor == nil {
		assessor = risk.NewAssessor(risk.DefaultConfig(), logger)
	}
	if optimizer == nil {
		optimizer = lineup.NewGreedy()
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Engine{
		cfg:       cfg,
		provider:  provider,
		oracle:    oracle,
		optimizer: optimizer,
		ledger:    bankroll.NewLedger(cfg.InitialBankroll, logger),
		sizer:     sizer,
		assessor:  assessor,
		analyzer: analysis.NewAnalyzer(analysis.Config{
			RiskFreeRate:   cfg.RiskFreeRate,
			VaRConfidence:  0.95,
			PeriodsPerYear: 252,
		}),
		logger:       logger,
		peakBankroll: cfg.InitialBankroll,
	}, nil
}

// Config returns the run configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Ledger exposes the run's bankroll ledger for inspection.
func (e *Engine) Ledger() *bankroll.Ledger {
	return e.ledger
}

// Analyzer exposes the performance analyzer for timeframe queries.
func (e *Engine) Analyzer() *analysis.Analyzer {
	return e.analyzer
}

// evaluation is the outcome of scoring one candidate.
type evaluation struct {
	candidate  models.Candidate
	prediction models.Prediction
	winProb    float64
	edge       float64
	riskScore  float64
	metrics    risk.Metrics
	side       models.BetSide
}

// Run replays the configured window and returns the aggregate result. Days
// with no data are skipped; failing candidates are excluded; both are
// recorded as diagnostics. The run stops early when the stop-loss or maximum
// drawdown limit trips, which is a regular result, not an error.
func (e *Engine) Run(ctx context.Context) (*models.BacktestResult, error) {
	e.logger.WithFields(logrus.Fields{
		"start":    e.cfg.StartDate.Format(feed.DateKey),
		"end":      e.cfg.EndDate.Format(feed.DateKey),
		"bankroll": e.cfg.InitialBankroll,
	}).Info("Starting backtest run")

	days, err := e.provider.FetchDays(ctx, e.cfg.StartDate, e.cfg.EndDate, e.cfg.PropTypes)
	if err != nil {
		metrics.RecordBacktestRun("failure")
		return nil, fmt.Errorf("failed to load historical data: %w", err)
	}

	stopped := false
	stopReason := ""

	for day := e.cfg.StartDate; !day.After(e.cfg.EndDate); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			metrics.RecordBacktestRun("failure")
			return nil, err
		}

		key := day.Format(feed.DateKey)
		sheet, ok := days[key]
		if !ok {
			e.diagnose(key, models.DiagnosticDataGap, "", "no historical data for day")
			continue
		}

		e.simulateDay(ctx, day, sheet)

		if reason, stop := e.checkStopConditions(); stop {
			stopped = true
			stopReason = reason
			e.logger.WithFields(logrus.Fields{
				"date":   key,
				"reason": reason,
			}).Warn("Stop condition tripped, terminating run")
			break
		}
	}

	result := e.buildResult(stopped, stopReason)
	if stopped {
		metrics.RecordBacktestRun("stopped_early")
	} else {
		metrics.RecordBacktestRun("success")
	}
	metrics.LastRunROI.Set(result.ROI)
	metrics.LastRunMaxDrawdown.Set(result.MaxDrawdown)

	e.logger.WithFields(logrus.Fields{
		"total_bets":   result.TotalBets,
		"win_rate":     result.WinRate,
		"roi":          result.ROI,
		"max_drawdown": result.MaxDrawdown,
	}).Info("Backtest run complete")

	return result, nil
}

// simulateDay scores the day's candidates, selects a lineup, and runs the
// serialized place/resolve sequence against the ledger.
func (e *Engine) simulateDay(ctx context.Context, day time.Time, sheet *feed.DaySheet) {
	date := day.Format(feed.DateKey)
	evals := e.evaluateCandidates(ctx, date, sheet.Candidates)
	if len(evals) == 0 {
		return
	}

	qualified := e.qualify(evals)
	if len(qualified) == 0 {
		return
	}

	selected := qualified
	if e.cfg.MaxLegs > 1 {
		selected = e.optimizeLineup(ctx, date, qualified)
	}

	batch := e.batchContext(evals)

	// place/resolve strictly serialized to preserve drawdown and streak
	// invariants
	for _, eval := range selected {
		e.simulateBet(day, eval, sheet, batch)
	}
}

// evaluateCandidates scores candidates on a bounded worker pool. Candidate
// evaluation has no shared mutable state, so the only serialization point is
// collecting results.
func (e *Engine) evaluateCandidates(ctx context.Context, date string, candidates []models.Candidate) []evaluation {
	workers := e.cfg.Workers
	if workers <= 1 || len(candidates) <= 1 {
		return e.evaluateSerial(ctx, date, candidates)
	}
	if workers > len(candidates) {
		workers = len(candidates)
	}

	type indexed struct {
		idx  int
		eval *evaluation
	}

	jobs := make(chan int)
	results := make(chan indexed)
	var wg sync.WaitGroup

	hist := e.trailingHistory()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				eval := e.evaluateOne(ctx, date, candidates[idx], hist)
				results <- indexed{idx: idx, eval: eval}
			}
		}()
	}

	go func() {
		for idx := range candidates {
			jobs <- idx
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	ordered := make([]*evaluation, len(candidates))
	for r := range results {
		ordered[r.idx] = r.eval
	}

	evals := make([]evaluation, 0, len(candidates))
	for _, ev := range ordered {
		if ev != nil {
			evals = append(evals, *ev)
		}
	}
	return evals
}

func (e *Engine) evaluateSerial(ctx context.Context, date string, candidates []models.Candidate) []evaluation {
	hist := e.trailingHistory()
	evals := make([]evaluation, 0, len(candidates))
	for _, candidate := range candidates {
		if eval := e.evaluateOne(ctx, date, candidate, hist); eval != nil {
			evals = append(evals, *eval)
		}
	}
	return evals
}

// evaluateOne runs the oracle and risk assessment for a single candidate.
// An oracle failure excludes only this candidate.
func (e *Engine) evaluateOne(ctx context.Context, date string, candidate models.Candidate, hist risk.History) *evaluation {
	pred, err := e.oracle.Predict(ctx, candidate)
	if err != nil {
		e.diagnoseLocked(date, models.DiagnosticOracleFailure, candidate.ID, err.Error())
		metrics.CandidatesRejectedTotal.WithLabelValues("oracle_failure").Inc()
		return nil
	}

	side := models.BetSideOver
	if pred.Value < candidate.Line {
		side = models.BetSideUnder
	} else if pred.Value == candidate.Line {
		// no directional signal
		return nil
	}

	winProb := winProbabilityFromMargin(pred.Value, candidate.Line, side)
	edge := math.Abs(winProb - candidate.ImpliedProbability())
	m := e.assessor.Evaluate(winProb, candidate.Odds, pred.Confidence, hist)
	riskScore := clamp01((m.Uncertainty + m.Volatility) / 2.0)

	return &evaluation{
		candidate:  candidate,
		prediction: *pred,
		winProb:    winProb,
		edge:       edge,
		riskScore:  riskScore,
		metrics:    m,
		side:       side,
	}
}

// qualify applies the qualification rule and the risk gate.
func (e *Engine) qualify(evals []evaluation) []evaluation {
	qualified := make([]evaluation, 0, len(evals))
	for _, eval := range evals {
		if eval.prediction.Confidence < e.cfg.MinConfidence {
			metrics.CandidatesRejectedTotal.WithLabelValues("confidence").Inc()
			continue
		}
		if eval.edge < e.cfg.MinEdge {
			metrics.CandidatesRejectedTotal.WithLabelValues("edge").Inc()
			continue
		}
		if eval.riskScore > e.cfg.MaxRisk {
			metrics.CandidatesRejectedTotal.WithLabelValues("risk_score").Inc()
			continue
		}
		if !e.assessor.ShouldPlaceBet(eval.metrics, eval.prediction.Confidence) {
			metrics.CandidatesRejectedTotal.WithLabelValues("risk_gate").Inc()
			continue
		}
		qualified = append(qualified, eval)
	}
	return qualified
}

func (e *Engine) optimizeLineup(ctx context.Context, date string, qualified []evaluation) []evaluation {
	picks := make([]lineup.Pick, len(qualified))
	byID := make(map[string]evaluation, len(qualified))
	for i, eval := range qualified {
		picks[i] = lineup.Pick{
			Candidate: eval.candidate,
			Score:     eval.prediction.Confidence + eval.edge,
		}
		byID[eval.candidate.ID] = eval
	}

	selected, err := e.optimizer.Select(ctx, picks, lineup.Constraints{
		MinLegs:     e.cfg.MinLegs,
		MaxLegs:     e.cfg.MaxLegs,
		MaxSameTeam: e.cfg.MaxSameTeam,
	})
	if err != nil {
		e.diagnoseLocked(date, models.DiagnosticLineupFailure, "", "lineup optimization failed: "+err.Error())
		return nil
	}

	out := make([]evaluation, 0, len(selected))
	for _, pick := range selected {
		out = append(out, byID[pick.Candidate.ID])
	}
	return out
}

// simulateBet sizes, places, and resolves one bet against the recorded actual.
func (e *Engine) simulateBet(day time.Time, eval evaluation, sheet *feed.DaySheet, batch sizing.Batch) {
	actual, ok := sheet.Actual(eval.candidate.ID)
	if !ok {
		e.diagnose(day.Format(feed.DateKey), models.DiagnosticUnknownOutcome, eval.candidate.ID, "no recorded actual for candidate")
		return
	}

	balance := e.ledger.Current()
	stake := e.sizeStake(eval, balance, batch)
	if stake < minStake {
		return
	}

	bet := &models.SimulatedBet{
		Candidate:  eval.candidate,
		Prediction: eval.prediction,
		Side:       eval.side,
		Stake:      stake,
		Odds:       eval.candidate.Odds,
		Strategy:   "line_value",
	}
	if closing, ok := sheet.Closing(eval.candidate.ID); ok {
		bet.ClosingOdds = &closing
	}
	bet.ActualValue = &actual

	handle, err := e.ledger.PlaceBet(bet)
	if err != nil {
		// InsufficientBankroll is local to this bet
		e.logger.WithError(err).WithField("candidate", eval.candidate.ID).Debug("Bet placement rejected")
		return
	}
	metrics.StakeFraction.Observe(stake / math.Max(balance, 1))

	if actual == eval.candidate.Line {
		// push: stake refunded
		_ = e.ledger.VoidBet(handle)
		metrics.RecordSimulatedBet("voided")
		return
	}

	won := actual > eval.candidate.Line
	if eval.side == models.BetSideUnder {
		won = !won
	}
	if err := e.ledger.ResolveBet(handle, won); err != nil {
		// resolving a just-placed bet can only fail on a sequencing bug
		e.logger.WithError(err).Error("Bet resolution failed")
		return
	}
	if won {
		metrics.RecordSimulatedBet("won")
	} else {
		metrics.RecordSimulatedBet("lost")
	}

	e.recordEquity(day)
}

// sizeStake applies the configured stake mode with the max position cap.
func (e *Engine) sizeStake(eval evaluation, balance float64, batch sizing.Batch) float64 {
	if balance <= 0 {
		return 0
	}

	var stake float64
	switch e.cfg.StakeMode {
	case StakeModeFixed:
		stake = e.cfg.FixedStake
	case StakeModeKelly:
		stake = e.sizer.Stake(eval.winProb, eval.candidate.Odds, balance, batch)
	}

	maxStake := balance * e.cfg.MaxPositionSize
	if stake > maxStake {
		stake = maxStake
	}
	return stake
}

// batchContext builds the shared sizing context for one day's batch.
func (e *Engine) batchContext(evals []evaluation) sizing.Batch {
	probs := make([]float64, 0, len(evals))
	confSum := 0.0
	riskSum := 0.0
	for _, eval := range evals {
		probs = append(probs, eval.winProb)
		confSum += eval.prediction.Confidence
		riskSum += eval.riskScore
	}

	state := e.ledger.State()
	batch := sizing.Batch{
		RecentProbabilities: probs,
		MaxDrawdown:         e.maxDrawdown,
		WinRate:             state.WinRate(),
	}
	if len(evals) > 0 {
		batch.AvgConfidence = confSum / float64(len(evals))
		batch.RiskScore = riskSum / float64(len(evals))
	}
	if state.TotalBets < warmupBets {
		batch.WinRate = 0.5
	}
	return batch
}

// trailingHistory snapshots the ledger-derived figures the risk gate checks.
// Before the warmup threshold the trailing record is too thin to be binding,
// so neutral values are substituted.
func (e *Engine) trailingHistory() risk.History {
	state := e.ledger.State()
	hist := risk.History{
		WinRate:      state.WinRate(),
		ProfitFactor: e.ledger.ProfitFactor(),
		MaxDrawdown:  e.maxDrawdown,
		Returns:      e.ledger.ResolvedReturns(),
	}
	if state.TotalBets < warmupBets {
		hist.WinRate = 0.5
		hist.ProfitFactor = 1.5
	}
	return hist
}

// recordEquity samples the bankroll after a resolution, stamped with the
// simulated day so replayed curves are reproducible.
func (e *Engine) recordEquity(day time.Time) {
	current := e.ledger.Current()
	if current > e.peakBankroll {
		e.peakBankroll = current
	}
	drawdown := 0.0
	if e.peakBankroll > 0 {
		drawdown = (e.peakBankroll - current) / e.peakBankroll
	}
	if drawdown > e.maxDrawdown {
		e.maxDrawdown = drawdown
	}
	e.equity = append(e.equity, models.EquityPoint{
		Time:     day,
		Value:    current,
		Drawdown: drawdown,
	})
}

// checkStopConditions evaluates the cooperative stop checks once per day.
func (e *Engine) checkStopConditions() (string, bool) {
	current := e.ledger.Current()
	if current <= 0 {
		return "bankroll exhausted", true
	}
	if current <= e.cfg.InitialBankroll*(1.0-e.cfg.StopLoss) {
		return fmt.Sprintf("stop loss hit at %.2f", current), true
	}
	if e.maxDrawdown >= e.cfg.MaxDrawdownLimit {
		return fmt.Sprintf("max drawdown %.2f%% reached", e.maxDrawdown*100), true
	}
	return "", false
}

func (e *Engine) buildResult(stopped bool, stopReason string) *models.BacktestResult {
	bets := e.ledger.Bets()
	state := e.ledger.State()
	perf := e.analyzer.Metrics(bets)

	result := &models.BacktestResult{
		ID:                uuid.New(),
		RunDate:           time.Now().UTC(),
		StartDate:         e.cfg.StartDate,
		EndDate:           e.cfg.EndDate,
		InitialBankroll:   state.Initial,
		FinalBankroll:     state.Current,
		TotalBets:         perf.TotalBets,
		WinningBets:       perf.WinningBets,
		LosingBets:        perf.TotalBets - perf.WinningBets,
		WinRate:           perf.WinRate,
		ROI:               state.ROI,
		ProfitLoss:        state.TotalProfit,
		MaxDrawdown:       e.maxDrawdown,
		SharpeRatio:       perf.SharpeRatio,
		OptimalKelly:      e.optimalKelly(bets, perf.WinRate),
		ValueAtRisk95:     perf.ValueAtRisk,
		ExpectedShortfall: perf.ExpectedShortfall,
		ByModel:           make(map[string]*models.Breakdown),
		ByPropType:        make(map[string]*models.Breakdown),
		EquityCurve:       e.equity,
		StoppedEarly:      stopped,
		StopReason:        stopReason,
		Diagnostics:       e.diagnostics,
	}

	for _, bet := range bets {
		if bet.Status != models.BetStatusWon && bet.Status != models.BetStatusLost {
			continue
		}
		accumulate(result.ByModel, bet.Prediction.Model, bet)
		accumulate(result.ByPropType, bet.Candidate.PropType, bet)
	}

	return result
}

// optimalKelly estimates the full-Kelly fraction implied by the realized win
// rate and the average odds across resolved bets.
func (e *Engine) optimalKelly(bets []models.SimulatedBet, winRate float64) float64 {
	if len(bets) == 0 {
		return 0
	}
	oddsSum := 0.0
	count := 0
	for _, bet := range bets {
		if bet.Status == models.BetStatusWon || bet.Status == models.BetStatusLost {
			oddsSum += bet.Odds
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sizing.RawKelly(winRate, oddsSum/float64(count))
}

func accumulate(m map[string]*models.Breakdown, key string, bet models.SimulatedBet) {
	if key == "" {
		key = "unknown"
	}
	b, ok := m[key]
	if !ok {
		b = &models.Breakdown{}
		m[key] = b
	}
	b.Bets++
	b.TotalStake += bet.Stake
	b.ProfitLoss += bet.PnL()
	if bet.Won() {
		b.WinningBets++
	}
}

func (e *Engine) diagnose(date string, kind models.DiagnosticKind, candidateID, message string) {
	e.diagnostics = append(e.diagnostics, models.Diagnostic{
		Date:        date,
		Kind:        kind,
		CandidateID: candidateID,
		Message:     message,
	})
}

// diagnoseLocked is safe to call from evaluation workers.
func (e *Engine) diagnoseLocked(date string, kind models.DiagnosticKind, candidateID, message string) {
	e.diagMu.Lock()
	defer e.diagMu.Unlock()
	e.diagnose(date, kind, candidateID, message)
}

// winProbabilityFromMargin maps the predicted margin over the line to a win
// probability for the chosen side.
func winProbabilityFromMargin(pred, line float64, side models.BetSide) float64 {
	margin := (pred - line) / math.Max(1.0, math.Abs(line))
	if side == models.BetSideUnder {
		margin = -margin
	}
	return clamp01(0.5 + margin)
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
