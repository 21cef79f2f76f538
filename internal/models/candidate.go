package models

import (
	"time"
)

// Candidate represents a single betting opportunity under evaluation: a quoted
// prop line with decimal odds for a player or team on a given game date.
// Candidates are immutable once produced by the market source for a day.
type Candidate struct {
	ID       string    `json:"id" validate:"required"`
	Sport    string    `json:"sport" validate:"required"`
	PropType string    `json:"prop_type" validate:"required"`
	Player   string    `json:"player"`
	Team     string    `json:"team"`
	Opponent string    `json:"opponent"`
	Line     float64   `json:"line"`
	Odds     float64   `json:"odds" validate:"required,gt=1"`
	GameDate time.Time `json:"game_date" validate:"required"`
}

// ImpliedProbability returns the market-implied win probability from decimal odds.
func (c Candidate) ImpliedProbability() float64 {
	if c.Odds <= 1 {
		return 0
	}
	return 1.0 / c.Odds
}

// Prediction is a model's output for a candidate: a predicted stat value and a
// confidence in [0,1]. The core never mutates a prediction once produced.
type Prediction struct {
	Model         string             `json:"model"`
	Value         float64            `json:"value"`
	Confidence    float64            `json:"confidence" validate:"gte=0,lte=1"`
	Contributions map[string]float64 `json:"contributions,omitempty"`
	PredictedAt   time.Time          `json:"predicted_at"`
}

// MeetsThreshold checks if the confidence meets the given threshold
func (p Prediction) MeetsThreshold(threshold float64) bool {
	return p.Confidence >= threshold
}

// CombinePredictions merges multi-model outputs into one prediction via
// confidence-weighted averaging. Returns false when no prediction carries
// positive confidence.
func CombinePredictions(preds []Prediction) (Prediction, bool) {
	var valueSum, confSum float64
	for _, p := range preds {
		if p.Confidence <= 0 {
			continue
		}
		valueSum += p.Value * p.Confidence
		confSum += p.Confidence
	}
	if confSum == 0 {
		return Prediction{}, false
	}

	combined := Prediction{
		Model:       "ensemble",
		Value:       valueSum / confSum,
		Confidence:  confSum / float64(len(preds)),
		PredictedAt: time.Now().UTC(),
	}
	if len(preds) == 1 {
		combined.Model = preds[0].Model
		combined.Contributions = preds[0].Contributions
	}
	return combined, true
}
