package oracle

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/prop-edge/internal/feed"
	"github.com/yourusername/prop-edge/internal/models"
)

// Ensemble fans a candidate out to several named models and combines their
// outputs by confidence-weighted averaging. Individual model failures are
// tolerated as long as at least one model answers; the ensemble fails only
// when every model does.
type Ensemble struct {
	members []feed.PredictionOracle
	logger  *logrus.Logger
}

// NewEnsemble builds an ensemble over the given members.
func NewEnsemble(members []feed.PredictionOracle, logger *logrus.Logger) (*Ensemble, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: ensemble requires at least one model", models.ErrConfiguration)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Ensemble{members: members, logger: logger}, nil
}

// Name returns the ensemble identifier.
func (e *Ensemble) Name() string {
	if len(e.members) == 1 {
		return e.members[0].Name()
	}
	return "ensemble"
}

// Predict combines member predictions via confidence weighting.
func (e *Ensemble) Predict(ctx context.Context, candidate models.Candidate) (*models.Prediction, error) {
	preds := make([]models.Prediction, 0, len(e.members))
	var lastErr error

	for _, member := range e.members {
		pred, err := member.Predict(ctx, candidate)
		if err != nil {
			lastErr = err
			e.logger.WithError(err).WithFields(logrus.Fields{
				"model":     member.Name(),
				"candidate": candidate.ID,
			}).Warn("Model prediction failed")
			continue
		}
		preds = append(preds, *pred)
	}

	if len(preds) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fmt.Errorf("%w: no model produced a prediction", models.ErrOracleFailure)
	}

	combined, ok := models.CombinePredictions(preds)
	if !ok {
		return nil, fmt.Errorf("%w: all predictions carried zero confidence", models.ErrOracleFailure)
	}
	return &combined, nil
}
