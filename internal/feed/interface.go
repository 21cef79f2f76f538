// Package feed defines the external collaborators the engine consumes:
// a historical data provider and a prediction oracle.
package feed

import (
	"context"
	"errors"
	"time"

	"github.com/yourusername/prop-edge/internal/models"
)

// DateKey is the ISO date layout used to index historical days.
const DateKey = "2006-01-02"

// DaySheet holds everything needed to replay one day: the candidate props,
// the observed actual values, and the closing odds for CLV computation.
// A sheet is fully materialized before the day's simulation begins.
type DaySheet struct {
	Date        string                        `json:"date"`
	Candidates  []models.Candidate            `json:"candidates"`
	Actuals     map[string]float64            `json:"actuals"`      // candidate ID -> observed value
	ClosingOdds map[string]float64            `json:"closing_odds"` // candidate ID -> closing decimal odds
}

// Actual looks up the observed value for a candidate.
func (d *DaySheet) Actual(candidateID string) (float64, bool) {
	v, ok := d.Actuals[candidateID]
	return v, ok
}

// Closing looks up the closing odds for a candidate.
func (d *DaySheet) Closing(candidateID string) (float64, bool) {
	v, ok := d.ClosingOdds[candidateID]
	return v, ok
}

// HistoricalDataProvider supplies per-day records for a date range, keyed by
// ISO date string. Days without data are simply absent from the map.
type HistoricalDataProvider interface {
	FetchDays(ctx context.Context, start, end time.Time, propTypes []string) (map[string]*DaySheet, error)
	Name() string
}

// PredictionOracle returns a model prediction for a candidate. Implementations
// may fan out to several named models and combine the outputs.
type PredictionOracle interface {
	Predict(ctx context.Context, candidate models.Candidate) (*models.Prediction, error)
	Name() string
}

// ProviderError wraps a provider failure with its source and code.
type ProviderError struct {
	Source  string
	Code    string
	Message string
	Err     error
}

func (e ProviderError) Error() string {
	if e.Err != nil {
		return e.Source + ": " + e.Code + ": " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Source + ": " + e.Code + ": " + e.Message
}

func (e ProviderError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeRateLimitExceeded = "rate_limit_exceeded"
	ErrCodeNotFound          = "not_found"
	ErrCodeInvalidData       = "invalid_data"
	ErrCodeNetworkError      = "network_error"
	ErrCodeServerError       = "server_error"
)

var (
	ErrInvalidData  = errors.New("invalid data format")
	ErrNetworkError = errors.New("network error")
)

// NewProviderError creates a provider error.
func NewProviderError(source, code, message string, err error) ProviderError {
	return ProviderError{Source: source, Code: code, Message: message, Err: err}
}
