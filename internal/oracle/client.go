// Package oracle provides clients for prediction model services.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/prop-edge/internal/feed"
	"github.com/yourusername/prop-edge/internal/metrics"
	"github.com/yourusername/prop-edge/internal/models"
)

// ModelConfig identifies one remote prediction model.
type ModelConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	Weight  float64 // relative weight applied to the model's confidence
	Client  feed.HTTPClientConfig
}

// HTTPClient calls a single model service over HTTP JSON. It implements
// feed.PredictionOracle. The service contract: POST /v1/predict with the
// candidate context, returning {value, confidence, contributions}.
type HTTPClient struct {
	cfg    ModelConfig
	client *feed.RateLimitedHTTPClient
	logger *logrus.Logger
}

// NewHTTPClient creates a client for one named model.
func NewHTTPClient(cfg ModelConfig, logger *logrus.Logger) *HTTPClient {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Weight <= 0 {
		cfg.Weight = 1.0
	}
	return &HTTPClient{
		cfg:    cfg,
		client: feed.NewRateLimitedHTTPClient(cfg.Client, logger),
		logger: logger,
	}
}

// Name returns the model name.
func (c *HTTPClient) Name() string {
	return c.cfg.Name
}

type predictRequest struct {
	CandidateID string  `json:"candidate_id"`
	Sport       string  `json:"sport"`
	PropType    string  `json:"prop_type"`
	Player      string  `json:"player"`
	Team        string  `json:"team"`
	Opponent    string  `json:"opponent"`
	Line        float64 `json:"line"`
	GameDate    string  `json:"game_date"`
}

type predictResponse struct {
	Value         float64            `json:"value"`
	Confidence    float64            `json:"confidence"`
	Contributions map[string]float64 `json:"contributions,omitempty"`
}

// Predict requests a prediction for the candidate. A failure is wrapped in
// ErrOracleFailure so callers can exclude the candidate and continue.
func (c *HTTPClient) Predict(ctx context.Context, candidate models.Candidate) (*models.Prediction, error) {
	start := time.Now()
	defer func() {
		metrics.OracleLatencySeconds.WithLabelValues(c.cfg.Name).Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(predictRequest{
		CandidateID: candidate.ID,
		Sport:       candidate.Sport,
		PropType:    candidate.PropType,
		Player:      candidate.Player,
		Team:        candidate.Team,
		Opponent:    candidate.Opponent,
		Line:        candidate.Line,
		GameDate:    candidate.GameDate.Format(feed.DateKey),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", models.ErrOracleFailure, err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/predict"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrOracleFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		metrics.OracleRequestsTotal.WithLabelValues(c.cfg.Name, "error").Inc()
		return nil, fmt.Errorf("%w: %s: %v", models.ErrOracleFailure, c.cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.OracleRequestsTotal.WithLabelValues(c.cfg.Name, "error").Inc()
		return nil, fmt.Errorf("%w: %s: status %d", models.ErrOracleFailure, c.cfg.Name, resp.StatusCode)
	}

	var payload predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		metrics.OracleRequestsTotal.WithLabelValues(c.cfg.Name, "error").Inc()
		return nil, fmt.Errorf("%w: %s: decode: %v", models.ErrOracleFailure, c.cfg.Name, err)
	}
	if payload.Confidence < 0 || payload.Confidence > 1 {
		metrics.OracleRequestsTotal.WithLabelValues(c.cfg.Name, "invalid").Inc()
		return nil, fmt.Errorf("%w: %s: confidence %.3f out of range", models.ErrOracleFailure, c.cfg.Name, payload.Confidence)
	}

	confidence := payload.Confidence * c.cfg.Weight
	if confidence > 1 {
		confidence = 1
	}

	metrics.OracleRequestsTotal.WithLabelValues(c.cfg.Name, "success").Inc()
	return &models.Prediction{
		Model:         c.cfg.Name,
		Value:         payload.Value,
		Confidence:    confidence,
		Contributions: payload.Contributions,
		PredictedAt:   time.Now().UTC(),
	}, nil
}

// Close releases the underlying HTTP client.
func (c *HTTPClient) Close() error {
	return c.client.Close()
}
