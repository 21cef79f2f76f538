package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/prop-edge/internal/models"
)

// HTTPProviderConfig configures the HTTP historical data provider.
type HTTPProviderConfig struct {
	BaseURL string
	APIKey  string
	Client  HTTPClientConfig
}

// HTTPProvider fetches historical prop sheets from a JSON API. Odds, lines and
// actuals arrive as strings on the wire and are parsed through decimal to
// avoid locale and float-literal surprises before conversion to float64.
type HTTPProvider struct {
	cfg    HTTPProviderConfig
	client *RateLimitedHTTPClient
	logger *logrus.Logger
}

// NewHTTPProvider creates a provider against the given base URL.
func NewHTTPProvider(cfg HTTPProviderConfig, logger *logrus.Logger) *HTTPProvider {
	if logger == nil {
		logger = logrus.New()
	}
	return &HTTPProvider{
		cfg:    cfg,
		client: NewRateLimitedHTTPClient(cfg.Client, logger),
		logger: logger,
	}
}

// Name returns the provider identifier.
func (p *HTTPProvider) Name() string {
	return "http_historical"
}

// wire types

type historicalResponse struct {
	Days []dayPayload `json:"days"`
}

type dayPayload struct {
	Date  string        `json:"date"`
	Props []propPayload `json:"props"`
}

type propPayload struct {
	ID          string  `json:"id"`
	Sport       string  `json:"sport"`
	PropType    string  `json:"prop_type"`
	Player      string  `json:"player"`
	Team        string  `json:"team"`
	Opponent    string  `json:"opponent"`
	Line        string  `json:"line"`
	Odds        string  `json:"odds"`
	ClosingOdds *string `json:"closing_odds,omitempty"`
	Actual      *string `json:"actual,omitempty"`
}

// FetchDays retrieves and indexes historical sheets for the inclusive date
// range, keyed by ISO date. Days the API has no data for are absent from the
// returned map.
func (p *HTTPProvider) FetchDays(ctx context.Context, start, end time.Time, propTypes []string) (map[string]*DaySheet, error) {
	endpoint, err := p.buildURL(start, end, propTypes)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, NewProviderError(p.Name(), ErrCodeNetworkError, "historical fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, NewProviderError(p.Name(), ErrCodeNotFound, "no data for range", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, NewProviderError(p.Name(), ErrCodeServerError,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var payload historicalResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, NewProviderError(p.Name(), ErrCodeInvalidData, "decode failed", err)
	}

	sheets := make(map[string]*DaySheet, len(payload.Days))
	for _, day := range payload.Days {
		sheet, err := p.buildSheet(day)
		if err != nil {
			p.logger.WithError(err).WithField("date", day.Date).Warn("Skipping malformed day payload")
			continue
		}
		if len(sheet.Candidates) > 0 {
			sheets[sheet.Date] = sheet
		}
	}

	p.logger.WithFields(logrus.Fields{
		"days":  len(sheets),
		"start": start.Format(DateKey),
		"end":   end.Format(DateKey),
	}).Info("Historical data loaded")

	return sheets, nil
}

func (p *HTTPProvider) buildURL(start, end time.Time, propTypes []string) (string, error) {
	base, err := url.Parse(p.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	base.Path = strings.TrimRight(base.Path, "/") + "/v1/historical"

	q := base.Query()
	q.Set("start", start.Format(DateKey))
	q.Set("end", end.Format(DateKey))
	if len(propTypes) > 0 {
		q.Set("types", strings.Join(propTypes, ","))
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func (p *HTTPProvider) buildSheet(day dayPayload) (*DaySheet, error) {
	gameDate, err := time.Parse(DateKey, day.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: bad date %q", ErrInvalidData, day.Date)
	}

	sheet := &DaySheet{
		Date:        day.Date,
		Candidates:  make([]models.Candidate, 0, len(day.Props)),
		Actuals:     make(map[string]float64),
		ClosingOdds: make(map[string]float64),
	}

	for _, prop := range day.Props {
		line, err := parseWireNumber(prop.Line)
		if err != nil {
			return nil, fmt.Errorf("%w: line for prop %s", ErrInvalidData, prop.ID)
		}
		odds, err := parseWireNumber(prop.Odds)
		if err != nil || odds <= 1 {
			return nil, fmt.Errorf("%w: odds for prop %s", ErrInvalidData, prop.ID)
		}

		sheet.Candidates = append(sheet.Candidates, models.Candidate{
			ID:       prop.ID,
			Sport:    prop.Sport,
			PropType: prop.PropType,
			Player:   prop.Player,
			Team:     prop.Team,
			Opponent: prop.Opponent,
			Line:     line,
			Odds:     odds,
			GameDate: gameDate,
		})

		if prop.Actual != nil {
			if actual, err := parseWireNumber(*prop.Actual); err == nil {
				sheet.Actuals[prop.ID] = actual
			}
		}
		if prop.ClosingOdds != nil {
			if closing, err := parseWireNumber(*prop.ClosingOdds); err == nil && closing > 1 {
				sheet.ClosingOdds[prop.ID] = closing
			}
		}
	}

	return sheet, nil
}

func parseWireNumber(raw string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}

// Close releases the underlying HTTP client.
func (p *HTTPProvider) Close() error {
	return p.client.Close()
}
