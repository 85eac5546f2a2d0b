package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/metior/internal/interfaces"
	"github.com/ternarybob/metior/internal/models"
)

const (
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 10
)

// eodRow is a single end-of-day bar as returned by the API.
type eodRow struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d on %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

// APIReader fetches observations from an end-of-day price API. Requests are
// rate limited; the source fingerprint is a digest of the response payload,
// so a rewritten history changes the fingerprint even when the latest date
// does not.
type APIReader struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// APIReaderOption configures the APIReader.
type APIReaderOption func(*APIReader)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) APIReaderOption {
	return func(r *APIReader) {
		r.httpClient = httpClient
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) APIReaderOption {
	return func(r *APIReader) {
		r.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewAPIReader creates a rate-limited API reader.
func NewAPIReader(baseURL, apiKey string, logger arbor.ILogger, opts ...APIReaderOption) *APIReader {
	r := &APIReader{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *APIReader) fetch(ctx context.Context, instrument string) ([]byte, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("api_token", r.apiKey)
	params.Set("fmt", "json")
	params.Set("period", "d")
	params.Set("order", "a")

	endpoint := "/eod/" + instrument
	reqURL := fmt.Sprintf("%s%s?%s", r.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	r.logger.Debug().
		Str("instrument", instrument).
		Str("url", r.baseURL+endpoint).
		Msg("EOD API request")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: status %d", interfaces.ErrSourceUnavailable, resp.StatusCode)
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   endpoint,
		}
	}

	return io.ReadAll(resp.Body)
}

// Read fetches the full history for an instrument.
func (r *APIReader) Read(ctx context.Context, instrument string) ([]models.Observation, interfaces.SourceInfo, error) {
	payload, err := r.fetch(ctx, instrument)
	if err != nil {
		return nil, interfaces.SourceInfo{}, err
	}

	var rows []eodRow
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, interfaces.SourceInfo{}, fmt.Errorf("failed to decode response for %s: %w", instrument, err)
	}

	obs := make([]models.Observation, 0, len(rows))
	for _, row := range rows {
		date, err := models.ParseDate(row.Date)
		if err != nil {
			return nil, interfaces.SourceInfo{}, fmt.Errorf("response for %s: %w", instrument, err)
		}
		obs = append(obs, models.Observation{
			Date:   date,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		})
	}

	obs = models.NormalizeObservations(obs)
	if err := models.ValidateObservations(obs); err != nil {
		return nil, interfaces.SourceInfo{}, fmt.Errorf("response for %s: %w", instrument, err)
	}

	digest := sha256.Sum256(payload)
	info := interfaces.SourceInfo{
		LatestDate:  models.LatestDate(obs),
		Fingerprint: hex.EncodeToString(digest[:8]),
		Rows:        len(obs),
	}

	r.logger.Debug().
		Str("instrument", instrument).
		Int("rows", info.Rows).
		Str("latest", info.LatestDate.String()).
		Msg("EOD API response")
	return obs, info, nil
}

// Info returns source metadata for an instrument. The API has no metadata
// endpoint, so the payload is still fetched, but only the dates are parsed.
func (r *APIReader) Info(ctx context.Context, instrument string) (interfaces.SourceInfo, error) {
	payload, err := r.fetch(ctx, instrument)
	if err != nil {
		return interfaces.SourceInfo{}, err
	}

	var rows []eodRow
	if err := json.Unmarshal(payload, &rows); err != nil {
		return interfaces.SourceInfo{}, fmt.Errorf("failed to decode response for %s: %w", instrument, err)
	}

	digest := sha256.Sum256(payload)
	info := interfaces.SourceInfo{
		Fingerprint: hex.EncodeToString(digest[:8]),
		Rows:        len(rows),
	}
	for _, row := range rows {
		date, err := models.ParseDate(row.Date)
		if err != nil {
			return interfaces.SourceInfo{}, fmt.Errorf("response for %s: %w", instrument, err)
		}
		if date > info.LatestDate {
			info.LatestDate = date
		}
	}
	return info, nil
}
