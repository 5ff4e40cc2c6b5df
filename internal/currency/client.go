package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/eventdesk/eventdesk/internal/provider/resilience"
	"github.com/eventdesk/eventdesk/internal/telemetry"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "exchangerate"

	// DefaultBaseURL is the ExchangeRate-API base URL.
	DefaultBaseURL = "https://v6.exchangerate-api.com"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the exchange-rate client.
type ClientConfig struct {
	// APIKey is the ExchangeRate-API key (required).
	APIKey string

	// BaseURL is the API base URL (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Metrics records request outcomes (optional).
	Metrics *telemetry.ProviderMetrics

	Logger zerolog.Logger
}

// Client fetches latest rates from ExchangeRate-API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	metrics    *telemetry.ProviderMetrics
	logger     zerolog.Logger
}

// NewClient creates an exchange-rate client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
}

type latestResponse struct {
	Result          string             `json:"result"`
	ErrorType       string             `json:"error-type"`
	BaseCode        string             `json:"base_code"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

// Latest returns the rates from base to every supported currency.
func (c *Client) Latest(ctx context.Context, base string) (rates map[string]float64, err error) {
	start := time.Now()
	defer func() { c.metrics.RecordRequest(ProviderName, "latest", time.Since(start), err) }()

	endpoint := fmt.Sprintf("%s/v6/%s/latest/%s", c.baseURL, url.PathEscape(c.apiKey), url.PathEscape(base))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRatesUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var out latestResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decoding response (status %d): %v", ErrRatesUnavailable, resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || out.Result != "success" {
		msg := out.ErrorType
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s", ErrRatesUnavailable, msg)
	}
	if len(out.ConversionRates) == 0 {
		return nil, errors.Join(ErrRatesUnavailable, errors.New("empty conversion_rates"))
	}

	c.logger.Debug().
		Str("base", out.BaseCode).
		Int("rates", len(out.ConversionRates)).
		Msg("fetched exchange rates")

	return out.ConversionRates, nil
}
