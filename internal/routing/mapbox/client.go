// Package mapbox provides a client for the Mapbox Directions and Geocoding APIs.
package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/eventdesk/eventdesk/internal/geo"
	"github.com/eventdesk/eventdesk/internal/provider/resilience"
	"github.com/eventdesk/eventdesk/internal/routing"
	"github.com/eventdesk/eventdesk/internal/telemetry"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "mapbox"

	// DefaultBaseURL is the Mapbox API base URL.
	DefaultBaseURL = "https://api.mapbox.com"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Mapbox client.
type ClientConfig struct {
	// AccessToken is the Mapbox access token (required).
	AccessToken string

	// BaseURL is the API base URL (optional, defaults to the Mapbox API).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, a resilient client with no retries is used.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Metrics records request outcomes (optional).
	Metrics *telemetry.ProviderMetrics

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Mapbox API client.
type Client struct {
	accessToken string
	baseURL     string
	httpClient  HTTPDoer
	metrics     *telemetry.ProviderMetrics
	logger      zerolog.Logger
}

// NewClient creates a new Mapbox client.
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
		// Estimates fall back to a straight line; a slow retry is worse than no answer.
		clientCfg.MaxRetries = 0
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		accessToken: cfg.AccessToken,
		baseURL:     baseURL,
		httpClient:  httpClient,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetDirections retrieves a route between two points.
func (c *Client) GetDirections(ctx context.Context, req routing.DirectionsRequest) (resp *routing.DirectionsResponse, err error) {
	if err := req.Origin.Validate(); err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "INVALID_ORIGIN",
			Message:  "invalid origin coordinates",
			Err:      routing.ErrInvalidCoordinates,
		}
	}
	if err := req.Destination.Validate(); err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "INVALID_DESTINATION",
			Message:  "invalid destination coordinates",
			Err:      routing.ErrInvalidCoordinates,
		}
	}

	start := time.Now()
	defer func() { c.metrics.RecordRequest(ProviderName, "directions", time.Since(start), err) }()

	profile := req.Profile
	if profile == "" {
		profile = routing.ProfileDriving
	}

	q := url.Values{}
	q.Set("geometries", "geojson")
	q.Set("steps", "true")
	q.Set("overview", "full")
	q.Set("alternatives", "false")
	q.Set("access_token", c.accessToken)

	endpoint := fmt.Sprintf("%s/directions/v5/mapbox/%s/%s;%s?%s",
		c.baseURL, profile, lonLat(req.Origin), lonLat(req.Destination), q.Encode())

	c.logger.Debug().
		Str("profile", string(profile)).
		Float64("origin_lat", req.Origin.Lat).
		Float64("origin_lon", req.Origin.Lon).
		Float64("dest_lat", req.Destination.Lat).
		Float64("dest_lon", req.Destination.Lon).
		Msg("requesting directions from Mapbox")

	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, c.handleErrorResponse(status, body)
	}

	var mbResp directionsResponse
	if err := json.Unmarshal(body, &mbResp); err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "DECODE_FAILED",
			Message:  "could not decode directions response",
			Err:      fmt.Errorf("%w: %v", routing.ErrMalformedResponse, err),
		}
	}

	if mbResp.Code != "" && mbResp.Code != codeOk {
		return nil, codeError(mbResp.Code, mbResp.Message)
	}

	result, err := toDirectionsResponse(&mbResp)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int("route_count", len(result.Routes)).
		Msg("received directions from Mapbox")

	return result, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		code := "REQUEST_FAILED"
		if errors.Is(err, resilience.ErrCircuitOpen) {
			code = "CIRCUIT_OPEN"
		}
		return nil, 0, &routing.Error{
			Provider: ProviderName,
			Code:     code,
			Message:  "failed to reach Mapbox",
			Err:      fmt.Errorf("%w: %v", routing.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &routing.Error{
			Provider: ProviderName,
			Code:     "READ_FAILED",
			Message:  "failed to read Mapbox response",
			Err:      fmt.Errorf("%w: %v", routing.ErrProviderUnavailable, err),
		}
	}

	return body, resp.StatusCode, nil
}

// handleErrorResponse maps Mapbox error responses to domain errors.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	var mbErr errorResponse
	_ = json.Unmarshal(body, &mbErr)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "Mapbox rate limit exceeded",
			Err:      routing.ErrRateLimitExceeded,
		}
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "FORBIDDEN",
			Message:  "Mapbox access denied - check access token",
			Err:      routing.ErrProviderUnavailable,
		}
	case mbErr.Code != "":
		return codeError(mbErr.Code, mbErr.Message)
	case statusCode == http.StatusNotFound:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "NOT_FOUND",
			Message:  "Mapbox resource not found",
			Err:      routing.ErrNoRouteFound,
		}
	case statusCode >= 500:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("SERVER_%d", statusCode),
			Message:  "Mapbox is temporarily unavailable",
			Err:      routing.ErrProviderUnavailable,
		}
	default:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  fmt.Sprintf("Mapbox returned status %d", statusCode),
			Err:      routing.ErrProviderUnavailable,
		}
	}
}

func codeError(code, message string) error {
	if message == "" {
		message = code
	}
	switch code {
	case codeNoRoute, codeNoSegment:
		return &routing.Error{Provider: ProviderName, Code: code, Message: message, Err: routing.ErrNoRouteFound}
	case codeInvalidInput:
		return &routing.Error{Provider: ProviderName, Code: code, Message: message, Err: routing.ErrInvalidCoordinates}
	default:
		return &routing.Error{Provider: ProviderName, Code: code, Message: message, Err: routing.ErrProviderUnavailable}
	}
}

// toDirectionsResponse converts a Mapbox response to the domain model.
func toDirectionsResponse(resp *directionsResponse) (*routing.DirectionsResponse, error) {
	routes := make([]routing.ProviderRoute, 0, len(resp.Routes))

	for i := range resp.Routes {
		mbRoute := &resp.Routes[i]

		geometry, err := toPoints(mbRoute.Geometry.Coordinates)
		if err != nil {
			return nil, err
		}

		route := routing.ProviderRoute{
			Geometry:        geometry,
			DistanceMeters:  mbRoute.Distance,
			DurationSeconds: mbRoute.Duration,
		}

		for j := range mbRoute.Legs {
			for k := range mbRoute.Legs[j].Steps {
				step := &mbRoute.Legs[j].Steps[k]
				s := routing.Step{
					Instruction:    step.Maneuver.Instruction,
					Name:           step.Name,
					Maneuver:       maneuverLabel(step.Maneuver),
					DistanceMeters: step.Distance,
				}
				if len(step.Maneuver.Location) >= 2 {
					s.Location = geo.Point{Lat: step.Maneuver.Location[1], Lon: step.Maneuver.Location[0]}
				}
				route.Steps = append(route.Steps, s)
			}
		}

		routes = append(routes, route)
	}

	return &routing.DirectionsResponse{
		Routes:    routes,
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}, nil
}

func toPoints(coords [][]float64) ([]geo.Point, error) {
	points := make([]geo.Point, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			return nil, &routing.Error{
				Provider: ProviderName,
				Code:     "BAD_GEOMETRY",
				Message:  "route geometry has an incomplete coordinate",
				Err:      routing.ErrMalformedResponse,
			}
		}
		points = append(points, geo.Point{Lat: c[1], Lon: c[0]})
	}
	return points, nil
}

func maneuverLabel(m maneuver) string {
	if m.Modifier == "" {
		return m.Type
	}
	return m.Type + " " + m.Modifier
}

// lonLat formats a point in the lon,lat order Mapbox expects in paths.
func lonLat(p geo.Point) string {
	return strconv.FormatFloat(p.Lon, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat, 'f', 6, 64)
}
