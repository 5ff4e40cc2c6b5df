// Package outlook reads events from Microsoft Graph.
package outlook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/eventdesk/eventdesk/internal/calendar"
	"github.com/eventdesk/eventdesk/internal/calendar/oauth"
	"github.com/eventdesk/eventdesk/internal/provider/resilience"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "outlook"

	// DefaultBaseURL is the Microsoft Graph base URL.
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 15 * time.Second

	// DefaultPageSize is the $top value for calendarview requests.
	DefaultPageSize = 100

	// DefaultMaxPages caps how many nextLink pages are followed.
	DefaultMaxPages = 20
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Graph client.
type ClientConfig struct {
	// Session supplies the OAuth token (required).
	Session *oauth.Session

	// BaseURL is the Graph base URL (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, a resilient client is created.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 15s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	PageSize int
	MaxPages int

	Logger zerolog.Logger
}

// Client is a calendar.OutlookProvider backed by Microsoft Graph.
type Client struct {
	*oauth.Session

	baseURL    string
	httpClient HTTPDoer
	pageSize   int
	maxPages   int
	logger     zerolog.Logger
}

var (
	_ calendar.OutlookProvider = (*Client)(nil)
	_ calendar.Diagnoser       = (*Client)(nil)
)

// NewClient creates a Graph client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
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

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	return &Client{
		Session:    cfg.Session,
		baseURL:    baseURL,
		httpClient: httpClient,
		pageSize:   pageSize,
		maxPages:   maxPages,
		logger:     cfg.Logger,
	}
}

type calendarViewResponse struct {
	Value    []calendar.OutlookEvent `json:"value"`
	NextLink string                  `json:"@odata.nextLink"`
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GetEvents lists event occurrences in w via /me/calendarview.
func (c *Client) GetEvents(ctx context.Context, w calendar.Window) ([]calendar.OutlookEvent, error) {
	tok, err := c.Token()
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("startDateTime", w.Start.UTC().Format(time.RFC3339))
	q.Set("endDateTime", w.End.UTC().Format(time.RFC3339))
	q.Set("$top", strconv.Itoa(c.pageSize))
	q.Set("$orderby", "start/dateTime")
	next := c.baseURL + "/me/calendarview?" + q.Encode()

	var events []calendar.OutlookEvent
	for page := 0; next != ""; page++ {
		if page >= c.maxPages {
			c.logger.Warn().
				Int("max_pages", c.maxPages).
				Int("count", len(events)).
				Msg("outlook calendarview truncated")
			break
		}

		var resp calendarViewResponse
		if err := c.get(ctx, next, tok.AccessToken, &resp); err != nil {
			return nil, err
		}
		events = append(events, resp.Value...)
		next = resp.NextLink
	}

	c.logger.Debug().Int("count", len(events)).Msg("fetched outlook events")
	return events, nil
}

// Diagnose checks that /me is reachable with the current token.
func (c *Client) Diagnose(ctx context.Context) error {
	tok, err := c.Token()
	if err != nil {
		return err
	}
	var me struct {
		ID string `json:"id"`
	}
	return c.get(ctx, c.baseURL+"/me?$select=id", tok.AccessToken, &me)
}

func (c *Client) get(ctx context.Context, endpoint, accessToken string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", calendar.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decoding graph response: %w", err)
	}
	return nil
}

func statusError(status int, body []byte) error {
	var gerr graphError
	_ = json.Unmarshal(body, &gerr)

	msg := gerr.Error.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", calendar.ErrTokenExpired, msg)
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: graph returned %d: %s", calendar.ErrProviderUnavailable, status, msg)
	default:
		return errors.New("graph returned " + strconv.Itoa(status) + ": " + msg)
	}
}
