package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eventdesk/eventdesk/internal/geo"
	"github.com/eventdesk/eventdesk/internal/places"
	"github.com/eventdesk/eventdesk/internal/routing"
)

const defaultGeocodeLimit = 5

// Geocode performs a forward geocoding search.
func (c *Client) Geocode(ctx context.Context, req places.GeocodeRequest) (result []places.Place, err error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, places.ErrEmptyQuery
	}

	start := time.Now()
	defer func() { c.metrics.RecordRequest(ProviderName, "geocode", time.Since(start), err) }()

	limit := req.Limit
	if limit <= 0 {
		limit = defaultGeocodeLimit
	}

	q := url.Values{}
	q.Set("access_token", c.accessToken)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("autocomplete", "true")
	if len(req.Types) > 0 {
		q.Set("types", strings.Join(req.Types, ","))
	}
	if req.Proximity != nil {
		q.Set("proximity", lonLat(*req.Proximity))
	}

	endpoint := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?%s",
		c.baseURL, url.PathEscape(query), q.Encode())

	c.logger.Debug().
		Str("query", query).
		Int("limit", limit).
		Msg("geocoding with Mapbox")

	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, c.handleErrorResponse(status, body)
	}

	var gResp geocodingResponse
	if err := json.Unmarshal(body, &gResp); err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "DECODE_FAILED",
			Message:  "could not decode geocoding response",
			Err:      fmt.Errorf("%w: %v", routing.ErrMalformedResponse, err),
		}
	}

	result = make([]places.Place, 0, len(gResp.Features))
	for _, f := range gResp.Features {
		if len(f.Center) < 2 {
			continue
		}
		result = append(result, places.Place{
			ID:        f.ID,
			Name:      f.Text,
			FullName:  f.PlaceName,
			Point:     geo.Point{Lat: f.Center[1], Lon: f.Center[0]},
			Types:     f.PlaceType,
			Relevance: f.Relevance,
		})
	}

	return result, nil
}
