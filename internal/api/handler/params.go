package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eventdesk/eventdesk/internal/api/middleware"
	"github.com/eventdesk/eventdesk/internal/geo"
	"github.com/eventdesk/eventdesk/internal/validation"
)

// userID returns the authenticated caller.
func userID(r *http.Request) string {
	return middleware.GetUserID(r.Context())
}

// parsePoint parses a "lat,lon" query value.
func parsePoint(field, raw string) (geo.Point, error) {
	latStr, lonStr, ok := strings.Cut(raw, ",")
	if !ok {
		return geo.Point{}, validation.NewError(field, "must be formatted as lat,lon")
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return geo.Point{}, validation.NewError(field, "latitude is not a number")
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return geo.Point{}, validation.NewError(field, "longitude is not a number")
	}

	p := geo.Point{Lat: lat, Lon: lon}
	if err := p.Validate(); err != nil {
		return geo.Point{}, validation.NewError(field, "coordinates out of range")
	}
	return p, nil
}

// optionalPoint parses field when present.
func optionalPoint(q url.Values, field string) (*geo.Point, error) {
	raw := q.Get(field)
	if raw == "" {
		return nil, nil
	}
	p, err := parsePoint(field, raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// optionalTime parses an RFC 3339 query value; empty yields the zero time.
func optionalTime(q url.Values, field string) (time.Time, error) {
	raw := q.Get(field)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, validation.NewError(field, "must be an RFC 3339 timestamp")
	}
	return t, nil
}

// optionalInt parses an integer query value within [minValue, maxValue].
func optionalInt(q url.Values, field string, def, minValue, maxValue int) (int, error) {
	raw := q.Get(field)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < minValue || n > maxValue {
		return 0, validation.NewError(field, fmt.Sprintf("must be an integer between %d and %d", minValue, maxValue))
	}
	return n, nil
}

// splitList splits a comma-separated query value, dropping blanks.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
