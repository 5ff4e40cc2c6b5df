// Package places manages saved map pins, downloaded offline map areas and
// place search for a user.
package places

import (
	"context"
	"errors"
	"time"

	"github.com/eventdesk/eventdesk/internal/geo"
)

// Sentinel errors.
var (
	ErrEmptyQuery   = errors.New("search query is empty")
	ErrPinNotFound  = errors.New("pin not found")
	ErrAreaNotFound = errors.New("downloaded area not found")
	ErrNoGeocoder   = errors.New("place search is not configured")
)

// Place is a geocoding result.
type Place struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FullName  string    `json:"fullName"`
	Point     geo.Point `json:"point"`
	Types     []string  `json:"types,omitempty"`
	Relevance float64   `json:"relevance"`
}

// GeocodeRequest is a forward search.
type GeocodeRequest struct {
	Query     string
	Types     []string
	Proximity *geo.Point
	Limit     int
}

// Geocoder resolves free text into places.
type Geocoder interface {
	Geocode(ctx context.Context, req GeocodeRequest) ([]Place, error)
}

// Pin is a location saved by a user.
type Pin struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Note      string    `json:"note,omitempty"`
	Point     geo.Point `json:"point"`
	CreatedAt time.Time `json:"createdAt"`
}

// PinInput is the user-supplied part of a pin.
type PinInput struct {
	Name string  `validate:"required,max=120"`
	Note string  `validate:"max=500"`
	Lat  float64 `validate:"gte=-90,lte=90"`
	Lon  float64 `validate:"gte=-180,lte=180"`
}

// PinView is a pin annotated relative to a reference point.
type PinView struct {
	Pin
	DistanceKm *float64 `json:"distanceKm,omitempty"`
	Direction  string   `json:"direction,omitempty"`
}

// Bounds is a lat/lon bounding box.
type Bounds struct {
	MinLat float64 `json:"minLat"`
	MinLon float64 `json:"minLon"`
	MaxLat float64 `json:"maxLat"`
	MaxLon float64 `json:"maxLon"`
}

// DownloadedArea records a region whose map tiles were stored offline.
type DownloadedArea struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Name         string    `json:"name"`
	Bounds       Bounds    `json:"bounds"`
	MinZoom      int       `json:"minZoom"`
	MaxZoom      int       `json:"maxZoom"`
	StyleURL     string    `json:"styleUrl,omitempty"`
	DownloadedAt time.Time `json:"downloadedAt"`
}

// AreaInput is the user-supplied part of a downloaded area.
type AreaInput struct {
	Name     string  `validate:"required,max=120"`
	MinLat   float64 `validate:"gte=-90,lte=90"`
	MinLon   float64 `validate:"gte=-180,lte=180"`
	MaxLat   float64 `validate:"gte=-90,lte=90,gtfield=MinLat"`
	MaxLon   float64 `validate:"gte=-180,lte=180,gtfield=MinLon"`
	MinZoom  int     `validate:"gte=0,lte=22"`
	MaxZoom  int     `validate:"gte=0,lte=22,gtefield=MinZoom"`
	StyleURL string  `validate:"omitempty,url"`
}
