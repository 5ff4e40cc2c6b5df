// Package geo provides distance and bearing helpers over WGS84 coordinates.
package geo

import (
	"errors"
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean Earth radius used by every distance formula here.
const EarthRadiusKm = 6371.0

// kmPerDegree is the length of one degree of latitude in the flat-earth model.
const kmPerDegree = 111.0

// ErrInvalidCoordinates is returned when a point lies outside the valid range.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Point is a geographic position in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate reports whether p is a usable coordinate.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return ErrInvalidCoordinates
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

func (p Point) latLng() s2.LatLng {
	return s2.LatLngFromDegrees(p.Lat, p.Lon)
}

// HaversineDistanceKm returns the great-circle distance between a and b in kilometres.
func HaversineDistanceKm(a, b Point) float64 {
	return a.latLng().Distance(b.latLng()).Radians() * EarthRadiusKm
}

// FlatEarthApproxDistanceKm approximates the distance between a and b by
// treating degrees as a flat grid scaled by 111 km and the cosine of the
// starting latitude. It is the model used when no routing provider answers.
func FlatEarthApproxDistanceKm(a, b Point) float64 {
	dLat := (b.Lat - a.Lat) * kmPerDegree
	dLon := (b.Lon - a.Lon) * kmPerDegree * math.Cos(a.Lat*math.Pi/180)
	return math.Sqrt(dLat*dLat + dLon*dLon)
}

// BearingDegrees returns the initial bearing from a to b, normalised to [0, 360).
func BearingDegrees(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return normalizeDegrees(math.Atan2(y, x) * 180 / math.Pi)
}

func normalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
