// Package polyline implements the encoded polyline algorithm format.
// See https://developers.google.com/maps/documentation/utilities/polylinealgorithm
//
// Mapbox Directions emits the same format at precision 6 ("polyline6");
// Google and most other providers use precision 5.
package polyline

import (
	"errors"
	"math"
)

// Standard precisions.
const (
	Precision5 = 5
	Precision6 = 6
)

// ErrTruncated is returned when an encoded string ends mid-value.
var ErrTruncated = errors.New("polyline: truncated input")

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

func factor(precision int) float64 {
	if precision <= 0 {
		precision = Precision5
	}
	return math.Pow10(precision)
}

// Encode encodes coords with the given decimal precision.
func Encode(coords []Coordinate, precision int) string {
	if len(coords) == 0 {
		return ""
	}

	f := factor(precision)
	buf := make([]byte, 0, len(coords)*6)
	var prevLat, prevLon int64

	for _, c := range coords {
		lat := int64(math.Round(c.Lat * f))
		lon := int64(math.Round(c.Lon * f))

		buf = appendValue(buf, lat-prevLat)
		buf = appendValue(buf, lon-prevLon)

		prevLat, prevLon = lat, lon
	}

	return string(buf)
}

// Decode decodes an encoded polyline produced at the given precision.
func Decode(encoded string, precision int) ([]Coordinate, error) {
	if encoded == "" {
		return nil, nil
	}

	f := factor(precision)
	coords := make([]Coordinate, 0, len(encoded)/4)
	var lat, lon int64

	for i := 0; i < len(encoded); {
		dLat, next, err := readValue(encoded, i)
		if err != nil {
			return nil, err
		}
		dLon, next, err := readValue(encoded, next)
		if err != nil {
			return nil, err
		}
		i = next

		lat += dLat
		lon += dLon
		coords = append(coords, Coordinate{Lat: float64(lat) / f, Lon: float64(lon) / f})
	}

	return coords, nil
}

func appendValue(buf []byte, v int64) []byte {
	u := uint64(v) << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		buf = append(buf, byte(0x20|(u&0x1f))+63)
		u >>= 5
	}
	return append(buf, byte(u)+63)
}

func readValue(s string, i int) (int64, int, error) {
	var result uint64
	var shift uint
	for {
		if i >= len(s) {
			return 0, i, ErrTruncated
		}
		b := uint64(s[i]) - 63
		i++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^int64(result >> 1), i, nil
	}
	return int64(result >> 1), i, nil
}
