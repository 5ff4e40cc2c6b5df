package geo

import "math"

// compassLabels is ordered clockwise from North in 45 degree sectors.
var compassLabels = [8]string{
	"North",
	"Northeast",
	"East",
	"Southeast",
	"South",
	"Southwest",
	"West",
	"Northwest",
}

// CompassLabel maps a bearing in degrees to one of eight compass labels.
// Sector boundaries round half away from zero, so 22.5 is Northeast.
func CompassLabel(bearing float64) string {
	idx := int(math.Round(normalizeDegrees(bearing)/45)) % len(compassLabels)
	return compassLabels[idx]
}

// BearingCompassLabel returns the compass label for the direction from a to b.
func BearingCompassLabel(a, b Point) string {
	return CompassLabel(BearingDegrees(a, b))
}
