package routing

import (
	"fmt"
	"strings"
)

// TravelMode is the user-selected way of travelling.
type TravelMode string

// Travel modes.
const (
	ModeWalking TravelMode = "walking"
	ModeCycling TravelMode = "cycling"
	ModeDriving TravelMode = "driving"
	ModeBus     TravelMode = "bus"
	ModeSubway  TravelMode = "subway"
	ModeTram    TravelMode = "tram"
	ModeTrain   TravelMode = "train"
	ModeFerry   TravelMode = "ferry"
)

// speedKmh is the fixed average speed per mode.
var speedKmh = map[TravelMode]float64{
	ModeWalking: 5,
	ModeCycling: 15,
	ModeDriving: 50,
	ModeBus:     30,
	ModeSubway:  30,
	ModeTram:    30,
	ModeTrain:   30,
	ModeFerry:   20,
}

// AllTravelModes returns every supported mode.
func AllTravelModes() []TravelMode {
	return []TravelMode{
		ModeWalking, ModeCycling, ModeDriving,
		ModeBus, ModeSubway, ModeTram, ModeTrain, ModeFerry,
	}
}

// ParseTravelMode parses a mode name, case-insensitively.
func ParseTravelMode(s string) (TravelMode, error) {
	m := TravelMode(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := speedKmh[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}

// SpeedForMode returns the average speed in km/h used for estimates.
// Unknown modes fall back to walking speed.
func SpeedForMode(mode TravelMode) float64 {
	if v, ok := speedKmh[mode]; ok {
		return v
	}
	return speedKmh[ModeWalking]
}

// ProfileForMode maps a travel mode to a provider profile.
func ProfileForMode(mode TravelMode) Profile {
	switch mode {
	case ModeWalking:
		return ProfileWalking
	case ModeCycling:
		return ProfileCycling
	default:
		return ProfileDriving
	}
}

// DurationSeconds converts a distance into travel time at the mode's fixed speed.
func DurationSeconds(distanceMeters float64, mode TravelMode) float64 {
	return distanceMeters / 1000 / SpeedForMode(mode) * 3600
}
