package routing

import (
	"fmt"
	"math"
	"time"
)

// FormatETA renders a duration as "N min" below an hour and "H h M min" above.
func FormatETA(durationSeconds float64) string {
	if durationSeconds < 0 || math.IsNaN(durationSeconds) {
		durationSeconds = 0
	}
	minutes := int(math.Round(durationSeconds / 60))
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%d h %d min", minutes/60, minutes%60)
}

// ArrivalTime is the expected arrival when leaving at now.
func ArrivalTime(now time.Time, route *Route) time.Time {
	if route == nil {
		return now
	}
	return now.Add(time.Duration(route.DurationSeconds * float64(time.Second)))
}
