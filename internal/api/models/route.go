package models

// RouteComputeRequest is the body of POST /v1/routes:compute.
type RouteComputeRequest struct {
	Start *Point `json:"start"`
	End   *Point `json:"end"`
	Mode  string `json:"mode"`
}

// RouteStep is one turn-by-turn instruction.
type RouteStep struct {
	Instruction    string  `json:"instruction"`
	Name           string  `json:"name,omitempty"`
	Maneuver       string  `json:"maneuver,omitempty"`
	DistanceMeters float64 `json:"distanceMeters"`
	Location       Point   `json:"location"`
}

// RouteResponse is a computed route.
type RouteResponse struct {
	ID              string      `json:"id"`
	Start           Point       `json:"start"`
	End             Point       `json:"end"`
	Mode            string      `json:"mode"`
	Geometry        []Point     `json:"geometry"`
	Polyline        string      `json:"polyline"`
	DistanceMeters  float64     `json:"distanceMeters"`
	DurationSeconds float64     `json:"durationSeconds"`
	ETA             string      `json:"eta"`
	ArrivalAt       Timestamp   `json:"arrivalAt"`
	Direction       string      `json:"direction"`
	Steps           []RouteStep `json:"steps"`
	Source          string      `json:"source"`
	Provider        string      `json:"provider,omitempty"`
	Current         bool        `json:"current"`
	CreatedAt       Timestamp   `json:"createdAt"`
}

// DistanceResponse is the body of GET /v1/geo/distance.
type DistanceResponse struct {
	From           Point   `json:"from"`
	To             Point   `json:"to"`
	DistanceKm     float64 `json:"distanceKm"`
	FlatEarthKm    float64 `json:"flatEarthKm"`
	BearingDegrees float64 `json:"bearingDegrees"`
	Direction      string  `json:"direction"`
}
