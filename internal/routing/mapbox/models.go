package mapbox

// directionsResponse is the Mapbox Directions API v5 response body.
type directionsResponse struct {
	Code      string           `json:"code"`
	Message   string           `json:"message,omitempty"`
	Routes    []directionRoute `json:"routes"`
	Waypoints []waypoint       `json:"waypoints,omitempty"`
}

type directionRoute struct {
	Geometry   lineString `json:"geometry"`
	Distance   float64    `json:"distance"`
	Duration   float64    `json:"duration"`
	WeightName string     `json:"weight_name,omitempty"`
	Legs       []routeLeg `json:"legs"`
}

// lineString is a GeoJSON LineString; coordinates are [lon, lat].
type lineString struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}

type routeLeg struct {
	Summary  string      `json:"summary"`
	Distance float64     `json:"distance"`
	Duration float64     `json:"duration"`
	Steps    []routeStep `json:"steps"`
}

type routeStep struct {
	Name     string   `json:"name"`
	Mode     string   `json:"mode"`
	Distance float64  `json:"distance"`
	Duration float64  `json:"duration"`
	Maneuver maneuver `json:"maneuver"`
}

type maneuver struct {
	Type        string    `json:"type"`
	Modifier    string    `json:"modifier,omitempty"`
	Instruction string    `json:"instruction"`
	Location    []float64 `json:"location"`
}

type waypoint struct {
	Name     string    `json:"name"`
	Location []float64 `json:"location"`
}

// errorResponse is the body Mapbox returns with non-2xx statuses.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Mapbox directions response codes.
const (
	codeOk           = "Ok"
	codeNoRoute      = "NoRoute"
	codeNoSegment    = "NoSegment"
	codeInvalidInput = "InvalidInput"
)

// geocodingResponse is the Mapbox Geocoding v5 FeatureCollection.
type geocodingResponse struct {
	Type     string    `json:"type"`
	Query    []any     `json:"query"`
	Features []feature `json:"features"`
}

type feature struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	PlaceName string    `json:"place_name"`
	PlaceType []string  `json:"place_type"`
	Relevance float64   `json:"relevance"`
	Center    []float64 `json:"center"`
}
