package models

// PinRequest is the body of POST /v1/me/pins.
type PinRequest struct {
	Name string  `json:"name"`
	Note string  `json:"note,omitempty"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// AreaRequest is the body of POST /v1/me/areas.
type AreaRequest struct {
	Name     string  `json:"name"`
	MinLat   float64 `json:"minLat"`
	MinLon   float64 `json:"minLon"`
	MaxLat   float64 `json:"maxLat"`
	MaxLon   float64 `json:"maxLon"`
	MinZoom  int     `json:"minZoom"`
	MaxZoom  int     `json:"maxZoom"`
	StyleURL string  `json:"styleUrl,omitempty"`
}
