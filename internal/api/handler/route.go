package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/eventdesk/eventdesk/internal/api/models"
	"github.com/eventdesk/eventdesk/internal/api/response"
	"github.com/eventdesk/eventdesk/internal/geo"
	"github.com/eventdesk/eventdesk/internal/routing"
	"github.com/eventdesk/eventdesk/internal/validation"
	"github.com/eventdesk/eventdesk/pkg/polyline"
)

// RouteHandler handles route estimation endpoints.
type RouteHandler struct {
	navigator *routing.Navigator
	now       func() time.Time
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(navigator *routing.Navigator) *RouteHandler {
	return &RouteHandler{navigator: navigator, now: time.Now}
}

// ComputeRoute handles POST /v1/routes:compute. The estimate never fails
// once the input is valid.
func (h *RouteHandler) ComputeRoute(w http.ResponseWriter, r *http.Request) {
	var req models.RouteComputeRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	start, end, mode, err := validateRouteRequest(req)
	if err != nil {
		response.Validation(w, r, err)
		return
	}

	route, applied := h.navigator.Navigate(r.Context(), userID(r), start, end, mode)
	response.JSON(w, r, http.StatusOK, h.toRouteResponse(route, applied))
}

// CurrentRoute handles GET /v1/routes/current.
func (h *RouteHandler) CurrentRoute(w http.ResponseWriter, r *http.Request) {
	route := h.navigator.Current(userID(r))
	if route == nil {
		response.NotFound(w, r, "no route has been computed")
		return
	}
	response.JSON(w, r, http.StatusOK, h.toRouteResponse(route, true))
}

// ClearRoute handles DELETE /v1/routes/current.
func (h *RouteHandler) ClearRoute(w http.ResponseWriter, r *http.Request) {
	h.navigator.Clear(userID(r))
	response.NoContent(w, r)
}

// Distance handles GET /v1/geo/distance.
func (h *RouteHandler) Distance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, err := parsePoint("from", q.Get("from"))
	if err != nil {
		response.Validation(w, r, err)
		return
	}
	to, err := parsePoint("to", q.Get("to"))
	if err != nil {
		response.Validation(w, r, err)
		return
	}

	bearing := geo.BearingDegrees(from, to)
	response.JSON(w, r, http.StatusOK, models.DistanceResponse{
		From:           toPoint(from),
		To:             toPoint(to),
		DistanceKm:     geo.HaversineDistanceKm(from, to),
		FlatEarthKm:    geo.FlatEarthApproxDistanceKm(from, to),
		BearingDegrees: bearing,
		Direction:      geo.CompassLabel(bearing),
	})
}

func validateRouteRequest(req models.RouteComputeRequest) (start, end geo.Point, mode routing.TravelMode, err error) {
	verr := &validation.Error{}

	if req.Start == nil {
		verr.Fields = append(verr.Fields, validation.FieldError{Field: "start", Message: "is required"})
	} else if start = fromPoint(*req.Start); start.Validate() != nil {
		verr.Fields = append(verr.Fields, validation.FieldError{Field: "start", Message: "coordinates out of range"})
	}

	if req.End == nil {
		verr.Fields = append(verr.Fields, validation.FieldError{Field: "end", Message: "is required"})
	} else if end = fromPoint(*req.End); end.Validate() != nil {
		verr.Fields = append(verr.Fields, validation.FieldError{Field: "end", Message: "coordinates out of range"})
	}

	mode, perr := routing.ParseTravelMode(req.Mode)
	if perr != nil {
		if !errors.Is(perr, routing.ErrUnknownMode) {
			return start, end, mode, perr
		}
		verr.Fields = append(verr.Fields, validation.FieldError{Field: "mode", Message: "is not a supported travel mode"})
	}

	if len(verr.Fields) > 0 {
		return start, end, mode, verr
	}
	return start, end, mode, nil
}

func (h *RouteHandler) toRouteResponse(route *routing.Route, current bool) models.RouteResponse {
	geometry := make([]models.Point, 0, len(route.Geometry))
	coords := make([]polyline.Coordinate, 0, len(route.Geometry))
	for _, p := range route.Geometry {
		geometry = append(geometry, toPoint(p))
		coords = append(coords, polyline.Coordinate{Lat: p.Lat, Lon: p.Lon})
	}

	steps := make([]models.RouteStep, 0, len(route.Steps))
	for _, s := range route.Steps {
		steps = append(steps, models.RouteStep{
			Instruction:    s.Instruction,
			Name:           s.Name,
			Maneuver:       s.Maneuver,
			DistanceMeters: s.DistanceMeters,
			Location:       toPoint(s.Location),
		})
	}

	return models.RouteResponse{
		ID:              route.ID,
		Start:           toPoint(route.Start),
		End:             toPoint(route.End),
		Mode:            string(route.Mode),
		Geometry:        geometry,
		Polyline:        polyline.Encode(coords, polyline.Precision5),
		DistanceMeters:  route.DistanceMeters,
		DurationSeconds: route.DurationSeconds,
		ETA:             routing.FormatETA(route.DurationSeconds),
		ArrivalAt:       models.Timestamp(routing.ArrivalTime(h.now(), route)),
		Direction:       geo.BearingCompassLabel(route.Start, route.End),
		Steps:           steps,
		Source:          string(route.Source),
		Provider:        route.Provider,
		Current:         current,
		CreatedAt:       models.Timestamp(route.CreatedAt),
	}
}

func toPoint(p geo.Point) models.Point {
	return models.Point{Lat: p.Lat, Lon: p.Lon}
}

func fromPoint(p models.Point) geo.Point {
	return geo.Point{Lat: p.Lat, Lon: p.Lon}
}
