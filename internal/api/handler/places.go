package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/eventdesk/eventdesk/internal/api/models"
	"github.com/eventdesk/eventdesk/internal/api/response"
	"github.com/eventdesk/eventdesk/internal/places"
	"github.com/eventdesk/eventdesk/internal/validation"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 10
)

// PlacesHandler handles place search and saved location endpoints.
type PlacesHandler struct {
	service *places.Service
	logger  zerolog.Logger
}

// NewPlacesHandler creates a new PlacesHandler.
func NewPlacesHandler(service *places.Service, logger zerolog.Logger) *PlacesHandler {
	return &PlacesHandler{service: service, logger: logger}
}

// Search handles GET /v1/places/search.
func (h *PlacesHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := q.Get("q")
	if query == "" {
		response.Validation(w, r, validation.NewError("q", "is required"))
		return
	}
	proximity, err := optionalPoint(q, "proximity")
	if err != nil {
		response.Validation(w, r, err)
		return
	}
	limit, err := optionalInt(q, "limit", defaultSearchLimit, 1, maxSearchLimit)
	if err != nil {
		response.Validation(w, r, err)
		return
	}

	results, err := h.service.Search(r.Context(), places.GeocodeRequest{
		Query:     query,
		Types:     splitList(q.Get("types")),
		Proximity: proximity,
		Limit:     limit,
	})
	switch {
	case errors.Is(err, places.ErrNoGeocoder):
		response.ServiceUnavailable(w, r, "place search is not configured")
		return
	case errors.Is(err, places.ErrEmptyQuery):
		response.Validation(w, r, validation.NewError("q", "is required"))
		return
	case err != nil:
		h.logger.Warn().Err(err).Str("query", query).Msg("place search failed")
		response.BadGateway(w, r, "place search failed")
		return
	}

	if results == nil {
		results = []places.Place{}
	}
	response.JSON(w, r, http.StatusOK, models.ListResponse[places.Place]{Items: results})
}

// ListPins handles GET /v1/me/pins. With ?near=lat,lon each pin carries
// its distance and direction from that point.
func (h *PlacesHandler) ListPins(w http.ResponseWriter, r *http.Request) {
	near, err := optionalPoint(r.URL.Query(), "near")
	if err != nil {
		response.Validation(w, r, err)
		return
	}

	pins, err := h.service.ListPins(r.Context(), userID(r), near)
	if err != nil {
		h.logger.Error().Err(err).Msg("listing pins")
		response.InternalError(w, r, "failed to list pins")
		return
	}
	if pins == nil {
		pins = []places.PinView{}
	}
	response.JSON(w, r, http.StatusOK, models.ListResponse[places.PinView]{Items: pins})
}

// CreatePin handles POST /v1/me/pins.
func (h *PlacesHandler) CreatePin(w http.ResponseWriter, r *http.Request) {
	var req models.PinRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	pin, err := h.service.SavePin(r.Context(), userID(r), places.PinInput{
		Name: req.Name,
		Note: req.Note,
		Lat:  req.Lat,
		Lon:  req.Lon,
	})
	if err != nil {
		if validation.IsError(err) {
			response.Validation(w, r, err)
			return
		}
		h.logger.Error().Err(err).Msg("saving pin")
		response.InternalError(w, r, "failed to save pin")
		return
	}

	response.Created(w, r, "/v1/me/pins/"+pin.ID, pin)
}

// DeletePin handles DELETE /v1/me/pins/{pinId}.
func (h *PlacesHandler) DeletePin(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeletePin(r.Context(), userID(r), chi.URLParam(r, "pinId"))
	switch {
	case errors.Is(err, places.ErrPinNotFound):
		response.NotFound(w, r, "pin not found")
	case err != nil:
		h.logger.Error().Err(err).Msg("deleting pin")
		response.InternalError(w, r, "failed to delete pin")
	default:
		response.NoContent(w, r)
	}
}

// ListAreas handles GET /v1/me/areas.
func (h *PlacesHandler) ListAreas(w http.ResponseWriter, r *http.Request) {
	areas, err := h.service.ListAreas(r.Context(), userID(r))
	if err != nil {
		h.logger.Error().Err(err).Msg("listing downloaded areas")
		response.InternalError(w, r, "failed to list areas")
		return
	}
	if areas == nil {
		areas = []places.DownloadedArea{}
	}
	response.JSON(w, r, http.StatusOK, models.ListResponse[places.DownloadedArea]{Items: areas})
}

// CreateArea handles POST /v1/me/areas.
func (h *PlacesHandler) CreateArea(w http.ResponseWriter, r *http.Request) {
	var req models.AreaRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	area, err := h.service.RecordArea(r.Context(), userID(r), places.AreaInput{
		Name:     req.Name,
		MinLat:   req.MinLat,
		MinLon:   req.MinLon,
		MaxLat:   req.MaxLat,
		MaxLon:   req.MaxLon,
		MinZoom:  req.MinZoom,
		MaxZoom:  req.MaxZoom,
		StyleURL: req.StyleURL,
	})
	if err != nil {
		if validation.IsError(err) {
			response.Validation(w, r, err)
			return
		}
		h.logger.Error().Err(err).Msg("recording downloaded area")
		response.InternalError(w, r, "failed to record area")
		return
	}

	response.Created(w, r, "/v1/me/areas/"+area.ID, area)
}

// DeleteArea handles DELETE /v1/me/areas/{areaId}.
func (h *PlacesHandler) DeleteArea(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeleteArea(r.Context(), userID(r), chi.URLParam(r, "areaId"))
	switch {
	case errors.Is(err, places.ErrAreaNotFound):
		response.NotFound(w, r, "area not found")
	case err != nil:
		h.logger.Error().Err(err).Msg("deleting downloaded area")
		response.InternalError(w, r, "failed to delete area")
	default:
		response.NoContent(w, r)
	}
}
