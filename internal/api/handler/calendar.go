package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/eventdesk/eventdesk/internal/api/models"
	"github.com/eventdesk/eventdesk/internal/api/response"
	"github.com/eventdesk/eventdesk/internal/calendar"
	"github.com/eventdesk/eventdesk/internal/calendar/ics"
	"github.com/eventdesk/eventdesk/internal/validation"
)

const icsCalendarName = "EventDesk"

// CalendarHandlerConfig holds configuration for the calendar handler.
type CalendarHandlerConfig struct {
	Aggregator  *calendar.Aggregator
	Manager     *calendar.ConnectionManager
	Connections calendar.ConnectionRepository
	Logger      zerolog.Logger
	Now         func() time.Time
}

// CalendarHandler handles calendar events and provider connections.
type CalendarHandler struct {
	aggregator  *calendar.Aggregator
	manager     *calendar.ConnectionManager
	connections calendar.ConnectionRepository
	logger      zerolog.Logger
	now         func() time.Time
}

// NewCalendarHandler creates a new CalendarHandler.
func NewCalendarHandler(cfg CalendarHandlerConfig) *CalendarHandler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &CalendarHandler{
		aggregator:  cfg.Aggregator,
		manager:     cfg.Manager,
		connections: cfg.Connections,
		logger:      cfg.Logger,
		now:         now,
	}
}

// ListEvents handles GET /v1/calendar/events. Every source is refreshed
// for the requested window; a failing source contributes nothing.
func (h *CalendarHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := optionalTime(q, "start")
	if err != nil {
		response.Validation(w, r, err)
		return
	}
	end, err := optionalTime(q, "end")
	if err != nil {
		response.Validation(w, r, err)
		return
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		response.Validation(w, r, validation.NewError("end", "must not be before start"))
		return
	}

	events := h.aggregator.Refresh(r.Context(), calendar.Window{Start: start, End: end})
	response.JSON(w, r, http.StatusOK, models.ListResponse[calendar.CalendarEvent]{Items: events})
}

// UpcomingEvents handles GET /v1/calendar/events/upcoming.
func (h *CalendarHandler) UpcomingEvents(w http.ResponseWriter, r *http.Request) {
	events := calendar.Upcoming(h.aggregator.Events(), h.now())
	response.JSON(w, r, http.StatusOK, models.ListResponse[calendar.CalendarEvent]{Items: events})
}

// ExportEvents handles GET /v1/calendar/events.ics.
func (h *CalendarHandler) ExportEvents(w http.ResponseWriter, r *http.Request) {
	body := ics.Export(h.aggregator.Events(), icsCalendarName, h.now())
	w.Header().Set("Content-Disposition", `attachment; filename="eventdesk.ics"`)
	response.Data(w, r, http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}

// CreateEvent handles POST /v1/calendar/events. Created events live for
// the process lifetime only.
func (h *CalendarHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req models.LocalEventRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	ev, err := h.aggregator.AddLocalEvent(r.Context(), calendar.LocalEventInput{
		Title:       req.Title,
		Type:        calendar.EventType(req.Type),
		Status:      calendar.EventStatus(req.Status),
		Start:       req.Start,
		End:         req.End,
		Attendees:   req.Attendees,
		Description: req.Description,
		Location:    req.Location,
	})
	if err != nil {
		if validation.IsError(err) {
			response.Validation(w, r, err)
			return
		}
		h.logger.Error().Err(err).Msg("adding local event")
		response.InternalError(w, r, "failed to create event")
		return
	}

	response.Created(w, r, "/v1/calendar/events/"+ev.ID, ev)
}

// DeleteEvent handles DELETE /v1/calendar/events/{eventId}. Only local
// events can be deleted.
func (h *CalendarHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.aggregator.RemoveLocalEvent(chi.URLParam(r, "eventId")); err != nil {
		if errors.Is(err, calendar.ErrEventNotFound) {
			response.NotFound(w, r, "event not found")
			return
		}
		response.InternalError(w, r, "failed to delete event")
		return
	}
	response.NoContent(w, r)
}

// ListConnections handles GET /v1/calendar/connections.
func (h *CalendarHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	sources := h.manager.Sources()
	views := make([]models.ConnectionView, 0, len(sources))

	for _, src := range sources {
		view := models.ConnectionView{
			Provider: string(src),
			State:    string(h.manager.State(src)),
		}

		if h.connections != nil {
			conn, err := h.connections.GetByProvider(r.Context(), src)
			switch {
			case err == nil:
				view.Email = conn.Email
				view.IsConnected = conn.IsConnected
				if !conn.ExpiresAt.IsZero() {
					ts := models.Timestamp(conn.ExpiresAt)
					view.ExpiresAt = &ts
				}
				if !conn.UpdatedAt.IsZero() {
					ts := models.Timestamp(conn.UpdatedAt)
					view.UpdatedAt = &ts
				}
			case !errors.Is(err, calendar.ErrConnectionNotFound):
				h.logger.Warn().Err(err).Str("source", string(src)).Msg("loading calendar connection")
			}
		}

		views = append(views, view)
	}

	response.JSON(w, r, http.StatusOK, models.ListResponse[models.ConnectionView]{Items: views})
}

// Connect handles POST /v1/calendar/connections/{provider}:connect.
func (h *CalendarHandler) Connect(w http.ResponseWriter, r *http.Request) {
	src, ok := h.providerParam(w, r)
	if !ok {
		return
	}

	var req models.ConnectRequest
	if err := response.Decode(r, &req); err != nil && !errors.Is(err, response.ErrEmptyBody) {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	result, err := h.manager.Connect(r.Context(), src, calendar.Grant{
		Code:        req.Code,
		RedirectURL: req.RedirectURL,
	})
	switch {
	case errors.Is(err, calendar.ErrConnectInProgress):
		response.Conflict(w, r, "a connection attempt is already in progress")
		return
	case errors.Is(err, calendar.ErrUnknownProvider):
		response.NotFound(w, r, "unknown calendar provider")
		return
	case err != nil:
		h.logger.Error().Err(err).Str("source", string(src)).Msg("calendar connect")
		response.InternalError(w, r, "failed to connect calendar")
		return
	}

	if result.Outcome == calendar.OutcomeFailed {
		response.BadGateway(w, r, "calendar sign-in failed")
		return
	}

	resp := models.ConnectResponse{
		Provider: string(result.Source),
		Outcome:  string(result.Outcome),
		State:    string(result.State),
	}
	if result.Outcome == calendar.OutcomeCancelled {
		resp.Message = "sign-in was cancelled"
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// Disconnect handles DELETE /v1/calendar/connections/{provider}. Local
// state is cleared even when the provider sign-out fails.
func (h *CalendarHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	src, ok := h.providerParam(w, r)
	if !ok {
		return
	}

	if err := h.manager.Disconnect(r.Context(), src); err != nil {
		if errors.Is(err, calendar.ErrUnknownProvider) {
			response.NotFound(w, r, "unknown calendar provider")
			return
		}
		h.logger.Warn().Err(err).Str("source", string(src)).Msg("calendar disconnect completed with errors")
	}
	response.NoContent(w, r)
}

// RefreshConnection handles POST /v1/calendar/connections/{provider}:refresh.
// It renews the provider's access token from the stored refresh token.
func (h *CalendarHandler) RefreshConnection(w http.ResponseWriter, r *http.Request) {
	src, ok := h.providerParam(w, r)
	if !ok {
		return
	}

	result, err := h.manager.Refresh(r.Context(), src)
	switch {
	case errors.Is(err, calendar.ErrConnectInProgress):
		response.Conflict(w, r, "a connection attempt is already in progress")
		return
	case errors.Is(err, calendar.ErrUnknownProvider):
		response.NotFound(w, r, "unknown calendar provider")
		return
	case err != nil:
		h.logger.Error().Err(err).Str("source", string(src)).Msg("calendar token refresh")
		response.InternalError(w, r, "failed to refresh calendar")
		return
	}

	if result.Outcome == calendar.OutcomeFailed {
		switch {
		case errors.Is(result.Err, calendar.ErrNotAuthenticated):
			response.Conflict(w, r, "calendar is not connected")
		case errors.Is(result.Err, calendar.ErrTokenExpired):
			response.Conflict(w, r, "calendar session expired, sign in again")
		default:
			response.BadGateway(w, r, "calendar token refresh failed")
		}
		return
	}

	response.JSON(w, r, http.StatusOK, models.ConnectResponse{
		Provider: string(result.Source),
		Outcome:  string(result.Outcome),
		State:    string(result.State),
	})
}

func (h *CalendarHandler) providerParam(w http.ResponseWriter, r *http.Request) (calendar.Source, bool) {
	src, err := calendar.ParseSource(chi.URLParam(r, "provider"))
	if err != nil || !src.IsProvider() {
		response.NotFound(w, r, "unknown calendar provider")
		return "", false
	}
	return src, true
}
