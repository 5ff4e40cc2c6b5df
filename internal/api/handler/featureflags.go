package handler

import (
	"errors"
	"net/http"
	"sort"

	"github.com/rs/zerolog"

	"github.com/eventdesk/eventdesk/internal/api/models"
	"github.com/eventdesk/eventdesk/internal/api/response"
	"github.com/eventdesk/eventdesk/internal/featureflags"
	"github.com/eventdesk/eventdesk/internal/validation"
)

// FeatureFlagsHandler handles feature flag endpoints.
type FeatureFlagsHandler struct {
	service *featureflags.Service
	logger  zerolog.Logger
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(service *featureflags.Service, logger zerolog.Logger) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{service: service, logger: logger}
}

// ListFeatureFlags handles GET /v1/admin/feature-flags.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	all := h.service.GetAllFlags(r.Context())

	list := featureflags.FlagList{Items: make([]featureflags.Flag, 0, len(all))}
	for _, f := range all {
		list.Items = append(list.Items, *f)
	}
	sort.Slice(list.Items, func(i, j int) bool { return list.Items[i].Key < list.Items[j].Key })

	response.JSON(w, r, http.StatusOK, list)
}

// UpsertFeatureFlags handles PUT /v1/admin/feature-flags.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	var req featureflags.FlagUpdateRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	if err := validation.Struct(req); err != nil {
		response.Validation(w, r, err)
		return
	}
	for _, u := range req.Updates {
		if u.Value == nil {
			response.BadRequest(w, r, "flag value is required", []models.FieldError{
				{Field: "updates.value", Message: "is required"},
			})
			return
		}
	}

	updated, err := h.service.Apply(r.Context(), req)
	switch {
	case errors.Is(err, featureflags.ErrUnknownFlag):
		response.BadRequest(w, r, err.Error(), nil)
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("updating feature flags")
		response.InternalError(w, r, "failed to update feature flags")
		return
	}

	list := featureflags.FlagList{Items: make([]featureflags.Flag, 0, len(updated))}
	for _, f := range updated {
		list.Items = append(list.Items, *f)
	}
	response.JSON(w, r, http.StatusOK, list)
}

// InvalidateCache handles POST /v1/admin/feature-flags/invalidate.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	response.NoContent(w, r)
}
