package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/eventdesk/eventdesk/internal/api/response"
	"github.com/eventdesk/eventdesk/internal/currency"
	"github.com/eventdesk/eventdesk/internal/validation"
)

// CurrencyHandler handles currency conversion.
type CurrencyHandler struct {
	service *currency.Service
	logger  zerolog.Logger
}

// NewCurrencyHandler creates a new CurrencyHandler.
func NewCurrencyHandler(service *currency.Service, logger zerolog.Logger) *CurrencyHandler {
	return &CurrencyHandler{service: service, logger: logger}
}

// Convert handles GET /v1/currency/convert.
func (h *CurrencyHandler) Convert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	amount, err := strconv.ParseFloat(q.Get("amount"), 64)
	if err != nil {
		response.Validation(w, r, validation.NewError("amount", "must be a number"))
		return
	}

	conv, err := h.service.Convert(r.Context(), amount, q.Get("from"), q.Get("to"))
	switch {
	case err == nil:
		response.JSON(w, r, http.StatusOK, conv)
	case validation.IsError(err):
		response.Validation(w, r, err)
	case errors.Is(err, currency.ErrUnsupportedCurrency):
		response.BadRequest(w, r, "no exchange rate for the requested currencies", nil)
	case errors.Is(err, currency.ErrRatesUnavailable):
		response.ServiceUnavailable(w, r, "exchange rates are unavailable")
	default:
		h.logger.Error().Err(err).Msg("currency conversion")
		response.InternalError(w, r, "conversion failed")
	}
}
