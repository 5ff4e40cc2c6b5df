// Package handler provides HTTP handlers for the eventdesk API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/eventdesk/eventdesk/internal/api/models"
	"github.com/eventdesk/eventdesk/internal/api/response"
	"github.com/eventdesk/eventdesk/internal/featureflags"
	"github.com/eventdesk/eventdesk/internal/provider/resilience"
)

// readinessTimeout bounds each dependency check.
const readinessTimeout = 2 * time.Second

// DependencyCheck probes one backing service.
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsHandlerConfig holds configuration for the ops handler.
type OpsHandlerConfig struct {
	Version   string
	BuildTime string
	Checks    []DependencyCheck
	Registry  *resilience.Registry
	Flags     *featureflags.Service
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	checks    []DependencyCheck
	registry  *resilience.Registry
	flags     *featureflags.Service
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsHandlerConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		checks:    cfg.Checks,
		registry:  cfg.Registry,
		flags:     cfg.Flags,
	}
}

// HealthCheck handles GET /v1/ops/health.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. Any failing dependency makes
// the instance unready.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	health := models.Health{Status: models.HealthStatusOK, Time: models.Timestamp(time.Now())}
	status := http.StatusOK
	for _, s := range subsystems {
		if s.Status == models.HealthStatusFail {
			health.Status = models.HealthStatusFail
			status = http.StatusServiceUnavailable
		}
	}
	if len(subsystems) > 0 {
		health.Details = map[string]any{"subsystems": subsystems}
	}

	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: h.runChecks(r.Context()),
		Providers:  h.providerStatuses(),
	}

	for _, s := range status.Subsystems {
		if s.Status == models.HealthStatusFail {
			status.Status = models.HealthStatusFail
		}
	}
	if status.Status == models.HealthStatusOK {
		for _, p := range status.Providers {
			if p.Status != models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
		}
	}

	status.ActiveDegradationFlags = h.degradationFlags(r.Context())

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	out := make([]models.SubsystemStatus, 0, len(h.checks))
	for _, c := range h.checks {
		cctx, cancel := context.WithTimeout(ctx, readinessTimeout)
		err := c.Check(cctx)
		cancel()

		s := models.SubsystemStatus{Name: c.Name, Status: models.HealthStatusOK}
		if err != nil {
			s.Status = models.HealthStatusFail
			s.Detail = err.Error()
		}
		out = append(out, s)
	}
	return out
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.registry == nil {
		return []models.ProviderStatus{}
	}

	all := h.registry.GetAllHealth()
	out := make([]models.ProviderStatus, 0, len(all))
	for _, ph := range all {
		ps := models.ProviderStatus{
			Provider:            ph.Name,
			Status:              models.HealthStatusOK,
			CircuitState:        ph.CircuitState.String(),
			ConsecutiveFailures: ph.Counts.ConsecutiveFailures,
			Trips:               ph.Trips,
			Message:             ph.LastError,
		}
		switch ph.Condition() {
		case resilience.ConditionDegraded:
			ps.Status = models.HealthStatusDegraded
		case resilience.ConditionUnavailable:
			ps.Status = models.HealthStatusFail
		}
		if ph.LastSuccessAt != nil {
			ts := models.Timestamp(*ph.LastSuccessAt)
			ps.LastSuccessAt = &ts
		}
		if ph.LastFailureAt != nil {
			ts := models.Timestamp(*ph.LastFailureAt)
			ps.LastFailureAt = &ts
		}
		out = append(out, ps)
	}
	return out
}

// degradationFlags lists flags currently switching a feature off.
func (h *OpsHandler) degradationFlags(ctx context.Context) []string {
	if h.flags == nil {
		return nil
	}

	var active []string
	if !h.flags.RoutingProviderEnabled(ctx) {
		active = append(active, featureflags.FlagRoutingProviderEnabled)
	}
	if !h.flags.CurrencyLiveRates(ctx) {
		active = append(active, featureflags.FlagCurrencyLiveRates)
	}
	if !h.flags.CalendarCacheFallback(ctx) {
		active = append(active, featureflags.FlagCalendarCacheFallback)
	}
	if h.flags.AlertsSendingDisabled(ctx) {
		active = append(active, featureflags.FlagDisableAlertsSending)
	}
	return active
}
