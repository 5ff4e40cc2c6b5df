// Package featureflags provides runtime switches read from storage with
// in-process caching and compiled-in defaults.
package featureflags

import (
	"time"
)

// Well-known feature flag keys.
const (
	// FlagStrictRequestOrdering drops results of superseded route and
	// calendar requests instead of letting the last response win.
	FlagStrictRequestOrdering = "strict_request_ordering"

	// FlagCalendarCacheFallback serves cached provider events when no
	// provider returns any.
	FlagCalendarCacheFallback = "calendar_cache_fallback"

	// FlagCurrencyLiveRates enables calls to the exchange-rate API.
	FlagCurrencyLiveRates = "currency_live_rates"

	// FlagRoutingProviderEnabled enables Mapbox directions. When off every
	// route is a straight-line estimate.
	FlagRoutingProviderEnabled = "routing_provider_enabled"

	// FlagDisableAlertsSending suppresses user alerts.
	FlagDisableAlertsSending = "disable_alerts_sending"
)

// Flag is a feature flag with its current value.
type Flag struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FlagList is a list of feature flags.
type FlagList struct {
	Items []Flag `json:"items"`
}

// FlagUpdate is a single flag change.
type FlagUpdate struct {
	Key   string `json:"key" validate:"required"`
	Value any    `json:"value"`
}

// FlagUpdateRequest is a batch of flag changes.
type FlagUpdateRequest struct {
	Updates []FlagUpdate `json:"updates" validate:"required,min=1,dive"`
	Reason  string       `json:"reason" validate:"required,max=500"`
}

// BoolValue returns the flag value as a boolean, or defaultValue when the
// flag is nil or not boolean-like.
func (f *Flag) BoolValue(defaultValue bool) bool {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		// JSON numbers
		return v != 0
	case string:
		switch v {
		case "true", "on", "1":
			return true
		case "false", "off", "0":
			return false
		}
	}
	return defaultValue
}

// IntValue returns the flag value as an integer, or defaultValue.
func (f *Flag) IntValue(defaultValue int) int {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultValue
	}
}

// clone returns a copy safe to hand out.
func (f *Flag) clone() *Flag {
	if f == nil {
		return nil
	}
	cp := *f
	return &cp
}

// DefaultFlags returns the compiled-in flag values.
func DefaultFlags() map[string]*Flag {
	now := time.Now()
	defaults := map[string]any{
		FlagStrictRequestOrdering:  false,
		FlagCalendarCacheFallback:  true,
		FlagCurrencyLiveRates:      true,
		FlagRoutingProviderEnabled: true,
		FlagDisableAlertsSending:   false,
	}

	flags := make(map[string]*Flag, len(defaults))
	for k, v := range defaults {
		flags[k] = &Flag{Key: k, Value: v, UpdatedAt: now}
	}
	return flags
}

// IsKnown reports whether key is a well-known flag.
func IsKnown(key string) bool {
	_, ok := DefaultFlags()[key]
	return ok
}
