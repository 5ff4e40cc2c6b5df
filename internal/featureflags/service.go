package featureflags

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnknownFlag is returned when updating a key with no default.
var ErrUnknownFlag = errors.New("unknown feature flag")

// ServiceConfig holds configuration for the feature flag service.
type ServiceConfig struct {
	Repository   Repository
	Logger       zerolog.Logger
	CacheTTL     time.Duration // how long flags are cached in memory
	DefaultFlags map[string]*Flag
}

// Service evaluates feature flags with caching and default fallback.
type Service struct {
	repo         Repository
	logger       zerolog.Logger
	cacheTTL     time.Duration
	defaultFlags map[string]*Flag

	mu          sync.RWMutex
	cache       map[string]*Flag
	cacheExpiry time.Time
}

// NewService creates a feature flag service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Minute
	}

	defaultFlags := cfg.DefaultFlags
	if defaultFlags == nil {
		defaultFlags = DefaultFlags()
	}

	return &Service{
		repo:         cfg.Repository,
		logger:       cfg.Logger,
		cacheTTL:     cacheTTL,
		defaultFlags: defaultFlags,
		cache:        make(map[string]*Flag),
	}
}

// GetFlag returns the flag for key from cache, storage or defaults, in
// that order. Returns nil for unknown keys.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	if flag := s.getCached(key); flag != nil {
		return flag
	}

	if s.repo != nil {
		flag, err := s.repo.GetFlag(ctx, key)
		if err == nil {
			s.setCached(key, flag)
			return flag
		}
		if !errors.Is(err, ErrFlagNotFound) {
			s.logger.Warn().Err(err).Str("flag", key).Msg("failed to get feature flag from repository")
		}
	}

	return s.defaultFlags[key]
}

// GetAllFlags returns stored flags merged over defaults.
func (s *Service) GetAllFlags(ctx context.Context) map[string]*Flag {
	result := make(map[string]*Flag, len(s.defaultFlags))
	for k, v := range s.defaultFlags {
		result[k] = v
	}

	if s.repo == nil {
		return result
	}

	flags, err := s.repo.GetAllFlags(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to get feature flags from repository, using defaults")
		return result
	}

	for k, v := range flags {
		result[k] = v
	}

	s.mu.Lock()
	s.cache = flags
	s.cacheExpiry = time.Now().Add(s.cacheTTL)
	s.mu.Unlock()

	return result
}

// Apply validates and stores a batch of updates.
func (s *Service) Apply(ctx context.Context, req FlagUpdateRequest) ([]*Flag, error) {
	flags := make([]*Flag, 0, len(req.Updates))
	for _, u := range req.Updates {
		if _, ok := s.defaultFlags[u.Key]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFlag, u.Key)
		}
		flags = append(flags, &Flag{Key: u.Key, Value: u.Value})
	}

	if err := s.SetFlags(ctx, flags); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("count", len(flags)).
		Str("reason", req.Reason).
		Msg("feature flags updated")

	return flags, nil
}

// SetFlags stores flags and updates the cache.
func (s *Service) SetFlags(ctx context.Context, flags []*Flag) error {
	now := time.Now()
	for _, flag := range flags {
		flag.UpdatedAt = now
	}

	if err := s.repo.SetFlags(ctx, flags); err != nil {
		return err
	}

	for _, flag := range flags {
		s.setCached(flag.Key, flag)
	}
	return nil
}

// InvalidateCache forces the next read to hit storage.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*Flag)
	s.cacheExpiry = time.Time{}
}

// IsEnabled reports whether the flag for key is truthy.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	return s.GetFlag(ctx, key).BoolValue(s.defaultFlags[key].BoolValue(false))
}

// Toggle returns a reader for key usable where a func() bool is expected.
// A nil service yields the compiled-in default.
func (s *Service) Toggle(key string) func() bool {
	if s == nil {
		def := DefaultFlags()[key].BoolValue(false)
		return func() bool { return def }
	}
	return func() bool { return s.IsEnabled(context.Background(), key) }
}

func (s *Service) getCached(key string) *Flag {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if time.Now().After(s.cacheExpiry) {
		return nil
	}
	return s.cache[key]
}

func (s *Service) setCached(key string, flag *Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[key] = flag
	if s.cacheExpiry.Before(time.Now()) {
		s.cacheExpiry = time.Now().Add(s.cacheTTL)
	}
}

// StrictRequestOrdering reports whether stale responses are dropped.
func (s *Service) StrictRequestOrdering(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagStrictRequestOrdering)
}

// CalendarCacheFallback reports whether cached events may be served.
func (s *Service) CalendarCacheFallback(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagCalendarCacheFallback)
}

// CurrencyLiveRates reports whether live exchange rates are used.
func (s *Service) CurrencyLiveRates(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagCurrencyLiveRates)
}

// RoutingProviderEnabled reports whether the directions provider is used.
func (s *Service) RoutingProviderEnabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagRoutingProviderEnabled)
}

// AlertsSendingDisabled reports whether user alerts are suppressed.
func (s *Service) AlertsSendingDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDisableAlertsSending)
}
