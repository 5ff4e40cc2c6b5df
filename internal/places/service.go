package places

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eventdesk/eventdesk/internal/geo"
	"github.com/eventdesk/eventdesk/internal/kvstore"
	"github.com/eventdesk/eventdesk/internal/validation"
)

// ServiceConfig holds configuration for the places service.
type ServiceConfig struct {
	Store    kvstore.Store
	Geocoder Geocoder
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Service stores pins and downloaded areas per user.
type Service struct {
	store    kvstore.Store
	geocoder Geocoder
	logger   zerolog.Logger
	now      func() time.Time

	// Serialises read-modify-write cycles on a user's lists.
	mu sync.Mutex
}

// NewService creates a places service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:    cfg.Store,
		geocoder: cfg.Geocoder,
		logger:   cfg.Logger,
		now:      now,
	}
}

func pinsKey(userID string) string  { return "places:pins:" + userID }
func areasKey(userID string) string { return "places:areas:" + userID }

// Search geocodes a free-text query.
func (s *Service) Search(ctx context.Context, req GeocodeRequest) ([]Place, error) {
	if s.geocoder == nil {
		return nil, ErrNoGeocoder
	}
	return s.geocoder.Geocode(ctx, req)
}

// SavePin validates and stores a new pin.
func (s *Service) SavePin(ctx context.Context, userID string, input PinInput) (*Pin, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	pin := Pin{
		ID:        "pin_" + uuid.New().String()[:22],
		UserID:    userID,
		Name:      input.Name,
		Note:      input.Note,
		Point:     geo.Point{Lat: input.Lat, Lon: input.Lon},
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pins, err := s.loadPins(ctx, userID)
	if err != nil {
		return nil, err
	}
	pins = append(pins, pin)
	if err := s.store.Set(ctx, pinsKey(userID), pins, 0); err != nil {
		return nil, fmt.Errorf("saving pins: %w", err)
	}

	s.logger.Debug().Str("user_id", userID).Str("pin_id", pin.ID).Msg("pin saved")
	return &pin, nil
}

// ListPins returns the user's pins. When from is set each pin carries the
// great-circle distance and compass direction from that point.
func (s *Service) ListPins(ctx context.Context, userID string, from *geo.Point) ([]PinView, error) {
	pins, err := s.loadPins(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]PinView, 0, len(pins))
	for _, p := range pins {
		v := PinView{Pin: p}
		if from != nil {
			d := geo.HaversineDistanceKm(*from, p.Point)
			v.DistanceKm = &d
			v.Direction = geo.BearingCompassLabel(*from, p.Point)
		}
		views = append(views, v)
	}
	return views, nil
}

// DeletePin removes a pin.
func (s *Service) DeletePin(ctx context.Context, userID, pinID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pins, err := s.loadPins(ctx, userID)
	if err != nil {
		return err
	}

	kept := pins[:0]
	for _, p := range pins {
		if p.ID != pinID {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(pins) {
		return ErrPinNotFound
	}

	if err := s.store.Set(ctx, pinsKey(userID), kept, 0); err != nil {
		return fmt.Errorf("saving pins: %w", err)
	}
	return nil
}

// RecordArea stores metadata for an area whose tiles were downloaded.
func (s *Service) RecordArea(ctx context.Context, userID string, input AreaInput) (*DownloadedArea, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	area := DownloadedArea{
		ID:     "area_" + uuid.New().String()[:22],
		UserID: userID,
		Name:   input.Name,
		Bounds: Bounds{
			MinLat: input.MinLat,
			MinLon: input.MinLon,
			MaxLat: input.MaxLat,
			MaxLon: input.MaxLon,
		},
		MinZoom:      input.MinZoom,
		MaxZoom:      input.MaxZoom,
		StyleURL:     input.StyleURL,
		DownloadedAt: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	areas, err := s.loadAreas(ctx, userID)
	if err != nil {
		return nil, err
	}
	areas = append(areas, area)
	if err := s.store.Set(ctx, areasKey(userID), areas, 0); err != nil {
		return nil, fmt.Errorf("saving areas: %w", err)
	}

	return &area, nil
}

// ListAreas returns the user's downloaded areas.
func (s *Service) ListAreas(ctx context.Context, userID string) ([]DownloadedArea, error) {
	return s.loadAreas(ctx, userID)
}

// DeleteArea removes a downloaded area record.
func (s *Service) DeleteArea(ctx context.Context, userID, areaID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	areas, err := s.loadAreas(ctx, userID)
	if err != nil {
		return err
	}

	kept := areas[:0]
	for _, a := range areas {
		if a.ID != areaID {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(areas) {
		return ErrAreaNotFound
	}

	if err := s.store.Set(ctx, areasKey(userID), kept, 0); err != nil {
		return fmt.Errorf("saving areas: %w", err)
	}
	return nil
}

func (s *Service) loadPins(ctx context.Context, userID string) ([]Pin, error) {
	var pins []Pin
	if _, err := s.store.Get(ctx, pinsKey(userID), &pins); err != nil {
		return nil, fmt.Errorf("loading pins: %w", err)
	}
	if pins == nil {
		pins = []Pin{}
	}
	return pins, nil
}

func (s *Service) loadAreas(ctx context.Context, userID string) ([]DownloadedArea, error) {
	var areas []DownloadedArea
	if _, err := s.store.Get(ctx, areasKey(userID), &areas); err != nil {
		return nil, fmt.Errorf("loading areas: %w", err)
	}
	if areas == nil {
		areas = []DownloadedArea{}
	}
	return areas, nil
}
