package vat

import (
	"context"
	"strconv"

	"github.com/felipedev418/tax-rate-adjustment/internal/metaobject"
)

// Settings metaobject type and field.
const (
	SettingsType = "vat_settings"
	FieldEnabled = "enabled"
)

// Settings is the shop wide VAT configuration.
type Settings struct {
	Enabled bool `json:"enabled"`
}

// SettingsInput is the POST /api/vat-settings payload.
type SettingsInput struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// SettingsService reads and writes the singleton vat_settings record.
type SettingsService struct {
	store metaobject.Store
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(store metaobject.Store) *SettingsService {
	return &SettingsService{store: store}
}

// Get returns the first stored settings record; no record means disabled.
func (s *SettingsService) Get(ctx context.Context) (Settings, error) {
	rec, ok, err := s.first(ctx)
	if err != nil || !ok {
		return Settings{}, err
	}
	value, _ := rec.Field(FieldEnabled)
	return Settings{Enabled: value == "true"}, nil
}

// Save updates the singleton when it exists and creates it otherwise.
func (s *SettingsService) Save(ctx context.Context, enabled bool) (Settings, error) {
	fields := []metaobject.Field{{Key: FieldEnabled, Value: strconv.FormatBool(enabled)}}
	rec, ok, err := s.first(ctx)
	if err != nil {
		return Settings{}, err
	}
	if ok {
		if _, err := s.store.Update(ctx, rec.ID, fields); err != nil {
			return Settings{}, err
		}
	} else if _, err := s.store.Create(ctx, SettingsType, fields); err != nil {
		return Settings{}, err
	}
	return Settings{Enabled: enabled}, nil
}

func (s *SettingsService) first(ctx context.Context) (metaobject.Metaobject, bool, error) {
	items, err := s.store.List(ctx, SettingsType, 1)
	if err != nil {
		return metaobject.Metaobject{}, false, err
	}
	if len(items) == 0 {
		return metaobject.Metaobject{}, false, nil
	}
	return items[0], true, nil
}
