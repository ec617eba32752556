// Package settings persists the user's credential across sessions.
package settings

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"pdf-qa/internal/apperr"
	"pdf-qa/internal/config"
	"pdf-qa/internal/models"
)

// Store is a string key/value store. Get reports whether the key exists.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// New opens the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.SettingsConfig) (Store, error) {
	log.Debug().Str("backend", cfg.Backend).Msg("Opening settings store")

	switch cfg.Backend {
	case config.BackendFile, "":
		return NewFileStore(cfg.Path), nil
	case config.BackendSQLite:
		return NewSQLiteStore(ctx, cfg.Path)
	case config.BackendPostgres:
		return NewPostgresStore(ctx, cfg.DSN, cfg.Debug)
	case config.BackendRedis:
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKey)
	default:
		return nil, fmt.Errorf("unknown settings backend %q", cfg.Backend)
	}
}

// Settings is the typed view over a Store used by the popup and options page.
type Settings struct {
	store Store
}

func NewSettings(store Store) *Settings {
	return &Settings{store: store}
}

// GetAPIKey returns the stored credential. An empty stored value counts as absent.
func (s *Settings) GetAPIKey(ctx context.Context) (string, bool, error) {
	v, ok, err := s.store.Get(ctx, models.APIKeySetting)
	if err != nil {
		return "", false, apperr.New(apperr.KindStorage, "settings.get", err)
	}
	if !ok || v == "" {
		return "", false, nil
	}
	return v, true, nil
}

// SetAPIKey stores key as is, overwriting any previous value.
func (s *Settings) SetAPIKey(ctx context.Context, key string) error {
	if err := s.store.Set(ctx, models.APIKeySetting, key); err != nil {
		return apperr.New(apperr.KindStorage, "settings.set", err)
	}
	return nil
}

func (s *Settings) Close() error {
	return s.store.Close()
}
