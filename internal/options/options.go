// Package options is the settings screen where the user stores the credential.
package options

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"pdf-qa/internal/apperr"
	"pdf-qa/internal/models"
	"pdf-qa/internal/settings"
)

// View renders the options screen.
type View interface {
	SetAPIKeyField(key string)
	SetStatus(text string)
}

type Page struct {
	settings *settings.Settings
	view     View
	ttl      time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func NewPage(s *settings.Settings, view View) *Page {
	return &Page{settings: s, view: view, ttl: models.OptionsSavedTTL}
}

// Restore fills the key field with the stored credential, or leaves it empty.
func (p *Page) Restore(ctx context.Context) error {
	key, _, err := p.settings.GetAPIKey(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to restore options")
		p.view.SetStatus(models.StatusErrorPrefix + apperr.Message(err))
		return err
	}
	p.view.SetAPIKeyField(key)
	return nil
}

// Save stores key and shows a short lived acknowledgment.
func (p *Page) Save(ctx context.Context, key string) error {
	if err := p.settings.SetAPIKey(ctx, key); err != nil {
		log.Error().Err(err).Msg("Failed to save options")
		p.view.SetStatus(models.StatusErrorPrefix + apperr.Message(err))
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.view.SetStatus(models.OptionsSaved)
	p.timer = time.AfterFunc(p.ttl, func() { p.view.SetStatus("") })
	return nil
}
