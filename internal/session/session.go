// Package session owns the retrieval index for one popup session.
package session

import (
	"sync"

	"github.com/rs/zerolog/log"

	"pdf-qa/internal/helper"
	"pdf-qa/internal/rag"
)

// Session holds at most one index at a time. A new index replaces the old
// one; indexes are never merged.
type Session struct {
	id string

	mu    sync.RWMutex
	index *rag.Index
}

func New() (*Session, error) {
	id, err := helper.NewID("session")
	if err != nil {
		return nil, err
	}
	return &Session{id: id}, nil
}

func (s *Session) ID() string { return s.id }

// Index returns the live index, or nil before the first successful extraction.
func (s *Session) Index() *rag.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Replace installs idx and releases the previous index.
func (s *Session) Replace(idx *rag.Index) {
	s.mu.Lock()
	old := s.index
	s.index = idx
	s.mu.Unlock()

	release(s.id, old)
	log.Debug().Str("session", s.id).Int("pages", idx.Len()).Msg("Index replaced")
}

// Invalidate drops the index. Asking afterwards is a no-op until the next extraction.
func (s *Session) Invalidate() {
	s.mu.Lock()
	old := s.index
	s.index = nil
	s.mu.Unlock()

	release(s.id, old)
}

func release(id string, idx *rag.Index) {
	if idx == nil {
		return
	}
	if err := idx.Close(); err != nil {
		log.Warn().Err(err).Str("session", id).Msg("Failed to release index")
	}
}
