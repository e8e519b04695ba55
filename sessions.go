package main

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"lg/fitai-go-api/internal/onboarding"
)

// sessionStore keeps one onboarding tracker per user. Trackers are created on
// first use and restored from the local cache when it holds earlier edits.
type sessionStore struct {
	cache         onboarding.Cache
	autosaveDelay time.Duration

	mu       sync.Mutex
	trackers map[string]*onboarding.Tracker
}

func newSessionStore(cache onboarding.Cache, autosaveDelay time.Duration) *sessionStore {
	return &sessionStore{
		cache:         cache,
		autosaveDelay: autosaveDelay,
		trackers:      make(map[string]*onboarding.Tracker),
	}
}

// get returns the user's tracker, creating and restoring it if needed.
func (s *sessionStore) get(ctx context.Context, userID string) *onboarding.Tracker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.trackers[userID]; ok {
		return t
	}
	t := onboarding.New(userID, onboarding.Options{Cache: s.cache, AutosaveDelay: s.autosaveDelay})
	if s.cache != nil {
		if _, err := t.Restore(ctx); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("restore onboarding session")
		}
	}
	s.trackers[userID] = t
	return t
}

// lookup returns the user's tracker only if one is already open.
func (s *sessionStore) lookup(userID string) (*onboarding.Tracker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trackers[userID]
	return t, ok
}

// closeAll flushes and closes every tracker.
func (s *sessionStore) closeAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.trackers {
		if err := t.Close(ctx); err != nil {
			log.Error().Err(err).Str("user_id", id).Msg("close onboarding session")
		}
		delete(s.trackers, id)
	}
}
