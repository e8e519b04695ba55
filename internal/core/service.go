// Package core is the caller-facing API: dry-run evaluation, computation,
// finalization (compute, validate, sync) and the resync retry path.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"lg/fitai-go-api/internal/health"
	"lg/fitai-go-api/internal/model"
	"lg/fitai-go-api/internal/safety"
	"lg/fitai-go-api/internal/syncer"
)

// SafetyBlockedError reports a plan that failed a blocking safety rule. It is
// returned before anything is persisted.
type SafetyBlockedError struct {
	Verdict model.ValidationVerdict
}

func (e *SafetyBlockedError) Error() string {
	if len(e.Verdict.Errors) > 0 {
		return "plan blocked: " + e.Verdict.Errors[0].Message
	}
	return "plan blocked"
}

// ErrNotCached is returned by Resync when a failed entity has no local copy.
var ErrNotCached = errors.New("entity not in local cache")

// ResyncFunc observes each background resync attempt.
type ResyncFunc func(userID string, rep *syncer.Report, err error)

const (
	DefaultRetryAttempts = 3
	DefaultRetryBase     = time.Second
)

// Options configure a Service. Background resync after a partial failure
// runs only when AutoResync is set; attempts wait RetryBase, then double.
type Options struct {
	AutoResync    bool
	RetryAttempts int
	RetryBase     time.Duration
	OnResync      ResyncFunc
}

type Service struct {
	coord *syncer.Coordinator
	local syncer.LocalCache
	opts  Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	workers map[string]context.CancelFunc
}

// New builds a Service that finalizes through coord and resyncs from local.
func New(coord *syncer.Coordinator, local syncer.LocalCache, opts Options) *Service {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = DefaultRetryAttempts
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = DefaultRetryBase
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		coord:   coord,
		local:   local,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		workers: make(map[string]context.CancelFunc),
	}
}

// Compute runs the health engine and attaches the safety verdict.
func (s *Service) Compute(sections model.Sections) (model.ComputedMetrics, error) {
	m, err := health.Compute(sections)
	if err != nil {
		return model.ComputedMetrics{}, err
	}
	v := safety.Evaluate(sections, m)
	m.Validation = &v
	return m, nil
}

// Evaluate is a dry run: it returns the verdict and persists nothing.
func (s *Service) Evaluate(sections model.Sections) (model.ValidationVerdict, error) {
	m, err := s.Compute(sections)
	if err != nil {
		return model.ValidationVerdict{}, err
	}
	return *m.Validation, nil
}

// Finalize computes, validates and syncs sections for userID.
//
// An input error or a blocked plan returns before anything is written. A
// critical sync failure returns the report together with a
// *syncer.CriticalFailureError. Best-effort failures return a nil error; the
// report lists them and, with AutoResync, a background retry is started.
func (s *Service) Finalize(ctx context.Context, userID string, sections model.Sections) (model.ComputedMetrics, *syncer.Report, error) {
	m, err := s.Compute(sections)
	if err != nil {
		return model.ComputedMetrics{}, nil, err
	}
	if m.Validation.Blocked() {
		return m, nil, &SafetyBlockedError{Verdict: *m.Validation}
	}

	rep, err := s.coord.Sync(ctx, sections, &m, userID)
	if err != nil {
		return m, rep, err
	}
	if failed := rep.Failed(); len(failed) > 0 {
		log.Warn().Str("user_id", userID).Interface("failed", failed).Msg("finalize: partial sync")
		if s.opts.AutoResync {
			s.startResync(userID, failed)
		}
	}
	return m, rep, nil
}

// Resync re-sends the given entities from the local cache. Only the listed
// entities are written.
func (s *Service) Resync(ctx context.Context, userID string, failed []model.Entity) (*syncer.Report, error) {
	docs := make([]model.Document, 0, len(failed))
	for _, e := range failed {
		if !e.Valid() {
			return nil, fmt.Errorf("resync: unknown entity %q", e)
		}
		doc, found, err := s.local.Get(ctx, model.Key{UserID: userID, Entity: e})
		if err != nil {
			return nil, fmt.Errorf("resync: read %s: %w", e, err)
		}
		if !found {
			return nil, fmt.Errorf("resync %s: %w", e, ErrNotCached)
		}
		docs = append(docs, doc)
	}
	return s.coord.SyncDocuments(ctx, userID, docs)
}

// startResync replaces any running retry loop for userID.
func (s *Service) startResync(userID string, failed []model.Entity) {
	s.mu.Lock()
	if stop, ok := s.workers[userID]; ok {
		stop()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.workers[userID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			// a newer loop may have replaced this one
			if s.ctx.Err() == nil && ctx.Err() == nil {
				delete(s.workers, userID)
			}
			s.mu.Unlock()
			cancel()
		}()
		s.resyncLoop(ctx, userID, failed)
	}()
}

func (s *Service) resyncLoop(ctx context.Context, userID string, failed []model.Entity) {
	delay := s.opts.RetryBase
	for attempt := 1; attempt <= s.opts.RetryAttempts; attempt++ {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}

		rep, err := s.Resync(ctx, userID, failed)
		if s.opts.OnResync != nil {
			s.opts.OnResync(userID, rep, err)
		}
		if err == nil {
			err = rep.Err()
		}
		switch {
		case err == nil:
			log.Info().Str("user_id", userID).Int("attempt", attempt).Msg("resync complete")
			return
		case errors.Is(err, ErrNotCached) || errors.Is(err, context.Canceled):
			log.Error().Err(err).Str("user_id", userID).Msg("resync abandoned")
			return
		case syncer.IsPartial(err):
			failed = rep.Failed()
		}
		log.Warn().Err(err).Str("user_id", userID).Int("attempt", attempt).
			Dur("next_in", delay*2).Msg("resync attempt failed")
		delay *= 2
	}
	log.Error().Str("user_id", userID).Interface("failed", failed).Msg("resync gave up")
}

// Close stops background resync loops and waits for them to return.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}
