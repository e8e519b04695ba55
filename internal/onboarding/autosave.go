package onboarding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"lg/fitai-go-api/internal/model"
)

// DefaultAutosaveDelay is the idle time after the last edit before pending
// documents are written to the local cache.
const DefaultAutosaveDelay = 2 * time.Second

// Cache is the local document store the tracker saves to and restores from.
type Cache interface {
	Get(ctx context.Context, key model.Key) (model.Document, bool, error)
	Put(ctx context.Context, key model.Key, doc model.Document) error
}

// autosaver debounces local-cache writes. Every schedule call restarts the
// idle timer; the timer fires flush on its own goroutine.
type autosaver struct {
	cache   Cache
	delay   time.Duration
	onSaved func([]model.Document)

	// writeMu serializes flushes so a newer batch never lands before an older one.
	writeMu sync.Mutex

	mu      sync.Mutex
	timer   *time.Timer
	pending map[model.Entity]model.Document
	lastErr error
	closed  bool
}

func newAutosaver(cache Cache, delay time.Duration, onSaved func([]model.Document)) *autosaver {
	return &autosaver{
		cache:   cache,
		delay:   delay,
		onSaved: onSaved,
		pending: make(map[model.Entity]model.Document),
	}
}

// schedule queues docs, replacing older pending versions of the same entity,
// and restarts the idle timer.
func (a *autosaver) schedule(docs []model.Document) {
	if a.cache == nil || len(docs) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	for _, d := range docs {
		a.pending[d.Entity] = d
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, func() {
		if err := a.flush(context.Background()); err != nil {
			log.Warn().Err(err).Msg("autosave failed")
		}
	})
}

// flush writes every pending document now. Documents that fail stay pending
// unless a newer version was queued meanwhile.
func (a *autosaver) flush(ctx context.Context) error {
	if a.cache == nil {
		return nil
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	a.mu.Lock()
	batch := make([]model.Document, 0, len(a.pending))
	for _, e := range model.SyncOrder {
		if d, ok := a.pending[e]; ok {
			batch = append(batch, d)
		}
	}
	a.pending = make(map[model.Entity]model.Document)
	a.mu.Unlock()

	var saved []model.Document
	var errs []error
	for _, d := range batch {
		if err := a.cache.Put(ctx, d.Key(), d); err != nil {
			errs = append(errs, fmt.Errorf("save %s: %w", d.Entity, err))
			a.mu.Lock()
			if _, newer := a.pending[d.Entity]; !newer {
				a.pending[d.Entity] = d
			}
			a.mu.Unlock()
			continue
		}
		saved = append(saved, d)
	}

	err := errors.Join(errs...)
	a.mu.Lock()
	a.lastErr = err
	a.mu.Unlock()

	if len(saved) > 0 && a.onSaved != nil {
		a.onSaved(saved)
	}
	return err
}

// Err returns the error of the most recent flush.
func (a *autosaver) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// close stops the timer and flushes what is pending. Later schedule calls are
// ignored.
func (a *autosaver) close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
	}
	a.mu.Unlock()
	return a.flush(ctx)
}
