// Package syncer writes onboarding documents to the local cache and the remote
// store in dependency order.
//
// The critical entity (personal_info) is written first and alone. If it fails
// the run stops, its own writes are compensated, and nothing else is attempted.
// The remaining entities are best-effort and may be written concurrently; each
// outcome is recorded in the Report. Remote calls run under a per-call timeout
// and are not interrupted by caller cancellation once started.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"lg/fitai-go-api/internal/model"
)

// ErrTimeout marks a remote call that exceeded its deadline. It matches
// context.DeadlineExceeded under errors.Is.
var ErrTimeout = fmt.Errorf("remote call timed out: %w", context.DeadlineExceeded)

// LocalCache is the on-device document store.
type LocalCache interface {
	Get(ctx context.Context, key model.Key) (model.Document, bool, error)
	Put(ctx context.Context, key model.Key, doc model.Document) error
	Delete(ctx context.Context, key model.Key) error
}

// RemoteStore is keyed by (user, entity) with upsert semantics. Delete is
// only used to compensate a failed critical write.
type RemoteStore interface {
	Upsert(ctx context.Context, userID string, entity model.Entity, doc model.Document) error
	Get(ctx context.Context, userID string, entity model.Entity) (model.Document, bool, error)
	Delete(ctx context.Context, userID string, entity model.Entity) error
}

const (
	DefaultTimeout       = 10 * time.Second
	DefaultMaxConcurrent = 4
)

// Options tune a Coordinator. Timeout bounds each remote call; MaxConcurrent
// caps parallel best-effort writes (1 writes them in order).
type Options struct {
	Timeout       time.Duration
	MaxConcurrent int
	Now           func() time.Time
}

type Coordinator struct {
	local  LocalCache
	remote RemoteStore
	opts   Options
}

func New(local LocalCache, remote RemoteStore, opts Options) *Coordinator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{local: local, remote: remote, opts: opts}
}

// Sync encodes the four sections plus result (when non-nil) and writes them
// for userID. See SyncDocuments for the error contract.
func (c *Coordinator) Sync(ctx context.Context, s model.Sections, result *model.ComputedMetrics, userID string) (*Report, error) {
	docs, err := model.EncodeSections(userID, s, result, c.opts.Now())
	if err != nil {
		return nil, err
	}
	return c.SyncDocuments(ctx, userID, docs)
}

// SyncDocuments writes docs for userID in sync order and always returns a
// report when the input is valid. The error is:
//   - *CriticalFailureError when the critical entity failed;
//   - ctx.Err() when the caller cancelled before every entity was attempted;
//   - nil otherwise, including best-effort failures (see Report.Err).
func (c *Coordinator) SyncDocuments(ctx context.Context, userID string, docs []model.Document) (*Report, error) {
	ordered, err := order(userID, docs)
	if err != nil {
		return nil, err
	}

	rep := &Report{UserID: userID, Results: make([]EntityResult, len(ordered))}
	for i, d := range ordered {
		rep.Results[i] = EntityResult{Entity: d.Entity, State: model.SyncNotSaved, Outcome: OutcomeSkipped}
	}
	if err := ctx.Err(); err != nil {
		rep.Cancelled = true
		return rep, err
	}

	start := 0
	if len(ordered) > 0 && ordered[0].Entity.Critical() {
		w := c.write(ctx, userID, ordered[0])
		rep.Results[0] = w.result
		if w.result.Outcome == OutcomeFailed {
			rep.CriticalFailure = true
			cerr := &CriticalFailureError{Entity: ordered[0].Entity, Err: w.result.err}
			rep.Results[0].State, cerr.CompensationErr = c.compensate(ctx, userID, w)
			cerr.RolledBack = cerr.CompensationErr == nil
			rep.RolledBack = cerr.RolledBack
			log.Error().Err(w.result.err).Str("user_id", userID).Str("entity", string(ordered[0].Entity)).
				Bool("rolled_back", rep.RolledBack).Msg("critical sync write failed")
			return rep, cerr
		}
		start = 1
	}

	var g errgroup.Group
	g.SetLimit(c.opts.MaxConcurrent)
	for i := start; i < len(ordered); i++ {
		if ctx.Err() != nil {
			rep.Cancelled = true
			break
		}
		g.Go(func() error {
			w := c.write(ctx, userID, ordered[i])
			rep.Results[i] = w.result
			if w.result.Outcome == OutcomeFailed {
				log.Warn().Err(w.result.err).Str("user_id", userID).Str("entity", string(ordered[i].Entity)).
					Msg("best-effort sync write failed")
			}
			return nil
		})
	}
	g.Wait()

	if rep.Cancelled {
		return rep, ctx.Err()
	}
	return rep, nil
}

// order validates docs and sorts them into model.SyncOrder.
func order(userID string, docs []model.Document) ([]model.Document, error) {
	rank := make(map[model.Entity]int, len(model.SyncOrder))
	for i, e := range model.SyncOrder {
		rank[e] = i
	}
	seen := make(map[model.Entity]bool, len(docs))
	out := make([]model.Document, 0, len(docs))
	for _, d := range docs {
		if _, ok := rank[d.Entity]; !ok {
			return nil, fmt.Errorf("sync: unknown entity %q", d.Entity)
		}
		if seen[d.Entity] {
			return nil, fmt.Errorf("sync: duplicate entity %q", d.Entity)
		}
		if d.UserID != userID {
			return nil, fmt.Errorf("sync: %s belongs to user %q, not %q", d.Entity, d.UserID, userID)
		}
		seen[d.Entity] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return rank[out[i].Entity] < rank[out[j].Entity] })
	return out, nil
}

// written captures what one entity write touched, for compensation.
type written struct {
	result        EntityResult
	priorLocal    *model.Document
	priorRemote   *model.Document
	localWritten  bool
	remoteTouched bool
}

// write runs the per-entity sequence: read prior local, put local, fetch
// remote, merge on revision mismatch, upsert remote.
func (c *Coordinator) write(ctx context.Context, userID string, doc model.Document) written {
	// started writes run to completion
	ctx = context.WithoutCancel(ctx)
	key := doc.Key()
	w := written{result: EntityResult{Entity: doc.Entity, State: model.SyncNotSaved}}
	fail := func(err error) written {
		w.result.Outcome = OutcomeFailed
		w.result.err = err
		w.result.Error = err.Error()
		return w
	}

	prior, found, err := c.local.Get(ctx, key)
	if err != nil {
		return fail(fmt.Errorf("read local %s: %w", doc.Entity, err))
	}
	if found {
		w.priorLocal = &prior
	}
	if err := c.local.Put(ctx, key, doc); err != nil {
		return fail(fmt.Errorf("write local %s: %w", doc.Entity, err))
	}
	w.localWritten = true
	w.result.State = model.SyncSavedLocal

	var remoteDoc model.Document
	err = c.call(ctx, func(ctx context.Context) error {
		var err error
		remoteDoc, found, err = c.remote.Get(ctx, userID, doc.Entity)
		return err
	})
	if err != nil {
		return fail(fmt.Errorf("fetch remote %s: %w", doc.Entity, err))
	}
	if found {
		w.priorRemote = &remoteDoc
		if remoteDoc.Revision != doc.Revision {
			w.result.Conflict = true
			merged, didMerge, err := mergeLocalWins(doc, remoteDoc)
			if err != nil {
				return fail(fmt.Errorf("merge %s: %w", doc.Entity, err))
			}
			if didMerge {
				if err := c.local.Put(ctx, key, merged); err != nil {
					return fail(fmt.Errorf("write merged %s: %w", doc.Entity, err))
				}
			}
			doc = merged
			w.result.Merged = didMerge
		}
	}

	w.remoteTouched = true
	if err := c.call(ctx, func(ctx context.Context) error {
		return c.remote.Upsert(ctx, userID, doc.Entity, doc)
	}); err != nil {
		return fail(fmt.Errorf("upsert remote %s: %w", doc.Entity, err))
	}

	w.result.Outcome = OutcomeSucceeded
	w.result.State = model.SyncSavedRemote
	if w.result.Conflict {
		w.result.State = model.SyncConflict
	}
	return w
}

// call runs fn under the per-call timeout, mapping a deadline to ErrTimeout.
func (c *Coordinator) call(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	err := fn(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// compensate undoes the writes of a failed entity: both stores are returned
// to their prior document, or the entry is deleted when there was none. It
// returns the entity's local state after the rollback.
func (c *Coordinator) compensate(ctx context.Context, userID string, w written) (model.SyncState, error) {
	ctx = context.WithoutCancel(ctx)
	key := model.Key{UserID: userID, Entity: w.result.Entity}
	state := w.result.State
	var errs []error

	if w.localWritten {
		var err error
		if w.priorLocal != nil {
			err = c.local.Put(ctx, key, *w.priorLocal)
		} else {
			err = c.local.Delete(ctx, key)
		}
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("restore local %s: %w", key.Entity, err))
		case w.priorLocal == nil:
			state = model.SyncNotSaved
		}
	}

	if w.remoteTouched {
		err := c.call(ctx, func(ctx context.Context) error {
			if w.priorRemote != nil {
				return c.remote.Upsert(ctx, userID, key.Entity, *w.priorRemote)
			}
			return c.remote.Delete(ctx, userID, key.Entity)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("restore remote %s: %w", key.Entity, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("entity", string(key.Entity)).Msg("sync compensation failed")
		return state, err
	}
	return state, nil
}
