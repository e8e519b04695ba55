// Package memstore provides in-memory local and remote stores. Remote supports
// injected failures and latency for exercising sync error paths.
package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"lg/fitai-go-api/internal/model"
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("memstore: injected failure")

// Cache is an in-memory local cache.
type Cache struct {
	mu   sync.Mutex
	docs map[model.Key]model.Document
	puts int
}

func NewCache() *Cache {
	return &Cache{docs: make(map[model.Key]model.Document)}
}

func (c *Cache) Get(_ context.Context, key model.Key) (model.Document, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[key]
	return doc, ok, nil
}

func (c *Cache) Put(_ context.Context, key model.Key, doc model.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[key] = doc
	c.puts++
	return nil
}

func (c *Cache) Delete(_ context.Context, key model.Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.docs, key)
	return nil
}

// List returns userID's documents in sync order.
func (c *Cache) List(_ context.Context, userID string) ([]model.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.Document
	for _, e := range model.SyncOrder {
		if doc, ok := c.docs[model.Key{UserID: userID, Entity: e}]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Puts reports how many writes the cache has accepted.
func (c *Cache) Puts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts
}

// Op names a remote operation for failure injection.
type Op string

const (
	OpGet    Op = "get"
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

type fault struct {
	op     Op
	entity model.Entity
}

// Remote is an in-memory remote store keyed by (user, entity) with upsert
// semantics.
type Remote struct {
	mu      sync.Mutex
	docs    map[model.Key]model.Document
	faults  map[fault]error
	delay   time.Duration
	upserts map[model.Entity]int
	deletes map[model.Entity]int
}

func NewRemote() *Remote {
	return &Remote{
		docs:    make(map[model.Key]model.Document),
		faults:  make(map[fault]error),
		upserts: make(map[model.Entity]int),
		deletes: make(map[model.Entity]int),
	}
}

// FailOn makes op on entity return err (ErrInjected when err is nil) until
// cleared with Heal.
func (r *Remote) FailOn(op Op, entity model.Entity, err error) {
	if err == nil {
		err = ErrInjected
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults[fault{op, entity}] = err
}

// Heal clears every injected failure.
func (r *Remote) Heal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults = make(map[fault]error)
}

// SetDelay makes every call wait d, or until its context is done.
func (r *Remote) SetDelay(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delay = d
}

func (r *Remote) enter(ctx context.Context, op Op, entity model.Entity) error {
	r.mu.Lock()
	delay := r.delay
	err := r.faults[fault{op, entity}]
	r.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}

func (r *Remote) Upsert(ctx context.Context, userID string, entity model.Entity, doc model.Document) error {
	if err := r.enter(ctx, OpUpsert, entity); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[model.Key{UserID: userID, Entity: entity}] = doc
	r.upserts[entity]++
	return nil
}

func (r *Remote) Get(ctx context.Context, userID string, entity model.Entity) (model.Document, bool, error) {
	if err := r.enter(ctx, OpGet, entity); err != nil {
		return model.Document{}, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[model.Key{UserID: userID, Entity: entity}]
	return doc, ok, nil
}

func (r *Remote) Delete(ctx context.Context, userID string, entity model.Entity) error {
	if err := r.enter(ctx, OpDelete, entity); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, model.Key{UserID: userID, Entity: entity})
	r.deletes[entity]++
	return nil
}

// Seed stores doc directly, bypassing faults and counters.
func (r *Remote) Seed(doc model.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.Key()] = doc
}

// Len returns the number of stored documents.
func (r *Remote) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

// Upserts returns how many successful upserts entity has received.
func (r *Remote) Upserts(entity model.Entity) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upserts[entity]
}

func (r *Remote) Deletes(entity model.Entity) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deletes[entity]
}
