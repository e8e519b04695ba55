// Package onboarding tracks one user's onboarding session: the five sections,
// their empty/partial/complete states, derived fields, live metrics and
// validation, and debounced saves to the local cache.
//
// Every mutation goes through a single mutex-guarded path that applies the
// edit, re-derives dependent fields, recomputes metrics and validation over
// the new state and publishes an immutable Snapshot before returning, so a
// reader never sees validation for anything but the latest edit.
package onboarding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"lg/fitai-go-api/internal/health"
	"lg/fitai-go-api/internal/model"
	"lg/fitai-go-api/internal/safety"
	"lg/fitai-go-api/internal/syncer"
)

var (
	ErrUnknownSection    = errors.New("unknown section")
	ErrSectionIncomplete = errors.New("section incomplete")
	ErrClosed            = errors.New("tracker closed")
)

// IncompleteError lists the field errors that kept a section from completing.
type IncompleteError struct {
	Section Section
	Fields  []FieldError
}

func (e *IncompleteError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%s incomplete: %s", e.Section, strings.Join(msgs, "; "))
}

func (e *IncompleteError) Unwrap() error { return ErrSectionIncomplete }

// Snapshot is a consistent view of the session after one mutation. It shares
// nothing with the tracker's working state and must be treated as read-only.
type Snapshot struct {
	UserID        string                           `json:"user_id"`
	Version       int                              `json:"version"`
	Sections      model.Sections                   `json:"sections"`
	States        map[Section]SectionState         `json:"states"`
	FieldErrors   []FieldError                     `json:"field_errors"`
	Metrics       *model.ComputedMetrics           `json:"metrics"`
	InputError    string                           `json:"input_error,omitempty"`
	CompletionPct int                              `json:"completion_pct"`
	Revisions     map[model.Entity]string          `json:"revisions"`
	SyncStates    map[model.Entity]model.SyncState `json:"sync_states"`
	AutosaveError string                           `json:"autosave_error,omitempty"`
	UpdatedAt     time.Time                        `json:"updated_at"`
}

// Verdict returns the validation verdict of the current metrics, or nil.
func (s Snapshot) Verdict() *model.ValidationVerdict {
	if s.Metrics == nil {
		return nil
	}
	return s.Metrics.Validation
}

// Complete reports whether every section is complete.
func (s Snapshot) Complete() bool {
	for _, sec := range Sections {
		if s.States[sec] != StateComplete {
			return false
		}
	}
	return true
}

// Options configure a Tracker. A nil Cache disables autosave and Restore.
type Options struct {
	Cache         Cache
	AutosaveDelay time.Duration
	Now           func() time.Time
}

// Tracker owns the onboarding state of one user. It is safe for concurrent
// use; mutations are applied one at a time.
type Tracker struct {
	userID string
	cache  Cache
	now    func() time.Time
	saver  *autosaver

	mu       sync.Mutex
	closed   bool
	sections model.Sections
	states   map[Section]SectionState
	metrics  *model.ComputedMetrics
	inputErr error
	docs     map[model.Entity]model.Document
	sync     map[model.Entity]model.SyncState
	version  int
	snap     Snapshot
}

func New(userID string, opts Options) *Tracker {
	if opts.AutosaveDelay <= 0 {
		opts.AutosaveDelay = DefaultAutosaveDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	t := &Tracker{
		userID: userID,
		cache:  opts.Cache,
		now:    opts.Now,
		states: make(map[Section]SectionState, len(Sections)),
		docs:   make(map[model.Entity]model.Document),
		sync:   make(map[model.Entity]model.SyncState),
	}
	for _, sec := range Sections {
		t.states[sec] = StateEmpty
	}
	t.saver = newAutosaver(opts.Cache, opts.AutosaveDelay, t.markSaved)

	t.mu.Lock()
	t.recompute()
	t.publish()
	t.mu.Unlock()
	return t
}

func (t *Tracker) UserID() string { return t.userID }

// Snapshot returns the view published by the latest mutation.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	snap := t.snap
	t.mu.Unlock()
	if err := t.saver.Err(); err != nil {
		snap.AutosaveError = err.Error()
	}
	return snap
}

/* ─── Mutations ──────────────────────────────────────────────────────── */

func (t *Tracker) SetPersonalInfo(p model.PersonalInfo) (Snapshot, error) {
	p = clone(p)
	return t.mutate(SectionPersonalInfo, func(s *model.Sections) { s.PersonalInfo = p })
}

func (t *Tracker) SetBody(b model.BodyAnalysis) (Snapshot, error) {
	b = clone(b)
	return t.mutate(SectionBody, func(s *model.Sections) { s.Body = b })
}

func (t *Tracker) SetDiet(d model.DietPreferences) (Snapshot, error) {
	d = clone(d)
	return t.mutate(SectionDiet, func(s *model.Sections) { s.Diet = d })
}

func (t *Tracker) SetWorkout(w model.WorkoutPreferences) (Snapshot, error) {
	w = clone(w)
	return t.mutate(SectionWorkout, func(s *model.Sections) { s.Workout = w })
}

// Apply replaces one section with its JSON encoding. Unknown fields are
// rejected.
func (t *Tracker) Apply(sec Section, payload []byte) (Snapshot, error) {
	dec := func(v any) error {
		d := json.NewDecoder(bytes.NewReader(payload))
		d.DisallowUnknownFields()
		if err := d.Decode(v); err != nil {
			return fmt.Errorf("decode %s: %w", sec, err)
		}
		return nil
	}
	switch sec {
	case SectionPersonalInfo:
		var p model.PersonalInfo
		if err := dec(&p); err != nil {
			return Snapshot{}, err
		}
		return t.SetPersonalInfo(p)
	case SectionBody:
		var b model.BodyAnalysis
		if err := dec(&b); err != nil {
			return Snapshot{}, err
		}
		return t.SetBody(b)
	case SectionDiet:
		var d model.DietPreferences
		if err := dec(&d); err != nil {
			return Snapshot{}, err
		}
		return t.SetDiet(d)
	case SectionWorkout:
		var w model.WorkoutPreferences
		if err := dec(&w); err != nil {
			return Snapshot{}, err
		}
		return t.SetWorkout(w)
	}
	return Snapshot{}, fmt.Errorf("%w: %q is not editable", ErrUnknownSection, sec)
}

// mutate is the single write path. The edited section stays complete only if
// it still validates. A complete section that depends on a changed one drops
// back to partial when its own content was re-derived or it no longer
// validates.
func (t *Tracker) mutate(sec Section, apply func(*model.Sections)) (Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return Snapshot{}, ErrClosed
	}

	prev := t.revisions()
	prevLocation := t.sections.Workout.Location
	apply(&t.sections)
	if derived := derive(&t.sections, prevLocation); len(derived) > 0 {
		log.Debug().Str("user_id", t.userID).Strs("fields", derived).Msg("re-derived workout fields")
	}
	t.recompute()

	changed := make(map[Section]bool)
	for _, s := range Sections {
		if t.docs[s.Entity()].Revision != prev[s.Entity()] {
			changed[s] = true
		}
	}

	if changed[sec] || t.states[sec] == StateEmpty {
		t.states[sec] = t.editedState(sec)
	}
	for s := range changed {
		for _, dep := range dependents[s] {
			if dep == sec || t.states[dep] != StateComplete {
				continue
			}
			if changed[dep] || len(ValidateSection(dep, t.sections, t.metrics)) > 0 {
				t.states[dep] = StatePartial
			}
		}
	}
	t.refreshReview()

	var dirty []model.Document
	for _, e := range model.SyncOrder {
		doc, ok := t.docs[e]
		if ok && doc.Revision != prev[e] {
			t.sync[e] = model.SyncNotSaved
			dirty = append(dirty, doc)
		}
	}
	t.version++
	t.publish()
	t.saver.schedule(dirty)
	return t.snap, nil
}

// editedState is the state of a section right after the user edited it.
func (t *Tracker) editedState(sec Section) SectionState {
	filled, _ := filledCount(sec, t.sections)
	switch {
	case t.states[sec] == StateComplete && len(ValidateSection(sec, t.sections, t.metrics)) == 0:
		return StateComplete
	case filled > 0:
		return StatePartial
	}
	return StateEmpty
}

// refreshReview keeps the review step in step with the metrics: empty while
// nothing can be computed, never complete while the plan fails validation.
func (t *Tracker) refreshReview() {
	switch {
	case t.metrics == nil:
		t.states[SectionReview] = StateEmpty
	case t.states[SectionReview] == StateEmpty:
		t.states[SectionReview] = StatePartial
	case t.states[SectionReview] == StateComplete && len(ValidateSection(SectionReview, t.sections, t.metrics)) > 0:
		t.states[SectionReview] = StatePartial
	}
}

// Complete marks sec complete. It fails with an *IncompleteError when the
// section has field errors or, for the review step, when an earlier section
// is not complete. Completing a section saves pending documents immediately.
func (t *Tracker) Complete(ctx context.Context, sec Section) (Snapshot, error) {
	if !validSection(sec) {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownSection, sec)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	errs := ValidateSection(sec, t.sections, t.metrics)
	if sec == SectionReview {
		for _, s := range Sections[:len(Sections)-1] {
			if t.states[s] != StateComplete {
				errs = append(errs, FieldError{Section: sec, Field: string(s), Message: "section is not complete"})
			}
		}
	}
	if len(errs) > 0 {
		t.mu.Unlock()
		return Snapshot{}, &IncompleteError{Section: sec, Fields: errs}
	}
	if t.states[sec] != StateComplete {
		t.states[sec] = StateComplete
		t.version++
		t.publish()
	}
	t.mu.Unlock()

	if err := t.saver.flush(ctx); err != nil {
		log.Warn().Err(err).Str("user_id", t.userID).Str("section", string(sec)).Msg("save on completion failed")
	}
	return t.Snapshot(), nil
}

func validSection(sec Section) bool {
	for _, s := range Sections {
		if s == sec {
			return true
		}
	}
	return false
}

/* ─── Derived state ──────────────────────────────────────────────────── */

// recompute runs the health and validation engines over the current sections
// and re-encodes every entity document.
func (t *Tracker) recompute() {
	m, err := health.Compute(t.sections)
	if err != nil {
		t.metrics, t.inputErr = nil, err
	} else {
		v := safety.Evaluate(t.sections, m)
		m.Validation = &v
		t.metrics, t.inputErr = &m, nil
	}

	now := t.now()
	for _, e := range model.SyncOrder {
		if e == model.EntityComputedMetrics && t.metrics == nil {
			delete(t.docs, e)
			continue
		}
		doc, err := model.EntityDocument(t.userID, e, t.sections, t.metrics, now)
		if err != nil {
			log.Error().Err(err).Str("user_id", t.userID).Str("entity", string(e)).Msg("encode section")
			continue
		}
		if old, ok := t.docs[e]; ok && old.Revision == doc.Revision {
			continue
		}
		t.docs[e] = doc
	}
}

func (t *Tracker) revisions() map[model.Entity]string {
	out := make(map[model.Entity]string, len(t.docs))
	for e, d := range t.docs {
		out[e] = d.Revision
	}
	return out
}

// completion weights every required field equally; the review step counts as
// one field that is filled once it is complete.
func (t *Tracker) completion() int {
	filled, total := 0, 0
	for _, sec := range Sections {
		if sec == SectionReview {
			total++
			if t.states[sec] == StateComplete {
				filled++
			}
			continue
		}
		f, n := filledCount(sec, t.sections)
		filled += f
		total += n
	}
	return int(math.Round(100 * float64(filled) / float64(total)))
}

// publish rebuilds the snapshot from the working state. Callers hold t.mu.
func (t *Tracker) publish() {
	snap := Snapshot{
		UserID:        t.userID,
		Version:       t.version,
		Sections:      clone(t.sections),
		States:        make(map[Section]SectionState, len(t.states)),
		FieldErrors:   []FieldError{},
		CompletionPct: t.completion(),
		Revisions:     t.revisions(),
		SyncStates:    make(map[model.Entity]model.SyncState, len(model.SyncOrder)),
		UpdatedAt:     t.now().UTC(),
	}
	for s, st := range t.states {
		snap.States[s] = st
	}
	for _, sec := range Sections {
		if t.states[sec] != StateEmpty {
			snap.FieldErrors = append(snap.FieldErrors, ValidateSection(sec, t.sections, t.metrics)...)
		}
	}
	if t.metrics != nil {
		m := clone(*t.metrics)
		snap.Metrics = &m
	}
	if t.inputErr != nil {
		snap.InputError = t.inputErr.Error()
	}
	for _, e := range model.SyncOrder {
		if _, ok := t.docs[e]; !ok {
			continue
		}
		st, ok := t.sync[e]
		if !ok {
			st = model.SyncNotSaved
		}
		snap.SyncStates[e] = st
	}
	t.snap = snap
}

/* ─── Persistence hooks ──────────────────────────────────────────────── */

// markSaved records autosaved documents as saved_local unless the entity has
// since been edited or already reached the remote store.
func (t *Tracker) markSaved(docs []model.Document) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, d := range docs {
		if t.docs[d.Entity].Revision == d.Revision && t.sync[d.Entity] == model.SyncNotSaved {
			t.sync[d.Entity] = model.SyncSavedLocal
		}
	}
	t.publish()
}

// RecordSync applies the entity states of a sync run. States for documents
// edited since are left untouched.
func (t *Tracker) RecordSync(rep *syncer.Report, synced []model.Document) {
	if rep == nil {
		return
	}
	revs := make(map[model.Entity]string, len(synced))
	for _, d := range synced {
		revs[d.Entity] = d.Revision
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, res := range rep.Results {
		if rev, ok := revs[res.Entity]; ok && t.docs[res.Entity].Revision != rev {
			continue
		}
		if res.Outcome == syncer.OutcomeSkipped {
			continue
		}
		t.sync[res.Entity] = res.State
	}
	t.publish()
}

// Documents returns the current encoding of every entity, in sync order.
func (t *Tracker) Documents() []model.Document {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.Document, 0, len(t.docs))
	for _, e := range model.SyncOrder {
		if d, ok := t.docs[e]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Restore loads the sections from the local cache. Sections that validate
// are marked complete; the review step is complete when stored metrics exist
// and every other section is complete.
func (t *Tracker) Restore(ctx context.Context) (Snapshot, error) {
	if t.cache == nil {
		return Snapshot{}, errors.New("restore: no local cache configured")
	}

	var s model.Sections
	var stored *model.ComputedMetrics
	found := make(map[model.Entity]bool)
	for _, e := range model.SyncOrder {
		doc, ok, err := t.cache.Get(ctx, model.Key{UserID: t.userID, Entity: e})
		if err != nil {
			return Snapshot{}, fmt.Errorf("restore %s: %w", e, err)
		}
		if !ok {
			continue
		}
		if err := model.DecodeInto(doc, &s, &stored); err != nil {
			return Snapshot{}, fmt.Errorf("restore: %w", err)
		}
		found[e] = true
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return Snapshot{}, ErrClosed
	}
	t.sections = s
	derive(&t.sections, t.sections.Workout.Location)
	t.docs = make(map[model.Entity]model.Document)
	t.recompute()

	for _, sec := range Sections[:len(Sections)-1] {
		filled, _ := filledCount(sec, t.sections)
		switch {
		case !found[sec.Entity()] || filled == 0:
			t.states[sec] = StateEmpty
		case len(ValidateSection(sec, t.sections, t.metrics)) == 0:
			t.states[sec] = StateComplete
		default:
			t.states[sec] = StatePartial
		}
	}
	t.states[SectionReview] = StateEmpty
	t.refreshReview()
	if found[model.EntityComputedMetrics] && len(ValidateSection(SectionReview, t.sections, t.metrics)) == 0 {
		t.states[SectionReview] = StateComplete
		for _, sec := range Sections[:len(Sections)-1] {
			if t.states[sec] != StateComplete {
				t.states[SectionReview] = StatePartial
			}
		}
	}

	t.sync = make(map[model.Entity]model.SyncState)
	for e := range found {
		t.sync[e] = model.SyncSavedLocal
	}
	t.version++
	t.publish()
	return t.snap, nil
}

// Flush writes pending documents to the local cache now.
func (t *Tracker) Flush(ctx context.Context) error {
	return t.saver.flush(ctx)
}

// Close flushes pending saves and rejects further mutations.
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return t.saver.close(ctx)
}

// clone deep-copies v through its JSON encoding. Every value passed here is a
// plain section struct, so encoding cannot fail.
func clone[T any](v T) T {
	var out T
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}
