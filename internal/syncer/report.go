package syncer

import (
	"errors"
	"fmt"
	"strings"

	"lg/fitai-go-api/internal/model"
)

// Outcome is what happened to one entity during a sync run.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

type EntityResult struct {
	Entity   model.Entity    `json:"entity"`
	State    model.SyncState `json:"state"`
	Outcome  Outcome         `json:"outcome"`
	Conflict bool            `json:"conflict"`
	Merged   bool            `json:"merged"`
	Error    string          `json:"error,omitempty"`

	err error
}

// Err returns the underlying write error, if any.
func (r EntityResult) Err() error { return r.err }

// Report lists the outcome of every entity handed to a sync run, in sync
// order. Entities never attempted are reported as skipped.
type Report struct {
	UserID          string         `json:"user_id"`
	Results         []EntityResult `json:"results"`
	CriticalFailure bool           `json:"critical_failure"`
	RolledBack      bool           `json:"rolled_back"`
	Cancelled       bool           `json:"cancelled"`
}

// Success reports whether the critical entity, when part of the run, reached
// the remote store.
func (r *Report) Success() bool {
	if r.CriticalFailure {
		return false
	}
	for _, res := range r.Results {
		if res.Entity.Critical() && res.Outcome != OutcomeSucceeded {
			return false
		}
	}
	return true
}

// Failed returns the entities that did not reach the remote store, failed or
// skipped, in sync order. Passing them to a later run retries only those.
func (r *Report) Failed() []model.Entity {
	var out []model.Entity
	for _, res := range r.Results {
		if res.Outcome != OutcomeSucceeded {
			out = append(out, res.Entity)
		}
	}
	return out
}

func (r *Report) Succeeded() []model.Entity {
	var out []model.Entity
	for _, res := range r.Results {
		if res.Outcome == OutcomeSucceeded {
			out = append(out, res.Entity)
		}
	}
	return out
}

// States maps each entity to the sync state it ended in.
func (r *Report) States() map[model.Entity]model.SyncState {
	out := make(map[model.Entity]model.SyncState, len(r.Results))
	for _, res := range r.Results {
		out[res.Entity] = res.State
	}
	return out
}

// Result returns the entry for entity.
func (r *Report) Result(entity model.Entity) (EntityResult, bool) {
	for _, res := range r.Results {
		if res.Entity == entity {
			return res, true
		}
	}
	return EntityResult{}, false
}

// Err summarizes the report as a typed error: nil when every entity
// succeeded, *CriticalFailureError when the critical write failed, and
// *PartialFailureError otherwise.
func (r *Report) Err() error {
	if r.CriticalFailure {
		for _, res := range r.Results {
			if res.Entity.Critical() {
				return &CriticalFailureError{Entity: res.Entity, Err: res.err, RolledBack: r.RolledBack}
			}
		}
	}
	if failed := r.Failed(); len(failed) > 0 {
		return &PartialFailureError{Failed: failed}
	}
	return nil
}

// CriticalFailureError reports that the critical entity could not be written.
// No later entity was attempted.
type CriticalFailureError struct {
	Entity          model.Entity
	Err             error
	RolledBack      bool
	CompensationErr error
}

func (e *CriticalFailureError) Error() string {
	msg := fmt.Sprintf("sync: critical entity %s failed: %v", e.Entity, e.Err)
	if !e.RolledBack {
		msg += " (rollback incomplete)"
	}
	return msg
}

func (e *CriticalFailureError) Unwrap() error { return e.Err }

// PartialFailureError lists best-effort entities that were not written. The
// critical entity succeeded.
type PartialFailureError struct {
	Failed []model.Entity
}

func (e *PartialFailureError) Error() string {
	names := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		names[i] = string(f)
	}
	return "sync: not written: " + strings.Join(names, ", ")
}

// IsPartial reports whether err is a partial failure.
func IsPartial(err error) bool {
	var pe *PartialFailureError
	return errors.As(err, &pe)
}
