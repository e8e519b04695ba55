package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entity names one persisted section. The values double as store keys.
type Entity string

const (
	EntityPersonalInfo       Entity = "personal_info"
	EntityBodyAnalysis       Entity = "body_analysis"
	EntityDietPreferences    Entity = "diet_preferences"
	EntityWorkoutPreferences Entity = "workout_preferences"
	EntityComputedMetrics    Entity = "computed_metrics"
)

// SyncOrder is the fixed dependency order for writes. The first entity is critical.
var SyncOrder = []Entity{
	EntityPersonalInfo,
	EntityBodyAnalysis,
	EntityDietPreferences,
	EntityWorkoutPreferences,
	EntityComputedMetrics,
}

// Valid reports whether e is a known entity.
func (e Entity) Valid() bool {
	for _, known := range SyncOrder {
		if e == known {
			return true
		}
	}
	return false
}

// Critical reports whether a failed write of e aborts the sync sequence.
func (e Entity) Critical() bool {
	return e == EntityPersonalInfo
}

// SyncState is the per-entity persistence lifecycle.
type SyncState string

const (
	SyncNotSaved    SyncState = "not_saved"
	SyncSavedLocal  SyncState = "saved_local"
	SyncSavedRemote SyncState = "saved_remote"
	SyncConflict    SyncState = "conflict"
)

// Key addresses one document in either store.
type Key struct {
	UserID string `json:"user_id"`
	Entity Entity `json:"entity"`
}

func (k Key) String() string {
	return k.UserID + "/" + string(k.Entity)
}

// Document is the store-neutral envelope of one entity. Payload is the JSON
// encoding of the entity's canonical struct; Revision identifies the local
// edit it reflects.
type Document struct {
	UserID    string          `json:"user_id"`
	Entity    Entity          `json:"entity"`
	Revision  string          `json:"revision"`
	UpdatedAt time.Time       `json:"updated_at"`
	Payload   json.RawMessage `json:"payload"`
}

func (d Document) Key() Key {
	return Key{UserID: d.UserID, Entity: d.Entity}
}

// revisionNamespace seeds name-based (v5) UUID revisions.
var revisionNamespace = uuid.MustParse("6f1c3a52-8f0e-4d57-9a35-2c7b1f0e9d41")

// Revision derives a deterministic revision marker from an entity payload, so
// identical content always carries the same marker.
func Revision(entity Entity, payload []byte) string {
	return uuid.NewSHA1(revisionNamespace, append([]byte(entity+":"), payload...)).String()
}

// NewDocument encodes v as the payload of entity for userID.
func NewDocument(userID string, entity Entity, v any, at time.Time) (Document, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Document{}, fmt.Errorf("encode %s: %w", entity, err)
	}
	return Document{
		UserID:    userID,
		Entity:    entity,
		Revision:  Revision(entity, payload),
		UpdatedAt: at.UTC(),
		Payload:   payload,
	}, nil
}

// EncodeSections builds one document per section, plus computed_metrics when
// m is non-nil, in SyncOrder.
func EncodeSections(userID string, s Sections, m *ComputedMetrics, at time.Time) ([]Document, error) {
	docs := make([]Document, 0, len(SyncOrder))
	for _, entity := range SyncOrder {
		if entity == EntityComputedMetrics && m == nil {
			continue
		}
		doc, err := EntityDocument(userID, entity, s, m, at)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// EntityDocument encodes a single section of s (or m for computed_metrics).
func EntityDocument(userID string, entity Entity, s Sections, m *ComputedMetrics, at time.Time) (Document, error) {
	switch entity {
	case EntityPersonalInfo:
		return NewDocument(userID, entity, s.PersonalInfo, at)
	case EntityBodyAnalysis:
		return NewDocument(userID, entity, s.Body, at)
	case EntityDietPreferences:
		return NewDocument(userID, entity, s.Diet, at)
	case EntityWorkoutPreferences:
		return NewDocument(userID, entity, s.Workout, at)
	case EntityComputedMetrics:
		if m == nil {
			return Document{}, fmt.Errorf("encode %s: no computed metrics", entity)
		}
		return NewDocument(userID, entity, m, at)
	}
	return Document{}, fmt.Errorf("encode: unknown entity %q", entity)
}

// DecodeInto decodes doc's payload into the matching field of s (or into *m
// for computed_metrics).
func DecodeInto(doc Document, s *Sections, m **ComputedMetrics) error {
	var target any
	switch doc.Entity {
	case EntityPersonalInfo:
		target = &s.PersonalInfo
	case EntityBodyAnalysis:
		target = &s.Body
	case EntityDietPreferences:
		target = &s.Diet
	case EntityWorkoutPreferences:
		target = &s.Workout
	case EntityComputedMetrics:
		var cm ComputedMetrics
		if err := json.Unmarshal(doc.Payload, &cm); err != nil {
			return fmt.Errorf("decode %s: %w", doc.Entity, err)
		}
		*m = &cm
		return nil
	default:
		return fmt.Errorf("decode: unknown entity %q", doc.Entity)
	}
	if err := json.Unmarshal(doc.Payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", doc.Entity, err)
	}
	return nil
}
