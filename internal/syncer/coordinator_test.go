package syncer_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"lg/fitai-go-api/internal/model"
	"lg/fitai-go-api/internal/store/memstore"
	"lg/fitai-go-api/internal/syncer"
)

const userID = "user-1"

var fixedNow = time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func makeSections() model.Sections {
	return model.Sections{
		PersonalInfo: model.PersonalInfo{Name: "Sam", Age: 30, Gender: model.GenderMale, Occupation: model.OccupationDeskJob},
		Body:         model.BodyAnalysis{HeightCM: ptr(175.0), CurrentWeightKG: ptr(70.0)},
		Diet:         model.DietPreferences{DietType: model.DietVegetarian, Meals: model.MealsEnabled{Dinner: true}},
		Workout:      model.WorkoutPreferences{Location: model.LocationGym, PrimaryGoals: []model.Goal{model.GoalStrength}},
	}
}

func makeMetrics() *model.ComputedMetrics {
	return &model.ComputedMetrics{BMR: 1696, TDEE: 2035, DailyCalories: 2035,
		Validation: &model.ValidationVerdict{Status: model.StatusPassed}}
}

func newCoordinator(cache *memstore.Cache, remote *memstore.Remote, opts syncer.Options) *syncer.Coordinator {
	opts.Now = func() time.Time { return fixedNow }
	return syncer.New(cache, remote, opts)
}

func TestSync_AllSucceed(t *testing.T) {
	cache, remote := memstore.NewCache(), memstore.NewRemote()
	c := newCoordinator(cache, remote, syncer.Options{})

	rep, err := c.Sync(context.Background(), makeSections(), makeMetrics(), userID)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !rep.Success() || rep.Err() != nil {
		t.Fatalf("report = %+v, want success", rep)
	}
	if len(rep.Results) != 5 {
		t.Fatalf("results = %d, want 5", len(rep.Results))
	}
	for i, res := range rep.Results {
		if res.Entity != model.SyncOrder[i] {
			t.Errorf("result %d is %s, want %s", i, res.Entity, model.SyncOrder[i])
		}
		if res.Outcome != syncer.OutcomeSucceeded || res.State != model.SyncSavedRemote {
			t.Errorf("%s: outcome %s state %s", res.Entity, res.Outcome, res.State)
		}
	}
	if remote.Len() != 5 || cache.Puts() != 5 {
		t.Errorf("remote has %d docs, cache took %d puts; want 5 and 5", remote.Len(), cache.Puts())
	}
}

func TestSync_NilMetricsSkipsEntity(t *testing.T) {
	c := newCoordinator(memstore.NewCache(), memstore.NewRemote(), syncer.Options{})
	rep, err := c.Sync(context.Background(), makeSections(), nil, userID)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if _, ok := rep.Result(model.EntityComputedMetrics); ok || len(rep.Results) != 4 {
		t.Errorf("results = %+v, want the four sections only", rep.Results)
	}
}

// TestSync_CriticalFailure verifies the run stops at personal_info, nothing
// after it is attempted and the partial local write is rolled back.
func TestSync_CriticalFailure(t *testing.T) {
	cache, remote := memstore.NewCache(), memstore.NewRemote()
	remote.FailOn(memstore.OpUpsert, model.EntityPersonalInfo, nil)
	c := newCoordinator(cache, remote, syncer.Options{})

	rep, err := c.Sync(context.Background(), makeSections(), makeMetrics(), userID)
	var cerr *syncer.CriticalFailureError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *CriticalFailureError", err)
	}
	if !errors.Is(err, memstore.ErrInjected) {
		t.Errorf("err does not wrap the store error: %v", err)
	}
	if !rep.CriticalFailure || rep.Success() || !rep.RolledBack || !cerr.RolledBack {
		t.Errorf("report = %+v, want critical failure rolled back", rep)
	}

	for _, e := range model.SyncOrder[1:] {
		res, _ := rep.Result(e)
		if res.Outcome != syncer.OutcomeSkipped {
			t.Errorf("%s outcome = %s, want skipped", e, res.Outcome)
		}
		if remote.Upserts(e) != 0 {
			t.Errorf("%s was written remotely", e)
		}
		if _, found, _ := cache.Get(context.Background(), model.Key{UserID: userID, Entity: e}); found {
			t.Errorf("%s was written locally", e)
		}
	}
	if _, found, _ := cache.Get(context.Background(), model.Key{UserID: userID, Entity: model.EntityPersonalInfo}); found {
		t.Error("personal_info local write was not rolled back")
	}
	if res, _ := rep.Result(model.EntityPersonalInfo); res.State != model.SyncNotSaved {
		t.Errorf("personal_info state = %s, want not_saved after rollback", res.State)
	}
	if remote.Len() != 0 {
		t.Errorf("remote holds %d documents after rollback", remote.Len())
	}
	if !reflect.DeepEqual(rep.Failed(), model.SyncOrder) {
		t.Errorf("failed = %v, want every entity", rep.Failed())
	}
}

// TestSync_CriticalFailureRestoresPriorDocuments checks that rollback
// restores the previously stored versions rather than deleting them.
func TestSync_CriticalFailureRestoresPriorDocuments(t *testing.T) {
	ctx := context.Background()
	cache, remote := memstore.NewCache(), memstore.NewRemote()

	old, _ := model.NewDocument(userID, model.EntityPersonalInfo, model.PersonalInfo{Name: "Old"}, fixedNow.Add(-time.Hour))
	cache.Put(ctx, old.Key(), old)
	remote.Seed(old)
	remote.FailOn(memstore.OpUpsert, model.EntityPersonalInfo, nil)

	c := newCoordinator(cache, remote, syncer.Options{})
	rep, err := c.Sync(ctx, makeSections(), nil, userID)
	if err == nil {
		t.Fatal("expected a critical failure")
	}
	if res, _ := rep.Result(model.EntityPersonalInfo); res.State != model.SyncSavedLocal {
		t.Errorf("personal_info state = %s, want saved_local (prior copy restored)", res.State)
	}

	got, found, _ := cache.Get(ctx, old.Key())
	if !found || got.Revision != old.Revision {
		t.Errorf("local personal_info = %+v, want the prior revision", got)
	}
	remote.Heal()
	got, found, _ = remote.Get(ctx, userID, model.EntityPersonalInfo)
	if !found || got.Revision != old.Revision {
		t.Errorf("remote personal_info = %+v, want the prior revision", got)
	}
}

func TestSync_PartialFailure(t *testing.T) {
	cache, remote := memstore.NewCache(), memstore.NewRemote()
	remote.FailOn(memstore.OpUpsert, model.EntityDietPreferences, nil)
	remote.FailOn(memstore.OpGet, model.EntityComputedMetrics, nil)
	c := newCoordinator(cache, remote, syncer.Options{})

	rep, err := c.Sync(context.Background(), makeSections(), makeMetrics(), userID)
	if err != nil {
		t.Fatalf("Sync: %v (partial failures are reported, not returned)", err)
	}
	if !rep.Success() {
		t.Fatal("critical entity succeeded; report must count as success")
	}
	want := []model.Entity{model.EntityDietPreferences, model.EntityComputedMetrics}
	if !reflect.DeepEqual(rep.Failed(), want) {
		t.Errorf("failed = %v, want %v", rep.Failed(), want)
	}
	var perr *syncer.PartialFailureError
	if !errors.As(rep.Err(), &perr) || !reflect.DeepEqual(perr.Failed, want) {
		t.Errorf("Err() = %v, want partial failure for %v", rep.Err(), want)
	}

	diet, _ := rep.Result(model.EntityDietPreferences)
	if diet.State != model.SyncSavedLocal || diet.Error == "" {
		t.Errorf("diet result = %+v, want saved_local with an error", diet)
	}
	metrics, _ := rep.Result(model.EntityComputedMetrics)
	if metrics.State != model.SyncSavedLocal {
		t.Errorf("metrics state = %s, want saved_local", metrics.State)
	}

	// retry only the failed entities, from the local cache
	remote.Heal()
	var docs []model.Document
	for _, e := range rep.Failed() {
		doc, found, _ := cache.Get(context.Background(), model.Key{UserID: userID, Entity: e})
		if !found {
			t.Fatalf("%s missing from the local cache", e)
		}
		docs = append(docs, doc)
	}
	retry, err := c.SyncDocuments(context.Background(), userID, docs)
	if err != nil || retry.Err() != nil {
		t.Fatalf("retry: %v / %v", err, retry.Err())
	}
	if remote.Upserts(model.EntityPersonalInfo) != 1 {
		t.Errorf("personal_info written %d times, want 1", remote.Upserts(model.EntityPersonalInfo))
	}
}

// TestSync_Idempotent verifies a repeated sync with no remote-side change
// yields the same report and no extra documents.
func TestSync_Idempotent(t *testing.T) {
	cache, remote := memstore.NewCache(), memstore.NewRemote()
	c := newCoordinator(cache, remote, syncer.Options{})

	first, err := c.Sync(context.Background(), makeSections(), makeMetrics(), userID)
	if err != nil {
		t.Fatalf("first Sync: %v", err)
	}
	second, err := c.Sync(context.Background(), makeSections(), makeMetrics(), userID)
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("reports differ:\n%+v\n%+v", first, second)
	}
	if remote.Len() != 5 {
		t.Errorf("remote holds %d documents, want 5", remote.Len())
	}
}

// TestSync_ConflictLocalWins seeds a different remote diet document and
// checks the local version is written and the conflict surfaced.
func TestSync_ConflictLocalWins(t *testing.T) {
	ctx := context.Background()
	cache, remote := memstore.NewCache(), memstore.NewRemote()

	stale := model.Document{
		UserID:    userID,
		Entity:    model.EntityDietPreferences,
		Revision:  "stale",
		UpdatedAt: fixedNow.Add(-24 * time.Hour),
		Payload:   json.RawMessage(`{"diet_type":"omnivore","legacy_notes":"no onions"}`),
	}
	remote.Seed(stale)

	c := newCoordinator(cache, remote, syncer.Options{})
	rep, err := c.Sync(ctx, makeSections(), makeMetrics(), userID)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !rep.Success() {
		t.Fatal("a conflict must not block the sync")
	}

	res, _ := rep.Result(model.EntityDietPreferences)
	if !res.Conflict || res.State != model.SyncConflict || res.Outcome != syncer.OutcomeSucceeded || !res.Merged {
		t.Errorf("diet result = %+v, want a merged conflict that succeeded", res)
	}

	got, _, _ := remote.Get(ctx, userID, model.EntityDietPreferences)
	var payload map[string]any
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["diet_type"] != "vegetarian" {
		t.Errorf("diet_type = %v, want the local vegetarian", payload["diet_type"])
	}
	if payload["legacy_notes"] != "no onions" {
		t.Errorf("remote-only field lost: %v", payload)
	}
	local, _ := model.EntityDocument(userID, model.EntityDietPreferences, makeSections(), nil, fixedNow)
	if got.Revision != local.Revision {
		t.Errorf("revision = %s, want the local %s", got.Revision, local.Revision)
	}

	// the conflict is resolved once the merged version is stored
	again, _ := c.Sync(ctx, makeSections(), makeMetrics(), userID)
	if res, _ := again.Result(model.EntityDietPreferences); res.Conflict {
		t.Error("conflict reported again after the merged write")
	}
}

func TestSync_Timeout(t *testing.T) {
	cache, remote := memstore.NewCache(), memstore.NewRemote()
	remote.SetDelay(200 * time.Millisecond)
	c := newCoordinator(cache, remote, syncer.Options{Timeout: 20 * time.Millisecond})

	rep, err := c.Sync(context.Background(), makeSections(), nil, userID)
	if !errors.Is(err, syncer.ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want a timeout", err)
	}
	if !rep.CriticalFailure {
		t.Error("timeout of the critical write must be a critical failure")
	}
}

// TestSync_Cancelled cancels while the critical write is in flight: that write
// completes and nothing after it is attempted.
func TestSync_Cancelled(t *testing.T) {
	cache, remote := memstore.NewCache(), memstore.NewRemote()
	remote.SetDelay(50 * time.Millisecond)
	c := newCoordinator(cache, remote, syncer.Options{Timeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	rep, err := c.Sync(ctx, makeSections(), makeMetrics(), userID)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if rep == nil || !rep.Cancelled {
		t.Fatalf("report = %+v, want cancelled", rep)
	}
	if res, _ := rep.Result(model.EntityPersonalInfo); res.Outcome != syncer.OutcomeSucceeded {
		t.Errorf("in-flight critical write = %s, want succeeded", res.Outcome)
	}
	for _, e := range model.SyncOrder[1:] {
		if res, _ := rep.Result(e); res.Outcome != syncer.OutcomeSkipped {
			t.Errorf("%s = %s, want skipped", e, res.Outcome)
		}
		if remote.Upserts(e) != 0 {
			t.Errorf("%s was written after cancellation", e)
		}
	}
}

func TestSync_AlreadyCancelled(t *testing.T) {
	remote := memstore.NewRemote()
	c := newCoordinator(memstore.NewCache(), remote, syncer.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := c.Sync(ctx, makeSections(), nil, userID)
	if !errors.Is(err, context.Canceled) || rep == nil {
		t.Fatalf("rep=%v err=%v", rep, err)
	}
	if remote.Len() != 0 || len(rep.Succeeded()) != 0 {
		t.Error("nothing may be written after cancellation")
	}
}

func TestSyncDocuments_RejectsBadInput(t *testing.T) {
	c := newCoordinator(memstore.NewCache(), memstore.NewRemote(), syncer.Options{})
	doc, _ := model.NewDocument("someone-else", model.EntityBodyAnalysis, model.BodyAnalysis{}, fixedNow)
	if _, err := c.SyncDocuments(context.Background(), userID, []model.Document{doc}); err == nil {
		t.Error("expected an error for a foreign document")
	}
	doc.UserID = userID
	if _, err := c.SyncDocuments(context.Background(), userID, []model.Document{doc, doc}); err == nil {
		t.Error("expected an error for duplicate entities")
	}
}

func TestSync_SequentialBestEffort(t *testing.T) {
	remote := memstore.NewRemote()
	c := newCoordinator(memstore.NewCache(), remote, syncer.Options{MaxConcurrent: 1})
	rep, err := c.Sync(context.Background(), makeSections(), makeMetrics(), userID)
	if err != nil || !rep.Success() || len(rep.Succeeded()) != 5 {
		t.Fatalf("rep=%+v err=%v", rep, err)
	}
}
