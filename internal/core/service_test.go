package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lg/fitai-go-api/internal/core"
	"lg/fitai-go-api/internal/health"
	"lg/fitai-go-api/internal/model"
	"lg/fitai-go-api/internal/store/memstore"
	"lg/fitai-go-api/internal/syncer"
)

const userID = "user-1"

func ptr[T any](v T) *T { return &v }

func makeSections() model.Sections {
	return model.Sections{
		PersonalInfo: model.PersonalInfo{Name: "Sam", Age: 30, Gender: model.GenderMale, Country: "United Kingdom",
			WakeTime: "07:00", SleepTime: "23:00", Occupation: model.OccupationDeskJob},
		Body:    model.BodyAnalysis{HeightCM: ptr(175.0), CurrentWeightKG: ptr(70.0)},
		Diet:    model.DietPreferences{DietType: model.DietOmnivore, Meals: model.MealsEnabled{Lunch: true}},
		Workout: model.WorkoutPreferences{Location: model.LocationHome, PrimaryGoals: []model.Goal{model.GoalMaintenance}},
	}
}

func newService(opts core.Options) (*core.Service, *memstore.Cache, *memstore.Remote) {
	cache, remote := memstore.NewCache(), memstore.NewRemote()
	coord := syncer.New(cache, remote, syncer.Options{Timeout: time.Second})
	return core.New(coord, cache, opts), cache, remote
}

func TestEvaluate_DryRun(t *testing.T) {
	svc, cache, remote := newService(core.Options{})
	defer svc.Close()

	v, err := svc.Evaluate(makeSections())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Status != model.StatusPassed {
		t.Errorf("status = %s, want passed", v.Status)
	}
	if cache.Puts() != 0 || remote.Len() != 0 {
		t.Error("Evaluate persisted data")
	}
}

func TestEvaluate_InputError(t *testing.T) {
	svc, _, _ := newService(core.Options{})
	defer svc.Close()

	s := makeSections()
	s.Body = model.BodyAnalysis{}
	_, err := svc.Evaluate(s)
	var ie *health.InputError
	if !errors.Is(err, health.ErrInsufficientInput) || !errors.As(err, &ie) {
		t.Errorf("err = %v, want an InputError", err)
	}
}

func TestFinalize_Success(t *testing.T) {
	svc, _, remote := newService(core.Options{})
	defer svc.Close()

	m, rep, err := svc.Finalize(context.Background(), userID, makeSections())
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !rep.Success() || rep.Err() != nil || remote.Len() != 5 {
		t.Errorf("report = %+v, remote = %d", rep, remote.Len())
	}
	if m.Validation == nil || m.BMR != 1696 {
		t.Errorf("metrics = %+v", m)
	}
}

// TestFinalize_Blocked checks a blocked plan never reaches the stores.
func TestFinalize_Blocked(t *testing.T) {
	svc, cache, remote := newService(core.Options{})
	defer svc.Close()

	s := makeSections()
	s.PersonalInfo.Gender = model.GenderFemale
	s.Body.PregnancyStatus = true
	s.Body.BreastfeedingStatus = true

	_, rep, err := svc.Finalize(context.Background(), userID, s)
	var be *core.SafetyBlockedError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want *SafetyBlockedError", err)
	}
	if !be.Verdict.HasIssue(model.IssueConflictingStates) || rep != nil {
		t.Errorf("verdict = %+v, report = %v", be.Verdict, rep)
	}
	if cache.Puts() != 0 || remote.Len() != 0 {
		t.Error("blocked plan was persisted")
	}
}

func TestFinalize_CriticalFailure(t *testing.T) {
	svc, _, remote := newService(core.Options{AutoResync: true, RetryBase: time.Millisecond})
	defer svc.Close()
	remote.FailOn(memstore.OpUpsert, model.EntityPersonalInfo, nil)

	_, rep, err := svc.Finalize(context.Background(), userID, makeSections())
	var cerr *syncer.CriticalFailureError
	if !errors.As(err, &cerr) || rep == nil || !rep.CriticalFailure {
		t.Fatalf("err = %v, report = %+v", err, rep)
	}
}

// TestFinalize_BackgroundResync fails two best-effort entities once and
// waits for the retry loop to write them.
func TestFinalize_BackgroundResync(t *testing.T) {
	var mu sync.Mutex
	var attempts []*syncer.Report
	done := make(chan struct{})

	svc, _, remote := newService(core.Options{
		AutoResync: true,
		RetryBase:  5 * time.Millisecond,
		OnResync: func(uid string, rep *syncer.Report, err error) {
			mu.Lock()
			defer mu.Unlock()
			attempts = append(attempts, rep)
			if err == nil && rep.Err() == nil {
				close(done)
			}
		},
	})
	defer svc.Close()

	remote.FailOn(memstore.OpUpsert, model.EntityDietPreferences, nil)
	remote.FailOn(memstore.OpUpsert, model.EntityWorkoutPreferences, nil)

	_, rep, err := svc.Finalize(context.Background(), userID, makeSections())
	if err != nil {
		t.Fatalf("Finalize: %v (partial failures are not errors)", err)
	}
	if !syncer.IsPartial(rep.Err()) || len(rep.Failed()) != 2 {
		t.Fatalf("report = %+v", rep)
	}
	remote.Heal()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("background resync did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	last := attempts[len(attempts)-1]
	if len(last.Results) != 2 {
		t.Errorf("resync wrote %d entities, want only the 2 failed ones", len(last.Results))
	}
	if remote.Upserts(model.EntityPersonalInfo) != 1 {
		t.Errorf("personal_info re-sent: %d upserts", remote.Upserts(model.EntityPersonalInfo))
	}
	if remote.Upserts(model.EntityDietPreferences) != 1 || remote.Upserts(model.EntityWorkoutPreferences) != 1 {
		t.Error("failed entities were not written by the resync")
	}
}

func TestFinalize_ResyncGivesUp(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	svc, _, remote := newService(core.Options{
		AutoResync:    true,
		RetryAttempts: 3,
		RetryBase:     time.Millisecond,
		OnResync: func(string, *syncer.Report, error) {
			mu.Lock()
			calls++
			mu.Unlock()
		},
	})
	remote.FailOn(memstore.OpUpsert, model.EntityComputedMetrics, nil)

	if _, _, err := svc.Finalize(context.Background(), userID, makeSections()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("attempts = %d, want 3", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
	svc.Close()
	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Errorf("attempts = %d after Close, want 3", calls)
	}
}

func TestResync(t *testing.T) {
	svc, cache, remote := newService(core.Options{})
	defer svc.Close()
	ctx := context.Background()

	if _, err := svc.Resync(ctx, userID, []model.Entity{model.EntityBodyAnalysis}); !errors.Is(err, core.ErrNotCached) {
		t.Fatalf("err = %v, want ErrNotCached", err)
	}

	doc, _ := model.NewDocument(userID, model.EntityBodyAnalysis, makeSections().Body, time.Now())
	cache.Put(ctx, doc.Key(), doc)
	rep, err := svc.Resync(ctx, userID, []model.Entity{model.EntityBodyAnalysis})
	if err != nil || rep.Err() != nil {
		t.Fatalf("Resync: %v / %v", err, rep.Err())
	}
	if remote.Len() != 1 {
		t.Errorf("remote holds %d documents, want 1", remote.Len())
	}

	if _, err := svc.Resync(ctx, userID, []model.Entity{"meal_plan"}); err == nil {
		t.Error("expected an error for an unknown entity")
	}
}
