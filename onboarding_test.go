package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"lg/fitai-go-api/internal/core"
	"lg/fitai-go-api/internal/model"
	"lg/fitai-go-api/internal/store/memstore"
	"lg/fitai-go-api/internal/syncer"
)

func ptr[T any](v T) *T { return &v }

func testSections() model.Sections {
	return model.Sections{
		PersonalInfo: model.PersonalInfo{Name: "Sam", Age: 30, Gender: model.GenderMale, Country: "United Kingdom",
			WakeTime: "07:00", SleepTime: "23:00", Occupation: model.OccupationDeskJob},
		Body: model.BodyAnalysis{HeightCM: ptr(175.0), CurrentWeightKG: ptr(70.0)},
		Diet: model.DietPreferences{DietType: model.DietVegetarian, Meals: model.MealsEnabled{Breakfast: true, Dinner: true}},
		Workout: model.WorkoutPreferences{Location: model.LocationGym, SessionMinutes: 45, WorkoutsPerWeek: 3,
			Intensity: model.IntensityIntermediate, PrimaryGoals: []model.Goal{model.GoalStrength}},
	}
}

// setupOnboardingTest builds a router over in-memory stores. Auth is skipped
// and every request runs as user-1. No DB needed.
func setupOnboardingTest(t *testing.T) (*gin.Engine, *memstore.Remote) {
	t.Helper()
	cache, remote := memstore.NewCache(), memstore.NewRemote()
	coord := syncer.New(cache, remote, syncer.Options{Timeout: time.Second})
	svc := core.New(coord, cache, core.Options{})
	sessions := newSessionStore(cache, 10*time.Millisecond)
	t.Cleanup(func() {
		svc.Close()
		sessions.closeAll(context.Background())
	})

	gin.SetMode(gin.TestMode)
	h := &Handler{svc: svc, sessions: sessions}
	router := gin.New()
	h.registerOnboardingRoutes(router.Group("/api", func(c *gin.Context) {
		c.Set("user_id", "user-1")
		c.Next()
	}))
	return router, remote
}

func doRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

/* ─── Session endpoints ──────────────────────────────────────────────── */

func TestPutSection_LiveMetrics(t *testing.T) {
	router, _ := setupOnboardingTest(t)
	s := testSections()

	if w := doRequest(router, "PUT", "/api/onboarding/sections/personal_info", s.PersonalInfo); w.Code != http.StatusOK {
		t.Fatalf("personal_info: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w := doRequest(router, "PUT", "/api/onboarding/sections/body_analysis", s.Body)
	if w.Code != http.StatusOK {
		t.Fatalf("body_analysis: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var snap struct {
		Metrics *model.ComputedMetrics `json:"metrics"`
		States  map[string]string      `json:"states"`
	}
	decode(t, w, &snap)
	if snap.Metrics == nil || snap.Metrics.BMR != 1696 {
		t.Errorf("metrics = %+v, want bmr 1696", snap.Metrics)
	}
	if snap.States["body_analysis"] != "complete" {
		t.Errorf("body_analysis state = %q, want complete", snap.States["body_analysis"])
	}

	w = doRequest(router, "GET", "/api/onboarding/state", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("state: expected 200, got %d", w.Code)
	}
}

func TestPutSection_BadRequests(t *testing.T) {
	router, _ := setupOnboardingTest(t)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"unknown section", "/api/onboarding/sections/bogus", map[string]any{}, http.StatusNotFound},
		{"review is not editable", "/api/onboarding/sections/advanced_review", map[string]any{}, http.StatusBadRequest},
		{"empty body", "/api/onboarding/sections/personal_info", nil, http.StatusBadRequest},
		{"unknown field", "/api/onboarding/sections/personal_info", map[string]any{"nickname": "x"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, "PUT", tt.path, tt.body)
			if w.Code != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestCompleteSection_FieldErrors(t *testing.T) {
	router, _ := setupOnboardingTest(t)

	w := doRequest(router, "POST", "/api/onboarding/sections/personal_info/complete", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		FieldErrors []struct {
			Field string `json:"field"`
		} `json:"field_errors"`
	}
	decode(t, w, &resp)
	if len(resp.FieldErrors) == 0 {
		t.Error("expected field_errors")
	}
}

/* ─── Core endpoints ─────────────────────────────────────────────────── */

func TestEvaluate(t *testing.T) {
	router, remote := setupOnboardingTest(t)

	w := doRequest(router, "POST", "/api/onboarding/evaluate", gin.H{"sections": testSections()})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var v model.ValidationVerdict
	decode(t, w, &v)
	if v.Status != model.StatusPassed {
		t.Errorf("status = %s, want passed", v.Status)
	}
	if remote.Len() != 0 {
		t.Error("evaluate wrote to the remote store")
	}
}

func TestEvaluate_MissingInput(t *testing.T) {
	router, _ := setupOnboardingTest(t)

	w := doRequest(router, "POST", "/api/onboarding/evaluate", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Missing []string `json:"missing"`
	}
	decode(t, w, &resp)
	if len(resp.Missing) != 2 {
		t.Errorf("missing = %v, want height and weight", resp.Missing)
	}
}

func TestCompute(t *testing.T) {
	router, _ := setupOnboardingTest(t)

	w := doRequest(router, "POST", "/api/onboarding/compute", gin.H{"sections": testSections()})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var m model.ComputedMetrics
	decode(t, w, &m)
	if m.BMR != 1696 || m.Validation == nil {
		t.Errorf("metrics = %+v", m)
	}
}

func TestFinalize_IncompleteSession(t *testing.T) {
	router, remote := setupOnboardingTest(t)

	w := doRequest(router, "POST", "/api/onboarding/finalize", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if remote.Len() != 0 {
		t.Error("incomplete session was synced")
	}
}

func TestFinalize_Blocked(t *testing.T) {
	router, remote := setupOnboardingTest(t)
	s := testSections()
	s.PersonalInfo.Gender = model.GenderFemale
	s.Body.PregnancyStatus = true
	s.Body.BreastfeedingStatus = true

	w := doRequest(router, "POST", "/api/onboarding/finalize", gin.H{"sections": s})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Verdict model.ValidationVerdict `json:"verdict"`
	}
	decode(t, w, &resp)
	if !resp.Verdict.HasIssue(model.IssueConflictingStates) {
		t.Errorf("verdict = %+v", resp.Verdict)
	}
	if remote.Len() != 0 {
		t.Error("blocked plan was synced")
	}
}

func TestFinalize_CriticalFailure(t *testing.T) {
	router, remote := setupOnboardingTest(t)
	remote.FailOn(memstore.OpUpsert, model.EntityPersonalInfo, nil)

	w := doRequest(router, "POST", "/api/onboarding/finalize", gin.H{"sections": testSections()})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Report syncer.Report `json:"report"`
	}
	decode(t, w, &resp)
	if !resp.Report.CriticalFailure {
		t.Errorf("report = %+v, want critical failure", resp.Report)
	}
}

// TestFinalize_Session walks the whole flow over HTTP and finalizes the
// session without a request body.
func TestFinalize_Session(t *testing.T) {
	router, remote := setupOnboardingTest(t)
	s := testSections()

	steps := []struct {
		section string
		body    any
	}{
		{"personal_info", s.PersonalInfo},
		{"diet_preferences", s.Diet},
		{"body_analysis", s.Body},
		{"workout_preferences", s.Workout},
		{"advanced_review", nil},
	}
	for _, st := range steps {
		if st.body != nil {
			if w := doRequest(router, "PUT", "/api/onboarding/sections/"+st.section, st.body); w.Code != http.StatusOK {
				t.Fatalf("put %s: expected 200, got %d: %s", st.section, w.Code, w.Body.String())
			}
		}
		if w := doRequest(router, "POST", "/api/onboarding/sections/"+st.section+"/complete", nil); w.Code != http.StatusOK {
			t.Fatalf("complete %s: expected 200, got %d: %s", st.section, w.Code, w.Body.String())
		}
	}

	w := doRequest(router, "POST", "/api/onboarding/finalize", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Failed []string `json:"failed"`
		State  *struct {
			CompletionPct int `json:"completion_pct"`
		} `json:"state"`
	}
	decode(t, w, &resp)
	if resp.Failed == nil || len(resp.Failed) != 0 {
		t.Errorf("failed = %v, want []", resp.Failed)
	}
	if resp.State == nil || resp.State.CompletionPct != 100 {
		t.Errorf("state = %+v, want 100%% complete", resp.State)
	}
	if remote.Len() != len(model.SyncOrder) {
		t.Errorf("remote holds %d documents, want %d", remote.Len(), len(model.SyncOrder))
	}
}

func TestFinalize_PartialThenResync(t *testing.T) {
	router, remote := setupOnboardingTest(t)
	remote.FailOn(memstore.OpUpsert, model.EntityDietPreferences, nil)

	w := doRequest(router, "POST", "/api/onboarding/finalize", gin.H{"sections": testSections()})
	if w.Code != http.StatusOK {
		t.Fatalf("finalize: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var fin struct {
		Failed []model.Entity `json:"failed"`
	}
	decode(t, w, &fin)
	if len(fin.Failed) != 1 || fin.Failed[0] != model.EntityDietPreferences {
		t.Fatalf("failed = %v, want [diet_preferences]", fin.Failed)
	}

	remote.Heal()
	w = doRequest(router, "POST", "/api/onboarding/resync", gin.H{"entities": fin.Failed})
	if w.Code != http.StatusOK {
		t.Fatalf("resync: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var rep syncer.Report
	decode(t, w, &rep)
	if len(rep.Results) != 1 || rep.Results[0].State != model.SyncSavedRemote {
		t.Errorf("resync report = %+v", rep)
	}
}

func TestResync_BadRequests(t *testing.T) {
	router, _ := setupOnboardingTest(t)

	if w := doRequest(router, "POST", "/api/onboarding/resync", gin.H{"entities": []string{}}); w.Code != http.StatusBadRequest {
		t.Errorf("no entities: expected 400, got %d", w.Code)
	}
	w := doRequest(router, "POST", "/api/onboarding/resync", gin.H{"entities": []string{"diet_preferences"}})
	if w.Code != http.StatusNotFound {
		t.Errorf("nothing cached: expected 404, got %d: %s", w.Code, w.Body.String())
	}
}
