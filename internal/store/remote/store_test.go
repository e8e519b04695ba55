package remote

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lg/fitai-go-api/internal/model"
)

func ptr[T any](v T) *T { return &v }

/* ─── Column adapters ────────────────────────────────────────────────── */

func TestUpsertSQL(t *testing.T) {
	got := upsertSQL(tables[model.EntityDietPreferences])
	want := `INSERT INTO diet_preferences (user_id, revision, data, updated_at, diet_type)
VALUES (@user_id, @revision, @data::jsonb, @updated_at, @diet_type)
ON CONFLICT (user_id) DO UPDATE SET revision = EXCLUDED.revision, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at, diet_type = EXCLUDED.diet_type`
	if got != want {
		t.Errorf("upsertSQL =\n%s\nwant\n%s", got, want)
	}
}

// TestUpsertArgs_AllEntities verifies every entity's adapter fills exactly its
// promoted columns plus the shared document columns.
func TestUpsertArgs_AllEntities(t *testing.T) {
	at := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	s := model.Sections{
		PersonalInfo: model.PersonalInfo{Name: "Sam", Age: 30, Gender: model.GenderMale, Occupation: model.OccupationDeskJob},
		Body:         model.BodyAnalysis{HeightCM: ptr(175.0), CurrentWeightKG: ptr(70.0)},
		Diet:         model.DietPreferences{DietType: model.DietVegan},
		Workout:      model.WorkoutPreferences{Location: model.LocationGym, Intensity: model.IntensityAdvanced},
	}
	m := &model.ComputedMetrics{BMR: 1696, TDEE: 2035, DailyCalories: 2035,
		Validation: &model.ValidationVerdict{Status: model.StatusPassed}}

	docs, err := model.EncodeSections("u1", s, m, at)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, doc := range docs {
		tbl, err := tableFor(doc.Entity)
		if err != nil {
			t.Fatalf("tableFor(%s): %v", doc.Entity, err)
		}
		args, err := upsertArgs(tbl, "u1", doc)
		if err != nil {
			t.Fatalf("%s: %v", doc.Entity, err)
		}
		if len(args) != len(tbl.promoted)+4 {
			t.Errorf("%s: %d args, want %d", doc.Entity, len(args), len(tbl.promoted)+4)
		}
		for _, col := range tbl.promoted {
			if _, ok := args[col]; !ok {
				t.Errorf("%s: promoted column %s missing", doc.Entity, col)
			}
		}
		if args["revision"] != doc.Revision || args["user_id"] != "u1" {
			t.Errorf("%s: shared columns = %v", doc.Entity, args)
		}
	}

	args, _ := promoteComputedMetrics(docs[4].Payload)
	if args["validation_status"] != "passed" || args["daily_calories"] != 2035 {
		t.Errorf("computed metrics columns = %v", args)
	}
	args, _ = promotePersonalInfo(docs[0].Payload)
	if args["occupation_type"] != "desk_job" {
		t.Errorf("personal info columns = %v", args)
	}
}

func TestTableFor_UnknownEntity(t *testing.T) {
	if _, err := tableFor("meal_plan"); err == nil {
		t.Error("expected an error for an unknown entity")
	}
}

/* ─── Postgres integration ───────────────────────────────────────────── */

// TestStore_Postgres runs against a migrated database when TEST_DB_URL is set.
func TestStore_Postgres(t *testing.T) {
	url := os.Getenv("TEST_DB_URL")
	if url == "" {
		t.Skip("TEST_DB_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	userID := uuid.NewString()
	if _, err := pool.Exec(ctx,
		`INSERT INTO users (id, username, email, password, auth_token) VALUES (@id, @username, '', '', @token)`,
		pgx.NamedArgs{"id": userID, "username": "test-" + userID, "token": uuid.NewString()}); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	t.Cleanup(func() { pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, userID) })

	s := New(pool)
	if _, found, err := s.Get(ctx, userID, model.EntityPersonalInfo); err != nil || found {
		t.Fatalf("get before upsert: found=%v err=%v", found, err)
	}

	at := time.Now().UTC().Truncate(time.Microsecond)
	doc, _ := model.NewDocument(userID, model.EntityPersonalInfo, model.PersonalInfo{Name: "Sam", Age: 30}, at)
	for i := 0; i < 2; i++ {
		if err := s.Upsert(ctx, userID, model.EntityPersonalInfo, doc); err != nil {
			t.Fatalf("upsert #%d: %v", i+1, err)
		}
	}

	var n int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM profiles WHERE user_id = $1`, userID).Scan(&n); err != nil || n != 1 {
		t.Fatalf("profiles rows = %d (err %v), want 1", n, err)
	}

	got, found, err := s.Get(ctx, userID, model.EntityPersonalInfo)
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if got.Revision != doc.Revision || !got.UpdatedAt.Equal(at) {
		t.Errorf("got %+v, want revision %s at %v", got, doc.Revision, at)
	}
	if !strings.Contains(string(got.Payload), `"name"`) {
		t.Errorf("payload = %s", got.Payload)
	}

	if err := s.Delete(ctx, userID, model.EntityPersonalInfo); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := s.Get(ctx, userID, model.EntityPersonalInfo); found {
		t.Error("row still present after delete")
	}
}
