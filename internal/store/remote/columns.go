package remote

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"lg/fitai-go-api/internal/model"
)

// table describes how one entity is stored: the full payload goes into the
// data JSONB column, and a few fields are promoted to typed columns for
// querying. promote is the explicit adapter from the canonical struct.
type table struct {
	name     string
	promoted []string
	promote  func(payload []byte) (pgx.NamedArgs, error)
}

var tables = map[model.Entity]table{
	model.EntityPersonalInfo: {
		name:     "profiles",
		promoted: []string{"name", "age", "gender", "country", "occupation_type"},
		promote:  promotePersonalInfo,
	},
	model.EntityBodyAnalysis: {
		name:     "body_analysis",
		promoted: []string{"height_cm", "current_weight_kg", "target_weight_kg", "pregnancy_status", "breastfeeding_status"},
		promote:  promoteBodyAnalysis,
	},
	model.EntityDietPreferences: {
		name:     "diet_preferences",
		promoted: []string{"diet_type"},
		promote:  promoteDietPreferences,
	},
	model.EntityWorkoutPreferences: {
		name:     "workout_preferences",
		promoted: []string{"location", "intensity", "activity_level"},
		promote:  promoteWorkoutPreferences,
	},
	model.EntityComputedMetrics: {
		name:     "advanced_review",
		promoted: []string{"bmr", "tdee", "daily_calories", "health_score", "validation_status"},
		promote:  promoteComputedMetrics,
	},
}

func tableFor(entity model.Entity) (table, error) {
	t, ok := tables[entity]
	if !ok {
		return table{}, fmt.Errorf("remote: unknown entity %q", entity)
	}
	return t, nil
}

func promotePersonalInfo(payload []byte) (pgx.NamedArgs, error) {
	var p model.PersonalInfo
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	return pgx.NamedArgs{
		"name":            p.Name,
		"age":             p.Age,
		"gender":          string(p.Gender),
		"country":         p.Country,
		"occupation_type": string(p.Occupation),
	}, nil
}

func promoteBodyAnalysis(payload []byte) (pgx.NamedArgs, error) {
	var b model.BodyAnalysis
	if err := json.Unmarshal(payload, &b); err != nil {
		return nil, err
	}
	return pgx.NamedArgs{
		"height_cm":            b.HeightCM,
		"current_weight_kg":    b.CurrentWeightKG,
		"target_weight_kg":     b.TargetWeightKG,
		"pregnancy_status":     b.PregnancyStatus,
		"breastfeeding_status": b.BreastfeedingStatus,
	}, nil
}

func promoteDietPreferences(payload []byte) (pgx.NamedArgs, error) {
	var d model.DietPreferences
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, err
	}
	return pgx.NamedArgs{"diet_type": string(d.DietType)}, nil
}

func promoteWorkoutPreferences(payload []byte) (pgx.NamedArgs, error) {
	var w model.WorkoutPreferences
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, err
	}
	return pgx.NamedArgs{
		"location":       string(w.Location),
		"intensity":      string(w.Intensity),
		"activity_level": string(w.ActivityLevel),
	}, nil
}

func promoteComputedMetrics(payload []byte) (pgx.NamedArgs, error) {
	var m model.ComputedMetrics
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, err
	}
	status := ""
	if m.Validation != nil {
		status = string(m.Validation.Status)
	}
	return pgx.NamedArgs{
		"bmr":               m.BMR,
		"tdee":              m.TDEE,
		"daily_calories":    m.DailyCalories,
		"health_score":      m.HealthScore,
		"validation_status": status,
	}, nil
}

// upsertArgs builds the full argument set for an upsert of doc.
func upsertArgs(t table, userID string, doc model.Document) (pgx.NamedArgs, error) {
	args, err := t.promote(doc.Payload)
	if err != nil {
		return nil, fmt.Errorf("promote %s columns: %w", t.name, err)
	}
	args["user_id"] = userID
	args["revision"] = doc.Revision
	args["data"] = string(doc.Payload)
	args["updated_at"] = doc.UpdatedAt
	return args, nil
}
