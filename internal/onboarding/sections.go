package onboarding

import (
	"fmt"
	"strings"

	"lg/fitai-go-api/internal/health"
	"lg/fitai-go-api/internal/model"
)

// Section is one step of the onboarding flow.
type Section string

const (
	SectionPersonalInfo Section = "personal_info"
	SectionDiet         Section = "diet_preferences"
	SectionBody         Section = "body_analysis"
	SectionWorkout      Section = "workout_preferences"
	SectionReview       Section = "advanced_review"
)

// Sections lists the flow in the order it is presented.
var Sections = []Section{SectionPersonalInfo, SectionDiet, SectionBody, SectionWorkout, SectionReview}

// ParseSection maps a section name (or its short alias) to a Section.
func ParseSection(name string) (Section, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "personal_info", "personal":
		return SectionPersonalInfo, nil
	case "diet_preferences", "diet":
		return SectionDiet, nil
	case "body_analysis", "body":
		return SectionBody, nil
	case "workout_preferences", "workout":
		return SectionWorkout, nil
	case "advanced_review", "review":
		return SectionReview, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSection, name)
}

// Entity returns the stored entity backing s. The review step persists as the
// computed metrics.
func (s Section) Entity() model.Entity {
	switch s {
	case SectionPersonalInfo:
		return model.EntityPersonalInfo
	case SectionDiet:
		return model.EntityDietPreferences
	case SectionBody:
		return model.EntityBodyAnalysis
	case SectionWorkout:
		return model.EntityWorkoutPreferences
	}
	return model.EntityComputedMetrics
}

// dependents are the sections whose derived values or validation read s.
var dependents = map[Section][]Section{
	SectionPersonalInfo: {SectionBody, SectionWorkout, SectionReview},
	SectionBody:         {SectionWorkout, SectionReview},
	SectionDiet:         {SectionReview},
	SectionWorkout:      {SectionReview},
}

type SectionState string

const (
	StateEmpty    SectionState = "empty"
	StatePartial  SectionState = "partial"
	StateComplete SectionState = "complete"
)

// FieldError is a single per-field problem that keeps a section from
// completing.
type FieldError struct {
	Section Section `json:"section"`
	Field   string  `json:"field"`
	Message string  `json:"message"`
}

func (e FieldError) Error() string {
	return string(e.Section) + "." + e.Field + ": " + e.Message
}

/* ─── Required fields ────────────────────────────────────────────────── */

type requiredField struct {
	name   string
	filled func(s model.Sections) bool
}

func hasValue(p *float64) bool { return p != nil && *p > 0 }

var requiredFields = map[Section][]requiredField{
	SectionPersonalInfo: {
		{"name", func(s model.Sections) bool { return strings.TrimSpace(s.PersonalInfo.Name) != "" }},
		{"age", func(s model.Sections) bool { return s.PersonalInfo.Age > 0 }},
		{"gender", func(s model.Sections) bool { return s.PersonalInfo.Gender != "" }},
		{"country", func(s model.Sections) bool { return strings.TrimSpace(s.PersonalInfo.Country) != "" }},
		{"wake_time", func(s model.Sections) bool { return s.PersonalInfo.WakeTime != "" }},
		{"sleep_time", func(s model.Sections) bool { return s.PersonalInfo.SleepTime != "" }},
		{"occupation_type", func(s model.Sections) bool { return s.PersonalInfo.Occupation != "" }},
	},
	SectionDiet: {
		{"diet_type", func(s model.Sections) bool { return s.Diet.DietType != "" }},
		{"meals", func(s model.Sections) bool { return s.Diet.Meals.Any() }},
	},
	SectionBody: {
		{"height_cm", func(s model.Sections) bool { return hasValue(s.Body.HeightCM) }},
		{"current_weight_kg", func(s model.Sections) bool { return hasValue(s.Body.CurrentWeightKG) }},
	},
	SectionWorkout: {
		{"location", func(s model.Sections) bool { return s.Workout.Location != "" }},
		{"time_preference", func(s model.Sections) bool { return s.Workout.SessionMinutes > 0 }},
		{"workout_frequency_per_week", func(s model.Sections) bool { return s.Workout.WorkoutsPerWeek > 0 }},
		{"intensity", func(s model.Sections) bool { return s.Workout.Intensity != "" }},
		{"primary_goals", func(s model.Sections) bool { return len(s.Workout.PrimaryGoals) > 0 }},
	},
}

// filledCount returns how many of sec's required fields are set, and how many
// there are.
func filledCount(sec Section, s model.Sections) (filled, total int) {
	for _, f := range requiredFields[sec] {
		if f.filled(s) {
			filled++
		}
	}
	return filled, len(requiredFields[sec])
}

/* ─── Field validation ───────────────────────────────────────────────── */

type checker struct {
	section Section
	errs    []FieldError
}

func (c *checker) add(field, format string, args ...any) {
	c.errs = append(c.errs, FieldError{Section: c.section, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (c *checker) required(s model.Sections) {
	for _, f := range requiredFields[c.section] {
		if !f.filled(s) {
			c.add(f.name, "is required")
		}
	}
}

func (c *checker) rangeF(field string, p *float64, lo, hi float64) {
	if p != nil && (*p < lo || *p > hi) {
		c.add(field, "must be between %g and %g", lo, hi)
	}
}

func (c *checker) rangeI(field string, v, lo, hi int) {
	if v != 0 && (v < lo || v > hi) {
		c.add(field, "must be between %d and %d", lo, hi)
	}
}

func oneOf[T comparable](v T, allowed ...T) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// ValidateSection returns the field errors that keep sec from completing.
// The review step is valid once metrics exist and the plan is not blocked.
func ValidateSection(sec Section, s model.Sections, m *model.ComputedMetrics) []FieldError {
	c := &checker{section: sec}
	if sec != SectionReview {
		c.required(s)
	}

	switch sec {
	case SectionPersonalInfo:
		p := s.PersonalInfo
		c.rangeI("age", p.Age, health.MinAge, health.MaxAge)
		if p.Gender != "" && !oneOf(p.Gender, model.GenderMale, model.GenderFemale, model.GenderOther, model.GenderUnspecified) {
			c.add("gender", "unknown value %q", p.Gender)
		}
		if p.Occupation != "" && health.OccupationActivityLevel(p.Occupation) == "" {
			c.add("occupation_type", "unknown value %q", p.Occupation)
		}
		if p.WakeTime != "" {
			if err := health.ParseClock(p.WakeTime); err != nil {
				c.add("wake_time", "must be HH:MM")
			}
		}
		if p.SleepTime != "" {
			if err := health.ParseClock(p.SleepTime); err != nil {
				c.add("sleep_time", "must be HH:MM")
			}
		}

	case SectionDiet:
		d := s.Diet
		if d.DietType != "" && !oneOf(d.DietType, model.DietOmnivore, model.DietVegetarian, model.DietVegan, model.DietPescatarian) {
			c.add("diet_type", "unknown value %q", d.DietType)
		}
		c.rangeI("max_prep_time_minutes", d.Cooking.MaxPrepMinutes, 5, 300)

	case SectionBody:
		b := s.Body
		c.rangeF("height_cm", b.HeightCM, 100, 250)
		c.rangeF("current_weight_kg", b.CurrentWeightKG, 30, 300)
		c.rangeF("target_weight_kg", b.TargetWeightKG, 30, 300)
		c.rangeF("body_fat_percentage", b.BodyFatPct, 3, 60)
		c.rangeF("waist_cm", b.WaistCM, 40, 200)
		c.rangeF("hip_cm", b.HipCM, 50, 200)
		c.rangeF("chest_cm", b.ChestCM, 50, 200)
		if b.TargetTimelineWeeks != nil && (*b.TargetTimelineWeeks < 1 || *b.TargetTimelineWeeks > 104) {
			c.add("target_timeline_weeks", "must be between 1 and 104")
		}
		if b.RestingHeartRate != nil && (*b.RestingHeartRate < 30 || *b.RestingHeartRate > 120) {
			c.add("resting_heart_rate", "must be between 30 and 120")
		}
		if b.PregnancyTrimester < 0 || b.PregnancyTrimester > 3 {
			c.add("pregnancy_trimester", "must be 1, 2 or 3")
		}
		if (b.PregnancyStatus || b.BreastfeedingStatus) && s.PersonalInfo.Gender == model.GenderMale {
			c.add("pregnancy_status", "does not apply to gender %q", model.GenderMale)
		}
		if b.StressLevel != "" && !oneOf(b.StressLevel, model.StressLow, model.StressModerate, model.StressHigh) {
			c.add("stress_level", "unknown value %q", b.StressLevel)
		}

	case SectionWorkout:
		w := s.Workout
		if w.Location != "" && !oneOf(w.Location, model.LocationHome, model.LocationGym, model.LocationOutdoor, model.LocationBoth) {
			c.add("location", "unknown value %q", w.Location)
		}
		if w.Intensity != "" && !oneOf(w.Intensity, model.IntensityBeginner, model.IntensityIntermediate, model.IntensityAdvanced) {
			c.add("intensity", "unknown value %q", w.Intensity)
		}
		c.rangeI("time_preference", w.SessionMinutes, 10, 180)
		c.rangeI("workout_frequency_per_week", w.WorkoutsPerWeek, 1, 7)
		for _, g := range w.PrimaryGoals {
			if !oneOf(g, model.GoalWeightLoss, model.GoalMuscleGain, model.GoalMaintenance, model.GoalEndurance, model.GoalStrength, model.GoalFlexibility) {
				c.add("primary_goals", "unknown goal %q", g)
			}
		}
		if w.ActivityLevelOverride {
			if _, ok := health.ActivityMultiplier(w.ActivityLevel); !ok {
				c.add("activity_level", "unknown value %q", w.ActivityLevel)
			}
		}

	case SectionReview:
		switch {
		case m == nil:
			c.add("computed_metrics", "height or weight is required to compute metrics")
		case m.Validation != nil && m.Validation.Blocked():
			c.add("validation", "plan is blocked by a safety rule")
		}
	}
	return c.errs
}
