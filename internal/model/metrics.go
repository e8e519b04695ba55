package model

// ComputedMetrics is the aggregate result of one calculation run. It is owned
// by the health engine and never edited by the user. Optional outputs are nil
// when their inputs were missing.
type ComputedMetrics struct {
	BMR                int                `json:"bmr"`
	BMI                *float64           `json:"bmi"`
	BMICategory        string             `json:"bmi_category"`
	BMIHealthRisk      string             `json:"bmi_health_risk"`
	TDEE               int                `json:"tdee"`
	DailyCalories      int                `json:"daily_calories"`
	WeeklyRateKG       float64            `json:"weekly_rate_kg"`
	Macros             Macros             `json:"macros"`
	WaterML            int                `json:"water_ml"`
	IdealWeightRange   *WeightRange       `json:"ideal_weight_range"`
	WaistHipRatio      *float64           `json:"waist_hip_ratio"`
	BodyFatEstimatePct *float64           `json:"body_fat_estimate_pct"`
	HeartRateZones     *HeartRateZones    `json:"heart_rate_zones"`
	VO2Max             *float64           `json:"vo2max"`
	HealthScore        int                `json:"health_score"`
	HealthGrade        string             `json:"health_grade"`
	Provenance         Provenance         `json:"provenance"`
	Validation         *ValidationVerdict `json:"validation"`
}

// Macros are daily gram targets plus the percentage split they came from.
type Macros struct {
	ProteinG   int     `json:"protein_g"`
	CarbsG     int     `json:"carbs_g"`
	FatG       int     `json:"fat_g"`
	ProteinPct float64 `json:"protein_pct"`
	CarbsPct   float64 `json:"carbs_pct"`
	FatPct     float64 `json:"fat_pct"`
	Split      string  `json:"split"`
}

// Calories returns the energy of the gram targets (4/4/9 kcal per gram).
func (m Macros) Calories() int {
	return m.ProteinG*4 + m.CarbsG*4 + m.FatG*9
}

type WeightRange struct {
	MinKG float64 `json:"min_kg"`
	MaxKG float64 `json:"max_kg"`
}

type HeartRateZone struct {
	Zone   int    `json:"zone"`
	Name   string `json:"name"`
	MinBPM int    `json:"min_bpm"`
	MaxBPM int    `json:"max_bpm"`
}

type HeartRateZones struct {
	MaxHR     int             `json:"max_hr"`
	RestingHR int             `json:"resting_hr"`
	Zones     []HeartRateZone `json:"zones"`
}

// Provenance records which formulas and context produced a result so clients
// can show it without recomputing.
type Provenance struct {
	BMRFormula      string   `json:"bmr_formula"`
	Accuracy        string   `json:"accuracy"`
	Confidence      int      `json:"confidence"`
	EthnicityClass  string   `json:"ethnicity_class"`
	ClimateClass    string   `json:"climate_class"`
	ActivityLevel   string   `json:"activity_level"`
	ProteinBoostPct float64  `json:"protein_boost_pct"`
	EstimatedFields []string `json:"estimated_fields"`
}

/* ─── Validation verdict ─────────────────────────────────────────────── */

type VerdictStatus string

const (
	StatusPassed   VerdictStatus = "passed"
	StatusWarnings VerdictStatus = "warnings"
	StatusBlocked  VerdictStatus = "blocked"
)

// IssueKind is the machine-readable kind of a validation error or warning.
type IssueKind string

const (
	IssueCaloriesBelowFloor        IssueKind = "calories_below_floor"
	IssueConflictingStates         IssueKind = "conflicting_physiological_states"
	IssueAggressiveDeficit         IssueKind = "aggressive_deficit"
	IssueBMIOutOfRange             IssueKind = "bmi_out_of_range"
	IssueMedicalCondition          IssueKind = "medical_condition"
	IssueUnrealisticTimeline       IssueKind = "unrealistic_timeline"
	IssuePregnancyCalorieShortfall IssueKind = "pregnancy_calorie_shortfall"
	IssueWeightLossDuringPregnancy IssueKind = "weight_loss_during_pregnancy"
	IssueTrimesterUnknown          IssueKind = "trimester_unknown"
	IssueMinorUser                 IssueKind = "minor_user"
	IssueMedicationReview          IssueKind = "medication_review"
	IssueHighStress                IssueKind = "high_stress"
)

type Issue struct {
	Kind    IssueKind `json:"kind"`
	Message string    `json:"message"`
	Current *float64  `json:"current,omitempty"`
	Target  *float64  `json:"target,omitempty"`
}

// RefeedSchedule lists the plan days (1-based) eaten at maintenance to break
// up a long continuous deficit.
type RefeedSchedule struct {
	IntervalDays         int   `json:"interval_days"`
	RefeedCalories       int   `json:"refeed_calories"`
	DeficitDayCalories   int   `json:"deficit_day_calories"`
	AverageDailyCalories int   `json:"average_daily_calories"`
	Weeks                int   `json:"weeks"`
	Days                 []int `json:"days"`
}

type MedicalAdjustment struct {
	Condition            string    `json:"condition"`
	CalorieAdjustmentPct float64   `json:"calorie_adjustment_pct"`
	IntensityCap         Intensity `json:"intensity_cap,omitempty"`
	Note                 string    `json:"note"`
}

type ValidationVerdict struct {
	Status             VerdictStatus       `json:"status"`
	Errors             []Issue             `json:"errors"`
	Warnings           []Issue             `json:"warnings"`
	RefeedSchedule     *RefeedSchedule     `json:"refeed_schedule"`
	MedicalAdjustments []MedicalAdjustment `json:"medical_adjustments"`
}

// Blocked reports whether the plan must not be persisted.
func (v ValidationVerdict) Blocked() bool {
	return v.Status == StatusBlocked
}

// HasIssue reports whether an error or warning of the given kind is present.
func (v ValidationVerdict) HasIssue(kind IssueKind) bool {
	for _, is := range v.Errors {
		if is.Kind == kind {
			return true
		}
	}
	for _, is := range v.Warnings {
		if is.Kind == kind {
			return true
		}
	}
	return false
}
