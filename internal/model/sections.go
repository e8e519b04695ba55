// Package model holds the canonical schema shared by the calculation engine,
// the validation engine, the onboarding tracker and the sync coordinator.
//
// Section structs serialize every field (no omitempty). The sync merge treats
// any key missing from a local document as a remote-only extra.
package model

/* ─── Enums ──────────────────────────────────────────────────────────── */

type Gender string

const (
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderOther       Gender = "other"
	GenderUnspecified Gender = "prefer_not_to_say"
)

// Occupation drives the default activity multiplier.
type Occupation string

const (
	OccupationDeskJob        Occupation = "desk_job"
	OccupationLightActive    Occupation = "light_active"
	OccupationModerateActive Occupation = "moderate_active"
	OccupationHeavyLabor     Occupation = "heavy_labor"
	OccupationVeryActive     Occupation = "very_active"
)

type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "very_active"
)

type StressLevel string

const (
	StressLow      StressLevel = "low"
	StressModerate StressLevel = "moderate"
	StressHigh     StressLevel = "high"
)

type DietType string

const (
	DietOmnivore    DietType = "omnivore"
	DietVegetarian  DietType = "vegetarian"
	DietVegan       DietType = "vegan"
	DietPescatarian DietType = "pescatarian"
)

type WorkoutLocation string

const (
	LocationHome    WorkoutLocation = "home"
	LocationGym     WorkoutLocation = "gym"
	LocationOutdoor WorkoutLocation = "outdoor"
	LocationBoth    WorkoutLocation = "both"
)

type Intensity string

const (
	IntensityBeginner     Intensity = "beginner"
	IntensityIntermediate Intensity = "intermediate"
	IntensityAdvanced     Intensity = "advanced"
)

type Goal string

const (
	GoalWeightLoss  Goal = "weight_loss"
	GoalMuscleGain  Goal = "muscle_gain"
	GoalMaintenance Goal = "maintenance"
	GoalEndurance   Goal = "endurance"
	GoalStrength    Goal = "strength"
	GoalFlexibility Goal = "flexibility"
)

/* ─── Sections ───────────────────────────────────────────────────────── */

// PersonalInfo is the first onboarding section and the critical sync entity.
// WakeTime and SleepTime are "HH:MM" (24h).
type PersonalInfo struct {
	Name       string     `json:"name"`
	Age        int        `json:"age"`
	Gender     Gender     `json:"gender"`
	Country    string     `json:"country"`
	State      string     `json:"state"`
	WakeTime   string     `json:"wake_time"`
	SleepTime  string     `json:"sleep_time"`
	Occupation Occupation `json:"occupation_type"`
}

// BodyAnalysis holds biometric input. Nullable numeric fields use pointers so
// "not provided" is distinct from zero.
type BodyAnalysis struct {
	HeightCM            *float64    `json:"height_cm"`
	CurrentWeightKG     *float64    `json:"current_weight_kg"`
	TargetWeightKG      *float64    `json:"target_weight_kg"`
	TargetTimelineWeeks *int        `json:"target_timeline_weeks"`
	BodyFatPct          *float64    `json:"body_fat_percentage"`
	WaistCM             *float64    `json:"waist_cm"`
	HipCM               *float64    `json:"hip_cm"`
	ChestCM             *float64    `json:"chest_cm"`
	RestingHeartRate    *int        `json:"resting_heart_rate"`
	MedicalConditions   []string    `json:"medical_conditions"`
	Medications         []string    `json:"medications"`
	PhysicalLimitations []string    `json:"physical_limitations"`
	PregnancyStatus     bool        `json:"pregnancy_status"`
	PregnancyTrimester  int         `json:"pregnancy_trimester"`
	BreastfeedingStatus bool        `json:"breastfeeding_status"`
	StressLevel         StressLevel `json:"stress_level"`
}

// DietReadiness flags select a macro split when set (keto > high-protein > low-carb).
type DietReadiness struct {
	Keto                bool `json:"keto_ready"`
	IntermittentFasting bool `json:"intermittent_fasting_ready"`
	Paleo               bool `json:"paleo_ready"`
	Mediterranean       bool `json:"mediterranean_ready"`
	LowCarb             bool `json:"low_carb_ready"`
	HighProtein         bool `json:"high_protein_ready"`
}

type MealsEnabled struct {
	Breakfast bool `json:"breakfast_enabled"`
	Lunch     bool `json:"lunch_enabled"`
	Dinner    bool `json:"dinner_enabled"`
	Snacks    bool `json:"snacks_enabled"`
}

// Any reports whether at least one meal is enabled.
func (m MealsEnabled) Any() bool {
	return m.Breakfast || m.Lunch || m.Dinner || m.Snacks
}

type CookingPreferences struct {
	SkillLevel     string `json:"cooking_skill_level"`
	MaxPrepMinutes int    `json:"max_prep_time_minutes"`
	BudgetLevel    string `json:"budget_level"`
}

// HealthHabits are score signals only, never hard constraints.
type HealthHabits struct {
	DrinksEnoughWater      bool `json:"drinks_enough_water"`
	LimitsSugaryDrinks     bool `json:"limits_sugary_drinks"`
	EatsRegularMeals       bool `json:"eats_regular_meals"`
	AvoidsLateNightEating  bool `json:"avoids_late_night_eating"`
	ControlsPortionSizes   bool `json:"controls_portion_sizes"`
	ReadsNutritionLabels   bool `json:"reads_nutrition_labels"`
	EatsProcessedFoods     bool `json:"eats_processed_foods"`
	EatsFruitsVeggiesDaily bool `json:"eats_5_servings_fruits_veggies"`
	LimitsRefinedSugar     bool `json:"limits_refined_sugar"`
	IncludesHealthyFats    bool `json:"includes_healthy_fats"`
	DrinksAlcohol          bool `json:"drinks_alcohol"`
	SmokesTobacco          bool `json:"smokes_tobacco"`
	DrinksCoffee           bool `json:"drinks_coffee"`
	TakesSupplements       bool `json:"takes_supplements"`
}

type DietPreferences struct {
	DietType     DietType           `json:"diet_type"`
	Allergies    []string           `json:"allergies"`
	Restrictions []string           `json:"restrictions"`
	Readiness    DietReadiness      `json:"readiness"`
	Meals        MealsEnabled       `json:"meals"`
	Cooking      CookingPreferences `json:"cooking"`
	Habits       HealthHabits       `json:"habits"`
}

// WorkoutPreferences. ActivityLevel is derived from PersonalInfo.Occupation
// unless ActivityLevelOverride is set; WeeklyWeightLossGoalKG is derived from
// BodyAnalysis when current/target weight and timeline are all present, and
// WeeklyGoalDerived marks a goal that derivation owns.
type WorkoutPreferences struct {
	Location               WorkoutLocation `json:"location"`
	Equipment              []string        `json:"equipment"`
	SessionMinutes         int             `json:"time_preference"`
	WorkoutsPerWeek        int             `json:"workout_frequency_per_week"`
	Intensity              Intensity       `json:"intensity"`
	PrimaryGoals           []Goal          `json:"primary_goals"`
	ActivityLevel          ActivityLevel   `json:"activity_level"`
	ActivityLevelOverride  bool            `json:"activity_level_override"`
	ExperienceYears        int             `json:"workout_experience_years"`
	CanDoPushups           int             `json:"can_do_pushups"`
	CanRunMinutes          int             `json:"can_run_minutes"`
	FlexibilityLevel       string          `json:"flexibility_level"`
	WeeklyWeightLossGoalKG *float64        `json:"weekly_weight_loss_goal"`
	WeeklyGoalDerived      bool            `json:"weekly_weight_loss_goal_derived"`
}

// HasGoal reports whether g is among the primary goals.
func (w WorkoutPreferences) HasGoal(g Goal) bool {
	for _, pg := range w.PrimaryGoals {
		if pg == g {
			return true
		}
	}
	return false
}

// Sections is the full onboarding input: the four user-edited sections.
type Sections struct {
	PersonalInfo PersonalInfo       `json:"personal_info"`
	Body         BodyAnalysis       `json:"body_analysis"`
	Diet         DietPreferences    `json:"diet_preferences"`
	Workout      WorkoutPreferences `json:"workout_preferences"`
}
