package health

import (
	"math"

	"lg/fitai-go-api/internal/model"
)

/* ─── BMR ────────────────────────────────────────────────────────────── */

// BMRFormula names the formula a BMR figure came from.
type BMRFormula string

const (
	FormulaHarrisBenedict BMRFormula = "harris_benedict_revised"
	FormulaKatchMcArdle   BMRFormula = "katch_mcardle"
)

// Accuracy bands reported with each formula.
const (
	AccuracyStandard = "±10%"
	AccuracyLeanMass = "±5%"
)

type hbConstants struct {
	base, weight, height, age float64
}

// Revised Harris-Benedict (Roza & Shizgal, 1984).
var (
	hbMale   = hbConstants{base: 88.362, weight: 13.397, height: 4.799, age: 5.677}
	hbFemale = hbConstants{base: 447.593, weight: 9.247, height: 3.098, age: 4.330}
)

func (c hbConstants) bmr(weightKG, heightCM float64, age int) float64 {
	return c.base + c.weight*weightKG + c.height*heightCM - c.age*float64(age)
}

// BMRStandard returns the revised Harris-Benedict BMR. Genders other than
// male/female average the two constant sets instead of picking one.
func BMRStandard(weightKG, heightCM float64, age int, gender model.Gender) float64 {
	switch gender {
	case model.GenderMale:
		return hbMale.bmr(weightKG, heightCM, age)
	case model.GenderFemale:
		return hbFemale.bmr(weightKG, heightCM, age)
	}
	avg := hbConstants{
		base:   (hbMale.base + hbFemale.base) / 2,
		weight: (hbMale.weight + hbFemale.weight) / 2,
		height: (hbMale.height + hbFemale.height) / 2,
		age:    (hbMale.age + hbFemale.age) / 2,
	}
	return avg.bmr(weightKG, heightCM, age)
}

// BMRLeanMass returns the Katch-McArdle BMR from total weight and body-fat %.
func BMRLeanMass(weightKG, bodyFatPct float64) float64 {
	lbm := weightKG * (1 - bodyFatPct/100)
	return 370 + 21.6*lbm
}

// SelectBMR picks the formula by data availability: lean-mass when body-fat %
// is known, the standard formula otherwise. There is no third path.
func SelectBMR(weightKG, heightCM float64, age int, gender model.Gender, bodyFatPct *float64) (float64, BMRFormula, string) {
	if bodyFatPct != nil {
		return BMRLeanMass(weightKG, *bodyFatPct), FormulaKatchMcArdle, AccuracyLeanMass
	}
	return BMRStandard(weightKG, heightCM, age, gender), FormulaHarrisBenedict, AccuracyStandard
}

/* ─── BMI ────────────────────────────────────────────────────────────── */

const (
	BMIUnderweight = "Underweight"
	BMINormal      = "Normal"
	BMIOverweight  = "Overweight"
	BMIObese       = "Obese"
)

// bmiCutoffs are the upper bounds of underweight, normal and overweight.
type bmiCutoffs struct {
	underweight, normal, overweight float64
}

var bmiThresholds = map[EthnicityClass]bmiCutoffs{
	EthnicityStandard: {18.5, 25, 30},
	EthnicityAsian:    {18.5, 23, 27.5},
	EthnicityPacific:  {18.5, 26, 32},
}

func cutoffsFor(class EthnicityClass) bmiCutoffs {
	if c, ok := bmiThresholds[class]; ok {
		return c
	}
	return bmiThresholds[EthnicityStandard]
}

// BMI returns weight / height(m)².
func BMI(weightKG, heightCM float64) float64 {
	m := heightCM / 100
	return weightKG / (m * m)
}

// ClassifyBMI returns the category and health risk for bmi under the given
// ethnicity class. Categories never decrease as bmi increases.
func ClassifyBMI(bmi float64, class EthnicityClass) (category, risk string) {
	c := cutoffsFor(class)
	switch {
	case bmi < c.underweight:
		return BMIUnderweight, "moderate"
	case bmi < c.normal:
		return BMINormal, "low"
	case bmi < c.overweight:
		return BMIOverweight, "elevated"
	default:
		return BMIObese, "high"
	}
}

// HealthyBMIRange returns the [low, high) normal band for class.
func HealthyBMIRange(class EthnicityClass) (float64, float64) {
	c := cutoffsFor(class)
	return c.underweight, c.normal
}

// IdealWeightRange maps the healthy BMI band onto the given height.
func IdealWeightRange(heightCM float64, class EthnicityClass) model.WeightRange {
	lo, hi := HealthyBMIRange(class)
	m := heightCM / 100
	return model.WeightRange{MinKG: round1(lo * m * m), MaxKG: round1(hi * m * m)}
}

/* ─── Activity & TDEE ────────────────────────────────────────────────── */

// activityMultipliers maps activity level to its BMR multiplier. This is the
// single source of truth for valid activity levels.
var activityMultipliers = map[model.ActivityLevel]float64{
	model.ActivitySedentary:  1.2,
	model.ActivityLight:      1.375,
	model.ActivityModerate:   1.55,
	model.ActivityActive:     1.725,
	model.ActivityVeryActive: 1.9,
}

// ActivityMultiplier returns the multiplier for level and whether it is known.
func ActivityMultiplier(level model.ActivityLevel) (float64, bool) {
	m, ok := activityMultipliers[level]
	return m, ok
}

var occupationActivity = map[model.Occupation]model.ActivityLevel{
	model.OccupationDeskJob:        model.ActivitySedentary,
	model.OccupationLightActive:    model.ActivityLight,
	model.OccupationModerateActive: model.ActivityModerate,
	model.OccupationHeavyLabor:     model.ActivityActive,
	model.OccupationVeryActive:     model.ActivityVeryActive,
}

// OccupationActivityLevel returns the tier implied by occupation, or "" when
// the occupation is unknown.
func OccupationActivityLevel(o model.Occupation) model.ActivityLevel {
	return occupationActivity[o]
}

// ResolveActivityLevel honours a valid user override, otherwise derives the
// level from occupation, defaulting to sedentary.
func ResolveActivityLevel(p model.PersonalInfo, w model.WorkoutPreferences) model.ActivityLevel {
	if w.ActivityLevelOverride {
		if _, ok := activityMultipliers[w.ActivityLevel]; ok {
			return w.ActivityLevel
		}
	}
	if lvl := OccupationActivityLevel(p.Occupation); lvl != "" {
		return lvl
	}
	return model.ActivitySedentary
}

// metByIntensity is the session MET value per self-assessed intensity.
var metByIntensity = map[model.Intensity]float64{
	model.IntensityBeginner:     3.5,
	model.IntensityIntermediate: 5.0,
	model.IntensityAdvanced:     7.0,
}

// ExerciseCaloriesPerDay is MET × kg × session hours × sessions per week,
// averaged over seven days.
func ExerciseCaloriesPerDay(weightKG float64, intensity model.Intensity, sessionMinutes, perWeek int) float64 {
	met, ok := metByIntensity[intensity]
	if !ok || sessionMinutes <= 0 || perWeek <= 0 {
		return 0
	}
	return met * weightKG * (float64(sessionMinutes) / 60) * float64(perWeek) / 7
}

// TDEE sums the occupation term (BMR × multiplier) and the separately computed
// exercise term, then applies the climate modifier.
func TDEE(bmr float64, level model.ActivityLevel, exercisePerDay float64, climate ClimateClass) float64 {
	mult, ok := activityMultipliers[level]
	if !ok {
		mult = activityMultipliers[model.ActivitySedentary]
	}
	return (bmr*mult + exercisePerDay) * (1 + climateTDEEModifier[climate])
}

/* ─── Calories & goal rate ───────────────────────────────────────────── */

// KcalPerKG is the energy content assumed for one kilogram of body weight.
const KcalPerKG = 7700

// WeeklyRateFromBody derives the weekly loss (positive) or gain (negative) in
// kg from current/target weight and timeline. ok is false unless all three are
// present and the timeline is positive.
func WeeklyRateFromBody(b model.BodyAnalysis) (float64, bool) {
	if b.CurrentWeightKG == nil || b.TargetWeightKG == nil || b.TargetTimelineWeeks == nil || *b.TargetTimelineWeeks <= 0 {
		return 0, false
	}
	rate := (*b.CurrentWeightKG - *b.TargetWeightKG) / float64(*b.TargetTimelineWeeks)
	return math.Round(rate*100) / 100, true
}

// Pregnancy and breastfeeding calorie additions on top of TDEE.
const (
	TrimesterOneBonus   = 0
	TrimesterTwoBonus   = 340
	TrimesterThreeBonus = 452
	BreastfeedingBonus  = 500
)

// PhysiologicalBonus returns the additive calorie requirement for pregnancy or
// breastfeeding and a short reason. Breastfeeding takes precedence. An unknown
// trimester is treated as the first.
func PhysiologicalBonus(b model.BodyAnalysis) (int, string) {
	switch {
	case b.BreastfeedingStatus:
		return BreastfeedingBonus, "breastfeeding"
	case b.PregnancyStatus && b.PregnancyTrimester == 3:
		return TrimesterThreeBonus, "pregnancy_trimester_3"
	case b.PregnancyStatus && b.PregnancyTrimester == 2:
		return TrimesterTwoBonus, "pregnancy_trimester_2"
	case b.PregnancyStatus:
		return TrimesterOneBonus, "pregnancy_trimester_1"
	}
	return 0, ""
}

// DailyCalorieTarget applies the weekly rate to TDEE. Pregnancy and
// breastfeeding never take a deficit; they add their bonus instead.
func DailyCalorieTarget(tdee, weeklyRateKG float64, b model.BodyAnalysis) float64 {
	if b.PregnancyStatus || b.BreastfeedingStatus {
		bonus, _ := PhysiologicalBonus(b)
		return tdee + float64(bonus)
	}
	return tdee - weeklyRateKG*KcalPerKG/7
}

/* ─── Macros ─────────────────────────────────────────────────────────── */

// MacroSplit is a protein/carbs/fat percentage split summing to 1.
type MacroSplit struct {
	Name                string
	Protein, Carbs, Fat float64
}

var (
	splitDefault     = MacroSplit{Name: "balanced", Protein: 0.25, Carbs: 0.45, Fat: 0.30}
	splitMuscleGain  = MacroSplit{Name: "muscle_gain", Protein: 0.30, Carbs: 0.40, Fat: 0.30}
	splitKeto        = MacroSplit{Name: "keto", Protein: 0.20, Carbs: 0.05, Fat: 0.75}
	splitHighProtein = MacroSplit{Name: "high_protein", Protein: 0.35, Carbs: 0.35, Fat: 0.30}
	splitLowCarb     = MacroSplit{Name: "low_carb", Protein: 0.30, Carbs: 0.20, Fat: 0.50}
)

// SelectMacroSplit applies the priority rule: readiness flags (keto >
// high-protein > low-carb) override the goal-based split, then the diet
// protein boost moves share from carbs to protein.
func SelectMacroSplit(r model.DietReadiness, w model.WorkoutPreferences, proteinBoostPct float64) MacroSplit {
	var s MacroSplit
	switch {
	case r.Keto:
		s = splitKeto
	case r.HighProtein:
		s = splitHighProtein
	case r.LowCarb:
		s = splitLowCarb
	case w.HasGoal(model.GoalMuscleGain):
		s = splitMuscleGain
	default:
		s = splitDefault
	}
	if proteinBoostPct > 0 {
		extra := s.Protein * proteinBoostPct
		if extra > s.Carbs {
			extra = s.Carbs
		}
		s.Protein += extra
		s.Carbs -= extra
	}
	return s
}

// MacroGrams converts a calorie target into gram targets. Protein and fat are
// rounded from their percentage share; carbs take the remaining calories so
// the 4/4/9 energy sum stays within 2 kcal of the target.
func MacroGrams(calories int, s MacroSplit) model.Macros {
	cal := float64(calories)
	protein := int(math.Round(cal * s.Protein / 4))
	fat := int(math.Round(cal * s.Fat / 9))
	carbs := int(math.Round((cal - float64(protein*4) - float64(fat*9)) / 4))
	if carbs < 0 {
		carbs = 0
	}
	return model.Macros{
		ProteinG:   protein,
		CarbsG:     carbs,
		FatG:       fat,
		ProteinPct: round1(s.Protein * 100),
		CarbsPct:   round1(s.Carbs * 100),
		FatPct:     round1(s.Fat * 100),
		Split:      s.Name,
	}
}

/* ─── Water ──────────────────────────────────────────────────────────── */

const (
	waterBaseMLPerKG       = 35
	waterPerExerciseHourML = 500
)

// WaterIntakeML is the base requirement plus the climate bonus plus exercise
// hours averaged per day, rounded to the nearest 50 ml.
func WaterIntakeML(weightKG float64, climate ClimateClass, sessionMinutes, perWeek int) int {
	ml := weightKG * (waterBaseMLPerKG + climateWaterBonusMLPerKG[climate])
	if sessionMinutes > 0 && perWeek > 0 {
		ml += waterPerExerciseHourML * (float64(sessionMinutes) / 60) * float64(perWeek) / 7
	}
	return int(math.Round(ml/50) * 50)
}

/* ─── Heart rate ─────────────────────────────────────────────────────── */

// MaxHeartRate uses the Tanaka estimate 208 − 0.7 × age.
func MaxHeartRate(age int) int {
	return int(math.Round(208 - 0.7*float64(age)))
}

var zoneBands = []struct {
	name   string
	lo, hi float64
}{
	{"recovery", 0.50, 0.60},
	{"aerobic_base", 0.60, 0.70},
	{"tempo", 0.70, 0.80},
	{"threshold", 0.80, 0.90},
	{"anaerobic", 0.90, 1.00},
}

// HeartRateZones computes Karvonen (heart-rate-reserve) zones. It returns nil
// when resting HR is unknown: zones are never estimated from age alone.
func HeartRateZones(age int, restingHR *int) *model.HeartRateZones {
	if restingHR == nil || *restingHR <= 0 {
		return nil
	}
	maxHR := MaxHeartRate(age)
	reserve := float64(maxHR - *restingHR)
	out := &model.HeartRateZones{MaxHR: maxHR, RestingHR: *restingHR}
	for i, b := range zoneBands {
		out.Zones = append(out.Zones, model.HeartRateZone{
			Zone:   i + 1,
			Name:   b.name,
			MinBPM: int(math.Round(float64(*restingHR) + reserve*b.lo)),
			MaxBPM: int(math.Round(float64(*restingHR) + reserve*b.hi)),
		})
	}
	return out
}

// VO2Max uses the Uth ratio estimate 15.3 × HRmax / HRrest. nil without resting HR.
func VO2Max(age int, restingHR *int) *float64 {
	if restingHR == nil || *restingHR <= 0 {
		return nil
	}
	v := round1(15.3 * float64(MaxHeartRate(age)) / float64(*restingHR))
	return &v
}

/* ─── Body composition ───────────────────────────────────────────────── */

// BodyFatDeurenberg estimates body-fat % from BMI, age and sex. It is reported
// on its own and never feeds BMR formula selection.
func BodyFatDeurenberg(bmi float64, age int, gender model.Gender) float64 {
	sex := 0.5
	switch gender {
	case model.GenderMale:
		sex = 1
	case model.GenderFemale:
		sex = 0
	}
	return round1(1.2*bmi + 0.23*float64(age) - 10.8*sex - 5.4)
}

// WaistHipRatio returns waist/hip to two decimals.
func WaistHipRatio(waistCM, hipCM float64) float64 {
	return math.Round(waistCM/hipCM*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
