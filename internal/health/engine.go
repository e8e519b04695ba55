package health

import (
	"errors"
	"math"
	"strings"

	"lg/fitai-go-api/internal/model"
)

// ErrInsufficientInput is wrapped by every InputError.
var ErrInsufficientInput = errors.New("insufficient input")

// InputError reports mandatory data the caller must re-prompt for. It is only
// returned when height and weight are both absent.
type InputError struct {
	Missing []string
}

func (e *InputError) Error() string {
	return "insufficient input: missing " + strings.Join(e.Missing, ", ")
}

func (e *InputError) Unwrap() error { return ErrInsufficientInput }

const (
	DefaultAge = 30
	MinAge     = 13
	MaxAge     = 120

	// referenceBMI fills in a missing weight at the known height.
	referenceBMI = 22.0

	confidenceLeanMass  = 95
	confidenceStandard  = 85
	confidenceEstimated = 20
	confidenceAgeGuess  = 10
	confidenceFloor     = 40
)

var referenceHeightCM = map[model.Gender]float64{
	model.GenderMale:   175,
	model.GenderFemale: 162,
}

const referenceHeightOtherCM = 168.5

func referenceHeight(g model.Gender) float64 {
	if h, ok := referenceHeightCM[g]; ok {
		return h
	}
	return referenceHeightOtherCM
}

func positive(p *float64) (float64, bool) {
	if p == nil || *p <= 0 {
		return 0, false
	}
	return *p, true
}

// Compute runs the full calculation pipeline over s. Optional inputs that are
// missing leave their outputs nil; a missing height or weight (but not both)
// is replaced by a reference value and listed in the provenance. The returned
// metrics carry no validation verdict.
func Compute(s model.Sections) (model.ComputedMetrics, error) {
	p, b, w := s.PersonalInfo, s.Body, s.Workout

	height, hasHeight := positive(b.HeightCM)
	weight, hasWeight := positive(b.CurrentWeightKG)
	if !hasHeight && !hasWeight {
		return model.ComputedMetrics{}, &InputError{Missing: []string{"height_cm", "current_weight_kg"}}
	}

	prov := model.Provenance{EstimatedFields: []string{}}
	penalty := 0

	if !hasHeight {
		height = referenceHeight(p.Gender)
		prov.EstimatedFields = append(prov.EstimatedFields, "height_cm")
		penalty += confidenceEstimated
	}
	if !hasWeight {
		m := height / 100
		weight = round1(referenceBMI * m * m)
		prov.EstimatedFields = append(prov.EstimatedFields, "current_weight_kg")
		penalty += confidenceEstimated
	}

	age := p.Age
	if age < MinAge || age > MaxAge {
		age = DefaultAge
		prov.EstimatedFields = append(prov.EstimatedFields, "age")
		penalty += confidenceAgeGuess
	}

	ctx := DetectContext(p.Country, s.Diet.DietType)
	level := ResolveActivityLevel(p, w)

	bmr, formula, accuracy := SelectBMR(weight, height, age, p.Gender, b.BodyFatPct)
	exercise := ExerciseCaloriesPerDay(weight, w.Intensity, w.SessionMinutes, w.WorkoutsPerWeek)
	tdee := TDEE(bmr, level, exercise, ctx.Climate)

	rate, ok := WeeklyRateFromBody(b)
	if !ok && w.WeeklyWeightLossGoalKG != nil {
		rate = *w.WeeklyWeightLossGoalKG
	}
	if b.PregnancyStatus || b.BreastfeedingStatus {
		rate = 0
	}
	daily := int(math.Round(DailyCalorieTarget(tdee, rate, b)))

	split := SelectMacroSplit(s.Diet.Readiness, w, ctx.ProteinBoostPct)

	out := model.ComputedMetrics{
		BMR:           int(math.Round(bmr)),
		TDEE:          int(math.Round(tdee)),
		DailyCalories: daily,
		WeeklyRateKG:  rate,
		Macros:        MacroGrams(daily, split),
		WaterML:       WaterIntakeML(weight, ctx.Climate, w.SessionMinutes, w.WorkoutsPerWeek),
	}

	if hasHeight && hasWeight {
		bmi := round1(BMI(weight, height))
		out.BMI = &bmi
		out.BMICategory, out.BMIHealthRisk = ClassifyBMI(bmi, ctx.Ethnicity)
		est := BodyFatDeurenberg(bmi, age, p.Gender)
		out.BodyFatEstimatePct = &est
	}
	if hasHeight {
		r := IdealWeightRange(height, ctx.Ethnicity)
		out.IdealWeightRange = &r
	}
	if waist, ok := positive(b.WaistCM); ok {
		if hip, ok := positive(b.HipCM); ok {
			whr := WaistHipRatio(waist, hip)
			out.WaistHipRatio = &whr
		}
	}

	out.HeartRateZones = HeartRateZones(age, b.RestingHeartRate)
	out.VO2Max = VO2Max(age, b.RestingHeartRate)
	out.HealthScore, out.HealthGrade = HealthScore(s, out.BMICategory, level)

	confidence := confidenceStandard
	if formula == FormulaKatchMcArdle {
		confidence = confidenceLeanMass
	}
	confidence -= penalty
	if confidence < confidenceFloor {
		confidence = confidenceFloor
	}

	prov.BMRFormula = string(formula)
	prov.Accuracy = accuracy
	prov.Confidence = confidence
	prov.EthnicityClass = string(ctx.Ethnicity)
	prov.ClimateClass = string(ctx.Climate)
	prov.ActivityLevel = string(level)
	prov.ProteinBoostPct = ctx.ProteinBoostPct
	out.Provenance = prov

	return out, nil
}
