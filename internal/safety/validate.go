// Package safety evaluates a computed plan against fixed safety rules and
// produces a serializable verdict.
package safety

import (
	"fmt"
	"math"
	"strings"

	"lg/fitai-go-api/internal/health"
	"lg/fitai-go-api/internal/model"
)

// CalorieFloor is the absolute minimum daily target. Nothing bypasses it.
const CalorieFloor = 1200

const (
	maxSafeLossKG     = 1.0
	maxSafeLossPct    = 0.01
	maxSafeGainKG     = 0.5
	adultAge          = 18
	medicationWarning = "Medications can change appetite and energy expenditure; review the plan with your prescriber"
)

func fl(v float64) *float64 { return &v }

type evaluation struct {
	v model.ValidationVerdict
}

func (e *evaluation) block(kind model.IssueKind, msg string, current, target *float64) {
	// first blocking rule wins
	if len(e.v.Errors) > 0 {
		return
	}
	e.v.Errors = append(e.v.Errors, model.Issue{Kind: kind, Message: msg, Current: current, Target: target})
}

func (e *evaluation) warn(kind model.IssueKind, msg string, current, target *float64) {
	e.v.Warnings = append(e.v.Warnings, model.Issue{Kind: kind, Message: msg, Current: current, Target: target})
}

// Evaluate checks the raw sections and their computed metrics. Blocking rules
// are checked in priority order and only the first one is recorded; every
// non-blocking issue is accumulated as a warning.
func Evaluate(s model.Sections, m model.ComputedMetrics) model.ValidationVerdict {
	e := &evaluation{v: model.ValidationVerdict{
		Errors:             []model.Issue{},
		Warnings:           []model.Issue{},
		MedicalAdjustments: []model.MedicalAdjustment{},
	}}
	b := s.Body

	if m.DailyCalories < CalorieFloor {
		e.block(model.IssueCaloriesBelowFloor,
			fmt.Sprintf("Daily target of %d kcal is below the %d kcal safety floor", m.DailyCalories, CalorieFloor),
			fl(float64(m.DailyCalories)), fl(CalorieFloor))
	}

	if b.PregnancyStatus && b.BreastfeedingStatus {
		e.block(model.IssueConflictingStates,
			"Pregnancy and breastfeeding are both set; confirm which one applies", nil, nil)
	}

	deficit := DeficitPct(m.TDEE, m.DailyCalories)
	if m.DailyCalories >= CalorieFloor && deficit > SafeDeficitPct {
		weeks := 0
		if b.TargetTimelineWeeks != nil {
			weeks = *b.TargetTimelineWeeks
		}
		e.v.RefeedSchedule = BuildRefeedSchedule(m.TDEE, m.DailyCalories, weeks)
		e.warn(model.IssueAggressiveDeficit,
			fmt.Sprintf("A %.0f%% deficit exceeds the %.0f%% continuous limit; maintenance refeed days are scheduled every %d days",
				deficit*100, SafeDeficitPct*100, e.v.RefeedSchedule.IntervalDays),
			fl(round3(deficit)), fl(SafeDeficitPct))
	}

	checkBMI(e, m)
	checkMedical(e, b)
	checkTimeline(e, b)
	checkPregnancy(e, b, m)

	if age := s.PersonalInfo.Age; age > 0 && age < adultAge && deficit > 0 {
		e.warn(model.IssueMinorUser,
			"Calorie deficits for users under 18 should be supervised by a healthcare provider",
			fl(float64(age)), fl(adultAge))
	}
	if hasAny(b.Medications) {
		e.warn(model.IssueMedicationReview, medicationWarning, nil, nil)
	}
	if b.StressLevel == model.StressHigh && deficit > 0 {
		e.warn(model.IssueHighStress,
			"High stress combined with a calorie deficit can impair recovery; consider a smaller deficit", nil, nil)
	}

	switch {
	case len(e.v.Errors) > 0:
		e.v.Status = model.StatusBlocked
	case len(e.v.Warnings) > 0:
		e.v.Status = model.StatusWarnings
	default:
		e.v.Status = model.StatusPassed
	}
	return e.v
}

func checkBMI(e *evaluation, m model.ComputedMetrics) {
	if m.BMI == nil {
		return
	}
	lo, hi := health.HealthyBMIRange(health.EthnicityClass(m.Provenance.EthnicityClass))
	bmi := *m.BMI
	switch {
	case bmi < lo:
		e.warn(model.IssueBMIOutOfRange,
			fmt.Sprintf("BMI %.1f is below the healthy range (%.1f–%.1f)", bmi, lo, hi), fl(bmi), fl(lo))
	case bmi >= hi:
		e.warn(model.IssueBMIOutOfRange,
			fmt.Sprintf("BMI %.1f is above the healthy range (%.1f–%.1f)", bmi, lo, hi), fl(bmi), fl(hi))
	}
}

func checkMedical(e *evaluation, b model.BodyAnalysis) {
	for _, adj := range MedicalAdjustments(b.MedicalConditions) {
		e.v.MedicalAdjustments = append(e.v.MedicalAdjustments, adj)
		e.warn(model.IssueMedicalCondition,
			fmt.Sprintf("%s: %s", strings.ReplaceAll(adj.Condition, "_", " "), adj.Note), nil, nil)
	}
}

// checkTimeline compares the implied weekly change with the safe rate: loss
// is capped at 1 kg or 1% of body weight, whichever is lower.
func checkTimeline(e *evaluation, b model.BodyAnalysis) {
	rate, ok := health.WeeklyRateFromBody(b)
	if !ok || b.PregnancyStatus || b.BreastfeedingStatus {
		return
	}
	switch {
	case rate > 0:
		weight := *b.CurrentWeightKG
		safe := math.Min(maxSafeLossKG, maxSafeLossPct*weight)
		if rate > safe {
			e.warn(model.IssueUnrealisticTimeline,
				fmt.Sprintf("Losing %.2f kg per week exceeds the safe rate of %.2f kg", rate, safe),
				fl(rate), fl(math.Round(safe*100)/100))
		}
	case rate < 0:
		if -rate > maxSafeGainKG {
			e.warn(model.IssueUnrealisticTimeline,
				fmt.Sprintf("Gaining %.2f kg per week exceeds the safe rate of %.2f kg", -rate, maxSafeGainKG),
				fl(-rate), fl(maxSafeGainKG))
		}
	}
}

func checkPregnancy(e *evaluation, b model.BodyAnalysis, m model.ComputedMetrics) {
	if !b.PregnancyStatus && !b.BreastfeedingStatus {
		return
	}
	if b.PregnancyStatus && (b.PregnancyTrimester < 1 || b.PregnancyTrimester > 3) {
		e.warn(model.IssueTrimesterUnknown,
			"Trimester is not set; the first-trimester requirement was assumed", nil, nil)
	}

	bonus, reason := health.PhysiologicalBonus(b)
	if need := m.TDEE + bonus; m.DailyCalories < need {
		e.warn(model.IssuePregnancyCalorieShortfall,
			fmt.Sprintf("Daily target is %d kcal short of the %s requirement", need-m.DailyCalories, strings.ReplaceAll(reason, "_", " ")),
			fl(float64(m.DailyCalories)), fl(float64(need)))
	}

	if b.PregnancyStatus && b.CurrentWeightKG != nil && b.TargetWeightKG != nil && *b.TargetWeightKG < *b.CurrentWeightKG {
		e.warn(model.IssueWeightLossDuringPregnancy,
			"Weight loss is not recommended during pregnancy; the goal weight was not applied",
			fl(*b.CurrentWeightKG), fl(*b.TargetWeightKG))
	}
}

func hasAny(vals []string) bool {
	for _, v := range vals {
		if t := strings.ToLower(strings.TrimSpace(v)); t != "" && t != "none" {
			return true
		}
	}
	return false
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
