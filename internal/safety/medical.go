package safety

import (
	"sort"
	"strings"

	"lg/fitai-go-api/internal/model"
)

// conditionAdjustments is the documented adjustment per known condition. The
// calorie percentage is advisory; it is reported with the verdict and never
// rewrites the computed target.
var conditionAdjustments = map[string]model.MedicalAdjustment{
	"diabetes": {
		Note: "Keep carbohydrate intake consistent across meals and monitor glucose when changing intake",
	},
	"hypertension": {
		IntensityCap: model.IntensityIntermediate,
		Note:         "Limit sodium and avoid maximal-effort lifts",
	},
	"heart_disease": {
		IntensityCap: model.IntensityBeginner,
		Note:         "Keep sessions low intensity until cleared by a cardiologist",
	},
	"hypothyroidism": {
		CalorieAdjustmentPct: -5,
		Note:                 "Resting expenditure is often lower than predicted",
	},
	"pcos": {
		CalorieAdjustmentPct: -5,
		Note:                 "Favour lower-glycaemic carbohydrates",
	},
	"kidney_disease": {
		IntensityCap: model.IntensityIntermediate,
		Note:         "Protein target requires clinical review",
	},
	"arthritis": {
		IntensityCap: model.IntensityIntermediate,
		Note:         "Prefer low-impact exercise",
	},
	"asthma": {
		IntensityCap: model.IntensityIntermediate,
		Note:         "Warm up gradually and keep rescue medication at hand",
	},
	"back_pain": {
		IntensityCap: model.IntensityIntermediate,
		Note:         "Avoid loaded spinal flexion",
	},
}

var conditionAliases = map[string]string{
	"type_1_diabetes":        "diabetes",
	"type_2_diabetes":        "diabetes",
	"diabetes_type_1":        "diabetes",
	"diabetes_type_2":        "diabetes",
	"high_blood_pressure":    "hypertension",
	"heart_condition":        "heart_disease",
	"cardiovascular_disease": "heart_disease",
	"underactive_thyroid":    "hypothyroidism",
	"polycystic_ovary":       "pcos",
	"ckd":                    "kidney_disease",
	"chronic_kidney_disease": "kidney_disease",
	"lower_back_pain":        "back_pain",
	"osteoarthritis":         "arthritis",
}

// ConsultProviderNote is attached to conditions without a documented adjustment.
const ConsultProviderNote = "consult_provider: no documented adjustment, review the plan with a healthcare provider"

// NormalizeCondition lower-cases a condition and joins words with underscores,
// then resolves known aliases.
func NormalizeCondition(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	c = strings.NewReplacer("-", " ", "/", " ").Replace(c)
	c = strings.Join(strings.Fields(c), "_")
	if canon, ok := conditionAliases[c]; ok {
		return canon
	}
	return c
}

// MedicalAdjustments returns one adjustment per distinct condition, sorted by
// normalized name. The result is deterministic for a given set of inputs.
func MedicalAdjustments(conditions []string) []model.MedicalAdjustment {
	seen := make(map[string]bool, len(conditions))
	names := make([]string, 0, len(conditions))
	for _, c := range conditions {
		n := NormalizeCondition(c)
		if n == "" || n == "none" || seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]model.MedicalAdjustment, 0, len(names))
	for _, n := range names {
		adj, ok := conditionAdjustments[n]
		if !ok {
			adj = model.MedicalAdjustment{Note: ConsultProviderNote}
		}
		adj.Condition = n
		out = append(out, adj)
	}
	return out
}
