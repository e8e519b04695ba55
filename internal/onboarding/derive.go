package onboarding

import (
	"slices"

	"lg/fitai-go-api/internal/health"
	"lg/fitai-go-api/internal/model"
)

// defaultEquipment is filled in for a location while the user has not picked
// equipment of their own.
var defaultEquipment = map[model.WorkoutLocation][]string{
	model.LocationHome:    {"bodyweight", "dumbbells", "resistance_bands", "yoga_mat"},
	model.LocationGym:     {"barbell", "bench", "cable_machine", "dumbbells", "machines"},
	model.LocationOutdoor: {"bodyweight", "pull_up_bar", "running_shoes"},
	model.LocationBoth:    {"barbell", "bench", "bodyweight", "cable_machine", "dumbbells", "machines", "resistance_bands", "yoga_mat"},
}

// derive recomputes the workout fields that follow from other sections and
// returns the names of the fields it changed:
//   - activity_level from occupation, unless the user overrode it;
//   - weekly_weight_loss_goal from current/target weight and timeline, cleared
//     when a derived goal loses its inputs;
//   - equipment from location, while the list is empty or still the stock
//     list of prevLocation.
func derive(s *model.Sections, prevLocation model.WorkoutLocation) []string {
	var changed []string
	w := &s.Workout

	if !w.ActivityLevelOverride {
		if lvl := health.ResolveActivityLevel(s.PersonalInfo, *w); s.PersonalInfo.Occupation != "" && w.ActivityLevel != lvl {
			w.ActivityLevel = lvl
			changed = append(changed, "activity_level")
		}
	}

	if rate, ok := health.WeeklyRateFromBody(s.Body); ok {
		if w.WeeklyWeightLossGoalKG == nil || *w.WeeklyWeightLossGoalKG != rate {
			w.WeeklyWeightLossGoalKG = &rate
			changed = append(changed, "weekly_weight_loss_goal")
		}
		w.WeeklyGoalDerived = true
	} else if w.WeeklyGoalDerived {
		w.WeeklyWeightLossGoalKG = nil
		w.WeeklyGoalDerived = false
		changed = append(changed, "weekly_weight_loss_goal")
	}

	stock := len(w.Equipment) == 0 || slices.Equal(w.Equipment, defaultEquipment[prevLocation])
	if eq, ok := defaultEquipment[w.Location]; ok && stock {
		if !slices.Equal(w.Equipment, eq) {
			w.Equipment = slices.Clone(eq)
			changed = append(changed, "equipment")
		}
	}
	return changed
}
