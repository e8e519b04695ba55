package health

import (
	"fmt"
	"strings"
	"time"

	"lg/fitai-go-api/internal/model"
)

const scoreBase = 60

// HealthScore rates lifestyle signals on a 0-100 scale and returns a letter
// grade. Habits only move the score; they never constrain the plan.
func HealthScore(s model.Sections, bmiCategory string, level model.ActivityLevel) (int, string) {
	score := scoreBase

	switch bmiCategory {
	case BMINormal:
		score += 10
	case BMIObese:
		score -= 10
	}

	h := s.Diet.Habits
	for _, good := range []bool{
		h.DrinksEnoughWater, h.LimitsSugaryDrinks, h.EatsRegularMeals,
		h.AvoidsLateNightEating, h.ControlsPortionSizes, h.ReadsNutritionLabels,
		h.EatsFruitsVeggiesDaily, h.LimitsRefinedSugar, h.IncludesHealthyFats,
	} {
		if good {
			score += 3
		}
	}
	if h.TakesSupplements {
		score++
	}
	if h.EatsProcessedFoods {
		score -= 4
	}
	if h.DrinksAlcohol {
		score -= 4
	}
	if h.SmokesTobacco {
		score -= 10
	}

	if hours, err := SleepHours(s.PersonalInfo.SleepTime, s.PersonalInfo.WakeTime); err == nil {
		switch {
		case hours >= 7 && hours <= 9:
			score += 8
		case hours >= 6 && hours <= 10:
			score += 3
		default:
			score -= 5
		}
	}

	switch s.Body.StressLevel {
	case model.StressLow:
		score += 5
	case model.StressHigh:
		score -= 5
	}

	switch level {
	case model.ActivitySedentary:
		score -= 5
	case model.ActivityModerate:
		score += 3
	case model.ActivityActive, model.ActivityVeryActive:
		score += 5
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, Grade(score)
}

// Grade maps a 0-100 score to a letter.
func Grade(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	}
	return "F"
}

// SleepHours returns the time between sleep and wake ("HH:MM"), wrapping past
// midnight.
func SleepHours(sleep, wake string) (float64, error) {
	s, err := clockMinutes(sleep)
	if err != nil {
		return 0, fmt.Errorf("sleep time: %w", err)
	}
	w, err := clockMinutes(wake)
	if err != nil {
		return 0, fmt.Errorf("wake time: %w", err)
	}
	d := w - s
	if d <= 0 {
		d += 24 * 60
	}
	return float64(d) / 60, nil
}

// ParseClock validates an "HH:MM" 24-hour time.
func ParseClock(v string) error {
	_, err := clockMinutes(v)
	return err
}

func clockMinutes(v string) (int, error) {
	v = strings.TrimSpace(v)
	t, err := time.Parse("15:04", v)
	if err != nil || len(v) != len("15:04") {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", v)
	}
	return t.Hour()*60 + t.Minute(), nil
}
