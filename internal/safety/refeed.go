package safety

import (
	"math"

	"lg/fitai-go-api/internal/model"
)

const (
	// SafeDeficitPct is the largest deficit, as a share of TDEE, that runs
	// continuously without refeeds.
	SafeDeficitPct = 0.25

	steepDeficitPct     = 0.32
	refeedInterval      = 7
	steepRefeedInterval = 5

	DefaultPlanWeeks = 12
	MaxPlanWeeks     = 52
)

// DeficitPct returns (tdee - daily) / tdee, or 0 for a surplus or unknown TDEE.
func DeficitPct(tdee, daily int) float64 {
	if tdee <= 0 || daily >= tdee {
		return 0
	}
	return float64(tdee-daily) / float64(tdee)
}

// BuildRefeedSchedule inserts maintenance days into a deficit plan of the given
// length. Deeper deficits refeed more often. weeks outside 1..MaxPlanWeeks fall
// back to DefaultPlanWeeks or the cap.
func BuildRefeedSchedule(tdee, daily, weeks int) *model.RefeedSchedule {
	switch {
	case weeks <= 0:
		weeks = DefaultPlanWeeks
	case weeks > MaxPlanWeeks:
		weeks = MaxPlanWeeks
	}

	interval := refeedInterval
	if DeficitPct(tdee, daily) > steepDeficitPct {
		interval = steepRefeedInterval
	}

	total := weeks * 7
	days := make([]int, 0, total/interval)
	for d := interval; d <= total; d += interval {
		days = append(days, d)
	}

	sum := len(days)*tdee + (total-len(days))*daily
	return &model.RefeedSchedule{
		IntervalDays:         interval,
		RefeedCalories:       tdee,
		DeficitDayCalories:   daily,
		AverageDailyCalories: int(math.Round(float64(sum) / float64(total))),
		Weeks:                weeks,
		Days:                 days,
	}
}
