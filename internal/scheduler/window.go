package scheduler

import (
	"fmt"
	"strings"
	"time"

	"sneaker-arb-alerts/internal/storage"
)

// RuleDue reports whether a rule's cadence and active window both permit a
// scan at now. Rules without a window are always eligible once the interval
// has elapsed. Window boundaries are inclusive; a window whose start is
// after its end spans midnight.
func RuleDue(rule storage.AlertRule, now time.Time) (bool, error) {
	if !rule.Active {
		return false, nil
	}

	if rule.LastScannedAt != nil {
		next := rule.LastScannedAt.Add(time.Duration(rule.IntervalMinutes) * time.Minute)
		if now.Before(next) {
			return false, nil
		}
	}

	return inActiveWindow(rule, now)
}

func inActiveWindow(rule storage.AlertRule, now time.Time) (bool, error) {
	tz := rule.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return false, fmt.Errorf("load rule timezone %q: %w", tz, err)
	}
	local := now.In(loc)

	if len(rule.ActiveDays) > 0 {
		day := strings.ToLower(local.Weekday().String())
		found := false
		for _, allowed := range rule.ActiveDays {
			if strings.EqualFold(allowed, day) {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}

	if rule.ActiveHoursStart == "" {
		return true, nil
	}

	start, err := storage.ParseDayTime(rule.ActiveHoursStart)
	if err != nil {
		return false, fmt.Errorf("parse active_hours_start: %w", err)
	}
	end, err := storage.ParseDayTime(rule.ActiveHoursEnd)
	if err != nil {
		return false, fmt.Errorf("parse active_hours_end: %w", err)
	}

	minute := local.Hour()*60 + local.Minute()
	if start.Minutes() <= end.Minutes() {
		return start.Minutes() <= minute && minute <= end.Minutes(), nil
	}
	// Window spans midnight.
	return minute >= start.Minutes() || minute <= end.Minutes(), nil
}
