// Package workingtime classifies a day ledger against a working policy.
// Everything here is a pure function of its inputs; callers persist or
// render the result.
package workingtime

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"presence/backend/internal/entity"
)

// Fallback thresholds applied when a policy leaves them unset.
const (
	DefaultFullDayMinutes   = 480
	DefaultHalfDayMinutes   = 240
	DefaultLateGraceMinutes = 0
)

// Result is the computed daily status.
type Result struct {
	TotalMinutes int    `json:"total_minutes"`
	Status       string `json:"status"`
	IsLate       bool   `json:"is_late"`
}

// ComputeStatus totals the day's sessions and classifies the status. An
// active session contributes its elapsed time against now so live dashboards
// see the running total.
func ComputeStatus(ledger entity.DayLedger, policy entity.WorkingPolicy, now time.Time) (Result, error) {
	location, err := loadLocation(policy.Timezone)
	if err != nil {
		return Result{}, err
	}

	total := 0
	for _, session := range ledger.Sessions {
		if session.IsActive {
			elapsed := now.Sub(session.CheckIn.Time)
			if elapsed > 0 {
				total += int(elapsed.Minutes())
			}
			continue
		}
		total += session.DurationMinutes
	}

	status, err := classify(ledger, policy, total, location)
	if err != nil {
		return Result{}, err
	}
	if ledger.ManualStatus != nil && *ledger.ManualStatus != "" {
		status = *ledger.ManualStatus
	}

	late, err := isLate(ledger, policy, location)
	if err != nil {
		return Result{}, err
	}

	return Result{TotalMinutes: total, Status: status, IsLate: late}, nil
}

func classify(ledger entity.DayLedger, policy entity.WorkingPolicy, total int, location *time.Location) (string, error) {
	fullDay := policy.FullDayMinutes
	if fullDay <= 0 {
		fullDay = DefaultFullDayMinutes
	}
	halfDay := policy.HalfDayMinutes
	if halfDay <= 0 {
		halfDay = DefaultHalfDayMinutes
	}

	switch {
	case total >= fullDay:
		return entity.StatusFullDay, nil
	case total >= halfDay:
		return entity.StatusHalfDay, nil
	case total > 0:
		return entity.StatusPresent, nil
	}

	day, err := time.ParseInLocation("2006-01-02", ledger.WorkDay, location)
	if err != nil {
		return "", errors.Wrap(err, "parsing work day")
	}

	if !scheduledWorkDay(policy, day) || holiday(policy, day) {
		// Not a scheduled working day: excluded from absence accounting.
		return entity.StatusOffDay, nil
	}
	return entity.StatusAbsent, nil
}

func isLate(ledger entity.DayLedger, policy entity.WorkingPolicy, location *time.Location) (bool, error) {
	if len(ledger.Sessions) == 0 {
		return false, nil
	}

	start, err := time.Parse("15:04", policy.WorkStartTime)
	if err != nil {
		return false, errors.Wrap(err, "parsing work start time")
	}

	grace := policy.LateGraceMinutes
	if grace < 0 {
		grace = DefaultLateGraceMinutes
	}
	deadline := start.Add(time.Duration(grace) * time.Minute)

	firstIn := ledger.Sessions[0].CheckIn.Time.In(location)
	arrival := firstIn.Hour()*60 + firstIn.Minute()

	return arrival > deadline.Hour()*60+deadline.Minute(), nil
}

// scheduledWorkDay checks the Monday-first weekly schedule.
func scheduledWorkDay(policy entity.WorkingPolicy, day time.Time) bool {
	index := (int(day.Weekday()) + 6) % 7
	return policy.WeeklySchedule[index]
}

// holiday matches custom holidays, either exact dates ("2006-01-02") or
// annually recurring month-day entries ("01-02").
func holiday(policy entity.WorkingPolicy, day time.Time) bool {
	exact := day.Format("2006-01-02")
	recurring := day.Format("01-02")

	for _, h := range policy.CustomHolidays {
		h = strings.TrimSpace(h)
		if h == exact || h == recurring {
			return true
		}
	}
	return false
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	location, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(err, "loading timezone %q", name)
	}
	return location, nil
}
