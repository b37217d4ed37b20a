package entity

import (
	"github.com/uptrace/bun"
)

// WorkingPolicy is the per-user configuration the aggregator classifies
// against. Times are "15:04" strings in the policy timezone, matching how
// the organization stores its working window. WeeklySchedule runs Monday
// through Sunday.
type WorkingPolicy struct {
	bun.BaseModel `bun:"table:working_policies"`

	BasicEntity
	UserID           int      `json:"user_id" bun:"user_id"`
	WorkStartTime    string   `json:"work_start_time" bun:"work_start_time"`
	WorkEndTime      string   `json:"work_end_time" bun:"work_end_time"`
	Timezone         string   `json:"timezone" bun:"timezone"`
	WeeklySchedule   [7]bool  `json:"weekly_schedule" bun:"weekly_schedule,type:jsonb"`
	CustomHolidays   []string `json:"custom_holidays" bun:"custom_holidays,type:jsonb"`
	FullDayMinutes   int      `json:"full_day_minutes" bun:"full_day_minutes"`
	HalfDayMinutes   int      `json:"half_day_minutes" bun:"half_day_minutes"`
	LateGraceMinutes int      `json:"late_grace_minutes" bun:"late_grace_minutes"`
}

// DefaultPolicy builds a policy from the organization's working defaults for
// users without one of their own.
func DefaultPolicy(org Organization) WorkingPolicy {
	return WorkingPolicy{
		WorkStartTime:    org.WorkStartTime,
		WorkEndTime:      org.WorkEndTime,
		Timezone:         org.Timezone,
		WeeklySchedule:   [7]bool{true, true, true, true, true, false, false},
		FullDayMinutes:   org.FullDayMinutes,
		HalfDayMinutes:   org.HalfDayMinutes,
		LateGraceMinutes: org.LateGraceMinutes,
	}
}
