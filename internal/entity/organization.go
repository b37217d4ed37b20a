package entity

import (
	"github.com/uptrace/bun"
)

// Organization holds the registered location and the working-time defaults
// applied when a user has no policy of their own.
type Organization struct {
	bun.BaseModel `bun:"table:organization"`

	BasicEntity
	Name             string  `json:"name" bun:"name"`
	Latitude         float64 `json:"latitude" bun:"latitude"`
	Longitude        float64 `json:"longitude" bun:"longitude"`
	RadiusMeters     float64 `json:"radius_meters" bun:"radius_meters"`
	Timezone         string  `json:"timezone" bun:"timezone"`
	WorkStartTime    string  `json:"work_start_time" bun:"work_start_time"`
	WorkEndTime      string  `json:"work_end_time" bun:"work_end_time"`
	FullDayMinutes   int     `json:"full_day_minutes" bun:"full_day_minutes"`
	HalfDayMinutes   int     `json:"half_day_minutes" bun:"half_day_minutes"`
	LateGraceMinutes int     `json:"late_grace_minutes" bun:"late_grace_minutes"`
}
