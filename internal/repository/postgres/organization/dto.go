package organization

type UpdateRequest struct {
	ID               int      `json:"id" form:"id"`
	Name             *string  `json:"name" form:"name"`
	Latitude         *float64 `json:"latitude" form:"latitude"`
	Longitude        *float64 `json:"longitude" form:"longitude"`
	RadiusMeters     *float64 `json:"radius_meters" form:"radius_meters"`
	Timezone         *string  `json:"timezone" form:"timezone"`
	WorkStartTime    *string  `json:"work_start_time" form:"work_start_time"`
	WorkEndTime      *string  `json:"work_end_time" form:"work_end_time"`
	FullDayMinutes   *int     `json:"full_day_minutes" form:"full_day_minutes"`
	HalfDayMinutes   *int     `json:"half_day_minutes" form:"half_day_minutes"`
	LateGraceMinutes *int     `json:"late_grace_minutes" form:"late_grace_minutes"`
}
