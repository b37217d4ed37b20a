package ledger

import "strconv"

type RangeFilter struct {
	UserID int
	From   string
	To     string
	Limit  *int
	Offset *int
}

type ManualMarkRequest struct {
	UserID int    `json:"user_id" form:"user_id"`
	Date   string `json:"date" form:"date"`
	Status string `json:"status" form:"status"`
}

// dayKey scopes the per-key mutex to one user's calendar day.
func dayKey(userID int, workDay string) string {
	return "ledger:" + workDay + ":" + strconv.Itoa(userID)
}
