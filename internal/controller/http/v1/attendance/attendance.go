package attendance

import (
	"net/http"
	"reflect"
	"time"

	"github.com/Azure/go-autorest/autorest/date"
	"github.com/pkg/errors"

	"presence/backend/foundation/web"
	"presence/backend/internal/auth"
	"presence/backend/internal/entity"
	"presence/backend/internal/repository/postgres"
	"presence/backend/internal/repository/postgres/ledger"
	"presence/backend/internal/service/scan"
	"presence/backend/internal/service/workingtime"
)

type Controller struct {
	scanner      Scanner
	ledger       Ledger
	organization Organization
}

func NewController(scanner Scanner, ledger Ledger, organization Organization) *Controller {
	return &Controller{scanner, ledger, organization}
}

// Scan is the primary entry point: one QR scan in, a definitive
// accept/reject out.
func (uc Controller) Scan(c *web.Context) error {
	claims, err := auth.GetClaims(c.Ctx)
	if err != nil {
		return c.RespondError(err)
	}

	var request scan.Request
	if err := c.BindFunc(&request, "Code"); err != nil {
		return c.RespondError(err)
	}
	request.UserID = claims.UserId
	request.OrganizationID = claims.OrganizationID

	result, err := uc.scanner.Validate(c.Ctx, request)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data":   result,
		"status": true,
	}, http.StatusOK)
}

type dayStatusResponse struct {
	WorkDay  string                     `json:"work_day"`
	Sessions []entity.AttendanceSession `json:"sessions"`
	workingtime.Result
}

// GetDayStatus reports one day for dashboards. Employees see their own day,
// admins may pass user_id.
func (uc Controller) GetDayStatus(c *web.Context) error {
	claims, err := auth.GetClaims(c.Ctx)
	if err != nil {
		return c.RespondError(err)
	}

	userID := claims.UserId
	if id, ok := c.GetQueryFunc(reflect.Int, "user_id").(*int); ok && id != nil {
		if claims.Role != auth.RoleAdmin && claims.Role != auth.RoleDashboard {
			return c.RespondError(web.NewRequestError(errors.New("attempted action is not allowed"), http.StatusUnauthorized))
		}
		userID = *id
	}

	workDay := time.Now().Format("2006-01-02")
	if dateStr, ok := c.GetQueryFunc(reflect.String, "date").(*string); ok && dateStr != nil {
		parsed, err := date.ParseDate(*dateStr)
		if err != nil {
			return c.RespondError(web.NewRequestError(errors.Wrap(err, "date parse"), http.StatusBadRequest))
		}
		workDay = parsed.Format("2006-01-02")
	}
	if err := c.ValidQuery(); err != nil {
		return c.RespondError(err)
	}

	response, err := uc.dayStatus(c, claims.OrganizationID, userID, workDay)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data":   response,
		"status": true,
	}, http.StatusOK)
}

func (uc Controller) dayStatus(c *web.Context, organizationID, userID int, workDay string) (dayStatusResponse, error) {
	org, err := uc.organization.GetById(c.Ctx, organizationID)
	if err != nil {
		return dayStatusResponse{}, err
	}
	policy, err := uc.organization.PolicyFor(c.Ctx, userID, org)
	if err != nil {
		return dayStatusResponse{}, err
	}

	day, err := uc.ledger.GetDay(c.Ctx, userID, workDay)
	if errors.Is(err, postgres.ErrNotFound) {
		day = entity.DayLedger{UserID: userID, OrganizationID: organizationID, WorkDay: workDay}
	} else if err != nil {
		return dayStatusResponse{}, err
	}

	status, err := workingtime.ComputeStatus(day, policy, time.Now())
	if err != nil {
		return dayStatusResponse{}, err
	}

	sessions := day.Sessions
	if sessions == nil {
		sessions = []entity.AttendanceSession{}
	}

	return dayStatusResponse{WorkDay: workDay, Sessions: sessions, Result: status}, nil
}

// GetHistory lists day statuses over an inclusive date range.
func (uc Controller) GetHistory(c *web.Context) error {
	claims, err := auth.GetClaims(c.Ctx)
	if err != nil {
		return c.RespondError(err)
	}

	userID := claims.UserId
	if id, ok := c.GetQueryFunc(reflect.Int, "user_id").(*int); ok && id != nil {
		if claims.Role != auth.RoleAdmin && claims.Role != auth.RoleDashboard {
			return c.RespondError(web.NewRequestError(errors.New("attempted action is not allowed"), http.StatusUnauthorized))
		}
		userID = *id
	}

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return c.RespondError(web.NewRequestError(errors.New("from and to parameters are required"), http.StatusBadRequest))
	}
	from, err := date.ParseDate(fromStr)
	if err != nil {
		return c.RespondError(web.NewRequestError(errors.Wrap(err, "parsing from"), http.StatusBadRequest))
	}
	to, err := date.ParseDate(toStr)
	if err != nil {
		return c.RespondError(web.NewRequestError(errors.Wrap(err, "parsing to"), http.StatusBadRequest))
	}

	filter := ledger.RangeFilter{
		UserID: userID,
		From:   from.Format("2006-01-02"),
		To:     to.Format("2006-01-02"),
	}
	if limit, ok := c.GetQueryFunc(reflect.Int, "limit").(*int); ok {
		filter.Limit = limit
	}
	if offset, ok := c.GetQueryFunc(reflect.Int, "offset").(*int); ok {
		filter.Offset = offset
	}
	if err := c.ValidQuery(); err != nil {
		return c.RespondError(err)
	}

	days, err := uc.ledger.GetRange(c.Ctx, filter)
	if err != nil {
		return c.RespondError(err)
	}

	org, err := uc.organization.GetById(c.Ctx, claims.OrganizationID)
	if err != nil {
		return c.RespondError(err)
	}
	policy, err := uc.organization.PolicyFor(c.Ctx, userID, org)
	if err != nil {
		return c.RespondError(err)
	}

	now := time.Now()
	list := make([]dayStatusResponse, 0, len(days))
	for _, day := range days {
		status, err := workingtime.ComputeStatus(day, policy, now)
		if err != nil {
			return c.RespondError(err)
		}
		list = append(list, dayStatusResponse{WorkDay: day.WorkDay, Sessions: day.Sessions, Result: status})
	}

	return c.Respond(map[string]interface{}{
		"data": map[string]interface{}{
			"results": list,
			"count":   len(list),
		},
		"status": true,
	}, http.StatusOK)
}

// ManualMark lets an admin override a day's status. It writes through the
// same ledger contract as scans.
func (uc Controller) ManualMark(c *web.Context) error {
	var request ledger.ManualMarkRequest
	if err := c.BindFunc(&request, "UserID", "Date", "Status"); err != nil {
		return c.RespondError(err)
	}

	day, err := uc.ledger.SetManualStatus(c.Ctx, request)
	if err != nil {
		return c.RespondError(err)
	}

	claims, err := auth.GetClaims(c.Ctx)
	if err != nil {
		return c.RespondError(err)
	}

	response, err := uc.dayStatus(c, claims.OrganizationID, day.UserID, day.WorkDay)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data":   response,
		"status": true,
	}, http.StatusOK)
}
