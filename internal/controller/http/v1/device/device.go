package device

import (
	"net/http"
	"reflect"

	"github.com/pkg/errors"

	"presence/backend/foundation/web"
	"presence/backend/internal/auth"
	"presence/backend/internal/repository/postgres"
	"presence/backend/internal/repository/postgres/device"
)

type Controller struct {
	device Device
}

func NewController(device Device) *Controller {
	return &Controller{device}
}

// GetBinding shows the caller's registered device.
func (uc Controller) GetBinding(c *web.Context) error {
	claims, err := auth.GetClaims(c.Ctx)
	if err != nil {
		return c.RespondError(err)
	}

	binding, err := uc.device.GetBinding(c.Ctx, claims.UserId)
	if errors.Is(err, postgres.ErrNotFound) {
		return c.RespondError(web.NewRequestError(errors.New("no device bound"), http.StatusNotFound))
	}
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data":   binding,
		"status": true,
	}, http.StatusOK)
}

// FileChangeRequest lets a user ask to move to a new device after a
// DEVICE_NOT_AUTHORIZED rejection.
func (uc Controller) FileChangeRequest(c *web.Context) error {
	claims, err := auth.GetClaims(c.Ctx)
	if err != nil {
		return c.RespondError(err)
	}

	var request device.FileChangeRequest
	if err := c.BindFunc(&request, "Reason"); err != nil {
		return c.RespondError(err)
	}
	request.UserID = claims.UserId

	response, err := uc.device.FileChangeRequest(c.Ctx, request)
	if errors.Is(err, postgres.ErrDuplicateRequest) {
		return c.RespondError(web.NewRequestError(err, http.StatusConflict))
	}
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data":   response,
		"status": true,
	}, http.StatusOK)
}

// ResolveChangeRequest applies the admin decision on a pending request.
func (uc Controller) ResolveChangeRequest(c *web.Context) error {
	var request device.ResolveRequest
	if err := c.BindFunc(&request, "RequestID", "Decision"); err != nil {
		return c.RespondError(err)
	}

	response, err := uc.device.ResolveChangeRequest(c.Ctx, request)
	if errors.Is(err, postgres.ErrAlreadyResolved) {
		return c.RespondError(web.NewRequestError(err, http.StatusConflict))
	}
	if errors.Is(err, postgres.ErrNotFound) {
		return c.RespondError(web.NewRequestError(err, http.StatusNotFound))
	}
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data":   response,
		"status": true,
	}, http.StatusOK)
}

// ResetBinding clears a user's binding so their next scan auto-binds.
func (uc Controller) ResetBinding(c *web.Context) error {
	var request struct {
		UserID int `json:"user_id" form:"user_id"`
	}
	if err := c.BindFunc(&request, "UserID"); err != nil {
		return c.RespondError(err)
	}

	err := uc.device.ResetBinding(c.Ctx, request.UserID)
	if errors.Is(err, postgres.ErrNotFound) {
		return c.RespondError(web.NewRequestError(errors.New("no device bound"), http.StatusNotFound))
	}
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data":   "ok!",
		"status": true,
	}, http.StatusOK)
}

// GetChangeRequestDetail shows one request for the admin review screen.
func (uc Controller) GetChangeRequestDetail(c *web.Context) error {
	id := c.GetParam(reflect.Int, "id").(int)
	if err := c.ValidParam(); err != nil {
		return c.RespondError(err)
	}

	response, err := uc.device.GetChangeRequestById(c.Ctx, id)
	if errors.Is(err, postgres.ErrNotFound) {
		return c.RespondError(web.NewRequestError(err, http.StatusNotFound))
	}
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data":   response,
		"status": true,
	}, http.StatusOK)
}

// GetChangeRequests lists requests for the admin review screen.
func (uc Controller) GetChangeRequests(c *web.Context) error {
	var filter device.Filter

	if limit, ok := c.GetQueryFunc(reflect.Int, "limit").(*int); ok {
		filter.Limit = limit
	}
	if offset, ok := c.GetQueryFunc(reflect.Int, "offset").(*int); ok {
		filter.Offset = offset
	}
	if status, ok := c.GetQueryFunc(reflect.String, "status").(*string); ok {
		filter.Status = status
	}
	if err := c.ValidQuery(); err != nil {
		return c.RespondError(err)
	}

	list, err := uc.device.GetChangeRequests(c.Ctx, filter)
	if err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data": map[string]interface{}{
			"results": list,
			"count":   len(list),
		},
		"status": true,
	}, http.StatusOK)
}
