package organization

import (
	"net/http"

	"github.com/pkg/errors"

	"presence/backend/foundation/web"
	"presence/backend/internal/auth"
	"presence/backend/internal/repository/postgres"
	"presence/backend/internal/repository/postgres/organization"
)

type Controller struct {
	organization Organization
}

func NewController(organization Organization) *Controller {
	return &Controller{organization}
}

func (uc Controller) GetInfo(c *web.Context) error {
	claims, err := auth.GetClaims(c.Ctx)
	if err != nil {
		return c.RespondError(err)
	}

	response, err := uc.organization.GetById(c.Ctx, claims.OrganizationID)
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

func (uc Controller) UpdateColumns(c *web.Context) error {
	claims, err := auth.GetClaims(c.Ctx)
	if err != nil {
		return c.RespondError(err)
	}

	var request organization.UpdateRequest
	if err := c.BindFunc(&request); err != nil {
		return c.RespondError(err)
	}
	if request.ID == 0 {
		request.ID = claims.OrganizationID
	}

	if err := uc.organization.UpdateColumns(c.Ctx, request); err != nil {
		return c.RespondError(err)
	}

	return c.Respond(map[string]interface{}{
		"data":   "ok!",
		"status": true,
	}, http.StatusOK)
}
