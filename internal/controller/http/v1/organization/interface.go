package organization

import (
	"context"

	"presence/backend/internal/entity"
	"presence/backend/internal/repository/postgres/organization"
)

type Organization interface {
	GetById(ctx context.Context, id int) (entity.Organization, error)
	UpdateColumns(ctx context.Context, request organization.UpdateRequest) error
}
