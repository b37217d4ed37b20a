package device

import (
	"context"

	"presence/backend/internal/entity"
	"presence/backend/internal/repository/postgres/device"
)

type Device interface {
	GetBinding(ctx context.Context, userID int) (entity.DeviceBinding, error)
	FileChangeRequest(ctx context.Context, request device.FileChangeRequest) (entity.DeviceChangeRequest, error)
	ResolveChangeRequest(ctx context.Context, request device.ResolveRequest) (entity.DeviceChangeRequest, error)
	ResetBinding(ctx context.Context, userID int) error
	GetChangeRequestById(ctx context.Context, id int) (entity.DeviceChangeRequest, error)
	GetChangeRequests(ctx context.Context, filter device.Filter) ([]entity.DeviceChangeRequest, error)
}
