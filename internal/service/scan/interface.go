package scan

import (
	"context"

	"presence/backend/internal/entity"
	"presence/backend/internal/repository/postgres/device"
)

type QRCodes interface {
	Resolve(ctx context.Context, token string) (entity.OrganizationQRCode, error)
	RecordUsage(ctx context.Context, id int) error
}

type Devices interface {
	CheckBinding(ctx context.Context, userID int, incoming device.Device) (string, error)
}

type Ledgers interface {
	GetDay(ctx context.Context, userID int, workDay string) (entity.DayLedger, error)
	ApplyCheckIn(ctx context.Context, userID, organizationID int, workDay string, stamp entity.ScanStamp) (entity.DayLedger, entity.AttendanceSession, error)
	ApplyCheckOut(ctx context.Context, userID, organizationID int, workDay string, stamp entity.ScanStamp) (entity.DayLedger, entity.AttendanceSession, error)
}

type Organizations interface {
	GetById(ctx context.Context, id int) (entity.Organization, error)
	PolicyFor(ctx context.Context, userID int, org entity.Organization) (entity.WorkingPolicy, error)
}
