package attendance

import (
	"context"

	"presence/backend/internal/entity"
	"presence/backend/internal/repository/postgres/ledger"
	"presence/backend/internal/service/scan"
)

type Scanner interface {
	Validate(ctx context.Context, request scan.Request) (scan.Result, error)
}

type Ledger interface {
	GetDay(ctx context.Context, userID int, workDay string) (entity.DayLedger, error)
	GetRange(ctx context.Context, filter ledger.RangeFilter) ([]entity.DayLedger, error)
	SetManualStatus(ctx context.Context, request ledger.ManualMarkRequest) (entity.DayLedger, error)
}

type Organization interface {
	GetById(ctx context.Context, id int) (entity.Organization, error)
	PolicyFor(ctx context.Context, userID int, org entity.Organization) (entity.WorkingPolicy, error)
}
