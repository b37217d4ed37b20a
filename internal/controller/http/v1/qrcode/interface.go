package qrcode

import (
	"context"

	"presence/backend/internal/entity"
	"presence/backend/internal/repository/postgres/qrcode"
)

type QRCode interface {
	Issue(ctx context.Context, request qrcode.IssueRequest) (entity.OrganizationQRCode, error)
	Regenerate(ctx context.Context, request qrcode.RegenerateRequest) (entity.OrganizationQRCode, error)
	GetCurrent(ctx context.Context, organizationID int, kind string) (entity.OrganizationQRCode, error)
}
