package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// QR code kinds. KindAny codes rely on the day ledger to infer the scan
// direction.
const (
	QRKindCheckIn  = "CHECK_IN"
	QRKindCheckOut = "CHECK_OUT"
	QRKindAny      = "ANY"
)

// OrganizationQRCode is one issued code. Regeneration deactivates rather
// than deletes, keeping the usage trail for audit.
type OrganizationQRCode struct {
	bun.BaseModel `bun:"table:organization_qr_codes"`

	BasicEntity
	OrganizationID int        `json:"organization_id" bun:"organization_id"`
	Kind           string     `json:"kind" bun:"kind"`
	Code           string     `json:"code" bun:"code"`
	IssuedAt       time.Time  `json:"issued_at" bun:"issued_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty" bun:"expires_at"`
	UsageCount     int        `json:"usage_count" bun:"usage_count"`
	Active         bool       `json:"active" bun:"active"`
}

// Usable reports whether the code may still be scanned at the given moment.
func (q OrganizationQRCode) Usable(now time.Time) bool {
	if !q.Active {
		return false
	}
	if q.ExpiresAt != nil && !now.Before(*q.ExpiresAt) {
		return false
	}
	return true
}
