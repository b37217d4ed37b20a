package entity

import (
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// ErrChangeRequestResolved is returned when resolving a request that has
// already reached a terminal state.
var ErrChangeRequestResolved = errors.New("device change request already resolved")

// Device change request states. Both terminal states are final; a new
// request must be filed to try again.
const (
	ChangeRequestPending  = "PENDING"
	ChangeRequestApproved = "APPROVED"
	ChangeRequestRejected = "REJECTED"
)

// DeviceBinding is the single device authorized to scan for a user. The
// fingerprint is an opaque client token, stored bcrypt-hashed.
type DeviceBinding struct {
	bun.BaseModel `bun:"table:device_bindings"`

	BasicEntity
	UserID          int       `json:"user_id" bun:"user_id"`
	DeviceID        string    `json:"device_id" bun:"device_id"`
	DeviceType      string    `json:"device_type" bun:"device_type"`
	FingerprintHash string    `json:"-" bun:"fingerprint_hash"`
	RegisteredAt    time.Time `json:"registered_at" bun:"registered_at"`
}

// DeviceChangeRequest tracks a user asking to move their binding to a new
// device. At most one pending request per user.
type DeviceChangeRequest struct {
	bun.BaseModel `bun:"table:device_change_requests"`

	BasicEntity
	UserID               int        `json:"user_id" bun:"user_id"`
	CurrentDeviceID      *string    `json:"current_device_id,omitempty" bun:"current_device_id"`
	RequestedDeviceID    string     `json:"requested_device_id" bun:"requested_device_id"`
	RequestedDeviceType  string     `json:"requested_device_type" bun:"requested_device_type"`
	RequestedFingerprint string     `json:"-" bun:"requested_fingerprint"`
	Reason               string     `json:"reason" bun:"reason"`
	Status               string     `json:"status" bun:"status"`
	RequestedAt          time.Time  `json:"requested_at" bun:"requested_at"`
	ResolvedAt           *time.Time `json:"resolved_at,omitempty" bun:"resolved_at"`
	AdminReason          *string    `json:"admin_reason,omitempty" bun:"admin_reason"`
}

// Resolve moves a pending request into a terminal state and stamps the
// decision. ErrChangeRequestResolved once the request left PENDING.
func (r *DeviceChangeRequest) Resolve(status, adminReason string, at time.Time) error {
	if r.Status != ChangeRequestPending {
		return ErrChangeRequestResolved
	}

	r.Status = status
	r.ResolvedAt = &at
	r.AdminReason = &adminReason

	return nil
}
