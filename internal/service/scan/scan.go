// Package scan implements the validation pipeline for a single QR scan:
// code resolution, expiry, device binding, geofence, direction inference and
// the hand-off to the day ledger. Every failure short of a storage fault is
// a typed rejection the caller can act on; nothing is written before the
// commit step.
package scan

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"presence/backend/internal/entity"
	"presence/backend/internal/pkg/geo"
	"presence/backend/internal/repository/postgres"
	"presence/backend/internal/repository/postgres/device"
	"presence/backend/internal/service/workingtime"
)

// Rejection reasons returned to the client.
const (
	ReasonCodeNotFound        = "CODE_NOT_FOUND"
	ReasonCodeExpired         = "CODE_EXPIRED"
	ReasonDeviceNotAuthorized = "DEVICE_NOT_AUTHORIZED"
	ReasonOutOfRange          = "OUT_OF_RANGE"
	ReasonDuplicateCheckIn    = "DUPLICATE_CHECK_IN"
	ReasonNoActiveSession     = "NO_ACTIVE_SESSION"
	ReasonStorageTimeout      = "STORAGE_TIMEOUT"
)

// Scan directions.
const (
	TypeCheckIn  = "CHECK_IN"
	TypeCheckOut = "CHECK_OUT"
)

// Request is one scan attempt from a client.
type Request struct {
	Code           string          `json:"code" form:"code"`
	UserID         int             `json:"-"`
	OrganizationID int             `json:"-"`
	Geo            entity.GeoPoint `json:"geo"`
	Device         device.Device   `json:"device"`
	Timestamp      time.Time       `json:"timestamp"`
}

// DayStatus is the recomputed state of the day after an accepted scan.
type DayStatus struct {
	WorkDay  string                     `json:"work_day"`
	Sessions []entity.AttendanceSession `json:"sessions"`
	workingtime.Result
}

// Result is the definitive answer to a scan attempt. Rejections carry a
// human-readable message and, where one exists, an actionable next step.
type Result struct {
	Accepted  bool                      `json:"accepted"`
	Reason    string                    `json:"reason,omitempty"`
	Message   string                    `json:"message,omitempty"`
	NextStep  string                    `json:"next_step,omitempty"`
	Retryable bool                      `json:"retryable,omitempty"`
	ScanType  string                    `json:"scan_type,omitempty"`
	Session   *entity.AttendanceSession `json:"session,omitempty"`
	Day       *DayStatus                `json:"day,omitempty"`
}

// Validator orchestrates the pipeline over its collaborator interfaces.
type Validator struct {
	codes   QRCodes
	devices Devices
	ledgers Ledgers
	orgs    Organizations

	checker        geo.Checker
	storageTimeout time.Duration
	now            func() time.Time
}

func NewValidator(codes QRCodes, devices Devices, ledgers Ledgers, orgs Organizations, checker geo.Checker, storageTimeout time.Duration) *Validator {
	if storageTimeout <= 0 {
		storageTimeout = 5 * time.Second
	}
	return &Validator{
		codes:          codes,
		devices:        devices,
		ledgers:        ledgers,
		orgs:           orgs,
		checker:        checker,
		storageTimeout: storageTimeout,
		now:            time.Now,
	}
}

// WithClock overrides the validator's clock. Used by tests and live
// dashboards replaying historic scans.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

func reject(reason, message, nextStep string) Result {
	return Result{Reason: reason, Message: message, NextStep: nextStep}
}

// Validate runs the pipeline in strict order, short-circuiting on the first
// failure. No state is touched before the commit step, so a client may
// safely retry on a storage timeout.
func (v *Validator) Validate(ctx context.Context, request Request) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, v.storageTimeout)
	defer cancel()

	now := v.now()
	scannedAt := request.Timestamp
	if scannedAt.IsZero() {
		scannedAt = now
	}

	// 1. Resolve the code. A code belonging to another organization is
	// indistinguishable from a missing one, on purpose.
	code, err := v.codes.Resolve(ctx, request.Code)
	if errors.Is(err, postgres.ErrNotFound) {
		return reject(ReasonCodeNotFound, "this QR code is not recognized", "ask your administrator for the current code"), nil
	}
	if err != nil {
		return v.storageFailure(err)
	}
	if code.OrganizationID != request.OrganizationID {
		return reject(ReasonCodeNotFound, "this QR code is not recognized", "ask your administrator for the current code"), nil
	}

	// 2. Activity and expiry.
	if !code.Usable(now) {
		return reject(ReasonCodeExpired, "this QR code has expired", "scan the currently displayed code"), nil
	}

	// 3. Device binding.
	bindingStatus, err := v.devices.CheckBinding(ctx, request.UserID, request.Device)
	if err != nil {
		return v.storageFailure(err)
	}
	if bindingStatus == device.BindingMismatch {
		return reject(ReasonDeviceNotAuthorized, "this device is not authorized for your account", "file a device change request and wait for admin approval"), nil
	}

	// 4. Geofence.
	org, err := v.orgs.GetById(ctx, request.OrganizationID)
	if err != nil {
		return v.storageFailure(err)
	}
	orgPoint := geo.Point{Latitude: org.Latitude, Longitude: org.Longitude, Accuracy: org.RadiusMeters}
	scanPoint := geo.Point{Latitude: request.Geo.Latitude, Longitude: request.Geo.Longitude, Accuracy: request.Geo.Accuracy}
	if !v.checker.WithinTolerance(scanPoint, orgPoint) {
		return reject(ReasonOutOfRange, "you are outside the allowed check-in area", "move closer to the registered location and try again"), nil
	}

	workDay := scannedAt.In(v.location(org)).Format("2006-01-02")

	// 5. Determine the direction: typed codes dictate it, ANY codes infer
	// from the current day state.
	ledger, err := v.ledgers.GetDay(ctx, request.UserID, workDay)
	if err != nil && !errors.Is(err, postgres.ErrNotFound) {
		return v.storageFailure(err)
	}
	activeIndex, err := ledger.ActiveSession()
	if err != nil {
		// Invariant violation: surface for manual correction, never
		// auto-heal attendance data.
		return Result{}, errors.Wrapf(err, "user %d day %s", request.UserID, workDay)
	}

	var scanType string
	switch code.Kind {
	case entity.QRKindCheckIn:
		scanType = TypeCheckIn
	case entity.QRKindCheckOut:
		scanType = TypeCheckOut
	default:
		if activeIndex >= 0 {
			scanType = TypeCheckOut
		} else {
			scanType = TypeCheckIn
		}
	}

	// 6. Consistency against the day state.
	if scanType == TypeCheckIn && activeIndex >= 0 {
		result := reject(ReasonDuplicateCheckIn, "you are already checked in", "scan the check-out code to close your session")
		result.ScanType = scanType
		return result, nil
	}
	if scanType == TypeCheckOut && activeIndex < 0 {
		result := reject(ReasonNoActiveSession, "you have no open session to check out of", "scan the check-in code first")
		result.ScanType = scanType
		return result, nil
	}

	// 7. Commit: count the usage, apply the event, recompute the day.
	if err = v.codes.RecordUsage(ctx, code.ID); err != nil {
		return v.storageFailure(err)
	}

	stamp := entity.ScanStamp{Time: scannedAt, Geo: request.Geo, Verified: true}

	apply := v.ledgers.ApplyCheckIn
	if scanType == TypeCheckOut {
		apply = v.ledgers.ApplyCheckOut
	}

	ledger, session, err := apply(ctx, request.UserID, request.OrganizationID, workDay, stamp)
	switch {
	case errors.Is(err, entity.ErrDuplicateCheckIn):
		// The ledger is the source of truth; a concurrent scan beat us
		// between steps 6 and 7.
		result := reject(ReasonDuplicateCheckIn, "you are already checked in", "scan the check-out code to close your session")
		result.ScanType = scanType
		return result, nil
	case errors.Is(err, entity.ErrNoActiveSession):
		result := reject(ReasonNoActiveSession, "you have no open session to check out of", "scan the check-in code first")
		result.ScanType = scanType
		return result, nil
	case err != nil:
		return v.storageFailure(err)
	}

	policy, err := v.orgs.PolicyFor(ctx, request.UserID, org)
	if err != nil {
		return v.storageFailure(err)
	}
	status, err := workingtime.ComputeStatus(ledger, policy, now)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Accepted: true,
		ScanType: scanType,
		Session:  &session,
		Day: &DayStatus{
			WorkDay:  ledger.WorkDay,
			Sessions: ledger.Sessions,
			Result:   status,
		},
	}, nil
}

// storageFailure classifies a low-level failure: deadline, cancellation and
// an exhausted version CAS become a retryable typed rejection, anything else
// propagates for the transport layer to report.
func (v *Validator) storageFailure(err error) (Result, error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		result := reject(ReasonStorageTimeout, "storage did not respond in time", "retry the scan")
		result.Retryable = true
		return result, nil
	}
	if errors.Is(err, postgres.ErrVersionConflict) {
		result := reject(ReasonStorageTimeout, "another update touched your day at the same time", "retry the scan")
		result.Retryable = true
		return result, nil
	}
	return Result{}, err
}

func (v *Validator) location(org entity.Organization) *time.Location {
	if org.Timezone == "" {
		return time.UTC
	}
	location, err := time.LoadLocation(org.Timezone)
	if err != nil {
		return time.UTC
	}
	return location
}
