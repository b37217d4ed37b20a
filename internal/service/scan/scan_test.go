package scan

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"presence/backend/internal/entity"
	"presence/backend/internal/pkg/geo"
	"presence/backend/internal/repository/postgres"
	"presence/backend/internal/repository/postgres/device"
)

// In-memory collaborators mirroring the repository contracts.

type fakeCodes struct {
	codes map[string]entity.OrganizationQRCode
	usage map[int]int
	err   error
}

func (f *fakeCodes) Resolve(_ context.Context, token string) (entity.OrganizationQRCode, error) {
	if f.err != nil {
		return entity.OrganizationQRCode{}, f.err
	}
	code, ok := f.codes[token]
	if !ok {
		return entity.OrganizationQRCode{}, postgres.ErrNotFound
	}
	return code, nil
}

func (f *fakeCodes) RecordUsage(_ context.Context, id int) error {
	if f.usage == nil {
		f.usage = map[int]int{}
	}
	f.usage[id]++
	return nil
}

type fakeDevices struct {
	bindings map[int]device.Device
}

func (f *fakeDevices) CheckBinding(_ context.Context, userID int, incoming device.Device) (string, error) {
	bound, ok := f.bindings[userID]
	if !ok {
		f.bindings[userID] = incoming
		return device.BindingAutoBound, nil
	}
	if bound.ID != incoming.ID || bound.Fingerprint != incoming.Fingerprint {
		return device.BindingMismatch, nil
	}
	return device.BindingBound, nil
}

type fakeLedgers struct {
	days     map[string]*entity.DayLedger
	applyErr error
}

func ledgerKey(userID int, workDay string) string {
	return workDay + "/" + strconv.Itoa(userID)
}

func (f *fakeLedgers) GetDay(_ context.Context, userID int, workDay string) (entity.DayLedger, error) {
	ledger, ok := f.days[ledgerKey(userID, workDay)]
	if !ok {
		return entity.DayLedger{}, postgres.ErrNotFound
	}
	return *ledger, nil
}

func (f *fakeLedgers) getOrCreate(userID, organizationID int, workDay string) *entity.DayLedger {
	key := ledgerKey(userID, workDay)
	if f.days == nil {
		f.days = map[string]*entity.DayLedger{}
	}
	if _, ok := f.days[key]; !ok {
		f.days[key] = &entity.DayLedger{UserID: userID, OrganizationID: organizationID, WorkDay: workDay}
	}
	return f.days[key]
}

func (f *fakeLedgers) ApplyCheckIn(_ context.Context, userID, organizationID int, workDay string, stamp entity.ScanStamp) (entity.DayLedger, entity.AttendanceSession, error) {
	if f.applyErr != nil {
		return entity.DayLedger{}, entity.AttendanceSession{}, f.applyErr
	}
	ledger := f.getOrCreate(userID, organizationID, workDay)
	session, err := ledger.ApplyCheckIn(stamp)
	if err != nil {
		return entity.DayLedger{}, entity.AttendanceSession{}, err
	}
	return *ledger, *session, nil
}

func (f *fakeLedgers) ApplyCheckOut(_ context.Context, userID, organizationID int, workDay string, stamp entity.ScanStamp) (entity.DayLedger, entity.AttendanceSession, error) {
	if f.applyErr != nil {
		return entity.DayLedger{}, entity.AttendanceSession{}, f.applyErr
	}
	ledger := f.getOrCreate(userID, organizationID, workDay)
	session, err := ledger.ApplyCheckOut(stamp)
	if err != nil {
		return entity.DayLedger{}, entity.AttendanceSession{}, err
	}
	return *ledger, *session, nil
}

type fakeOrgs struct {
	org entity.Organization
}

func (f *fakeOrgs) GetById(_ context.Context, id int) (entity.Organization, error) {
	if id != f.org.ID {
		return entity.Organization{}, postgres.ErrNotFound
	}
	return f.org, nil
}

func (f *fakeOrgs) PolicyFor(_ context.Context, _ int, org entity.Organization) (entity.WorkingPolicy, error) {
	return entity.DefaultPolicy(org), nil
}

// Fixture: an organization in Tashkent with a 200m geofence and a pair of
// typed codes.

func testOrg() entity.Organization {
	org := entity.Organization{
		Name:           "HQ",
		Latitude:       41.3111,
		Longitude:      69.2797,
		RadiusMeters:   200,
		WorkStartTime:  "09:00",
		WorkEndTime:    "18:00",
		FullDayMinutes: 480,
		HalfDayMinutes: 240,
	}
	org.ID = 1
	return org
}

func testCodes() *fakeCodes {
	checkIn := entity.OrganizationQRCode{OrganizationID: 1, Kind: entity.QRKindCheckIn, Code: "in-token", Active: true}
	checkIn.ID = 10
	checkOut := entity.OrganizationQRCode{OrganizationID: 1, Kind: entity.QRKindCheckOut, Code: "out-token", Active: true}
	checkOut.ID = 11
	anyKind := entity.OrganizationQRCode{OrganizationID: 1, Kind: entity.QRKindAny, Code: "any-token", Active: true}
	anyKind.ID = 12
	foreign := entity.OrganizationQRCode{OrganizationID: 2, Kind: entity.QRKindCheckIn, Code: "foreign-token", Active: true}
	foreign.ID = 13

	return &fakeCodes{codes: map[string]entity.OrganizationQRCode{
		checkIn.Code:  checkIn,
		checkOut.Code: checkOut,
		anyKind.Code:  anyKind,
		foreign.Code:  foreign,
	}}
}

func newTestValidator(codes *fakeCodes, ledgers *fakeLedgers) (*Validator, *fakeDevices) {
	devices := &fakeDevices{bindings: map[int]device.Device{}}
	v := NewValidator(codes, devices, ledgers, &fakeOrgs{org: testOrg()}, geo.NewChecker(), 5*time.Second)
	v.WithClock(func() time.Time { return time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC) })
	return v, devices
}

func insideRequest(token string, userID int) Request {
	return Request{
		Code:           token,
		UserID:         userID,
		OrganizationID: 1,
		Geo:            entity.GeoPoint{Latitude: 41.3111, Longitude: 69.2797, Accuracy: 10},
		Device:         device.Device{ID: "device-a", Type: "android", Fingerprint: "fp-a"},
	}
}

func TestScanFirstCheckInAutoBinds(t *testing.T) {
	codes := testCodes()
	ledgers := &fakeLedgers{}
	v, devices := newTestValidator(codes, ledgers)

	result, err := v.Validate(context.Background(), insideRequest("in-token", 7))
	assert.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, TypeCheckIn, result.ScanType)
	assert.NotNil(t, result.Session)
	assert.True(t, result.Session.IsActive)

	// A binding was created for the first device.
	assert.Contains(t, devices.bindings, 7)

	// Exactly one active session on the day.
	day := ledgers.days[ledgerKey(7, "2026-01-15")]
	assert.Len(t, day.Sessions, 1)
	assert.True(t, day.Sessions[0].IsActive)

	// Usage was counted once.
	assert.Equal(t, 1, codes.usage[10])
}

func TestScanDuplicateCheckIn(t *testing.T) {
	codes := testCodes()
	ledgers := &fakeLedgers{}
	v, _ := newTestValidator(codes, ledgers)

	_, err := v.Validate(context.Background(), insideRequest("in-token", 7))
	assert.NoError(t, err)

	result, err := v.Validate(context.Background(), insideRequest("in-token", 7))
	assert.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, ReasonDuplicateCheckIn, result.Reason)
	assert.NotEmpty(t, result.NextStep)

	// Ledger unchanged.
	day := ledgers.days[ledgerKey(7, "2026-01-15")]
	assert.Len(t, day.Sessions, 1)
}

func TestScanCheckOutWithoutSession(t *testing.T) {
	v, _ := newTestValidator(testCodes(), &fakeLedgers{})

	result, err := v.Validate(context.Background(), insideRequest("out-token", 7))
	assert.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, ReasonNoActiveSession, result.Reason)
}

func TestScanHalfDayTotal(t *testing.T) {
	codes := testCodes()
	ledgers := &fakeLedgers{}
	v, _ := newTestValidator(codes, ledgers)

	checkIn := insideRequest("in-token", 7)
	checkIn.Timestamp = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	_, err := v.Validate(context.Background(), checkIn)
	assert.NoError(t, err)

	checkOut := insideRequest("out-token", 7)
	checkOut.Timestamp = time.Date(2026, 1, 15, 13, 5, 0, 0, time.UTC)
	result, err := v.Validate(context.Background(), checkOut)
	assert.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, 245, result.Day.TotalMinutes)
	assert.Equal(t, entity.StatusHalfDay, result.Day.Status)
}

func TestScanFullDayAcrossTwoSessions(t *testing.T) {
	codes := testCodes()
	ledgers := &fakeLedgers{}
	v, _ := newTestValidator(codes, ledgers)

	stamps := []struct {
		token string
		at    time.Time
	}{
		{"in-token", time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)},
		{"out-token", time.Date(2026, 1, 15, 13, 0, 0, 0, time.UTC)},
		{"in-token", time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC)},
		{"out-token", time.Date(2026, 1, 15, 18, 10, 0, 0, time.UTC)},
	}

	var result Result
	var err error
	for _, s := range stamps {
		request := insideRequest(s.token, 7)
		request.Timestamp = s.at
		result, err = v.Validate(context.Background(), request)
		assert.NoError(t, err)
		assert.True(t, result.Accepted)
	}

	assert.Equal(t, entity.StatusFullDay, result.Day.Status)
	assert.Len(t, result.Day.Sessions, 2)
	assert.Equal(t, 490, result.Day.TotalMinutes)
}

func TestScanDeviceMismatchThenApprovedRebind(t *testing.T) {
	codes := testCodes()
	ledgers := &fakeLedgers{}
	v, devices := newTestValidator(codes, ledgers)

	_, err := v.Validate(context.Background(), insideRequest("in-token", 7))
	assert.NoError(t, err)

	intruder := insideRequest("out-token", 7)
	intruder.Device = device.Device{ID: "device-b", Type: "ios", Fingerprint: "fp-b"}

	result, err := v.Validate(context.Background(), intruder)
	assert.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, ReasonDeviceNotAuthorized, result.Reason)
	assert.Contains(t, result.NextStep, "device change request")

	// Admin approval rebinds; the same scan now succeeds.
	devices.bindings[7] = intruder.Device

	result, err = v.Validate(context.Background(), intruder)
	assert.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, TypeCheckOut, result.ScanType)
}

func TestScanOutOfRange(t *testing.T) {
	v, _ := newTestValidator(testCodes(), &fakeLedgers{})

	// tolerance = 200 (org) + 10 (scan) + 50 (margin) = 260m; stand 360m out.
	request := insideRequest("in-token", 7)
	request.Geo = entity.GeoPoint{Latitude: 41.3111 + 360/111195.0, Longitude: 69.2797, Accuracy: 10}

	result, err := v.Validate(context.Background(), request)
	assert.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, ReasonOutOfRange, result.Reason)
}

func TestScanUnknownAndForeignCodes(t *testing.T) {
	v, _ := newTestValidator(testCodes(), &fakeLedgers{})

	result, err := v.Validate(context.Background(), insideRequest("no-such-token", 7))
	assert.NoError(t, err)
	assert.Equal(t, ReasonCodeNotFound, result.Reason)

	// A code issued by another organization looks exactly like a missing one.
	result, err = v.Validate(context.Background(), insideRequest("foreign-token", 7))
	assert.NoError(t, err)
	assert.Equal(t, ReasonCodeNotFound, result.Reason)
}

func TestScanExpiredCode(t *testing.T) {
	codes := testCodes()
	expired := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)
	code := codes.codes["in-token"]
	code.ExpiresAt = &expired
	codes.codes["in-token"] = code

	v, _ := newTestValidator(codes, &fakeLedgers{})

	result, err := v.Validate(context.Background(), insideRequest("in-token", 7))
	assert.NoError(t, err)
	assert.Equal(t, ReasonCodeExpired, result.Reason)
	assert.Zero(t, codes.usage[10])
}

func TestScanUntypedCodeInfersDirection(t *testing.T) {
	codes := testCodes()
	ledgers := &fakeLedgers{}
	v, _ := newTestValidator(codes, ledgers)

	result, err := v.Validate(context.Background(), insideRequest("any-token", 7))
	assert.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, TypeCheckIn, result.ScanType)

	request := insideRequest("any-token", 7)
	request.Timestamp = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	result, err = v.Validate(context.Background(), request)
	assert.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, TypeCheckOut, result.ScanType)
}

func TestScanStorageTimeoutIsRetryable(t *testing.T) {
	codes := testCodes()
	codes.err = context.DeadlineExceeded

	v, _ := newTestValidator(codes, &fakeLedgers{})

	result, err := v.Validate(context.Background(), insideRequest("in-token", 7))
	assert.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, ReasonStorageTimeout, result.Reason)
	assert.True(t, result.Retryable)
}

func TestScanVersionConflictIsRetryable(t *testing.T) {
	ledgers := &fakeLedgers{applyErr: postgres.ErrVersionConflict}
	v, _ := newTestValidator(testCodes(), ledgers)

	result, err := v.Validate(context.Background(), insideRequest("in-token", 7))
	assert.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, ReasonStorageTimeout, result.Reason)
	assert.True(t, result.Retryable)
}

func TestScanNoWritesBeforeCommit(t *testing.T) {
	codes := testCodes()
	ledgers := &fakeLedgers{}
	v, _ := newTestValidator(codes, ledgers)

	// Out-of-range scan: nothing recorded anywhere.
	request := insideRequest("in-token", 7)
	request.Geo = entity.GeoPoint{Latitude: 42.0, Longitude: 69.2797, Accuracy: 10}

	_, err := v.Validate(context.Background(), request)
	assert.NoError(t, err)
	assert.Empty(t, codes.usage)
	assert.Empty(t, ledgers.days)
}
