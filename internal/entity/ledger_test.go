package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func stampAt(t time.Time) ScanStamp {
	return ScanStamp{Time: t, Geo: GeoPoint{Latitude: 41.3111, Longitude: 69.2797}, Verified: true}
}

func TestDayLedgerCheckInCheckOut(t *testing.T) {
	start := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

	ledger := DayLedger{WorkDay: "2026-01-15"}

	session, err := ledger.ApplyCheckIn(stampAt(start))
	assert.NoError(t, err)
	assert.True(t, session.IsActive)

	state, err := ledger.State()
	assert.NoError(t, err)
	assert.Equal(t, DayStateOpen, state)

	// Check-out 4h05m later: exactly 245 minutes, rounded down.
	session, err = ledger.ApplyCheckOut(stampAt(start.Add(4*time.Hour + 5*time.Minute + 30*time.Second)))
	assert.NoError(t, err)
	assert.False(t, session.IsActive)
	assert.Equal(t, 245, session.DurationMinutes)
	assert.False(t, session.ClockAnomaly)

	state, err = ledger.State()
	assert.NoError(t, err)
	assert.Equal(t, DayStateClosed, state)
}

func TestDayLedgerDuplicateCheckIn(t *testing.T) {
	start := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

	ledger := DayLedger{WorkDay: "2026-01-15"}

	_, err := ledger.ApplyCheckIn(stampAt(start))
	assert.NoError(t, err)

	_, err = ledger.ApplyCheckIn(stampAt(start.Add(10 * time.Second)))
	assert.ErrorIs(t, err, ErrDuplicateCheckIn)
	assert.Len(t, ledger.Sessions, 1)
}

func TestDayLedgerCheckOutWithoutCheckIn(t *testing.T) {
	ledger := DayLedger{WorkDay: "2026-01-15"}

	_, err := ledger.ApplyCheckOut(stampAt(time.Now()))
	assert.ErrorIs(t, err, ErrNoActiveSession)

	state, err := ledger.State()
	assert.NoError(t, err)
	assert.Equal(t, DayStateEmpty, state)
}

func TestDayLedgerClockAnomaly(t *testing.T) {
	start := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

	ledger := DayLedger{WorkDay: "2026-01-15"}

	_, err := ledger.ApplyCheckIn(stampAt(start))
	assert.NoError(t, err)

	// Clock skew: check-out stamped before check-in clamps to zero.
	session, err := ledger.ApplyCheckOut(stampAt(start.Add(-3 * time.Minute)))
	assert.NoError(t, err)
	assert.Equal(t, 0, session.DurationMinutes)
	assert.True(t, session.ClockAnomaly)
}

func TestDayLedgerNeverTwoActiveSessions(t *testing.T) {
	start := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

	ledger := DayLedger{WorkDay: "2026-01-15"}

	for i := 0; i < 4; i++ {
		offset := time.Duration(i) * 2 * time.Hour
		_, err := ledger.ApplyCheckIn(stampAt(start.Add(offset)))
		assert.NoError(t, err)

		active := 0
		for _, s := range ledger.Sessions {
			if s.IsActive {
				active++
			}
		}
		assert.Equal(t, 1, active)

		_, err = ledger.ApplyCheckOut(stampAt(start.Add(offset + time.Hour)))
		assert.NoError(t, err)
	}

	assert.Len(t, ledger.Sessions, 4)
}

func TestDayLedgerCorruptDetection(t *testing.T) {
	now := time.Now()
	ledger := DayLedger{
		Sessions: []AttendanceSession{
			{CheckIn: stampAt(now), IsActive: true},
			{CheckIn: stampAt(now), IsActive: true},
		},
	}

	_, err := ledger.ActiveSession()
	assert.ErrorIs(t, err, ErrLedgerCorrupt)

	_, err = ledger.ApplyCheckIn(stampAt(now))
	assert.ErrorIs(t, err, ErrLedgerCorrupt)
}

func TestQRCodeUsable(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		code OrganizationQRCode
		want bool
	}{
		{"active without expiry", OrganizationQRCode{Active: true}, true},
		{"active before expiry", OrganizationQRCode{Active: true, ExpiresAt: &future}, true},
		{"active past expiry", OrganizationQRCode{Active: true, ExpiresAt: &expired}, false},
		{"inactive", OrganizationQRCode{Active: false}, false},
		{"expiry boundary", OrganizationQRCode{Active: true, ExpiresAt: &now}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.Usable(now))
		})
	}
}
