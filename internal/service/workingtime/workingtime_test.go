package workingtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"presence/backend/internal/entity"
)

func testPolicy() entity.WorkingPolicy {
	return entity.WorkingPolicy{
		WorkStartTime:  "09:00",
		WorkEndTime:    "18:00",
		WeeklySchedule: [7]bool{true, true, true, true, true, false, false},
		FullDayMinutes: 480,
		HalfDayMinutes: 240,
	}
}

// 2026-01-15 is a Thursday.
func closedSession(day string, in, out string) entity.AttendanceSession {
	checkIn, _ := time.Parse("2006-01-02 15:04", day+" "+in)
	checkOut, _ := time.Parse("2006-01-02 15:04", day+" "+out)
	return entity.AttendanceSession{
		CheckIn:         entity.ScanStamp{Time: checkIn, Verified: true},
		CheckOut:        &entity.ScanStamp{Time: checkOut, Verified: true},
		DurationMinutes: int(checkOut.Sub(checkIn).Minutes()),
	}
}

func TestComputeStatusClassification(t *testing.T) {
	now := time.Date(2026, 1, 15, 20, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		sessions    []entity.AttendanceSession
		wantMinutes int
		wantStatus  string
	}{
		{
			name:        "no sessions on a work day",
			sessions:    nil,
			wantMinutes: 0,
			wantStatus:  entity.StatusAbsent,
		},
		{
			name:        "short visit",
			sessions:    []entity.AttendanceSession{closedSession("2026-01-15", "09:00", "10:30")},
			wantMinutes: 90,
			wantStatus:  entity.StatusPresent,
		},
		{
			name:        "four hours five minutes is a half day",
			sessions:    []entity.AttendanceSession{closedSession("2026-01-15", "09:00", "13:05")},
			wantMinutes: 245,
			wantStatus:  entity.StatusHalfDay,
		},
		{
			name: "two sessions totaling 8h10m is a full day",
			sessions: []entity.AttendanceSession{
				closedSession("2026-01-15", "09:00", "13:00"),
				closedSession("2026-01-15", "14:00", "18:10"),
			},
			wantMinutes: 490,
			wantStatus:  entity.StatusFullDay,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := entity.DayLedger{WorkDay: "2026-01-15", Sessions: tt.sessions}

			got, err := ComputeStatus(ledger, testPolicy(), now)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantMinutes, got.TotalMinutes)
			assert.Equal(t, tt.wantStatus, got.Status)
		})
	}
}

func TestComputeStatusOffDay(t *testing.T) {
	now := time.Date(2026, 1, 17, 20, 0, 0, 0, time.UTC)

	// 2026-01-17 is a Saturday: no penalty for an empty ledger.
	ledger := entity.DayLedger{WorkDay: "2026-01-17"}

	got, err := ComputeStatus(ledger, testPolicy(), now)
	assert.NoError(t, err)
	assert.Equal(t, entity.StatusOffDay, got.Status)
}

func TestComputeStatusHoliday(t *testing.T) {
	now := time.Date(2026, 1, 15, 20, 0, 0, 0, time.UTC)

	policy := testPolicy()
	policy.CustomHolidays = []string{"2026-01-15"}

	got, err := ComputeStatus(entity.DayLedger{WorkDay: "2026-01-15"}, policy, now)
	assert.NoError(t, err)
	assert.Equal(t, entity.StatusOffDay, got.Status)

	policy.CustomHolidays = []string{"01-15"}
	got, err = ComputeStatus(entity.DayLedger{WorkDay: "2026-01-15"}, policy, now)
	assert.NoError(t, err)
	assert.Equal(t, entity.StatusOffDay, got.Status)
}

func TestComputeStatusLiveActiveSession(t *testing.T) {
	checkIn := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	ledger := entity.DayLedger{
		WorkDay: "2026-01-15",
		Sessions: []entity.AttendanceSession{
			{CheckIn: entity.ScanStamp{Time: checkIn, Verified: true}, IsActive: true},
		},
	}

	got, err := ComputeStatus(ledger, testPolicy(), checkIn.Add(90*time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, 90, got.TotalMinutes)
	assert.Equal(t, entity.StatusPresent, got.Status)
}

func TestComputeStatusMonotonic(t *testing.T) {
	now := time.Date(2026, 1, 15, 23, 0, 0, 0, time.UTC)
	ledger := entity.DayLedger{WorkDay: "2026-01-15"}

	previous := 0
	sessions := []entity.AttendanceSession{
		closedSession("2026-01-15", "09:00", "10:00"),
		closedSession("2026-01-15", "11:00", "13:00"),
		closedSession("2026-01-15", "14:00", "18:00"),
	}
	for _, session := range sessions {
		ledger.Sessions = append(ledger.Sessions, session)

		got, err := ComputeStatus(ledger, testPolicy(), now)
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, got.TotalMinutes, previous)
		previous = got.TotalMinutes
	}
}

func TestIsLate(t *testing.T) {
	now := time.Date(2026, 1, 15, 20, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		checkIn  string
		grace    int
		wantLate bool
	}{
		{"on time", "08:59", 0, false},
		{"exactly at start", "09:00", 0, false},
		{"one minute late", "09:01", 0, true},
		{"inside grace", "09:10", 15, false},
		{"past grace", "09:16", 15, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := testPolicy()
			policy.LateGraceMinutes = tt.grace

			ledger := entity.DayLedger{
				WorkDay:  "2026-01-15",
				Sessions: []entity.AttendanceSession{closedSession("2026-01-15", tt.checkIn, "18:00")},
			}

			got, err := ComputeStatus(ledger, policy, now)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantLate, got.IsLate)
		})
	}
}

func TestManualStatusOverride(t *testing.T) {
	now := time.Date(2026, 1, 15, 20, 0, 0, 0, time.UTC)

	manual := entity.StatusPresent
	ledger := entity.DayLedger{WorkDay: "2026-01-15", ManualStatus: &manual}

	got, err := ComputeStatus(ledger, testPolicy(), now)
	assert.NoError(t, err)
	assert.Equal(t, entity.StatusPresent, got.Status)
	assert.Equal(t, 0, got.TotalMinutes)
}

func TestDefaultThresholds(t *testing.T) {
	now := time.Date(2026, 1, 15, 23, 0, 0, 0, time.UTC)

	policy := entity.WorkingPolicy{
		WorkStartTime:  "09:00",
		WeeklySchedule: [7]bool{true, true, true, true, true, false, false},
	}
	ledger := entity.DayLedger{
		WorkDay:  "2026-01-15",
		Sessions: []entity.AttendanceSession{closedSession("2026-01-15", "09:00", "17:00")},
	}

	got, err := ComputeStatus(ledger, policy, now)
	assert.NoError(t, err)
	assert.Equal(t, entity.StatusFullDay, got.Status)
}
