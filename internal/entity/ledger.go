package entity

import (
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// Daily status values computed by the working-time aggregator.
const (
	StatusAbsent  = "ABSENT"
	StatusPresent = "PRESENT"
	StatusHalfDay = "HALF_DAY"
	StatusFullDay = "FULL_DAY"
	StatusOffDay  = "OFF_DAY"
)

// Day state variants derived from the session sequence.
const (
	DayStateEmpty  = "EMPTY"
	DayStateOpen   = "OPEN"
	DayStateClosed = "CLOSED"
)

// Transition errors. These are expected rejections, surfaced to the caller
// as typed scan results, never as failures.
var (
	ErrDuplicateCheckIn = errors.New("a session is already active")
	ErrNoActiveSession  = errors.New("no active session to close")
	ErrLedgerCorrupt    = errors.New("more than one active session in day ledger")
)

// GeoPoint is the location attached to a scan.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
}

// ScanStamp records when and where one side of a session happened.
type ScanStamp struct {
	Time     time.Time `json:"time"`
	Geo      GeoPoint  `json:"geo"`
	Verified bool      `json:"verified"`
}

// AttendanceSession is one check-in/check-out pair within a day.
type AttendanceSession struct {
	CheckIn         ScanStamp  `json:"check_in"`
	CheckOut        *ScanStamp `json:"check_out,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	ClockAnomaly    bool       `json:"clock_anomaly,omitempty"`
	IsActive        bool       `json:"is_active"`
}

// DayLedger is the attendance record for one user on one calendar day.
// Sessions live in a jsonb column; Version backs the compare-and-swap that
// keeps concurrent scans from double-opening a session.
type DayLedger struct {
	bun.BaseModel `bun:"table:day_ledgers"`

	BasicEntity
	UserID         int                 `json:"user_id" bun:"user_id"`
	OrganizationID int                 `json:"organization_id" bun:"organization_id"`
	WorkDay        string              `json:"work_day" bun:"work_day"`
	Sessions       []AttendanceSession `json:"sessions" bun:"sessions,type:jsonb"`
	ManualStatus   *string             `json:"manual_status,omitempty" bun:"manual_status"`
	Version        int                 `json:"-" bun:"version"`
}

// ActiveSession returns the index of the open session, or -1. It reports
// ErrLedgerCorrupt if more than one session is open, which is an invariant
// violation left for manual admin correction.
func (d *DayLedger) ActiveSession() (int, error) {
	index := -1
	for i := range d.Sessions {
		if d.Sessions[i].IsActive {
			if index >= 0 {
				return -1, ErrLedgerCorrupt
			}
			index = i
		}
	}
	return index, nil
}

// State reports the tagged day state derived from the session sequence.
func (d *DayLedger) State() (string, error) {
	index, err := d.ActiveSession()
	if err != nil {
		return "", err
	}
	switch {
	case index >= 0:
		return DayStateOpen, nil
	case len(d.Sessions) > 0:
		return DayStateClosed, nil
	default:
		return DayStateEmpty, nil
	}
}

// ApplyCheckIn opens a new session. Rejected with ErrDuplicateCheckIn while
// another session is active.
func (d *DayLedger) ApplyCheckIn(stamp ScanStamp) (*AttendanceSession, error) {
	index, err := d.ActiveSession()
	if err != nil {
		return nil, err
	}
	if index >= 0 {
		return nil, ErrDuplicateCheckIn
	}

	d.Sessions = append(d.Sessions, AttendanceSession{
		CheckIn:  stamp,
		IsActive: true,
	})
	return &d.Sessions[len(d.Sessions)-1], nil
}

// ApplyCheckOut closes the active session. A check-out stamped before its
// check-in clamps the duration to zero and flags the session so the anomaly
// is visible instead of silently corrected.
func (d *DayLedger) ApplyCheckOut(stamp ScanStamp) (*AttendanceSession, error) {
	index, err := d.ActiveSession()
	if err != nil {
		return nil, err
	}
	if index < 0 {
		return nil, ErrNoActiveSession
	}

	session := &d.Sessions[index]
	session.CheckOut = &stamp
	session.IsActive = false

	duration := stamp.Time.Sub(session.CheckIn.Time)
	if duration < 0 {
		session.DurationMinutes = 0
		session.ClockAnomaly = true
	} else {
		session.DurationMinutes = int(duration.Minutes())
	}

	return session, nil
}
