package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"presence/backend/internal/entity"
	"presence/backend/internal/pkg/repository/postgresql"
)

func testRepository() *Repository {
	// The pgdriver connector is lazy, so rendering queries needs no
	// running database.
	return NewRepository(postgresql.NewDatabase("presence", "presence", "localhost", "5432", "presence_test", true))
}

func TestSaveQueryWritesSessions(t *testing.T) {
	repo := testRepository()

	checkIn := entity.ScanStamp{
		Time:     time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Geo:      entity.GeoPoint{Latitude: 41.3, Longitude: 69.28, Accuracy: 10},
		Verified: true,
	}
	ledger := entity.DayLedger{
		UserID:         7,
		OrganizationID: 1,
		WorkDay:        "2026-03-02",
		Version:        3,
	}
	ledger.ID = 42
	_, err := ledger.ApplyCheckIn(checkIn)
	assert.NoError(t, err)

	query, err := repo.saveQuery(&ledger, time.Date(2026, 3, 2, 9, 0, 1, 0, time.UTC))
	assert.NoError(t, err)

	rendered := query.String()
	assert.Contains(t, rendered, "sessions = ")
	assert.Contains(t, rendered, `"check_in"`)
	assert.Contains(t, rendered, "manual_status = ")
	assert.Contains(t, rendered, "version = version + 1")
	assert.Contains(t, rendered, "id = 42 AND version = 3")
}

func TestSaveQueryManualStatusAndEmptyDay(t *testing.T) {
	repo := testRepository()

	status := entity.StatusFullDay
	ledger := entity.DayLedger{
		UserID:       7,
		WorkDay:      "2026-03-02",
		Version:      1,
		ManualStatus: &status,
	}
	ledger.ID = 9

	query, err := repo.saveQuery(&ledger, time.Now())
	assert.NoError(t, err)

	rendered := query.String()
	assert.Contains(t, rendered, "manual_status = 'FULL_DAY'")
	// A day with no sessions persists an empty array, never NULL.
	assert.Contains(t, rendered, "sessions = '[]'")
}
