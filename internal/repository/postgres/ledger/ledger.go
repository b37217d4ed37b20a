package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"presence/backend/foundation/web"
	"presence/backend/internal/entity"
	"presence/backend/internal/pkg/keylock"
	"presence/backend/internal/pkg/repository/postgresql"
	"presence/backend/internal/repository/postgres"
)

// Repository is the source of truth for day ledgers. Mutations serialize
// per (user, day) through an in-process keyed mutex and are additionally
// guarded by a version compare-and-swap, so two replicas of the service
// cannot double-open a session either.
type Repository struct {
	*postgresql.Database
	locks *keylock.KeyLock
}

func NewRepository(database *postgresql.Database) *Repository {
	return &Repository{
		Database: database,
		locks:    keylock.New(),
	}
}

// GetDay returns the ledger for the user and day. ErrNotFound when the user
// has not scanned that day.
func (r Repository) GetDay(ctx context.Context, userID int, workDay string) (entity.DayLedger, error) {
	var ledger entity.DayLedger

	err := r.NewSelect().Model(&ledger).
		Where("user_id = ? AND work_day = ? AND deleted_at IS NULL", userID, workDay).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.DayLedger{}, postgres.ErrNotFound
	}
	if err != nil {
		return entity.DayLedger{}, errors.Wrap(err, "selecting day ledger")
	}

	return ledger, nil
}

// GetOrCreateDay lazily creates the ledger on the first scan of the day.
// Idempotent under concurrency: the unique (user_id, work_day) index makes
// the losing insert a no-op and both callers read the same row back.
func (r Repository) GetOrCreateDay(ctx context.Context, userID, organizationID int, workDay string) (entity.DayLedger, error) {
	ledger, err := r.GetDay(ctx, userID, workDay)
	if err == nil {
		return ledger, nil
	}
	if !errors.Is(err, postgres.ErrNotFound) {
		return entity.DayLedger{}, err
	}

	now := time.Now()
	fresh := entity.DayLedger{
		UserID:         userID,
		OrganizationID: organizationID,
		WorkDay:        workDay,
		Sessions:       []entity.AttendanceSession{},
		Version:        1,
	}
	fresh.CreatedAt = &now

	if _, err = r.NewInsert().Model(&fresh).
		On("CONFLICT (user_id, work_day) DO NOTHING").
		Exec(ctx); err != nil {
		return entity.DayLedger{}, errors.Wrap(err, "inserting day ledger")
	}

	return r.GetDay(ctx, userID, workDay)
}

// ApplyCheckIn opens a session on the user's day ledger.
func (r Repository) ApplyCheckIn(ctx context.Context, userID, organizationID int, workDay string, stamp entity.ScanStamp) (entity.DayLedger, entity.AttendanceSession, error) {
	return r.mutate(ctx, userID, organizationID, workDay, func(ledger *entity.DayLedger) (*entity.AttendanceSession, error) {
		return ledger.ApplyCheckIn(stamp)
	})
}

// ApplyCheckOut closes the active session on the user's day ledger.
func (r Repository) ApplyCheckOut(ctx context.Context, userID, organizationID int, workDay string, stamp entity.ScanStamp) (entity.DayLedger, entity.AttendanceSession, error) {
	return r.mutate(ctx, userID, organizationID, workDay, func(ledger *entity.DayLedger) (*entity.AttendanceSession, error) {
		return ledger.ApplyCheckOut(stamp)
	})
}

// mutate runs a transition under the per-key lock, persisting through the
// version CAS. One retry covers a concurrent writer outside this process;
// after that the conflict surfaces to the caller.
func (r Repository) mutate(ctx context.Context, userID, organizationID int, workDay string, transition func(*entity.DayLedger) (*entity.AttendanceSession, error)) (entity.DayLedger, entity.AttendanceSession, error) {
	key := dayKey(userID, workDay)
	r.locks.Lock(key)
	defer r.locks.Unlock(key)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		ledger, err := r.GetOrCreateDay(ctx, userID, organizationID, workDay)
		if err != nil {
			return entity.DayLedger{}, entity.AttendanceSession{}, err
		}

		session, err := transition(&ledger)
		if err != nil {
			return entity.DayLedger{}, entity.AttendanceSession{}, err
		}

		if err = r.save(ctx, &ledger); err != nil {
			if errors.Is(err, postgres.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return entity.DayLedger{}, entity.AttendanceSession{}, err
		}

		return ledger, *session, nil
	}

	return entity.DayLedger{}, entity.AttendanceSession{}, lastErr
}

// saveQuery builds the CAS update. Every column is written through an
// explicit SET: bun drops model column assignments as soon as one SET
// expression is present, so mixing Column with the version expression
// would silently lose the sessions payload.
func (r Repository) saveQuery(ledger *entity.DayLedger, now time.Time) (*bun.UpdateQuery, error) {
	sessions := ledger.Sessions
	if sessions == nil {
		sessions = []entity.AttendanceSession{}
	}
	payload, err := json.Marshal(sessions)
	if err != nil {
		return nil, errors.Wrap(err, "encoding sessions")
	}

	return r.NewUpdate().
		Model((*entity.DayLedger)(nil)).
		Set("sessions = ?", string(payload)).
		Set("manual_status = ?", ledger.ManualStatus).
		Set("version = version + 1").
		Set("updated_at = ?", now).
		Where("id = ? AND version = ?", ledger.ID, ledger.Version), nil
}

// save persists the sessions with a compare-and-swap on the version column.
func (r Repository) save(ctx context.Context, ledger *entity.DayLedger) error {
	now := time.Now()

	query, err := r.saveQuery(ledger, now)
	if err != nil {
		return err
	}

	result, err := query.Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "updating day ledger")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "checking ledger update")
	}
	if affected == 0 {
		return postgres.ErrVersionConflict
	}

	ledger.Version++
	ledger.UpdatedAt = &now

	return nil
}

// SetManualStatus is the admin override path. It writes through the same
// lock and CAS contract as scans.
func (r Repository) SetManualStatus(ctx context.Context, request ManualMarkRequest) (entity.DayLedger, error) {
	claims, err := r.CheckClaims(ctx)
	if err != nil {
		return entity.DayLedger{}, err
	}

	if err := r.ValidateStruct(&request, "UserID", "Date", "Status"); err != nil {
		return entity.DayLedger{}, err
	}
	switch request.Status {
	case entity.StatusAbsent, entity.StatusPresent, entity.StatusHalfDay, entity.StatusFullDay:
	default:
		return entity.DayLedger{}, web.NewRequestError(errors.Errorf("unknown status %q", request.Status), http.StatusBadRequest)
	}

	key := dayKey(request.UserID, request.Date)
	r.locks.Lock(key)
	defer r.locks.Unlock(key)

	ledger, err := r.GetOrCreateDay(ctx, request.UserID, claims.OrganizationID, request.Date)
	if err != nil {
		return entity.DayLedger{}, err
	}

	ledger.ManualStatus = &request.Status
	if err = r.save(ctx, &ledger); err != nil {
		return entity.DayLedger{}, err
	}

	return ledger, nil
}

// GetRange lists a user's ledgers between two days inclusive, newest first.
func (r Repository) GetRange(ctx context.Context, filter RangeFilter) ([]entity.DayLedger, error) {
	query := r.NewSelect().
		Model((*entity.DayLedger)(nil)).
		Where("user_id = ? AND work_day BETWEEN ? AND ? AND deleted_at IS NULL", filter.UserID, filter.From, filter.To).
		Order("work_day DESC")

	if filter.Limit != nil {
		query = query.Limit(*filter.Limit)
	}
	if filter.Offset != nil {
		query = query.Offset(*filter.Offset)
	}

	var list []entity.DayLedger
	if err := query.Scan(ctx, &list); err != nil {
		return nil, errors.Wrap(err, "selecting day ledgers")
	}

	return list, nil
}
