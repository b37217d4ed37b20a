package device

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"presence/backend/foundation/web"
	"presence/backend/internal/entity"
	"presence/backend/internal/pkg/repository/postgresql"
	"presence/backend/internal/repository/postgres"
)

// Decisions accepted by ResolveChangeRequest.
const (
	DecisionApprove = "APPROVE"
	DecisionReject  = "REJECT"
)

// Repository enforces the one-device-per-user rule and manages device
// change requests.
type Repository struct {
	*postgresql.Database
}

func NewRepository(database *postgresql.Database) *Repository {
	return &Repository{Database: database}
}

// CheckBinding compares the incoming device with the user's registered one.
// A user without a binding is auto-bound to the device on first use.
func (r Repository) CheckBinding(ctx context.Context, userID int, incoming Device) (string, error) {
	var binding entity.DeviceBinding

	err := r.NewSelect().Model(&binding).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return r.autoBind(ctx, userID, incoming)
	}
	if err != nil {
		return "", errors.Wrap(err, "selecting device binding")
	}

	if binding.DeviceID != incoming.ID {
		return BindingMismatch, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(binding.FingerprintHash), []byte(incoming.Fingerprint)) != nil {
		return BindingMismatch, nil
	}

	return BindingBound, nil
}

func (r Repository) autoBind(ctx context.Context, userID int, incoming Device) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(incoming.Fingerprint), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hashing device fingerprint")
	}

	now := time.Now()
	binding := entity.DeviceBinding{
		UserID:          userID,
		DeviceID:        incoming.ID,
		DeviceType:      incoming.Type,
		FingerprintHash: string(hash),
		RegisteredAt:    now,
	}
	binding.CreatedAt = &now

	result, err := r.NewInsert().Model(&binding).
		On("CONFLICT (user_id) WHERE deleted_at IS NULL DO NOTHING").
		Exec(ctx)
	if err != nil {
		return "", errors.Wrap(err, "inserting device binding")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return "", errors.Wrap(err, "checking binding insert")
	}
	if affected == 0 {
		// Lost the race to a concurrent first scan: re-check against
		// whatever got bound.
		return r.CheckBinding(ctx, userID, incoming)
	}

	return BindingAutoBound, nil
}

// GetBinding returns the user's current binding, if any.
func (r Repository) GetBinding(ctx context.Context, userID int) (entity.DeviceBinding, error) {
	var binding entity.DeviceBinding

	err := r.NewSelect().Model(&binding).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.DeviceBinding{}, postgres.ErrNotFound
	}
	if err != nil {
		return entity.DeviceBinding{}, errors.Wrap(err, "selecting device binding")
	}

	return binding, nil
}

// FileChangeRequest records a user asking to rebind to a new device. Fails
// with ErrDuplicateRequest while a pending request exists.
func (r Repository) FileChangeRequest(ctx context.Context, request FileChangeRequest) (entity.DeviceChangeRequest, error) {
	if err := r.ValidateStruct(&request, "UserID", "Reason"); err != nil {
		return entity.DeviceChangeRequest{}, err
	}
	if request.RequestedDevice.ID == "" || request.RequestedDevice.Fingerprint == "" {
		return entity.DeviceChangeRequest{}, web.NewRequestError(errors.New("requested device id and fingerprint are required"), http.StatusBadRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(request.RequestedDevice.Fingerprint), bcrypt.DefaultCost)
	if err != nil {
		return entity.DeviceChangeRequest{}, errors.Wrap(err, "hashing requested fingerprint")
	}

	var currentDeviceID *string
	binding, err := r.GetBinding(ctx, request.UserID)
	if err == nil {
		currentDeviceID = &binding.DeviceID
	} else if !errors.Is(err, postgres.ErrNotFound) {
		return entity.DeviceChangeRequest{}, err
	}

	now := time.Now()
	change := entity.DeviceChangeRequest{
		UserID:               request.UserID,
		CurrentDeviceID:      currentDeviceID,
		RequestedDeviceID:    request.RequestedDevice.ID,
		RequestedDeviceType:  request.RequestedDevice.Type,
		RequestedFingerprint: string(hash),
		Reason:               request.Reason,
		Status:               entity.ChangeRequestPending,
		RequestedAt:          now,
	}
	change.CreatedAt = &now

	_, err = r.NewInsert().Model(&change).Returning("id").Exec(ctx, &change.ID)
	if err != nil {
		// The partial unique index on (user_id) WHERE status = 'PENDING'
		// turns a duplicate filing into a constraint violation.
		if strings.Contains(err.Error(), "duplicate key") {
			return entity.DeviceChangeRequest{}, postgres.ErrDuplicateRequest
		}
		return entity.DeviceChangeRequest{}, errors.Wrap(err, "inserting device change request")
	}

	return change, nil
}

// ResolveChangeRequest applies an admin decision. Approving rebinds the user
// to the requested device; both outcomes are terminal and resolving twice
// fails with ErrAlreadyResolved.
func (r Repository) ResolveChangeRequest(ctx context.Context, request ResolveRequest) (entity.DeviceChangeRequest, error) {
	claims, err := r.CheckClaims(ctx)
	if err != nil {
		return entity.DeviceChangeRequest{}, err
	}

	if err := r.ValidateStruct(&request, "RequestID", "Decision"); err != nil {
		return entity.DeviceChangeRequest{}, err
	}
	if request.Decision != DecisionApprove && request.Decision != DecisionReject {
		return entity.DeviceChangeRequest{}, web.NewRequestError(errors.Errorf("unknown decision %q", request.Decision), http.StatusBadRequest)
	}

	var change entity.DeviceChangeRequest
	err = r.NewSelect().Model(&change).
		Where("id = ? AND deleted_at IS NULL", request.RequestID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.DeviceChangeRequest{}, postgres.ErrNotFound
	}
	if err != nil {
		return entity.DeviceChangeRequest{}, errors.Wrap(err, "selecting device change request")
	}

	status := entity.ChangeRequestRejected
	if request.Decision == DecisionApprove {
		status = entity.ChangeRequestApproved
	}

	now := time.Now()
	if err = change.Resolve(status, request.AdminReason, now); err != nil {
		return entity.DeviceChangeRequest{}, postgres.ErrAlreadyResolved
	}

	tx, err := r.BeginTx(ctx, nil)
	if err != nil {
		return entity.DeviceChangeRequest{}, errors.Wrap(err, "starting resolve transaction")
	}
	defer tx.Rollback()

	// Guard the status in the WHERE clause so two concurrent admins cannot
	// both resolve the same request.
	result, err := tx.NewUpdate().
		Model((*entity.DeviceChangeRequest)(nil)).
		Set("status = ?", status).
		Set("resolved_at = ?", now).
		Set("admin_reason = ?", request.AdminReason).
		Set("updated_at = ?", now).
		Set("updated_by = ?", claims.UserId).
		Where("id = ? AND status = ?", change.ID, entity.ChangeRequestPending).
		Exec(ctx)
	if err != nil {
		return entity.DeviceChangeRequest{}, errors.Wrap(err, "updating device change request")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return entity.DeviceChangeRequest{}, errors.Wrap(err, "checking resolve result")
	}
	if affected == 0 {
		return entity.DeviceChangeRequest{}, postgres.ErrAlreadyResolved
	}

	if status == entity.ChangeRequestApproved {
		// Retire rather than delete: replaced bindings stay auditable the
		// same way regenerated QR codes do.
		if _, err = tx.NewUpdate().
			Model((*entity.DeviceBinding)(nil)).
			Set("deleted_at = ?", now).
			Set("deleted_by = ?", claims.UserId).
			Where("user_id = ? AND deleted_at IS NULL", change.UserID).
			Exec(ctx); err != nil {
			return entity.DeviceChangeRequest{}, errors.Wrap(err, "retiring old device binding")
		}

		binding := entity.DeviceBinding{
			UserID:          change.UserID,
			DeviceID:        change.RequestedDeviceID,
			DeviceType:      change.RequestedDeviceType,
			FingerprintHash: change.RequestedFingerprint,
			RegisteredAt:    now,
		}
		binding.CreatedAt = &now
		binding.CreatedBy = &claims.UserId

		if _, err = tx.NewInsert().Model(&binding).Exec(ctx); err != nil {
			return entity.DeviceChangeRequest{}, errors.Wrap(err, "inserting replacement binding")
		}
	}

	if err = tx.Commit(); err != nil {
		return entity.DeviceChangeRequest{}, errors.Wrap(err, "committing resolve transaction")
	}

	return change, nil
}

// ResetBinding retires the user's binding so the next scan auto-binds.
func (r Repository) ResetBinding(ctx context.Context, userID int) error {
	binding, err := r.GetBinding(ctx, userID)
	if err != nil {
		return err
	}
	return r.DeleteRow(ctx, "device_bindings", binding.ID)
}

// GetChangeRequestById returns one change request for the admin detail view.
func (r Repository) GetChangeRequestById(ctx context.Context, id int) (entity.DeviceChangeRequest, error) {
	var change entity.DeviceChangeRequest

	err := r.NewSelect().Model(&change).
		Where("id = ? AND deleted_at IS NULL", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.DeviceChangeRequest{}, postgres.ErrNotFound
	}
	if err != nil {
		return entity.DeviceChangeRequest{}, errors.Wrap(err, "selecting device change request")
	}

	return change, nil
}

// GetChangeRequests lists change requests for the admin review screen.
func (r Repository) GetChangeRequests(ctx context.Context, filter Filter) ([]entity.DeviceChangeRequest, error) {
	query := r.NewSelect().
		Model((*entity.DeviceChangeRequest)(nil)).
		Where("deleted_at IS NULL").
		Order("requested_at DESC")

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Limit != nil {
		query = query.Limit(*filter.Limit)
	}
	if filter.Offset != nil {
		query = query.Offset(*filter.Offset)
	}

	var list []entity.DeviceChangeRequest
	if err := query.Scan(ctx, &list); err != nil {
		return nil, errors.Wrap(err, "selecting device change requests")
	}

	return list, nil
}
