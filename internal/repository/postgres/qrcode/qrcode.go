package qrcode

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"log"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"presence/backend/foundation/web"
	"presence/backend/internal/entity"
	"presence/backend/internal/pkg/cache"
	"presence/backend/internal/pkg/repository/postgresql"
	"presence/backend/internal/repository/postgres"
)

const codeCachePrefix = "qrcode:code:"

// Repository issues and resolves organization QR codes. Codes are opaque
// 128-bit random tokens; regeneration deactivates the old code but keeps its
// row for the usage audit trail.
type Repository struct {
	*postgresql.Database
	cache *cache.Cache
}

func NewRepository(database *postgresql.Database, cache *cache.Cache) *Repository {
	return &Repository{Database: database, cache: cache}
}

// Issue creates a fresh code for the organization and kind. A nil validity
// issues a long-lived code that is only usage-counted.
func (r Repository) Issue(ctx context.Context, request IssueRequest) (entity.OrganizationQRCode, error) {
	claims, err := r.CheckClaims(ctx)
	if err != nil {
		return entity.OrganizationQRCode{}, err
	}

	if err := r.ValidateStruct(&request, "OrganizationID", "Kind"); err != nil {
		return entity.OrganizationQRCode{}, err
	}

	switch request.Kind {
	case entity.QRKindCheckIn, entity.QRKindCheckOut, entity.QRKindAny:
	default:
		return entity.OrganizationQRCode{}, web.NewRequestError(errors.Errorf("unknown qr kind %q", request.Kind), http.StatusBadRequest)
	}

	token, err := generateCode()
	if err != nil {
		return entity.OrganizationQRCode{}, web.NewRequestError(errors.Wrap(err, "generating qr token"), http.StatusInternalServerError)
	}

	now := time.Now()
	code := entity.OrganizationQRCode{
		OrganizationID: request.OrganizationID,
		Kind:           request.Kind,
		Code:           token,
		IssuedAt:       now,
		Active:         true,
	}
	code.CreatedAt = &now
	code.CreatedBy = &claims.UserId
	if request.ValiditySeconds != nil {
		expiresAt := now.Add(time.Duration(*request.ValiditySeconds) * time.Second)
		code.ExpiresAt = &expiresAt
	}

	if _, err = r.NewInsert().Model(&code).Returning("id").Exec(ctx, &code.ID); err != nil {
		return entity.OrganizationQRCode{}, web.NewRequestError(errors.Wrap(err, "inserting qr code"), http.StatusInternalServerError)
	}

	return code, nil
}

// Resolve finds the code record for an incoming scan token.
func (r Repository) Resolve(ctx context.Context, token string) (entity.OrganizationQRCode, error) {
	var code entity.OrganizationQRCode

	if r.cache != nil {
		hit, err := r.cache.Get(ctx, codeCachePrefix+token, &code)
		if err != nil {
			log.Printf("qrcode cache read failed: %v", err)
		} else if hit {
			return code, nil
		}
	}

	err := r.NewSelect().Model(&code).
		Where("code = ? AND deleted_at IS NULL", token).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.OrganizationQRCode{}, postgres.ErrNotFound
	}
	if err != nil {
		return entity.OrganizationQRCode{}, errors.Wrap(err, "selecting qr code")
	}

	if r.cache != nil {
		if err = r.cache.Set(ctx, codeCachePrefix+token, code); err != nil {
			log.Printf("qrcode cache write failed: %v", err)
		}
	}

	return code, nil
}

// GetCurrent returns the active code for the organization and kind.
func (r Repository) GetCurrent(ctx context.Context, organizationID int, kind string) (entity.OrganizationQRCode, error) {
	var code entity.OrganizationQRCode

	err := r.NewSelect().Model(&code).
		Where("organization_id = ? AND kind = ? AND active = true AND deleted_at IS NULL", organizationID, kind).
		Order("issued_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.OrganizationQRCode{}, postgres.ErrNotFound
	}
	if err != nil {
		return entity.OrganizationQRCode{}, errors.Wrap(err, "selecting current qr code")
	}

	return code, nil
}

// RecordUsage bumps the usage counter. The increment happens in SQL so
// concurrent scans never race a read-modify-write.
func (r Repository) RecordUsage(ctx context.Context, id int) error {
	_, err := r.NewUpdate().
		Model((*entity.OrganizationQRCode)(nil)).
		Set("usage_count = usage_count + 1").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "recording qr usage")
	}
	return nil
}

// Regenerate deactivates the current code for the kind and issues a new one
// in a single transaction. The old row and its usage count survive for audit.
func (r Repository) Regenerate(ctx context.Context, request RegenerateRequest) (entity.OrganizationQRCode, error) {
	if err := r.ValidateStruct(&request, "OrganizationID", "Kind"); err != nil {
		return entity.OrganizationQRCode{}, err
	}

	var retired []entity.OrganizationQRCode
	err := r.NewSelect().Model(&retired).
		Where("organization_id = ? AND kind = ? AND active = true AND deleted_at IS NULL", request.OrganizationID, request.Kind).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return entity.OrganizationQRCode{}, errors.Wrap(err, "selecting codes to retire")
	}

	tx, err := r.BeginTx(ctx, nil)
	if err != nil {
		return entity.OrganizationQRCode{}, errors.Wrap(err, "starting regenerate transaction")
	}
	defer tx.Rollback()

	_, err = tx.NewUpdate().
		Model((*entity.OrganizationQRCode)(nil)).
		Set("active = false").
		Set("updated_at = ?", time.Now()).
		Where("organization_id = ? AND kind = ? AND active = true AND deleted_at IS NULL", request.OrganizationID, request.Kind).
		Exec(ctx)
	if err != nil {
		return entity.OrganizationQRCode{}, errors.Wrap(err, "deactivating qr codes")
	}

	token, err := generateCode()
	if err != nil {
		return entity.OrganizationQRCode{}, errors.Wrap(err, "generating qr token")
	}

	now := time.Now()
	code := entity.OrganizationQRCode{
		OrganizationID: request.OrganizationID,
		Kind:           request.Kind,
		Code:           token,
		IssuedAt:       now,
		Active:         true,
	}
	code.CreatedAt = &now
	if request.ValiditySeconds != nil {
		expiresAt := now.Add(time.Duration(*request.ValiditySeconds) * time.Second)
		code.ExpiresAt = &expiresAt
	}

	if _, err = tx.NewInsert().Model(&code).Returning("id").Exec(ctx, &code.ID); err != nil {
		return entity.OrganizationQRCode{}, errors.Wrap(err, "inserting regenerated qr code")
	}

	if err = tx.Commit(); err != nil {
		return entity.OrganizationQRCode{}, errors.Wrap(err, "committing regenerate transaction")
	}

	if r.cache != nil {
		for _, old := range retired {
			if err = r.cache.Invalidate(ctx, codeCachePrefix+old.Code); err != nil {
				log.Printf("qrcode cache invalidate failed: %v", err)
			}
		}
	}

	return code, nil
}

// generateCode returns an unpredictable token with 128 bits of entropy.
func generateCode() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
