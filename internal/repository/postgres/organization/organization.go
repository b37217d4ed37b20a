package organization

import (
	"context"
	"database/sql"
	"log"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"presence/backend/internal/entity"
	"presence/backend/internal/pkg/cache"
	"presence/backend/internal/pkg/repository/postgresql"
	"presence/backend/internal/repository/postgres"
)

const orgCachePrefix = "organization:"

// Repository reads the organization's geofence/working configuration and the
// per-user working policies the aggregator classifies against.
type Repository struct {
	*postgresql.Database
	cache *cache.Cache
}

func NewRepository(database *postgresql.Database, cache *cache.Cache) *Repository {
	return &Repository{Database: database, cache: cache}
}

func (r Repository) GetById(ctx context.Context, id int) (entity.Organization, error) {
	var org entity.Organization

	key := orgCachePrefix + strconv.Itoa(id)
	if r.cache != nil {
		hit, err := r.cache.Get(ctx, key, &org)
		if err != nil {
			log.Printf("organization cache read failed: %v", err)
		} else if hit {
			return org, nil
		}
	}

	err := r.NewSelect().Model(&org).
		Where("id = ? AND deleted_at IS NULL", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Organization{}, postgres.ErrNotFound
	}
	if err != nil {
		return entity.Organization{}, errors.Wrap(err, "selecting organization")
	}

	if r.cache != nil {
		if err = r.cache.Set(ctx, key, org); err != nil {
			log.Printf("organization cache write failed: %v", err)
		}
	}

	return org, nil
}

// UpdateColumns updates only the provided fields and invalidates the cached
// entry so the next geofence check sees the new configuration.
func (r Repository) UpdateColumns(ctx context.Context, request UpdateRequest) error {
	claims, err := r.CheckClaims(ctx)
	if err != nil {
		return err
	}

	if err := r.ValidateStruct(&request, "ID"); err != nil {
		return err
	}

	q := r.NewUpdate().Table("organization").Where("deleted_at IS NULL AND id = ?", request.ID)

	if request.Name != nil {
		q.Set("name = ?", *request.Name)
	}
	if request.Latitude != nil {
		q.Set("latitude = ?", *request.Latitude)
	}
	if request.Longitude != nil {
		q.Set("longitude = ?", *request.Longitude)
	}
	if request.RadiusMeters != nil {
		q.Set("radius_meters = ?", *request.RadiusMeters)
	}
	if request.Timezone != nil {
		q.Set("timezone = ?", *request.Timezone)
	}
	if request.WorkStartTime != nil {
		q.Set("work_start_time = ?", *request.WorkStartTime)
	}
	if request.WorkEndTime != nil {
		q.Set("work_end_time = ?", *request.WorkEndTime)
	}
	if request.FullDayMinutes != nil {
		q.Set("full_day_minutes = ?", *request.FullDayMinutes)
	}
	if request.HalfDayMinutes != nil {
		q.Set("half_day_minutes = ?", *request.HalfDayMinutes)
	}
	if request.LateGraceMinutes != nil {
		q.Set("late_grace_minutes = ?", *request.LateGraceMinutes)
	}
	q.Set("updated_at = ?", time.Now())
	q.Set("updated_by = ?", claims.UserId)

	if _, err = q.Exec(ctx); err != nil {
		return errors.Wrap(err, "updating organization")
	}

	if r.cache != nil {
		if err = r.cache.Invalidate(ctx, orgCachePrefix+strconv.Itoa(request.ID)); err != nil {
			log.Printf("organization cache invalidate failed: %v", err)
		}
	}

	return nil
}

// PolicyFor returns the user's working policy, falling back to the
// organization defaults when none is configured.
func (r Repository) PolicyFor(ctx context.Context, userID int, org entity.Organization) (entity.WorkingPolicy, error) {
	var policy entity.WorkingPolicy

	err := r.NewSelect().Model(&policy).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.DefaultPolicy(org), nil
	}
	if err != nil {
		return entity.WorkingPolicy{}, errors.Wrap(err, "selecting working policy")
	}

	if policy.Timezone == "" {
		policy.Timezone = org.Timezone
	}
	if policy.WorkStartTime == "" {
		policy.WorkStartTime = org.WorkStartTime
	}
	if policy.WorkEndTime == "" {
		policy.WorkEndTime = org.WorkEndTime
	}
	if policy.FullDayMinutes <= 0 {
		policy.FullDayMinutes = org.FullDayMinutes
	}
	if policy.HalfDayMinutes <= 0 {
		policy.HalfDayMinutes = org.HalfDayMinutes
	}
	if policy.LateGraceMinutes < 0 {
		policy.LateGraceMinutes = org.LateGraceMinutes
	}

	return policy, nil
}
