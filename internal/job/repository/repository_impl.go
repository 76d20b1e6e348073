package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/railzwaylabs/cargoledger/internal/job/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, job *domain.Job) error {
	return db.WithContext(ctx).Create(job).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*domain.Job, error) {
	return take(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*domain.Job, error) {
	return take(db.WithContext(ctx).Where("idempotency_key = ?", key))
}

func (r *repo) ListPendingIDs(ctx context.Context, db *gorm.DB, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := db.WithContext(ctx).Model(&domain.Job{}).
		Where("status = ?", domain.StatusPending).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *repo) Claim(ctx context.Context, db *gorm.DB, id uuid.UUID, startedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.Job{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(map[string]any{
			"status":     domain.StatusRunning,
			"started_at": startedAt,
			"message":    "",
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repo) Release(ctx context.Context, db *gorm.DB, id uuid.UUID) error {
	return db.WithContext(ctx).Model(&domain.Job{}).
		Where("id = ? AND status = ?", id, domain.StatusRunning).
		Updates(map[string]any{
			"status":     domain.StatusPending,
			"started_at": nil,
		}).Error
}

func (r *repo) Finish(ctx context.Context, db *gorm.DB, id uuid.UUID, status domain.Status, message string, result datatypes.JSON, finishedAt time.Time) error {
	return db.WithContext(ctx).Model(&domain.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      status,
			"message":     message,
			"result":      result,
			"finished_at": finishedAt,
		}).Error
}

func (r *repo) FailStale(ctx context.Context, db *gorm.DB, startedBefore time.Time, message string, finishedAt time.Time) (int64, error) {
	res := db.WithContext(ctx).Model(&domain.Job{}).
		Where("status = ? AND started_at < ?", domain.StatusRunning, startedBefore).
		Updates(map[string]any{
			"status":      domain.StatusFailed,
			"message":     message,
			"finished_at": finishedAt,
		})
	return res.RowsAffected, res.Error
}

func (r *repo) DeleteFinishedBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("status IN ? AND finished_at < ?", []domain.Status{domain.StatusSucceeded, domain.StatusFailed}, cutoff).
		Delete(&domain.Job{})
	return res.RowsAffected, res.Error
}

func take(stmt *gorm.DB) (*domain.Job, error) {
	var job domain.Job
	if err := stmt.Take(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}
