package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, job *Job) error
	FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*Job, error)
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*Job, error)
	ListPendingIDs(ctx context.Context, db *gorm.DB, limit int) ([]uuid.UUID, error)

	// Claim moves a pending job to running. It reports false when another
	// worker got there first.
	Claim(ctx context.Context, db *gorm.DB, id uuid.UUID, startedAt time.Time) (bool, error)
	// Release puts a running job back to pending.
	Release(ctx context.Context, db *gorm.DB, id uuid.UUID) error
	Finish(ctx context.Context, db *gorm.DB, id uuid.UUID, status Status, message string, result datatypes.JSON, finishedAt time.Time) error
	// FailStale fails running jobs started before the cutoff.
	FailStale(ctx context.Context, db *gorm.DB, startedBefore time.Time, message string, finishedAt time.Time) (int64, error)
	DeleteFinishedBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
}
