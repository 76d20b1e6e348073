package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Kind string

const (
	KindRecompute        Kind = "recompute"
	KindGenerateInvoices Kind = "generate_invoices"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Job is a persisted unit of background work. Its payload is the request
// the handler for Kind understands; Result holds the handler's report.
type Job struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Kind           Kind           `gorm:"type:text;not null"`
	ScopeKey       string         `gorm:"type:text;not null;index"`
	IdempotencyKey *string        `gorm:"type:text;uniqueIndex"`
	Status         Status         `gorm:"type:text;not null;index"`
	Message        string         `gorm:"type:text"`
	Payload        datatypes.JSON `gorm:"not null"`
	Result         datatypes.JSON
	CreatedAt      time.Time `gorm:"not null;index"`
	StartedAt      *time.Time
	FinishedAt     *time.Time `gorm:"index"`
}

func (Job) TableName() string { return "jobs" }
