package scheduledtask

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines scheduled task persistence operations.
type Repository interface {
	Create(ctx context.Context, task *Task) error
	GetByResourceAndName(ctx context.Context, resourceID uuid.UUID, name string) (*Task, error)
	Delete(ctx context.Context, resourceID uuid.UUID, name string) error
	// ListDue returns every task whose NextExecutionSec <= now, for the
	// scheduler's per-tick dispatch.
	ListDue(ctx context.Context, nowSec int64) ([]*Task, error)
	RecordRun(ctx context.Context, id uuid.UUID, prevSec, nextSec int64) error
	WithTx(tx pgx.Tx) Repository
}

// ErrNotFound indicates a missing scheduled task.
type ErrNotFound struct {
	ResourceID uuid.UUID
	Name       string
}

func (e ErrNotFound) Error() string { return "scheduled task not found: " + e.Name }

// ErrDuplicate indicates the (resource, name) uniqueness constraint was violated.
type ErrDuplicate struct {
	ResourceID uuid.UUID
	Name       string
}

func (e ErrDuplicate) Error() string { return "scheduled task already exists: " + e.Name }
