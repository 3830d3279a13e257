package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"git.taler.net/nexus/internal/domain/scheduledtask"
	"git.taler.net/nexus/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ScheduledTaskRepository implements scheduledtask.Repository for PostgreSQL.
type ScheduledTaskRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewScheduledTaskRepository(logger *slog.Logger, db *persistence.PostgresDB) scheduledtask.Repository {
	return &ScheduledTaskRepository{querier: db.Pool(), logger: logger}
}

func (r *ScheduledTaskRepository) WithTx(tx pgx.Tx) scheduledtask.Repository {
	return &ScheduledTaskRepository{querier: tx, logger: r.logger}
}

func (r *ScheduledTaskRepository) Create(ctx context.Context, task *scheduledtask.Task) error {
	query := `
		INSERT INTO scheduled_tasks (
			id, resource_type, resource_id, name, type, cron_spec, params,
			prev_execution_sec, next_execution_sec, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.querier.Exec(ctx, query,
		task.ID, task.ResourceType, task.ResourceID, task.Name, task.Type, task.CronSpec, task.Params,
		task.PrevExecutionSec, task.NextExecutionSec, task.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return scheduledtask.ErrDuplicate{ResourceID: task.ResourceID, Name: task.Name}
		}
		r.logger.Error("failed to create scheduled task", "error", err)
		return fmt.Errorf("failed to create scheduled task: %w", err)
	}
	return nil
}

const scheduledTaskColumns = `
	id, resource_type, resource_id, name, type, cron_spec, params,
	prev_execution_sec, next_execution_sec, created_at
`

func scanScheduledTask(row pgx.Row) (*scheduledtask.Task, error) {
	var t scheduledtask.Task
	err := row.Scan(&t.ID, &t.ResourceType, &t.ResourceID, &t.Name, &t.Type, &t.CronSpec, &t.Params, &t.PrevExecutionSec, &t.NextExecutionSec, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *ScheduledTaskRepository) GetByResourceAndName(ctx context.Context, resourceID uuid.UUID, name string) (*scheduledtask.Task, error) {
	row := r.querier.QueryRow(ctx, "SELECT "+scheduledTaskColumns+" FROM scheduled_tasks WHERE resource_id = $1 AND name = $2", resourceID, name)
	t, err := scanScheduledTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, scheduledtask.ErrNotFound{ResourceID: resourceID, Name: name}
		}
		return nil, fmt.Errorf("failed to get scheduled task: %w", err)
	}
	return t, nil
}

func (r *ScheduledTaskRepository) Delete(ctx context.Context, resourceID uuid.UUID, name string) error {
	result, err := r.querier.Exec(ctx, `DELETE FROM scheduled_tasks WHERE resource_id = $1 AND name = $2`, resourceID, name)
	if err != nil {
		return fmt.Errorf("failed to delete scheduled task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return scheduledtask.ErrNotFound{ResourceID: resourceID, Name: name}
	}
	return nil
}

func (r *ScheduledTaskRepository) ListDue(ctx context.Context, nowSec int64) ([]*scheduledtask.Task, error) {
	query := "SELECT " + scheduledTaskColumns + " FROM scheduled_tasks WHERE next_execution_sec <= $1 ORDER BY next_execution_sec ASC"
	rows, err := r.querier.Query(ctx, query, nowSec)
	if err != nil {
		return nil, fmt.Errorf("failed to list due scheduled tasks: %w", err)
	}
	defer rows.Close()

	var out []*scheduledtask.Task
	for rows.Next() {
		t, err := scanScheduledTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *ScheduledTaskRepository) RecordRun(ctx context.Context, id uuid.UUID, prevSec, nextSec int64) error {
	result, err := r.querier.Exec(ctx, `UPDATE scheduled_tasks SET prev_execution_sec = $2, next_execution_sec = $3 WHERE id = $1`, id, prevSec, nextSec)
	if err != nil {
		return fmt.Errorf("failed to record scheduled task run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return scheduledtask.ErrNotFound{}
	}
	return nil
}
