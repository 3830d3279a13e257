// Package scheduledtask models cron-bound fetch/submit tasks attached
// to a bank-account resource, consumed by internal/scheduler.
package scheduledtask

import (
	"encoding/json"
	"errors"
	"time"

	"git.taler.net/nexus/internal/domain/shared"
	"github.com/google/uuid"
)

var ErrEmptyName = errors.New("task name cannot be empty")

// Task is a ScheduledTask row.
type Task struct {
	ID           uuid.UUID
	ResourceType string // "bank-account"
	ResourceID   uuid.UUID
	Name         string
	Type         shared.ScheduledTaskType
	CronSpec     string
	Params       json.RawMessage

	PrevExecutionSec int64
	NextExecutionSec int64

	CreatedAt time.Time
}

func New(resourceID uuid.UUID, name string, taskType shared.ScheduledTaskType, cronSpec string, params json.RawMessage) (*Task, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	return &Task{
		ID:           uuid.New(),
		ResourceType: "bank-account",
		ResourceID:   resourceID,
		Name:         name,
		Type:         taskType,
		CronSpec:     cronSpec,
		Params:       params,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// FetchParams is the params payload for a fetch task.
type FetchParams struct {
	Level     shared.FetchLevel `json:"level"`
	RangeType shared.RangeType  `json:"rangeType"`
	Number    *int              `json:"number,omitempty"`
}
