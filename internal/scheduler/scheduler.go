// Package scheduler is nexusd's side of the cooperative dispatcher: it
// wakes on a fixed tick, asks the scheduled_tasks table which rows are
// due, and publishes each one as a BankTaskRequest on the bank task
// Kafka topic. nexusd never talks to a bank directly — the worker
// process consumes that topic and runs the EBICS transaction. Publish
// failures are logged, never disable the task — the task is rescheduled
// to its next cron fire time as on success (spec §4.5, §2).
package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"git.taler.net/nexus/internal/domain/scheduledtask"
	"git.taler.net/nexus/internal/domain/shared"
	"git.taler.net/nexus/internal/worker/bankprocessor"
)

// everyTick is the literal cron spec meaning "due again next tick",
// used by tests that don't want to wait out a real cron interval.
const everyTick = "* * *"

// publisher is the subset of producers.MessagePublisher the scheduler
// needs, narrowed so tests can substitute a fake.
type publisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

// Scheduler polls for due tasks and publishes them as BankTaskRequests.
type Scheduler struct {
	tasks     scheduledtask.Repository
	publisher publisher
	interval  time.Duration
	clock     shared.Clock
	logger    *slog.Logger

	parser cron.Parser
}

func New(tasks scheduledtask.Repository, publisher publisher, interval time.Duration, clock shared.Clock, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		tasks:     tasks,
		publisher: publisher,
		interval:  interval,
		clock:     clock,
		logger:    logger,
		parser:    cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// Run blocks, ticking every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.clock.Now()
	due, err := s.tasks.ListDue(ctx, now.Unix())
	if err != nil {
		s.logger.Error("scheduler: list due tasks failed", "error", err)
		return
	}
	for _, task := range due {
		s.dispatch(ctx, task, now)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, task *scheduledtask.Task, now time.Time) {
	bankTask := bankprocessor.Task{BankAccountID: task.ResourceID, Type: task.Type}
	if task.Type == shared.TaskFetch {
		var params scheduledtask.FetchParams
		if len(task.Params) > 0 {
			if err := json.Unmarshal(task.Params, &params); err != nil {
				s.logger.Error("scheduler: invalid fetch params", "task_id", task.ID, "error", err)
				s.reschedule(ctx, task, now)
				return
			}
		}
		bankTask.Fetch = &params
	}

	if err := s.publisher.Publish(ctx, task.ResourceID.String(), bankTask); err != nil {
		s.logger.Error("scheduler: publish task failed", "task_id", task.ID, "name", task.Name, "error", err)
	}
	s.reschedule(ctx, task, now)
}

func (s *Scheduler) reschedule(ctx context.Context, task *scheduledtask.Task, now time.Time) {
	next := s.nextFireTime(task.CronSpec, now)
	if err := s.tasks.RecordRun(ctx, task.ID, now.Unix(), next.Unix()); err != nil {
		s.logger.Error("scheduler: failed to record run", "task_id", task.ID, "error", err)
	}
}

func (s *Scheduler) nextFireTime(spec string, now time.Time) time.Time {
	if spec == everyTick {
		return now
	}
	schedule, err := s.parser.Parse(spec)
	if err != nil {
		s.logger.Error("scheduler: invalid cron spec, retrying in a minute", "spec", spec, "error", err)
		return now.Add(time.Minute)
	}
	return schedule.Next(now)
}
