package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"git.taler.net/nexus/internal/domain/scheduledtask"
	"git.taler.net/nexus/internal/domain/shared"
	"git.taler.net/nexus/internal/worker/bankprocessor"
)

type mockTaskRepo struct {
	mock.Mock
}

func (m *mockTaskRepo) Create(ctx context.Context, task *scheduledtask.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *mockTaskRepo) GetByResourceAndName(ctx context.Context, resourceID uuid.UUID, name string) (*scheduledtask.Task, error) {
	args := m.Called(ctx, resourceID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scheduledtask.Task), args.Error(1)
}

func (m *mockTaskRepo) Delete(ctx context.Context, resourceID uuid.UUID, name string) error {
	args := m.Called(ctx, resourceID, name)
	return args.Error(0)
}

func (m *mockTaskRepo) ListDue(ctx context.Context, nowSec int64) ([]*scheduledtask.Task, error) {
	args := m.Called(ctx, nowSec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*scheduledtask.Task), args.Error(1)
}

func (m *mockTaskRepo) RecordRun(ctx context.Context, id uuid.UUID, prevSec, nextSec int64) error {
	args := m.Called(ctx, id, prevSec, nextSec)
	return args.Error(0)
}

func (m *mockTaskRepo) WithTx(tx pgx.Tx) scheduledtask.Repository {
	return m
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTickDispatchesDueTasksAndReschedules(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := &shared.FixedClock{At: now}

	accountID := uuid.New()
	task := &scheduledtask.Task{
		ID:         uuid.New(),
		ResourceID: accountID,
		Name:       "submit",
		Type:       shared.TaskSubmit,
		CronSpec:   everyTick,
	}

	repo := &mockTaskRepo{}
	repo.On("ListDue", mock.Anything, now.Unix()).Return([]*scheduledtask.Task{task}, nil)
	repo.On("RecordRun", mock.Anything, task.ID, now.Unix(), now.Unix()).Return(nil)

	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, accountID.String(), bankprocessor.Task{BankAccountID: accountID, Type: shared.TaskSubmit}).Return(nil)

	s := New(repo, pub, time.Second, clock, discardLogger())
	s.tick(context.Background())

	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestTickParsesFetchParams(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := &shared.FixedClock{At: now}

	accountID := uuid.New()
	task := &scheduledtask.Task{
		ID:         uuid.New(),
		ResourceID: accountID,
		Name:       "fetch",
		Type:       shared.TaskFetch,
		CronSpec:   "0 6 * * *",
		Params:     []byte(`{"level":"statement","rangeType":"since-last"}`),
	}

	repo := &mockTaskRepo{}
	repo.On("ListDue", mock.Anything, now.Unix()).Return([]*scheduledtask.Task{task}, nil)
	repo.On("RecordRun", mock.Anything, task.ID, now.Unix(), mock.AnythingOfType("int64")).Return(nil)

	var captured bankprocessor.Task
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, accountID.String(), mock.AnythingOfType("bankprocessor.Task")).
		Run(func(args mock.Arguments) { captured = args.Get(2).(bankprocessor.Task) }).
		Return(nil)

	s := New(repo, pub, time.Second, clock, discardLogger())
	s.tick(context.Background())

	require.NotNil(t, captured.Fetch)
	assert.Equal(t, shared.FetchLevelStatement, captured.Fetch.Level)
	assert.Equal(t, shared.RangeSinceLast, captured.Fetch.RangeType)
}

func TestNextFireTimeEveryTickReturnsNow(t *testing.T) {
	s := New(nil, nil, time.Second, &shared.FixedClock{}, discardLogger())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, now, s.nextFireTime(everyTick, now))
}

func TestNextFireTimeParsesStandardCron(t *testing.T) {
	s := New(nil, nil, time.Second, &shared.FixedClock{}, discardLogger())
	now := time.Date(2026, 1, 1, 5, 0, 0, 0, time.UTC)
	next := s.nextFireTime("0 6 * * *", now)
	assert.Equal(t, time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC), next)
}

func TestNextFireTimeInvalidSpecFallsBackToOneMinute(t *testing.T) {
	s := New(nil, nil, time.Second, &shared.FixedClock{}, discardLogger())
	now := time.Date(2026, 1, 1, 5, 0, 0, 0, time.UTC)
	next := s.nextFireTime("not a cron spec", now)
	assert.Equal(t, now.Add(time.Minute), next)
}
