package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"git.taler.net/nexus/internal/domain/nexususer"
)

type MockNexusUserRepository struct {
	mock.Mock
}

func (m *MockNexusUserRepository) Create(ctx context.Context, u *nexususer.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockNexusUserRepository) GetByUsername(ctx context.Context, username string) (*nexususer.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*nexususer.User), args.Error(1)
}

func (m *MockNexusUserRepository) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	args := m.Called(ctx, username, passwordHash)
	return args.Error(0)
}

func (m *MockNexusUserRepository) WithTx(tx pgx.Tx) nexususer.Repository {
	args := m.Called(tx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(nexususer.Repository)
}

var _ nexususer.Repository = (*MockNexusUserRepository)(nil)

func TestUserService_CreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo := new(MockNexusUserRepository)
		svc := NewUserService(repo, nil)

		repo.On("Create", ctx, mock.AnythingOfType("*nexususer.User")).Return(nil).Once()

		err := svc.CreateUser(ctx, "alice", "hunter2", true)

		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("InvalidUser", func(t *testing.T) {
		repo := new(MockNexusUserRepository)
		svc := NewUserService(repo, nil)

		err := svc.CreateUser(ctx, "", "hunter2", false)

		assert.ErrorIs(t, err, nexususer.ErrEmptyUsername)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("RepositoryError", func(t *testing.T) {
		repo := new(MockNexusUserRepository)
		svc := NewUserService(repo, nil)
		repoErr := errors.New("duplicate key")

		repo.On("Create", ctx, mock.AnythingOfType("*nexususer.User")).Return(repoErr).Once()

		err := svc.CreateUser(ctx, "bob", "hunter2", false)

		assert.ErrorIs(t, err, repoErr)
		repo.AssertExpectations(t)
	})
}

func TestUserService_ChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo := new(MockNexusUserRepository)
		svc := NewUserService(repo, nil)

		repo.On("UpdatePassword", ctx, "alice", mock.AnythingOfType("string")).Return(nil).Once()

		err := svc.ChangePassword(ctx, "alice", "newpassword")

		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("EmptyPassword", func(t *testing.T) {
		repo := new(MockNexusUserRepository)
		svc := NewUserService(repo, nil)

		err := svc.ChangePassword(ctx, "alice", "")

		assert.ErrorIs(t, err, nexususer.ErrEmptyPassword)
		repo.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("RepositoryError", func(t *testing.T) {
		repo := new(MockNexusUserRepository)
		svc := NewUserService(repo, nil)
		repoErr := nexususer.ErrNotFound{Username: "ghost"}

		repo.On("UpdatePassword", ctx, "ghost", mock.AnythingOfType("string")).Return(repoErr).Once()

		err := svc.ChangePassword(ctx, "ghost", "newpassword")

		assert.ErrorIs(t, err, repoErr)
		repo.AssertExpectations(t)
	})
}
