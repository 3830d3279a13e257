package service

import (
	"context"
	"log/slog"

	"git.taler.net/nexus/internal/domain/nexususer"
)

type userService struct {
	users  nexususer.Repository
	logger *slog.Logger
}

func NewUserService(users nexususer.Repository, logger *slog.Logger) UserService {
	return &userService{users: users, logger: logger}
}

func (s *userService) CreateUser(ctx context.Context, username, password string, superuser bool) error {
	u, err := nexususer.New(username, password, superuser)
	if err != nil {
		return err
	}
	return s.users.Create(ctx, u)
}

func (s *userService) ChangePassword(ctx context.Context, username, password string) error {
	u := &nexususer.User{}
	if err := u.SetPassword(password); err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, username, u.PasswordHash)
}
