package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"git.taler.net/nexus/internal/domain/nexususer"
	"git.taler.net/nexus/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// NexusUserRepository implements nexususer.Repository for PostgreSQL.
type NexusUserRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewNexusUserRepository(logger *slog.Logger, db *persistence.PostgresDB) nexususer.Repository {
	return &NexusUserRepository{querier: db.Pool(), logger: logger}
}

func (r *NexusUserRepository) WithTx(tx pgx.Tx) nexususer.Repository {
	return &NexusUserRepository{querier: tx, logger: r.logger}
}

func (r *NexusUserRepository) Create(ctx context.Context, u *nexususer.User) error {
	query := `
		INSERT INTO nexus_users (id, username, password_hash, is_superuser, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.querier.Exec(ctx, query, u.ID, u.Username, u.PasswordHash, u.IsSuperuser, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nexususer.ErrDuplicateUsername{Username: u.Username}
		}
		r.logger.Error("failed to create nexus user", "error", err)
		return fmt.Errorf("failed to create nexus user: %w", err)
	}
	return nil
}

func (r *NexusUserRepository) GetByUsername(ctx context.Context, username string) (*nexususer.User, error) {
	query := `SELECT id, username, password_hash, is_superuser, created_at FROM nexus_users WHERE username = $1`
	var u nexususer.User
	err := r.querier.QueryRow(ctx, query, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsSuperuser, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nexususer.ErrNotFound{Username: username}
		}
		r.logger.Error("failed to get nexus user", "error", err)
		return nil, fmt.Errorf("failed to get nexus user: %w", err)
	}
	return &u, nil
}

func (r *NexusUserRepository) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	result, err := r.querier.Exec(ctx, `UPDATE nexus_users SET password_hash = $2 WHERE username = $1`, username, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nexususer.ErrNotFound{Username: username}
	}
	return nil
}
