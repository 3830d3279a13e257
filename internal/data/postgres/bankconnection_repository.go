package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"git.taler.net/nexus/internal/domain/bankconnection"
	"git.taler.net/nexus/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BankConnectionRepository implements bankconnection.Repository for PostgreSQL.
type BankConnectionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewBankConnectionRepository(logger *slog.Logger, db *persistence.PostgresDB) bankconnection.Repository {
	return &BankConnectionRepository{querier: db.Pool(), logger: logger}
}

func (r *BankConnectionRepository) WithTx(tx pgx.Tx) bankconnection.Repository {
	return &BankConnectionRepository{querier: tx, logger: r.logger}
}

func (r *BankConnectionRepository) Create(ctx context.Context, conn *bankconnection.Connection) error {
	query := `
		INSERT INTO bank_connections (id, name, type, dialect, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.querier.Exec(ctx, query, conn.ID, conn.Name, conn.Type, conn.Dialect, conn.OwnerID, conn.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return bankconnection.ErrDuplicateName{Name: conn.Name}
		}
		r.logger.Error("failed to create bank connection", "error", err)
		return fmt.Errorf("failed to create bank connection: %w", err)
	}
	return nil
}

func (r *BankConnectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*bankconnection.Connection, error) {
	query := `
		SELECT id, name, type, dialect, owner_id, created_at
		FROM bank_connections
		WHERE id = $1
	`
	return r.scanOne(ctx, query, id)
}

func (r *BankConnectionRepository) GetByName(ctx context.Context, name string) (*bankconnection.Connection, error) {
	query := `
		SELECT id, name, type, dialect, owner_id, created_at
		FROM bank_connections
		WHERE name = $1
	`
	return r.scanOne(ctx, query, name)
}

func (r *BankConnectionRepository) scanOne(ctx context.Context, query string, arg interface{}) (*bankconnection.Connection, error) {
	var c bankconnection.Connection
	err := r.querier.QueryRow(ctx, query, arg).Scan(&c.ID, &c.Name, &c.Type, &c.Dialect, &c.OwnerID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bankconnection.ErrNotFound{}
		}
		r.logger.Error("failed to get bank connection", "error", err)
		return nil, fmt.Errorf("failed to get bank connection: %w", err)
	}
	return &c, nil
}

func (r *BankConnectionRepository) List(ctx context.Context, ownerID uuid.UUID) ([]*bankconnection.Connection, error) {
	query := `
		SELECT id, name, type, dialect, owner_id, created_at
		FROM bank_connections
		WHERE owner_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.querier.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank connections: %w", err)
	}
	defer rows.Close()

	var out []*bankconnection.Connection
	for rows.Next() {
		var c bankconnection.Connection
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.Dialect, &c.OwnerID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bank connection: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Delete cascades to ebics_subscribers and bank_messages via FK ON DELETE CASCADE.
func (r *BankConnectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.querier.Exec(ctx, `DELETE FROM bank_connections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bank connection: %w", err)
	}
	if result.RowsAffected() == 0 {
		return bankconnection.ErrNotFound{ID: id}
	}
	return nil
}
