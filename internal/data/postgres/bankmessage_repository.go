package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"git.taler.net/nexus/internal/domain/bankmessage"
	"git.taler.net/nexus/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BankMessageRepository implements bankmessage.Repository for PostgreSQL.
type BankMessageRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewBankMessageRepository(logger *slog.Logger, db *persistence.PostgresDB) bankmessage.Repository {
	return &BankMessageRepository{querier: db.Pool(), logger: logger}
}

func (r *BankMessageRepository) WithTx(tx pgx.Tx) bankmessage.Repository {
	return &BankMessageRepository{querier: tx, logger: r.logger}
}

func (r *BankMessageRepository) Create(ctx context.Context, msg *bankmessage.Message) error {
	query := `
		INSERT INTO bank_messages (id, connection_id, bank_account_id, level, message_id, raw, errors, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING serial_id
	`
	err := r.querier.QueryRow(ctx, query, msg.ID, msg.ConnectionID, msg.BankAccountID, msg.Level, msg.MessageID, msg.Raw, msg.Errors, msg.CreatedAt).Scan(&msg.Serial)
	if err != nil {
		r.logger.Error("failed to create bank message", "error", err)
		return fmt.Errorf("failed to create bank message: %w", err)
	}
	return nil
}

func (r *BankMessageRepository) MarkErrored(ctx context.Context, id uuid.UUID) error {
	result, err := r.querier.Exec(ctx, `UPDATE bank_messages SET errors = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark bank message errored: %w", err)
	}
	if result.RowsAffected() == 0 {
		return bankmessage.ErrNotFound{ID: id}
	}
	return nil
}

func (r *BankMessageRepository) ListForConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]*bankmessage.Message, error) {
	query := `
		SELECT id, serial_id, connection_id, bank_account_id, level, message_id, raw, errors, created_at
		FROM bank_messages
		WHERE connection_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.querier.Query(ctx, query, connectionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank messages: %w", err)
	}
	defer rows.Close()

	var out []*bankmessage.Message
	for rows.Next() {
		var m bankmessage.Message
		if err := rows.Scan(&m.ID, &m.Serial, &m.ConnectionID, &m.BankAccountID, &m.Level, &m.MessageID, &m.Raw, &m.Errors, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bank message: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
