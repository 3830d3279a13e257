package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"git.taler.net/nexus/internal/domain/offeredaccount"
	"git.taler.net/nexus/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OfferedAccountRepository implements offeredaccount.Repository for PostgreSQL.
type OfferedAccountRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewOfferedAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) offeredaccount.Repository {
	return &OfferedAccountRepository{querier: db.Pool(), logger: logger}
}

func (r *OfferedAccountRepository) WithTx(tx pgx.Tx) offeredaccount.Repository {
	return &OfferedAccountRepository{querier: tx, logger: r.logger}
}

// ReplaceForConnection deletes any offered account rows for connectionID
// that were never imported and inserts the fresh HTD/HKD result set.
// Imported rows are preserved so ImportedAs links survive a re-fetch.
func (r *OfferedAccountRepository) ReplaceForConnection(ctx context.Context, connectionID uuid.UUID, offered []*offeredaccount.Offered) error {
	_, err := r.querier.Exec(ctx, `
		DELETE FROM offered_bank_accounts
		WHERE connection_id = $1 AND imported_as IS NULL
	`, connectionID)
	if err != nil {
		return fmt.Errorf("failed to clear offered accounts: %w", err)
	}

	for _, o := range offered {
		_, err := r.querier.Exec(ctx, `
			INSERT INTO offered_bank_accounts (id, connection_id, remote_account_id, iban, bic, holder_name, imported_as, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, o.ID, o.ConnectionID, o.RemoteAccountID, o.IBAN, o.BIC, o.HolderName, o.ImportedAs, o.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert offered account: %w", err)
		}
	}
	return nil
}

const offeredAccountColumns = `id, connection_id, remote_account_id, iban, bic, holder_name, imported_as, created_at`

func scanOfferedAccount(row pgx.Row) (*offeredaccount.Offered, error) {
	var o offeredaccount.Offered
	err := row.Scan(&o.ID, &o.ConnectionID, &o.RemoteAccountID, &o.IBAN, &o.BIC, &o.HolderName, &o.ImportedAs, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OfferedAccountRepository) ListForConnection(ctx context.Context, connectionID uuid.UUID) ([]*offeredaccount.Offered, error) {
	rows, err := r.querier.Query(ctx, "SELECT "+offeredAccountColumns+" FROM offered_bank_accounts WHERE connection_id = $1 ORDER BY created_at ASC", connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list offered accounts: %w", err)
	}
	defer rows.Close()

	var out []*offeredaccount.Offered
	for rows.Next() {
		o, err := scanOfferedAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offered account: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *OfferedAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*offeredaccount.Offered, error) {
	row := r.querier.QueryRow(ctx, "SELECT "+offeredAccountColumns+" FROM offered_bank_accounts WHERE id = $1", id)
	o, err := scanOfferedAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, offeredaccount.ErrNotFound{ID: id}
		}
		return nil, fmt.Errorf("failed to get offered account: %w", err)
	}
	return o, nil
}

func (r *OfferedAccountRepository) MarkImported(ctx context.Context, id, importedAs uuid.UUID) error {
	result, err := r.querier.Exec(ctx, `
		UPDATE offered_bank_accounts SET imported_as = $2
		WHERE id = $1 AND imported_as IS NULL
	`, id, importedAs)
	if err != nil {
		return fmt.Errorf("failed to mark offered account imported: %w", err)
	}
	if result.RowsAffected() == 0 {
		existing, getErr := r.GetByID(ctx, id)
		if getErr == nil && existing.ImportedAs != nil {
			return offeredaccount.ErrAlreadyImported{ID: id}
		}
		return offeredaccount.ErrNotFound{ID: id}
	}
	return nil
}
