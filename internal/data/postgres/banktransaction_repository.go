package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"git.taler.net/nexus/internal/domain/banktransaction"
	"git.taler.net/nexus/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BankTransactionRepository implements banktransaction.Repository for PostgreSQL.
type BankTransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewBankTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) banktransaction.Repository {
	return &BankTransactionRepository{querier: db.Pool(), logger: logger}
}

func (r *BankTransactionRepository) WithTx(tx pgx.Tx) banktransaction.Repository {
	return &BankTransactionRepository{querier: tx, logger: r.logger}
}

// Create enforces the (bank_account_id, transaction_id) unique index at
// the database level (invariant 1) and translates a violation into
// ErrDuplicate so callers can treat re-ingestion as a no-op.
func (r *BankTransactionRepository) Create(ctx context.Context, entry *banktransaction.Entry) error {
	query := `
		INSERT INTO bank_transaction_entries (
			id, bank_account_id, transaction_id, direction, currency, amount,
			status, transaction_json, updated_by, confirmation_of, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.querier.Exec(ctx, query,
		entry.ID, entry.BankAccountID, entry.TransactionID, entry.Direction, entry.Currency, entry.Amount,
		entry.Status, entry.TransactionJSON, entry.UpdatedBy, entry.ConfirmationOf, entry.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return banktransaction.ErrDuplicate{BankAccountID: entry.BankAccountID, TransactionID: entry.TransactionID}
		}
		r.logger.Error("failed to create bank transaction entry", "error", err)
		return fmt.Errorf("failed to create bank transaction entry: %w", err)
	}

	// NOTIFY wakes any GET /bank-accounts/{a}/transactions request blocked
	// in persistence.PostgresDB.WaitForNotification. Issued inside the
	// ingestion transaction, so Postgres defers delivery until commit -
	// a rolled-back ingest never wakes a waiter with a row that isn't there.
	channel := banktransaction.NotificationChannel(entry.BankAccountID)
	if _, err := r.querier.Exec(ctx, "SELECT pg_notify($1, $2)", channel, entry.TransactionID); err != nil {
		r.logger.Error("failed to notify bank transaction channel", "channel", channel, "error", err)
	}
	return nil
}

const bankTransactionColumns = `
	id, bank_account_id, transaction_id, direction, currency, amount,
	status, transaction_json, updated_by, confirmation_of, created_at
`

func scanBankTransaction(row pgx.Row) (*banktransaction.Entry, error) {
	var e banktransaction.Entry
	err := row.Scan(
		&e.ID, &e.BankAccountID, &e.TransactionID, &e.Direction, &e.Currency, &e.Amount,
		&e.Status, &e.TransactionJSON, &e.UpdatedBy, &e.ConfirmationOf, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *BankTransactionRepository) GetByTransactionID(ctx context.Context, bankAccountID uuid.UUID, transactionID string) (*banktransaction.Entry, error) {
	row := r.querier.QueryRow(ctx, "SELECT "+bankTransactionColumns+" FROM bank_transaction_entries WHERE bank_account_id = $1 AND transaction_id = $2", bankAccountID, transactionID)
	e, err := scanBankTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, banktransaction.ErrNotFound{TransactionID: transactionID}
		}
		return nil, fmt.Errorf("failed to get bank transaction entry: %w", err)
	}
	return e, nil
}

func (r *BankTransactionRepository) ListForAccount(ctx context.Context, bankAccountID uuid.UUID, limit, offset int) ([]*banktransaction.Entry, error) {
	query := "SELECT " + bankTransactionColumns + " FROM bank_transaction_entries WHERE bank_account_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3"
	rows, err := r.querier.Query(ctx, query, bankAccountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank transaction entries: %w", err)
	}
	defer rows.Close()

	var out []*banktransaction.Entry
	for rows.Next() {
		e, err := scanBankTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bank transaction entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *BankTransactionRepository) SetConfirmationLink(ctx context.Context, entryID, initiationID uuid.UUID) error {
	result, err := r.querier.Exec(ctx, `UPDATE bank_transaction_entries SET confirmation_of = $2 WHERE id = $1`, entryID, initiationID)
	if err != nil {
		return fmt.Errorf("failed to set confirmation link: %w", err)
	}
	if result.RowsAffected() == 0 {
		return banktransaction.ErrNotFound{TransactionID: entryID.String()}
	}
	return nil
}
