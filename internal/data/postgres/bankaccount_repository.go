package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"git.taler.net/nexus/internal/domain/bankaccount"
	"git.taler.net/nexus/internal/domain/shared"
	"git.taler.net/nexus/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BankAccountRepository implements bankaccount.Repository for PostgreSQL.
type BankAccountRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewBankAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) bankaccount.Repository {
	return &BankAccountRepository{querier: db.Pool(), logger: logger}
}

func (r *BankAccountRepository) WithTx(tx pgx.Tx) bankaccount.Repository {
	return &BankAccountRepository{querier: tx, logger: r.logger}
}

func (r *BankAccountRepository) Create(ctx context.Context, acc *bankaccount.Account) error {
	query := `
		INSERT INTO bank_accounts (
			id, label, holder_name, iban, bic, connection_id,
			last_report_creation_timestamp, last_statement_creation_timestamp,
			last_notification_creation_timestamp, highest_seen_bank_message_serial_id,
			pain001_counter, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.querier.Exec(ctx, query,
		acc.ID, acc.Label, acc.HolderName, acc.IBAN, acc.BIC, acc.ConnectionID,
		acc.LastReportCreationTimestamp, acc.LastStatementCreationTimestamp,
		acc.LastNotificationCreationTimestamp, acc.HighestSeenBankMessageSerialID,
		acc.Pain001Counter, acc.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return bankaccount.ErrDuplicateLabel{Label: acc.Label}
		}
		r.logger.Error("failed to create bank account", "error", err)
		return fmt.Errorf("failed to create bank account: %w", err)
	}
	return nil
}

const bankAccountColumns = `
	id, label, holder_name, iban, bic, connection_id,
	last_report_creation_timestamp, last_statement_creation_timestamp,
	last_notification_creation_timestamp, highest_seen_bank_message_serial_id,
	pain001_counter, created_at
`

func scanBankAccount(row pgx.Row) (*bankaccount.Account, error) {
	var acc bankaccount.Account
	err := row.Scan(
		&acc.ID, &acc.Label, &acc.HolderName, &acc.IBAN, &acc.BIC, &acc.ConnectionID,
		&acc.LastReportCreationTimestamp, &acc.LastStatementCreationTimestamp,
		&acc.LastNotificationCreationTimestamp, &acc.HighestSeenBankMessageSerialID,
		&acc.Pain001Counter, &acc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *BankAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*bankaccount.Account, error) {
	row := r.querier.QueryRow(ctx, "SELECT "+bankAccountColumns+" FROM bank_accounts WHERE id = $1", id)
	acc, err := scanBankAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bankaccount.ErrNotFound{ID: id}
		}
		r.logger.Error("failed to get bank account", "error", err)
		return nil, fmt.Errorf("failed to get bank account: %w", err)
	}
	return acc, nil
}

func (r *BankAccountRepository) GetByLabel(ctx context.Context, label string) (*bankaccount.Account, error) {
	row := r.querier.QueryRow(ctx, "SELECT "+bankAccountColumns+" FROM bank_accounts WHERE label = $1", label)
	acc, err := scanBankAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bankaccount.ErrNotFound{}
		}
		r.logger.Error("failed to get bank account by label", "error", err)
		return nil, fmt.Errorf("failed to get bank account by label: %w", err)
	}
	return acc, nil
}

func (r *BankAccountRepository) List(ctx context.Context) ([]*bankaccount.Account, error) {
	rows, err := r.querier.Query(ctx, "SELECT "+bankAccountColumns+" FROM bank_accounts ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list bank accounts: %w", err)
	}
	defer rows.Close()

	var out []*bankaccount.Account
	for rows.Next() {
		acc, err := scanBankAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bank account: %w", err)
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

func (r *BankAccountRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*bankaccount.Account, error) {
	row := r.querier.QueryRow(ctx, "SELECT "+bankAccountColumns+" FROM bank_accounts WHERE id = $1 FOR UPDATE", id)
	acc, err := scanBankAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bankaccount.ErrNotFound{ID: id}
		}
		r.logger.Error("failed to lock bank account", "error", err)
		return nil, fmt.Errorf("failed to lock bank account: %w", err)
	}
	return acc, nil
}

// AdvanceWatermark sets the given level's watermark to max(existing, t) in
// a single statement (invariant 2) and records the highest serial id seen
// so far, used to dedupe camt ingestion across overlapping fetch windows.
func (r *BankAccountRepository) AdvanceWatermark(ctx context.Context, id uuid.UUID, level shared.FetchLevel, t time.Time, highestSerial int64) error {
	var column string
	switch level {
	case shared.FetchLevelReport:
		column = "last_report_creation_timestamp"
	case shared.FetchLevelStatement:
		column = "last_statement_creation_timestamp"
	case shared.FetchLevelNotification:
		column = "last_notification_creation_timestamp"
	default:
		return fmt.Errorf("unknown fetch level: %s", level)
	}

	query := fmt.Sprintf(`
		UPDATE bank_accounts
		SET %s = GREATEST(%s, $2),
		    highest_seen_bank_message_serial_id = GREATEST(highest_seen_bank_message_serial_id, $3)
		WHERE id = $1
	`, column, column)

	result, err := r.querier.Exec(ctx, query, id, t, highestSerial)
	if err != nil {
		return fmt.Errorf("failed to advance watermark: %w", err)
	}
	if result.RowsAffected() == 0 {
		return bankaccount.ErrNotFound{ID: id}
	}
	return nil
}

func (r *BankAccountRepository) SavePain001Counter(ctx context.Context, id uuid.UUID, counter int64) error {
	result, err := r.querier.Exec(ctx, `UPDATE bank_accounts SET pain001_counter = $2 WHERE id = $1`, id, counter)
	if err != nil {
		return fmt.Errorf("failed to save pain001 counter: %w", err)
	}
	if result.RowsAffected() == 0 {
		return bankaccount.ErrNotFound{ID: id}
	}
	return nil
}
