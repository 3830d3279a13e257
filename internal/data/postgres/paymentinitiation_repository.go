package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"git.taler.net/nexus/internal/domain/paymentinitiation"
	"git.taler.net/nexus/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PaymentInitiationRepository implements paymentinitiation.Repository for PostgreSQL.
type PaymentInitiationRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewPaymentInitiationRepository(logger *slog.Logger, db *persistence.PostgresDB) paymentinitiation.Repository {
	return &PaymentInitiationRepository{querier: db.Pool(), logger: logger}
}

func (r *PaymentInitiationRepository) WithTx(tx pgx.Tx) paymentinitiation.Repository {
	return &PaymentInitiationRepository{querier: tx, logger: r.logger}
}

// Create relies on a unique index over (bank_account_id, uid) where uid is
// not null. Caller resolves a unique violation against the existing row to
// decide between idempotent no-op and ErrUIDConflict (spec invariant 4).
func (r *PaymentInitiationRepository) Create(ctx context.Context, init *paymentinitiation.Initiation) error {
	query := `
		INSERT INTO payment_initiations (
			id, bank_account_id, preparation_date, submission_date,
			amount, currency, subject, creditor_iban, creditor_bic, creditor_name,
			end_to_end_id, message_id, payment_information_id, instruction_id,
			uid, submitted, invalid, confirmation_transaction_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := r.querier.Exec(ctx, query,
		init.ID, init.BankAccountID, init.PreparationDate, init.SubmissionDate,
		init.Amount, init.Currency, init.Subject, init.CreditorIBAN, init.CreditorBIC, init.CreditorName,
		init.EndToEndID, init.MessageID, init.PaymentInformationID, init.InstructionID,
		nullableString(init.UID), init.Submitted, init.Invalid, init.ConfirmationTransactionID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return paymentinitiation.ErrUIDConflict{UID: init.UID}
		}
		r.logger.Error("failed to create payment initiation", "error", err)
		return fmt.Errorf("failed to create payment initiation: %w", err)
	}
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

const paymentInitiationColumns = `
	id, bank_account_id, preparation_date, submission_date,
	amount, currency, subject, creditor_iban, creditor_bic, creditor_name,
	end_to_end_id, message_id, payment_information_id, instruction_id,
	uid, submitted, invalid, confirmation_transaction_id
`

func scanPaymentInitiation(row pgx.Row) (*paymentinitiation.Initiation, error) {
	var init paymentinitiation.Initiation
	var uid *string
	err := row.Scan(
		&init.ID, &init.BankAccountID, &init.PreparationDate, &init.SubmissionDate,
		&init.Amount, &init.Currency, &init.Subject, &init.CreditorIBAN, &init.CreditorBIC, &init.CreditorName,
		&init.EndToEndID, &init.MessageID, &init.PaymentInformationID, &init.InstructionID,
		&uid, &init.Submitted, &init.Invalid, &init.ConfirmationTransactionID,
	)
	if err != nil {
		return nil, err
	}
	if uid != nil {
		init.UID = *uid
	}
	return &init, nil
}

func (r *PaymentInitiationRepository) GetByUID(ctx context.Context, bankAccountID uuid.UUID, uid string) (*paymentinitiation.Initiation, error) {
	row := r.querier.QueryRow(ctx, "SELECT "+paymentInitiationColumns+" FROM payment_initiations WHERE bank_account_id = $1 AND uid = $2", bankAccountID, uid)
	init, err := scanPaymentInitiation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, paymentinitiation.ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to get payment initiation by uid: %w", err)
	}
	return init, nil
}

func (r *PaymentInitiationRepository) GetByPaymentInformationID(ctx context.Context, bankAccountID uuid.UUID, paymentInformationID string) (*paymentinitiation.Initiation, error) {
	row := r.querier.QueryRow(ctx, "SELECT "+paymentInitiationColumns+" FROM payment_initiations WHERE bank_account_id = $1 AND payment_information_id = $2", bankAccountID, paymentInformationID)
	init, err := scanPaymentInitiation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, paymentinitiation.ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to get payment initiation by payment information id: %w", err)
	}
	return init, nil
}

func (r *PaymentInitiationRepository) GetByID(ctx context.Context, id uuid.UUID) (*paymentinitiation.Initiation, error) {
	row := r.querier.QueryRow(ctx, "SELECT "+paymentInitiationColumns+" FROM payment_initiations WHERE id = $1", id)
	init, err := scanPaymentInitiation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, paymentinitiation.ErrNotFound{ID: id}
		}
		return nil, fmt.Errorf("failed to get payment initiation: %w", err)
	}
	return init, nil
}

func (r *PaymentInitiationRepository) ListPendingForAccount(ctx context.Context, bankAccountID uuid.UUID) ([]*paymentinitiation.Initiation, error) {
	query := "SELECT " + paymentInitiationColumns + " FROM payment_initiations WHERE bank_account_id = $1 AND submitted = false AND invalid = false ORDER BY preparation_date ASC"
	rows, err := r.querier.Query(ctx, query, bankAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending payment initiations: %w", err)
	}
	defer rows.Close()

	var out []*paymentinitiation.Initiation
	for rows.Next() {
		init, err := scanPaymentInitiation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment initiation: %w", err)
		}
		out = append(out, init)
	}
	return out, rows.Err()
}

func (r *PaymentInitiationRepository) MarkSubmitted(ctx context.Context, id uuid.UUID) error {
	result, err := r.querier.Exec(ctx, `UPDATE payment_initiations SET submitted = true, submission_date = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark payment initiation submitted: %w", err)
	}
	if result.RowsAffected() == 0 {
		return paymentinitiation.ErrNotFound{ID: id}
	}
	return nil
}

func (r *PaymentInitiationRepository) SetConfirmation(ctx context.Context, id, entryID uuid.UUID) error {
	result, err := r.querier.Exec(ctx, `UPDATE payment_initiations SET confirmation_transaction_id = $2 WHERE id = $1`, id, entryID)
	if err != nil {
		return fmt.Errorf("failed to set payment initiation confirmation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return paymentinitiation.ErrNotFound{ID: id}
	}
	return nil
}
