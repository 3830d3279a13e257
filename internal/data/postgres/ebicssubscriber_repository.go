package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"git.taler.net/nexus/internal/cryptoebics"
	"git.taler.net/nexus/internal/domain/ebicssubscriber"
	"git.taler.net/nexus/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EbicsSubscriberRepository implements ebicssubscriber.Repository for PostgreSQL.
// Private and public keys are persisted as PKCS#1/PKIX DER bytea columns and
// parsed back into *rsa.PrivateKey/*rsa.PublicKey on read.
type EbicsSubscriberRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewEbicsSubscriberRepository(logger *slog.Logger, db *persistence.PostgresDB) ebicssubscriber.Repository {
	return &EbicsSubscriberRepository{querier: db.Pool(), logger: logger}
}

func (r *EbicsSubscriberRepository) WithTx(tx pgx.Tx) ebicssubscriber.Repository {
	return &EbicsSubscriberRepository{querier: tx, logger: r.logger}
}

func (r *EbicsSubscriberRepository) Create(ctx context.Context, sub *ebicssubscriber.Subscriber) error {
	signingDER := cryptoebics.MarshalPrivateKey(sub.SigningPrivateKey)
	authDER := cryptoebics.MarshalPrivateKey(sub.AuthenticationPrivateKey)
	encDER := cryptoebics.MarshalPrivateKey(sub.EncryptionPrivateKey)

	query := `
		INSERT INTO ebics_subscribers (
			id, connection_id, url, host_id, partner_id, user_id,
			signing_private_key, authentication_private_key, encryption_private_key,
			ini_state, hia_state, bank_keys_confirmed, next_order_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.querier.Exec(ctx, query,
		sub.ID, sub.ConnectionID, sub.URL, sub.HostID, sub.PartnerID, sub.UserID,
		signingDER, authDER, encDER,
		sub.IniState, sub.HiaState, sub.BankKeysConfirmed, sub.NextOrderID, sub.CreatedAt,
	)
	if err != nil {
		r.logger.Error("failed to create ebics subscriber", "error", err)
		return fmt.Errorf("failed to create ebics subscriber: %w", err)
	}
	return nil
}

func (r *EbicsSubscriberRepository) GetByConnectionID(ctx context.Context, connectionID uuid.UUID) (*ebicssubscriber.Subscriber, error) {
	query := `
		SELECT id, connection_id, url, host_id, partner_id, user_id,
			signing_private_key, authentication_private_key, encryption_private_key,
			bank_auth_public_key, bank_enc_public_key,
			ini_state, hia_state, bank_keys_confirmed, next_order_id, created_at
		FROM ebics_subscribers
		WHERE connection_id = $1
	`
	var (
		sub                                     ebicssubscriber.Subscriber
		signingDER, authDER, encDER              []byte
		bankAuthDER, bankEncDER                  []byte
	)
	err := r.querier.QueryRow(ctx, query, connectionID).Scan(
		&sub.ID, &sub.ConnectionID, &sub.URL, &sub.HostID, &sub.PartnerID, &sub.UserID,
		&signingDER, &authDER, &encDER,
		&bankAuthDER, &bankEncDER,
		&sub.IniState, &sub.HiaState, &sub.BankKeysConfirmed, &sub.NextOrderID, &sub.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ebicssubscriber.ErrNotFound{}
		}
		r.logger.Error("failed to get ebics subscriber", "error", err)
		return nil, fmt.Errorf("failed to get ebics subscriber: %w", err)
	}

	if sub.SigningPrivateKey, err = cryptoebics.ParsePrivateKey(signingDER); err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	if sub.AuthenticationPrivateKey, err = cryptoebics.ParsePrivateKey(authDER); err != nil {
		return nil, fmt.Errorf("parse authentication key: %w", err)
	}
	if sub.EncryptionPrivateKey, err = cryptoebics.ParsePrivateKey(encDER); err != nil {
		return nil, fmt.Errorf("parse encryption key: %w", err)
	}
	if bankAuthDER != nil {
		if sub.BankAuthPublicKey, err = cryptoebics.ParsePublicKey(bankAuthDER); err != nil {
			return nil, fmt.Errorf("parse bank auth key: %w", err)
		}
	}
	if bankEncDER != nil {
		if sub.BankEncPublicKey, err = cryptoebics.ParsePublicKey(bankEncDER); err != nil {
			return nil, fmt.Errorf("parse bank enc key: %w", err)
		}
	}
	return &sub, nil
}

func (r *EbicsSubscriberRepository) UpdateKeyState(ctx context.Context, id uuid.UUID, ini, hia *string) error {
	query := `
		UPDATE ebics_subscribers
		SET ini_state = COALESCE($2, ini_state), hia_state = COALESCE($3, hia_state)
		WHERE id = $1
	`
	result, err := r.querier.Exec(ctx, query, id, ini, hia)
	if err != nil {
		return fmt.Errorf("failed to update key state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ebicssubscriber.ErrNotFound{ID: id}
	}
	return nil
}

func (r *EbicsSubscriberRepository) SetBankKeys(ctx context.Context, id uuid.UUID, bankAuthPub, bankEncPub []byte) error {
	query := `
		UPDATE ebics_subscribers
		SET bank_auth_public_key = $2, bank_enc_public_key = $3
		WHERE id = $1
	`
	result, err := r.querier.Exec(ctx, query, id, bankAuthPub, bankEncPub)
	if err != nil {
		return fmt.Errorf("failed to set bank keys: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ebicssubscriber.ErrNotFound{ID: id}
	}
	return nil
}

func (r *EbicsSubscriberRepository) ConfirmBankKeys(ctx context.Context, id uuid.UUID) error {
	result, err := r.querier.Exec(ctx, `UPDATE ebics_subscribers SET bank_keys_confirmed = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to confirm bank keys: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ebicssubscriber.ErrNotFound{ID: id}
	}
	return nil
}

// NextOrderID increments the counter in a single UPDATE ... RETURNING,
// atomic under the row lock that statement takes, and returns the new
// value. Overflow
// at the top of the 6-character alphanumeric space surfaces as
// ErrOrderIDOverflow rather than silently wrapping.
func (r *EbicsSubscriberRepository) NextOrderID(ctx context.Context, id uuid.UUID) (int64, error) {
	const orderIDSpace = 26 * 26 * 10 * 10 * 10 * 10 // AA-ZZ two-letter prefix, four-digit suffix

	query := `
		UPDATE ebics_subscribers
		SET next_order_id = next_order_id + 1
		WHERE id = $1
		RETURNING next_order_id
	`
	var next int64
	err := r.querier.QueryRow(ctx, query, id).Scan(&next)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ebicssubscriber.ErrNotFound{ID: id}
		}
		return 0, fmt.Errorf("failed to advance order id: %w", err)
	}
	if next >= orderIDSpace {
		return 0, ebicssubscriber.ErrOrderIDOverflow{SubscriberID: id}
	}
	return next, nil
}
