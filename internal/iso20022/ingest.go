package iso20022

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"git.taler.net/nexus/internal/domain/bankaccount"
	"git.taler.net/nexus/internal/domain/bankmessage"
	"git.taler.net/nexus/internal/domain/banktransaction"
	"git.taler.net/nexus/internal/domain/outbox"
	"git.taler.net/nexus/internal/domain/paymentinitiation"
	"git.taler.net/nexus/internal/domain/shared"
	"git.taler.net/nexus/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// Ingestor runs the camt ingestion pipeline described in spec §4.3:
// parse, dedupe against existing entries, match DBIT entries against
// outstanding payment initiations, advance the account's watermark, and
// write one outbox row per freshly inserted entry, all inside one
// database transaction per bank message — mirroring the
// lock-then-mutate-then-commit shape ProcessingServiceImpl uses for the
// ledger write. The outbox row is what makes the eventual Kafka
// notification and facade fan-out crash-safe: a poller drains it after
// this transaction commits (spec §2, §5), never before.
type Ingestor struct {
	db          *persistence.PostgresDB
	accounts    bankaccount.Repository
	entries     banktransaction.Repository
	initiations paymentinitiation.Repository
	messages    bankmessage.Repository
	outboxRepo  outbox.Repository
	logger      *slog.Logger
}

func NewIngestor(
	db *persistence.PostgresDB,
	accounts bankaccount.Repository,
	entries banktransaction.Repository,
	initiations paymentinitiation.Repository,
	messages bankmessage.Repository,
	outboxRepo outbox.Repository,
	logger *slog.Logger,
) *Ingestor {
	return &Ingestor{
		db:          db,
		accounts:    accounts,
		entries:     entries,
		initiations: initiations,
		messages:    messages,
		outboxRepo:  outboxRepo,
		logger:      logger,
	}
}

// Ingest parses msg.Raw and ingests every entry it yields against
// msg.BankAccountID. A parse failure marks the message errored and
// returns the error; both callers (bankprocessor's fetch task and the
// test-camt-ingestion route) handle one message each and return it.
func (in *Ingestor) Ingest(ctx context.Context, msg *bankmessage.Message) (int, error) {
	stmt, err := ParseCamt(msg.Raw)
	if err != nil {
		if markErr := in.messages.MarkErrored(ctx, msg.ID); markErr != nil {
			in.logger.Error("failed to mark bank message errored", "bank_message_id", msg.ID, "error", markErr)
		}
		return 0, fmt.Errorf("iso20022: parse bank message %s: %w", msg.ID, err)
	}
	if stmt.Dropped > 0 {
		in.logger.Warn("camt entries dropped for missing AcctSvcrRef", "count", stmt.Dropped, "bank_message_id", msg.ID)
	}

	var inserted int
	err = in.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		accounts := in.accounts.WithTx(tx)
		entries := in.entries.WithTx(tx)
		initiations := in.initiations.WithTx(tx)
		outboxRepo := in.outboxRepo.WithTx(tx)

		acc, err := accounts.LockForUpdate(ctx, msg.BankAccountID)
		if err != nil {
			return fmt.Errorf("lock bank account %s: %w", msg.BankAccountID, err)
		}

		for _, pe := range stmt.Entries {
			entry, err := banktransaction.New(acc.ID, pe.AcctSvcrRef, pe.Direction, pe.Currency, pe.Amount, pe.Status, pe.TransactionJSON)
			if err != nil {
				return err
			}

			var confirmedInitiation *paymentinitiation.Initiation
			if pe.Direction == shared.Debit && pe.PmtInfID != "" {
				init, err := initiations.GetByPaymentInformationID(ctx, acc.ID, pe.PmtInfID)
				switch {
				case err == nil:
					confirmedInitiation = init
					entry.ConfirmationOf = &init.ID
				case isNotFound(err):
					// no matching initiation; ingest the entry anyway (spec §4.3).
				default:
					return fmt.Errorf("confirmation lookup for %s: %w", pe.PmtInfID, err)
				}
			}

			if err := entries.Create(ctx, entry); err != nil {
				var dup banktransaction.ErrDuplicate
				if errors.As(err, &dup) {
					continue // invariant 1: already ingested, not an error
				}
				return fmt.Errorf("insert bank transaction entry: %w", err)
			}

			if confirmedInitiation != nil {
				if err := initiations.SetConfirmation(ctx, confirmedInitiation.ID, entry.ID); err != nil {
					return fmt.Errorf("set confirmation on initiation %s: %w", confirmedInitiation.ID, err)
				}
			}

			outboxMsg, err := outbox.NewMessage(entry)
			if err != nil {
				return fmt.Errorf("build outbox message for entry %s: %w", entry.ID, err)
			}
			if err := outboxRepo.Create(ctx, outboxMsg); err != nil {
				return fmt.Errorf("create outbox message for entry %s: %w", entry.ID, err)
			}

			inserted++
		}

		if !stmt.CreDtTm.IsZero() {
			if err := accounts.AdvanceWatermark(ctx, acc.ID, msg.Level, stmt.CreDtTm, msg.Serial); err != nil {
				return fmt.Errorf("advance watermark: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}

func isNotFound(err error) bool {
	var notFound paymentinitiation.ErrNotFound
	return errors.As(err, &notFound)
}
