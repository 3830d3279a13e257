package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"git.taler.net/nexus/internal/domain/bankaccount"
	"git.taler.net/nexus/internal/domain/bankmessage"
	"git.taler.net/nexus/internal/domain/banktransaction"
	"git.taler.net/nexus/internal/domain/paymentinitiation"
	"git.taler.net/nexus/internal/domain/scheduledtask"
	"git.taler.net/nexus/internal/domain/shared"
	"git.taler.net/nexus/internal/iso20022"
	"git.taler.net/nexus/internal/platform/persistence"
	"git.taler.net/nexus/internal/worker/bankprocessor"
)

// errAccountHasNoConnection guards TestCamtIngestion: a synthetic bank
// message still needs a connection to satisfy the bank_messages foreign
// key, so the target account must already be bound to one.
var errAccountHasNoConnection = errors.New("bank account has no bound connection to record a test message against")

// taskPublisher is the subset of producers.BankTaskProducer the API
// layer needs to hand a task to nexus-worker, narrowed the same way
// internal/scheduler narrows it so tests can substitute a fake.
type taskPublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

type bankAccountService struct {
	db                    *persistence.PostgresDB
	accounts              bankaccount.Repository
	transactions          banktransaction.Repository
	initiations           paymentinitiation.Repository
	tasks                 scheduledtask.Repository
	messages              bankmessage.Repository
	ingestor              *iso20022.Ingestor
	bankTasks             taskPublisher
	clock                 shared.Clock
	transactionPollWindow time.Duration
	logger                *slog.Logger
}

func NewBankAccountService(
	db *persistence.PostgresDB,
	accounts bankaccount.Repository,
	transactions banktransaction.Repository,
	initiations paymentinitiation.Repository,
	tasks scheduledtask.Repository,
	messages bankmessage.Repository,
	ingestor *iso20022.Ingestor,
	bankTasks taskPublisher,
	clock shared.Clock,
	transactionPollWindow time.Duration,
	logger *slog.Logger,
) BankAccountService {
	return &bankAccountService{
		db:                    db,
		accounts:              accounts,
		transactions:          transactions,
		initiations:           initiations,
		tasks:                 tasks,
		messages:              messages,
		ingestor:              ingestor,
		bankTasks:             bankTasks,
		clock:                 clock,
		transactionPollWindow: transactionPollWindow,
		logger:                logger,
	}
}

func (s *bankAccountService) List(ctx context.Context) ([]*bankaccount.Account, error) {
	return s.accounts.List(ctx)
}

// CreatePaymentInitiation is idempotent on uid: a repeat call with the
// same uid and an identical body returns the existing row, a differing
// body returns paymentinitiation.ErrUIDConflict (spec invariant 4).
func (s *bankAccountService) CreatePaymentInitiation(ctx context.Context, bankAccountID uuid.UUID, iban, bic, creditorName, amount, currency, subject, uid string) (*paymentinitiation.Initiation, error) {
	if uid != "" {
		existing, err := s.initiations.GetByUID(ctx, bankAccountID, uid)
		if err == nil {
			if sameInitiationBody(existing, iban, bic, creditorName, amount, currency, subject) {
				return existing, nil
			}
			return nil, paymentinitiation.ErrUIDConflict{UID: uid}
		}
	}

	var init *paymentinitiation.Initiation
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		accounts := s.accounts.WithTx(tx)
		initiations := s.initiations.WithTx(tx)

		acc, err := accounts.LockForUpdate(ctx, bankAccountID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		endToEndID, messageID, paymentInformationID := acc.NextPain001Identifiers(now, "out")

		built, err := paymentinitiation.New(bankAccountID, iban, bic, creditorName, amount, currency, subject, uid, endToEndID, messageID, paymentInformationID, now)
		if err != nil {
			return err
		}
		if err := initiations.Create(ctx, built); err != nil {
			return err
		}
		if err := accounts.SavePain001Counter(ctx, acc.ID, acc.Pain001Counter); err != nil {
			return err
		}
		init = built
		return nil
	})
	if err != nil {
		return nil, err
	}
	return init, nil
}

func sameInitiationBody(existing *paymentinitiation.Initiation, iban, bic, creditorName, amount, currency, subject string) bool {
	return existing.CreditorIBAN == iban &&
		existing.CreditorBIC == bic &&
		existing.CreditorName == creditorName &&
		existing.Amount == amount &&
		existing.Currency == currency &&
		existing.Subject == subject
}

func (s *bankAccountService) SubmitInitiation(ctx context.Context, bankAccountID uuid.UUID) error {
	return s.publishTask(ctx, bankprocessor.Task{
		BankAccountID: bankAccountID,
		Type:          shared.TaskSubmit,
	})
}

func (s *bankAccountService) SubmitAllInitiations(ctx context.Context, bankAccountID uuid.UUID) error {
	return s.SubmitInitiation(ctx, bankAccountID)
}

func (s *bankAccountService) FetchTransactions(ctx context.Context, bankAccountID uuid.UUID, level shared.FetchLevel, rangeType shared.RangeType, number *int) error {
	return s.publishTask(ctx, bankprocessor.Task{
		BankAccountID: bankAccountID,
		Type:          shared.TaskFetch,
		Fetch: &scheduledtask.FetchParams{
			Level:     level,
			RangeType: rangeType,
			Number:    number,
		},
	})
}

func (s *bankAccountService) publishTask(ctx context.Context, task bankprocessor.Task) error {
	if err := s.bankTasks.Publish(ctx, task.BankAccountID.String(), task); err != nil {
		return fmt.Errorf("publishing bank task: %w", err)
	}
	return nil
}

// ListTransactions long-polls when the page is the first page (offset 0)
// and currently empty: rather than returning an empty list immediately,
// it blocks on the bank account's notification channel — signaled by
// BankTransactionRepository.Create on every insert, across both the
// nexusd and nexus-worker processes — up to transactionPollWindow, then
// re-queries once. This is spec.md §9's "blocks until a new row appears
// and returns within the poll window" behavior. Any later page (offset >
// 0) returning empty means "past the end of the list", not "not ingested
// yet", so it never blocks.
func (s *bankAccountService) ListTransactions(ctx context.Context, bankAccountID uuid.UUID, limit, offset int) ([]*banktransaction.Entry, error) {
	entries, err := s.transactions.ListForAccount(ctx, bankAccountID, limit, offset)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 || offset != 0 || s.transactionPollWindow <= 0 {
		return entries, nil
	}

	channel := banktransaction.NotificationChannel(bankAccountID)
	_, notified, err := s.db.WaitForNotification(ctx, channel, s.transactionPollWindow)
	if err != nil {
		s.logger.Warn("long-poll wait for new transactions failed, returning empty page", "bank_account_id", bankAccountID, "error", err)
		return entries, nil
	}
	if !notified {
		return entries, nil
	}
	return s.transactions.ListForAccount(ctx, bankAccountID, limit, offset)
}

func (s *bankAccountService) ScheduleTask(ctx context.Context, bankAccountID uuid.UUID, name string, taskType shared.ScheduledTaskType, cronSpec string, params json.RawMessage) (*scheduledtask.Task, error) {
	task, err := scheduledtask.New(bankAccountID, name, taskType, cronSpec, params)
	if err != nil {
		return nil, err
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *bankAccountService) GetTask(ctx context.Context, bankAccountID uuid.UUID, name string) (*scheduledtask.Task, error) {
	return s.tasks.GetByResourceAndName(ctx, bankAccountID, name)
}

func (s *bankAccountService) DeleteTask(ctx context.Context, bankAccountID uuid.UUID, name string) error {
	return s.tasks.Delete(ctx, bankAccountID, name)
}

// TestCamtIngestion feeds raw camt bytes straight into the ingestion
// pipeline, bypassing EBICS entirely, for exercising facade wiring
// without a live bank connection (spec §9 supplement).
func (s *bankAccountService) TestCamtIngestion(ctx context.Context, bankAccountID uuid.UUID, msgType string, raw []byte) (int, error) {
	acc, err := s.accounts.GetByID(ctx, bankAccountID)
	if err != nil {
		return 0, err
	}
	if acc.ConnectionID == nil {
		return 0, errAccountHasNoConnection
	}
	msg := bankmessage.New(*acc.ConnectionID, bankAccountID, levelForMsgType(msgType), "", raw)
	if err := s.messages.Create(ctx, msg); err != nil {
		return 0, err
	}
	return s.ingestor.Ingest(ctx, msg)
}

func levelForMsgType(msgType string) shared.FetchLevel {
	switch msgType {
	case "camt.052":
		return shared.FetchLevelReport
	case "camt.054":
		return shared.FetchLevelNotification
	default:
		return shared.FetchLevelStatement
	}
}
