package bankprocessor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"git.taler.net/nexus/internal/domain/bankaccount"
	"git.taler.net/nexus/internal/domain/bankconnection"
	"git.taler.net/nexus/internal/domain/bankmessage"
	"git.taler.net/nexus/internal/domain/ebicssubscriber"
	"git.taler.net/nexus/internal/domain/paymentinitiation"
	"git.taler.net/nexus/internal/domain/scheduledtask"
	"git.taler.net/nexus/internal/domain/shared"
	"git.taler.net/nexus/internal/ebics"
	"git.taler.net/nexus/internal/facadebus"
	"git.taler.net/nexus/internal/iso20022"
)

// Processor runs Tasks on a bounded ants pool, one goroutine per task,
// mirroring service.WorkerPoolProcessingService's submit-and-wait shape.
// Concurrency across bank accounts is bounded by pool size; concurrency
// within a single subscriber is serialized by ebics.Client's own
// per-subscriber lock, so two fetch tasks for the same connection never
// race an EBICS transaction against each other.
type Processor struct {
	pool *ants.Pool

	accounts     bankaccount.Repository
	connections  bankconnection.Repository
	subscribers  ebicssubscriber.Repository
	messages     bankmessage.Repository
	initiations  paymentinitiation.Repository

	ebicsClient *ebics.Client
	ingestor    *iso20022.Ingestor
	bus         *facadebus.Bus
	clock       shared.Clock

	logger *slog.Logger
}

func New(
	poolSize int,
	accounts bankaccount.Repository,
	connections bankconnection.Repository,
	subscribers ebicssubscriber.Repository,
	messages bankmessage.Repository,
	initiations paymentinitiation.Repository,
	ebicsClient *ebics.Client,
	ingestor *iso20022.Ingestor,
	bus *facadebus.Bus,
	clock shared.Clock,
	logger *slog.Logger,
) (*Processor, error) {
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("bankprocessor: create pool: %w", err)
	}
	return &Processor{
		pool:        pool,
		accounts:    accounts,
		connections: connections,
		subscribers: subscribers,
		messages:    messages,
		initiations: initiations,
		ebicsClient: ebicsClient,
		ingestor:    ingestor,
		bus:         bus,
		clock:       clock,
		logger:      logger,
	}, nil
}

// Submit runs task on the pool and blocks for its result, so a scheduler
// tick or an HTTP-triggered submit can report success or failure to its
// caller instead of firing and forgetting.
func (p *Processor) Submit(ctx context.Context, task Task) error {
	result := make(chan error, 1)
	err := p.pool.Submit(func() {
		result <- p.run(ctx, task)
	})
	if err != nil {
		return fmt.Errorf("bankprocessor: submit task: %w", err)
	}
	return <-result
}

func (p *Processor) run(ctx context.Context, task Task) error {
	switch task.Type {
	case shared.TaskFetch:
		return p.runFetch(ctx, task)
	case shared.TaskSubmit:
		return p.runSubmit(ctx, task)
	default:
		return fmt.Errorf("bankprocessor: unknown task type %q", task.Type)
	}
}

func (p *Processor) resolveSubscriber(ctx context.Context, bankAccountID uuid.UUID) (*bankaccount.Account, *bankconnection.Connection, *ebicssubscriber.Subscriber, error) {
	acc, err := p.accounts.GetByID(ctx, bankAccountID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get bank account: %w", err)
	}
	if acc.ConnectionID == nil {
		return nil, nil, nil, fmt.Errorf("bank account %s has no connection", acc.ID)
	}
	conn, err := p.connections.GetByID(ctx, *acc.ConnectionID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get bank connection: %w", err)
	}
	sub, err := p.subscribers.GetByConnectionID(ctx, conn.ID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get ebics subscriber: %w", err)
	}
	if !sub.Ready() {
		return nil, nil, nil, ebicssubscriber.ErrBankKeysNotReady
	}
	return acc, conn, sub, nil
}

func (p *Processor) runFetch(ctx context.Context, task Task) error {
	acc, conn, sub, err := p.resolveSubscriber(ctx, task.BankAccountID)
	if err != nil {
		return err
	}
	if task.Fetch == nil {
		return fmt.Errorf("bankprocessor: fetch task missing params")
	}

	rng := dateRangeFor(task.Fetch, acc, p.clock.Now())
	result, err := p.ebicsClient.FetchTransactions(ctx, sub, conn.Dialect, task.Fetch.Level, rng)
	if err != nil {
		return fmt.Errorf("fetch transactions: %w", err)
	}
	if result.NoData {
		p.logger.Info("no download data available", "bank_account_id", acc.ID, "level", task.Fetch.Level)
		return nil
	}

	msg := bankmessage.New(conn.ID, acc.ID, task.Fetch.Level, "", result.OrderData)
	if err := p.messages.Create(ctx, msg); err != nil {
		return fmt.Errorf("store bank message: %w", err)
	}

	n, err := p.ingestor.Ingest(ctx, msg)
	if err != nil {
		return fmt.Errorf("ingest bank message %s: %w", msg.ID, err)
	}
	p.logger.Info("ingested camt document", "bank_account_id", acc.ID, "entries", n, "level", task.Fetch.Level)
	return nil
}

// runSubmit uploads every unsubmitted initiation on the account. A single
// initiation's EBICS rejection is logged and skipped rather than aborting
// the whole batch, since sibling initiations are independent.
func (p *Processor) runSubmit(ctx context.Context, task Task) error {
	acc, conn, sub, err := p.resolveSubscriber(ctx, task.BankAccountID)
	if err != nil {
		return err
	}

	pending, err := p.initiations.ListPendingForAccount(ctx, acc.ID)
	if err != nil {
		return fmt.Errorf("list pending initiations: %w", err)
	}

	var firstErr error
	for _, init := range pending {
		painXML, err := iso20022.BuildPain001(init, acc.HolderName, acc.IBAN, acc.BIC, conn.Dialect, p.clock.Now())
		if err != nil {
			p.logger.Error("build pain.001 failed", "initiation_id", init.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if _, err := p.ebicsClient.SubmitPayment(ctx, sub, conn.Dialect, painXML); err != nil {
			p.logger.Error("submit payment failed", "initiation_id", init.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := p.initiations.MarkSubmitted(ctx, init.ID); err != nil {
			p.logger.Error("mark initiation submitted failed", "initiation_id", init.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if p.bus != nil {
			p.bus.RecordSubmission(ctx, "", acc.ID, init.ID)
		}
	}
	return firstErr
}

// dateRangeFor turns a fetch task's range selection into the wire date
// window. RangeLatest and RangeAll are left to the bank's own default
// (nil), since EBICS treats an absent range as "everything available".
func dateRangeFor(params *scheduledtask.FetchParams, acc *bankaccount.Account, now time.Time) *ebics.DateRange {
	switch params.RangeType {
	case shared.RangeSinceLast:
		start := watermarkFor(acc, params.Level)
		if start.IsZero() {
			return nil
		}
		return &ebics.DateRange{Start: start.Format("2006-01-02"), End: now.Format("2006-01-02")}
	case shared.RangePreviousDays:
		days := 1
		if params.Number != nil && *params.Number > 0 {
			days = *params.Number
		}
		start := now.AddDate(0, 0, -days)
		return &ebics.DateRange{Start: start.Format("2006-01-02"), End: now.Format("2006-01-02")}
	default:
		return nil
	}
}

func watermarkFor(acc *bankaccount.Account, level shared.FetchLevel) time.Time {
	switch level {
	case shared.FetchLevelReport:
		return acc.LastReportCreationTimestamp
	case shared.FetchLevelStatement:
		return acc.LastStatementCreationTimestamp
	case shared.FetchLevelNotification:
		return acc.LastNotificationCreationTimestamp
	default:
		return time.Time{}
	}
}

// Shutdown releases the underlying pool, waiting for in-flight tasks.
func (p *Processor) Shutdown() {
	p.pool.Release()
}
