// Package facadebus is the generic contract between ingestion/submission
// and whatever registered facades want to observe. Nexus carries no
// facade-specific business logic (a Taler wire gateway's own semantics are
// out of scope); the bus only fans ingested entries out to the timeline
// store and lets a facade read back its pending initiations.
package facadebus

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"git.taler.net/nexus/internal/domain/banktransaction"
	"git.taler.net/nexus/internal/domain/facade"
	"git.taler.net/nexus/internal/domain/paymentinitiation"
)

// Bus is the facade-facing API: OnIngested is called once per freshly
// inserted bank transaction entry (after the ledger transaction commits,
// so a facade never observes a row ingestion later rolled back);
// SelectInitiationsFor lets a facade list the payment initiations pending
// submission on its bound bank account.
type Bus struct {
	facades      facade.Repository
	extensions   facade.ExtensionRepository
	initiations  paymentinitiation.Repository
	logger       *slog.Logger
}

func New(facades facade.Repository, extensions facade.ExtensionRepository, initiations paymentinitiation.Repository, logger *slog.Logger) *Bus {
	return &Bus{facades: facades, extensions: extensions, initiations: initiations, logger: logger}
}

// OnIngested records entry in the timeline of every facade bound to its
// bank account. Failures are logged, not propagated: a facade read-model
// write must never roll back the ledger insert it is reacting to.
func (b *Bus) OnIngested(ctx context.Context, entry *banktransaction.Entry) {
	facades, err := b.facades.List(ctx)
	if err != nil {
		b.logger.Error("facade bus: failed to list facades", "error", err)
		return
	}
	for _, f := range facades {
		if f.BankAccountID != entry.BankAccountID {
			continue
		}
		ext := facade.NewExtensionEntry(f.Name, "ingested", entry.BankAccountID, entry.ID, map[string]interface{}{
			"direction": string(entry.Direction),
			"amount":    entry.Amount,
			"currency":  entry.Currency,
			"status":    string(entry.Status),
		})
		if err := b.extensions.Append(ctx, ext); err != nil {
			b.logger.Error("facade bus: failed to append extension entry", "facade", f.Name, "error", err)
		}
	}
}

// SelectInitiationsFor returns the payment initiations a named facade may
// submit: those pending on its bound bank account, in FIFO order.
func (b *Bus) SelectInitiationsFor(ctx context.Context, facadeName string) ([]*paymentinitiation.Initiation, error) {
	f, err := b.facades.GetByName(ctx, facadeName)
	if err != nil {
		return nil, err
	}
	return b.initiations.ListPendingForAccount(ctx, f.BankAccountID)
}

// RecordSubmission appends a "submitted" timeline entry once an initiation
// has actually gone out over EBICS, for facades that want to observe it.
func (b *Bus) RecordSubmission(ctx context.Context, facadeName string, bankAccountID, initiationID uuid.UUID) {
	ext := facade.NewExtensionEntry(facadeName, "submitted", bankAccountID, initiationID, nil)
	if err := b.extensions.Append(ctx, ext); err != nil {
		b.logger.Error("facade bus: failed to append submission entry", "facade", facadeName, "error", err)
	}
}
