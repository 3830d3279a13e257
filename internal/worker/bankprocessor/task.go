// Package bankprocessor pools bank-account tasks (fetch a camt document,
// submit a pending payment initiation) onto a bounded ants worker pool,
// the same submit-and-wait shape service.WorkerPoolProcessingService uses
// for ledger transactions, generalized to the two EBICS task kinds a
// scheduled_task row can carry.
package bankprocessor

import (
	"github.com/google/uuid"

	"git.taler.net/nexus/internal/domain/scheduledtask"
	"git.taler.net/nexus/internal/domain/shared"
)

// Task is one unit of dispatch: either fetch a camt document at Level
// over Range, or submit every unsubmitted initiation on the account.
type Task struct {
	BankAccountID uuid.UUID
	Type          shared.ScheduledTaskType
	Fetch         *scheduledtask.FetchParams // set when Type == shared.TaskFetch
}
