// Package shared carries cross-domain vocabulary: the Clock capability,
// connection/task type enumerations, and the EBICS order-side error
// taxonomy that every domain package and the ebics engine agree on.
package shared

// ConnectionType enumerates the bank connection transport kinds. Only
// ebics is implemented; the type exists so the store can anticipate
// other connection types without a schema change.
type ConnectionType string

const ConnectionTypeEBICS ConnectionType = "ebics"

// EbicsDialect selects which EBICS/ISO20022 message set a connection speaks.
type EbicsDialect string

const (
	DialectPostfinance  EbicsDialect = "postfinance"
	DialectGLS          EbicsDialect = "gls"
	DialectGenericH004  EbicsDialect = "ebics-h004"
	DialectGenericH005  EbicsDialect = "ebics-h005"
)

// KeyState tracks the INI/HIA upload handshake per EBICS key.
type KeyState string

const (
	KeyStateNotSent KeyState = "NOT_SENT"
	KeyStateSent    KeyState = "SENT"
	KeyStateUnknown KeyState = "UNKNOWN"
)

// FetchLevel selects which camt document family a download targets.
type FetchLevel string

const (
	FetchLevelReport       FetchLevel = "report"       // camt.052
	FetchLevelStatement    FetchLevel = "statement"    // camt.053
	FetchLevelNotification FetchLevel = "notification" // camt.054
)

// RangeType selects the date window of a fetch task.
type RangeType string

const (
	RangeLatest        RangeType = "latest"
	RangeAll           RangeType = "all"
	RangeSinceLast     RangeType = "since-last"
	RangePreviousDays  RangeType = "previous-days"
)

// CreditDebitIndicator mirrors ISO 20022 CdtDbtInd.
type CreditDebitIndicator string

const (
	Credit CreditDebitIndicator = "CRDT"
	Debit  CreditDebitIndicator = "DBIT"
)

// EntryStatus mirrors ISO 20022 Ntry/Sts.
type EntryStatus string

const (
	StatusBooked  EntryStatus = "BOOK"
	StatusPending EntryStatus = "PDNG"
	StatusInfo    EntryStatus = "INFO"
)

// OutboxStatus tracks the lifecycle of a transactional outbox row.
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)

// ScheduledTaskType enumerates the two cooperative scheduler task kinds.
type ScheduledTaskType string

const (
	TaskFetch  ScheduledTaskType = "fetch"
	TaskSubmit ScheduledTaskType = "submit"
)
