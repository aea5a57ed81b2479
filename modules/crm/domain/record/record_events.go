package record

import "github.com/google/uuid"

type CreatedEvent struct {
	Result    Record
	ActorID   *uint
	IP        string
	UserAgent string
}

// UpdatedEvent carries both versions of the record so subscribers can diff
// them without another fetch.
type UpdatedEvent struct {
	Previous  Record
	Result    Record
	ActorID   *uint
	IP        string
	UserAgent string
}

type DeletedEvent struct {
	Result    Record
	ActorID   *uint
	IP        string
	UserAgent string
}

// BulkExecutedEvent fires once per bulk run, after all batches settle.
type BulkExecutedEvent struct {
	TenantID  uuid.UUID
	Entity    string
	Kind      string
	Succeeded int
	Failed    int
}

// ImportedEvent fires once per import run, after all batches settle.
type ImportedEvent struct {
	TenantID  uuid.UUID
	Entity    string
	Succeeded int
	Failed    int
	Linked    int
}
