package changelog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// ChangeLog is one recorded mutation of a CRM record: the document before
// and after the write plus the RFC 6902 patch between the two. Before is
// null for creates, After is null for deletes.
type ChangeLog struct {
	ID        uint
	TenantID  uuid.UUID
	UserID    *uint
	Entity    string
	RecordID  uuid.UUID
	Action    string
	Before    json.RawMessage
	After     json.RawMessage
	Diff      json.RawMessage
	IP        string
	UserAgent string
	CreatedAt time.Time
}

type FindParams struct {
	Entity   string
	RecordID *uuid.UUID
	UserID   *uint
	Action   string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

type Repository interface {
	List(ctx context.Context, params *FindParams) ([]*ChangeLog, error)
	Count(ctx context.Context, params *FindParams) (int64, error)
	Create(ctx context.Context, log *ChangeLog) error
}
