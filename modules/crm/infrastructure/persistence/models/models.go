package models

import (
	"database/sql"
	"time"
)

type Record struct {
	ID       string
	TenantID string
	Entity   string
	// Fields is the JSONB document.
	Fields    []byte
	Tags      []string
	Assignee  sql.NullString
	AccountID sql.NullString
	IsTest    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
