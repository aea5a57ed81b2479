package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Tx is the querying surface repositories require from the context. Both
// pgx transactions and pgxpool satisfy it, so read paths can run without an
// explicit transaction.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// ExtendedFieldSet describes dynamic per-row fields for batch inserts.
// Implementations expose a stable field order and a value per field.
type ExtendedFieldSet interface {
	Fields() []string
	Value(field string) interface{}
}
