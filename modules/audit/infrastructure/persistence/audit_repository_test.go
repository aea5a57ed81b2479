package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian-sdk/modules/audit/domain/entities/authlog"
	"github.com/meridianhq/meridian-sdk/modules/audit/domain/entities/changelog"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/constants"
)

func TestChangeLogRepository_List_UsesTenantAndMapsRows(t *testing.T) {
	tenantID := uuid.New()
	recordID := uuid.New()
	userID := uint(9)
	now := time.Now()
	queryCalled := false

	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			queryCalled = true
			require.Contains(t, sql, "FROM change_logs")
			require.Contains(t, sql, "ORDER BY created_at DESC")
			require.Contains(t, sql, "LIMIT 10 OFFSET 5")
			require.Equal(t, tenantID, args[0])
			return &stubRows{data: [][]any{
				{
					uint(1), tenantID.String(), &userID, "contacts", recordID.String(),
					"updated", []byte(`{"v":1}`), []byte(`{"v":2}`),
					[]byte(`[{"op":"replace","path":"/v","value":2}]`),
					"127.0.0.1", "ua", now,
				},
			}}, nil
		},
	}

	ctx := context.WithValue(composables.WithTenantID(context.Background(), tenantID), constants.TxKey, tx)
	repo := NewChangeLogRepository()

	result, err := repo.List(ctx, &changelog.FindParams{Limit: 10, Offset: 5})
	require.NoError(t, err)
	require.True(t, queryCalled)
	require.Len(t, result, 1)
	require.Equal(t, tenantID, result[0].TenantID)
	require.Equal(t, recordID, result[0].RecordID)
	require.Equal(t, uint(9), *result[0].UserID)
	require.Equal(t, "contacts", result[0].Entity)
	require.Equal(t, changelog.ActionUpdated, result[0].Action)
	require.JSONEq(t, `{"v":2}`, string(result[0].After))
	require.Equal(t, now, result[0].CreatedAt)
}

func TestChangeLogRepository_List_AppliesFilters(t *testing.T) {
	tenantID := uuid.New()
	recordID := uuid.New()
	from := time.Now().Add(-time.Hour)

	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "entity = $2")
			require.Contains(t, sql, "record_id = $3")
			require.Contains(t, sql, "action = $4")
			require.Contains(t, sql, "created_at >= $5")
			require.Equal(t, []any{tenantID, "contacts", recordID, "deleted", from}, args)
			return &stubRows{}, nil
		},
	}

	ctx := context.WithValue(composables.WithTenantID(context.Background(), tenantID), constants.TxKey, tx)
	repo := NewChangeLogRepository()

	_, err := repo.List(ctx, &changelog.FindParams{
		Entity:   "contacts",
		RecordID: &recordID,
		Action:   changelog.ActionDeleted,
		From:     &from,
	})
	require.NoError(t, err)
}

func TestChangeLogRepository_Count_UsesTenantFilter(t *testing.T) {
	tenantID := uuid.New()

	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "change_logs")
			require.Equal(t, tenantID, args[0])
			return stubRow{
				scan: func(dest ...any) error {
					require.Len(t, dest, 1)
					*dest[0].(*int64) = 12
					return nil
				},
			}
		},
	}

	ctx := context.WithValue(composables.WithTenantID(context.Background(), tenantID), constants.TxKey, tx)
	repo := NewChangeLogRepository()

	count, err := repo.Count(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, int64(12), count)
}

func TestChangeLogRepository_Create_FillsTenantAndTimestamp(t *testing.T) {
	tenantID := uuid.New()
	recordID := uuid.New()

	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "INSERT INTO change_logs")
			require.Equal(t, tenantID.String(), args[0])
			require.Equal(t, "contacts", args[2])
			require.Equal(t, recordID.String(), args[3])
			require.Equal(t, "created", args[4])
			require.IsType(t, time.Time{}, args[10])
			createdAt := args[10].(time.Time)

			return stubRow{
				scan: func(dest ...any) error {
					require.Len(t, dest, 2)
					*dest[0].(*uint) = 55
					*dest[1].(*time.Time) = createdAt
					return nil
				},
			}
		},
	}

	ctx := context.WithValue(composables.WithTenantID(context.Background(), tenantID), constants.TxKey, tx)
	repo := NewChangeLogRepository()

	entry := &changelog.ChangeLog{
		Entity:   "contacts",
		RecordID: recordID,
		Action:   changelog.ActionCreated,
		After:    []byte(`{"fields":{}}`),
	}
	require.NoError(t, repo.Create(ctx, entry))
	require.Equal(t, uint(55), entry.ID)
	require.Equal(t, tenantID, entry.TenantID)
	require.NotZero(t, entry.CreatedAt)
}

func TestAuthenticationLogRepository_List_UsesTenantAndMapsRows(t *testing.T) {
	tenantID := uuid.New()
	userID := uint(3)
	now := time.Now()

	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "FROM authentication_logs")
			require.Equal(t, tenantID, args[0])
			return &stubRows{data: [][]any{
				{uint(2), tenantID.String(), &userID, "dana@example.com", true, "10.0.0.1", "ua", now},
				{uint(1), tenantID.String(), (*uint)(nil), "dana@example.com", false, "10.0.0.2", "curl", now.Add(-time.Minute)},
			}}, nil
		},
	}

	ctx := context.WithValue(composables.WithTenantID(context.Background(), tenantID), constants.TxKey, tx)
	repo := NewAuthenticationLogRepository()

	result, err := repo.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, result, 2)
	require.Equal(t, uint(3), *result[0].UserID)
	require.True(t, result[0].Success)
	require.Nil(t, result[1].UserID)
	require.False(t, result[1].Success)
}

func TestAuthenticationLogRepository_List_AppliesFilters(t *testing.T) {
	tenantID := uuid.New()
	success := false
	to := time.Now()

	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "email ILIKE $2")
			require.Contains(t, sql, "success = $3")
			require.Contains(t, sql, "created_at <= $4")
			require.Equal(t, []any{tenantID, "%dana%", false, to}, args)
			return &stubRows{}, nil
		},
	}

	ctx := context.WithValue(composables.WithTenantID(context.Background(), tenantID), constants.TxKey, tx)
	repo := NewAuthenticationLogRepository()

	_, err := repo.List(ctx, &authlog.FindParams{
		Email:   "dana",
		Success: &success,
		To:      &to,
	})
	require.NoError(t, err)
}

func TestAuthenticationLogRepository_Create_FillsTenantAndTimestamp(t *testing.T) {
	tenantID := uuid.New()

	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "INSERT INTO authentication_logs")
			require.Equal(t, tenantID.String(), args[0])
			require.Equal(t, "dana@example.com", args[2])
			require.Equal(t, true, args[3])
			require.IsType(t, time.Time{}, args[6])
			createdAt := args[6].(time.Time)

			return stubRow{
				scan: func(dest ...any) error {
					require.Len(t, dest, 2)
					*dest[0].(*uint) = 7
					*dest[1].(*time.Time) = createdAt
					return nil
				},
			}
		},
	}

	ctx := context.WithValue(composables.WithTenantID(context.Background(), tenantID), constants.TxKey, tx)
	repo := NewAuthenticationLogRepository()

	entry := &authlog.AuthenticationLog{
		Email:   "dana@example.com",
		Success: true,
	}
	require.NoError(t, repo.Create(ctx, entry))
	require.Equal(t, uint(7), entry.ID)
	require.Equal(t, tenantID, entry.TenantID)
	require.NotZero(t, entry.CreatedAt)
}

type stubTx struct {
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *stubTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (s *stubTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if s.queryFunc == nil {
		return nil, errors.New("query not implemented")
	}
	return s.queryFunc(ctx, sql, args...)
}

func (s *stubTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if s.queryRowFunc == nil {
		return stubRow{scan: func(dest ...any) error { return errors.New("query row not implemented") }}
	}
	return s.queryRowFunc(ctx, sql, args...)
}

type stubRows struct {
	data [][]any
	idx  int
	err  error
}

func (r *stubRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.data) {
		return errors.New("no current row to scan")
	}
	row := r.data[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("destination length %d does not match row length %d", len(dest), len(row))
	}
	for i, target := range dest {
		switch v := target.(type) {
		case *uint:
			*v = row[i].(uint)
		case **uint:
			*v = row[i].(*uint)
		case *string:
			*v = row[i].(string)
		case *bool:
			*v = row[i].(bool)
		case *[]byte:
			switch val := row[i].(type) {
			case []byte:
				*v = val
			case json.RawMessage:
				*v = []byte(val)
			case nil:
				*v = nil
			default:
				return fmt.Errorf("unsupported []byte source %T", row[i])
			}
		case *time.Time:
			*v = row[i].(time.Time)
		default:
			return fmt.Errorf("unsupported scan target %T", target)
		}
	}
	return nil
}

func (r *stubRows) Values() ([]any, error) {
	if r.idx == 0 || r.idx > len(r.data) {
		return nil, errors.New("no current row")
	}
	return r.data[r.idx-1], nil
}

func (r *stubRows) RawValues() [][]byte { return nil }
func (r *stubRows) Err() error          { return r.err }
func (r *stubRows) Close()              {}
func (r *stubRows) CommandTag() pgconn.CommandTag {
	return pgconn.CommandTag{}
}
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return errors.New("scan not implemented")
	}
	return r.scan(dest...)
}
