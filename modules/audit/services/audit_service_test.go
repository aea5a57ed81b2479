package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian-sdk/modules/audit/domain/entities/authlog"
	"github.com/meridianhq/meridian-sdk/modules/audit/domain/entities/changelog"
	"github.com/meridianhq/meridian-sdk/pkg/authz"
)

type mockChangeLogRepo struct {
	calledList bool
	lastParams *changelog.FindParams
	created    []*changelog.ChangeLog
	items      []*changelog.ChangeLog
	total      int64
}

func (m *mockChangeLogRepo) List(ctx context.Context, params *changelog.FindParams) ([]*changelog.ChangeLog, error) {
	m.calledList = true
	m.lastParams = params
	return m.items, nil
}

func (m *mockChangeLogRepo) Count(ctx context.Context, params *changelog.FindParams) (int64, error) {
	return m.total, nil
}

func (m *mockChangeLogRepo) Create(ctx context.Context, log *changelog.ChangeLog) error {
	m.created = append(m.created, log)
	return nil
}

type mockAuthLogRepo struct {
	calledList bool
	lastParams *authlog.FindParams
	created    []*authlog.AuthenticationLog
	items      []*authlog.AuthenticationLog
	total      int64
}

func (m *mockAuthLogRepo) List(ctx context.Context, params *authlog.FindParams) ([]*authlog.AuthenticationLog, error) {
	m.calledList = true
	m.lastParams = params
	return m.items, nil
}

func (m *mockAuthLogRepo) Count(ctx context.Context, params *authlog.FindParams) (int64, error) {
	return m.total, nil
}

func (m *mockAuthLogRepo) Create(ctx context.Context, log *authlog.AuthenticationLog) error {
	m.created = append(m.created, log)
	return nil
}

func allowAudit(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { authorizeAuditFn = defaultAuthorizeAudit })
	authorizeAuditFn = func(ctx context.Context, object, action string, opts ...authz.RequestOption) error {
		require.Equal(t, logsAuthzObject, object)
		require.Equal(t, "view", action)
		return nil
	}
}

func denyAudit(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { authorizeAuditFn = defaultAuthorizeAudit })
	authorizeAuditFn = func(ctx context.Context, object, action string, opts ...authz.RequestOption) error {
		return errors.New("forbidden")
	}
}

func TestAuditService_ListChangeLogs_AuthorizeDenied(t *testing.T) {
	denyAudit(t)

	changeRepo := &mockChangeLogRepo{}
	svc := NewAuditService(changeRepo, &mockAuthLogRepo{})

	_, _, err := svc.ListChangeLogs(context.Background(), &changelog.FindParams{})
	require.Error(t, err)
	require.False(t, changeRepo.calledList, "repository should not be invoked when authorization fails")
}

func TestAuditService_ListChangeLogs_Authorized(t *testing.T) {
	allowAudit(t)

	tenantID := uuid.New()
	changeRepo := &mockChangeLogRepo{
		items: []*changelog.ChangeLog{
			{
				ID:       1,
				TenantID: tenantID,
				Entity:   "contacts",
				RecordID: uuid.New(),
				Action:   changelog.ActionUpdated,
			},
		},
		total: 41,
	}
	svc := NewAuditService(changeRepo, &mockAuthLogRepo{})

	logs, total, err := svc.ListChangeLogs(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, int64(41), total)
	require.Len(t, logs, 1)
	require.Equal(t, "contacts", logs[0].Entity)
	require.NotNil(t, changeRepo.lastParams, "params should default to non-nil value")
}

func TestAuditService_ListChangeLogs_PassesFiltersThrough(t *testing.T) {
	allowAudit(t)

	changeRepo := &mockChangeLogRepo{}
	svc := NewAuditService(changeRepo, &mockAuthLogRepo{})

	from := time.Now().Add(-24 * time.Hour)
	params := &changelog.FindParams{
		Entity: "accounts",
		Action: changelog.ActionDeleted,
		From:   &from,
		Limit:  10,
		Offset: 20,
	}
	_, _, err := svc.ListChangeLogs(context.Background(), params)
	require.NoError(t, err)
	require.Equal(t, params, changeRepo.lastParams)
}

func TestAuditService_ListAuthenticationLogs_AuthorizeDenied(t *testing.T) {
	denyAudit(t)

	authRepo := &mockAuthLogRepo{}
	svc := NewAuditService(&mockChangeLogRepo{}, authRepo)

	_, _, err := svc.ListAuthenticationLogs(context.Background(), &authlog.FindParams{})
	require.Error(t, err)
	require.False(t, authRepo.calledList, "repository should not be invoked when authorization fails")
}

func TestAuditService_ListAuthenticationLogs_Authorized(t *testing.T) {
	allowAudit(t)

	authRepo := &mockAuthLogRepo{
		items: []*authlog.AuthenticationLog{
			{ID: 7, Email: "agent@example.com", Success: false},
		},
		total: 3,
	}
	svc := NewAuditService(&mockChangeLogRepo{}, authRepo)

	logs, total, err := svc.ListAuthenticationLogs(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, logs, 1)
	require.Equal(t, "agent@example.com", logs[0].Email)
	require.NotNil(t, authRepo.lastParams, "params should default to non-nil value")
}

func TestAuditService_CreateChangeLog_ValidatesInput(t *testing.T) {
	svc := NewAuditService(&mockChangeLogRepo{}, &mockAuthLogRepo{})
	require.Error(t, svc.CreateChangeLog(context.Background(), nil))
}

func TestAuditService_CreateAuthenticationLog_ValidatesInput(t *testing.T) {
	svc := NewAuditService(&mockChangeLogRepo{}, &mockAuthLogRepo{})
	require.Error(t, svc.CreateAuthenticationLog(context.Background(), nil))
}

func TestAuditService_Create_PassesThrough(t *testing.T) {
	changeRepo := &mockChangeLogRepo{}
	authRepo := &mockAuthLogRepo{}
	svc := NewAuditService(changeRepo, authRepo)

	entry := &changelog.ChangeLog{Entity: "leads", Action: changelog.ActionCreated}
	require.NoError(t, svc.CreateChangeLog(context.Background(), entry))
	require.Len(t, changeRepo.created, 1)

	attempt := &authlog.AuthenticationLog{Email: "agent@example.com"}
	require.NoError(t, svc.CreateAuthenticationLog(context.Background(), attempt))
	require.Len(t, authRepo.created, 1)
}

func TestDefaultAuthorizeAudit_NoUserPassesThrough(t *testing.T) {
	require.NoError(t, defaultAuthorizeAudit(context.Background(), logsAuthzObject, "view"))
}
