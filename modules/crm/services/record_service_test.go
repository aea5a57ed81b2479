package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/aggregates/user"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/catalog"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/record"
	"github.com/meridianhq/meridian-sdk/pkg/authz"
	"github.com/meridianhq/meridian-sdk/pkg/serrors"
)

func newRecordTestService(t *testing.T, repo *fakeRecordRepo, resolver *stubResolver, pub *capturePublisher) *RecordService {
	t.Helper()
	allowAll(t)
	passthroughTx(t)
	return NewRecordService(repo, catalog.Default(), newTestCache(t), resolver, pub)
}

func TestRecordService_Create(t *testing.T) {
	tenantID := uuid.New()
	manager := user.New(tenantID, "mgr@example.com", user.RoleManager)

	t.Run("stores the record and announces it", func(t *testing.T) {
		repo := newFakeRecordRepo()
		pub := &capturePublisher{}
		resolver := &stubResolver{byName: map[string]string{"Dana Scully": "dana@example.com"}}
		svc := newRecordTestService(t, repo, resolver, pub)

		created, err := svc.Create(userContext(manager), "contacts", CreateRecordInput{
			Fields:   map[string]any{"first_name": "Jane", "last_name": "Doe", "status": "lead"},
			Tags:     []string{" vip ", "vip", "", "hot"},
			Assignee: "Dana Scully",
		})
		require.NoError(t, err)

		require.Equal(t, tenantID, created.TenantID())
		require.Equal(t, "contacts", created.Entity())
		require.Equal(t, []string{"vip", "hot"}, created.Tags())
		require.Equal(t, "dana@example.com", created.Assignee())
		require.False(t, created.IsTest())
		require.NotNil(t, repo.get(created.ID()))

		events := pub.Events()
		require.Len(t, events, 1)
		evt, ok := events[0].(*record.CreatedEvent)
		require.True(t, ok)
		require.Equal(t, created.ID(), evt.Result.ID())
	})

	t.Run("rejects catalog violations before any write", func(t *testing.T) {
		repo := newFakeRecordRepo()
		svc := newRecordTestService(t, repo, &stubResolver{}, &capturePublisher{})

		for name, tc := range map[string]struct {
			fields map[string]any
			code   string
		}{
			"missing required field": {
				fields: map[string]any{"first_name": "Jane"},
				code:   "FIELD_REQUIRED",
			},
			"blank required field": {
				fields: map[string]any{"first_name": "Jane", "last_name": "   "},
				code:   "FIELD_REQUIRED",
			},
			"unknown field": {
				fields: map[string]any{"first_name": "Jane", "last_name": "Doe", "fax": "123"},
				code:   "FIELD_INVALID",
			},
			"select value outside options": {
				fields: map[string]any{"first_name": "Jane", "last_name": "Doe", "status": "vip"},
				code:   "FIELD_INVALID",
			},
		} {
			t.Run(name, func(t *testing.T) {
				_, err := svc.Create(userContext(manager), "contacts", CreateRecordInput{Fields: tc.fields})
				var base *serrors.BaseError
				require.ErrorAs(t, err, &base)
				require.Equal(t, tc.code, base.Code)
			})
		}
		require.Zero(t, repo.len())
	})

	t.Run("unknown entity", func(t *testing.T) {
		svc := newRecordTestService(t, newFakeRecordRepo(), &stubResolver{}, &capturePublisher{})
		_, err := svc.Create(userContext(manager), "gadgets", CreateRecordInput{
			Fields: map[string]any{"first_name": "Jane"},
		})
		require.ErrorIs(t, err, catalog.ErrUnknownEntity)
	})

	t.Run("denied callers never reach the repository", func(t *testing.T) {
		repo := newFakeRecordRepo()
		pub := &capturePublisher{}
		svc := newRecordTestService(t, repo, &stubResolver{}, pub)
		denied := errors.New("forbidden")
		authorizeCRMFn = func(ctx context.Context, object, action string, opts ...authz.RequestOption) error {
			return denied
		}

		_, err := svc.Create(userContext(manager), "contacts", CreateRecordInput{
			Fields: map[string]any{"first_name": "Jane", "last_name": "Doe"},
		})
		require.ErrorIs(t, err, denied)
		require.Zero(t, repo.len())
		require.Empty(t, pub.Events())
	})
}

func TestRecordService_GetByID_HidesOtherEntities(t *testing.T) {
	tenantID := uuid.New()
	repo := newFakeRecordRepo()
	account := record.New(tenantID, "accounts", map[string]any{"name": "Acme"})
	repo.seed(account)
	svc := newRecordTestService(t, repo, &stubResolver{}, &capturePublisher{})

	manager := user.New(tenantID, "mgr@example.com", user.RoleManager)
	_, err := svc.GetByID(userContext(manager), "contacts", account.ID())
	require.ErrorIs(t, err, record.ErrNotFound)

	got, err := svc.GetByID(userContext(manager), "accounts", account.ID())
	require.NoError(t, err)
	require.Equal(t, account.ID(), got.ID())
}

func TestRecordService_GetByID_OtherTenant(t *testing.T) {
	repo := newFakeRecordRepo()
	foreign := record.New(uuid.New(), "contacts", map[string]any{"first_name": "Jane", "last_name": "Doe"})
	repo.seed(foreign)
	svc := newRecordTestService(t, repo, &stubResolver{}, &capturePublisher{})

	manager := user.New(uuid.New(), "mgr@example.com", user.RoleManager)
	_, err := svc.GetByID(userContext(manager), "contacts", foreign.ID())
	require.ErrorIs(t, err, record.ErrNotFound)
}

func TestRecordService_Patch(t *testing.T) {
	tenantID := uuid.New()
	manager := user.New(tenantID, "mgr@example.com", user.RoleManager)

	seedContact := func(repo *fakeRecordRepo) record.Record {
		rec := record.New(tenantID, "contacts",
			map[string]any{"first_name": "Jane", "last_name": "Doe", "title": "VP Sales", "status": "lead"},
			record.WithTags([]string{"vip"}),
			record.WithAssignee("rep@example.com"),
		)
		repo.seed(rec)
		return rec
	}

	t.Run("merge patch updates and deletes fields", func(t *testing.T) {
		repo := newFakeRecordRepo()
		pub := &capturePublisher{}
		svc := newRecordTestService(t, repo, &stubResolver{}, pub)
		rec := seedContact(repo)

		updated, err := svc.Patch(userContext(manager), "contacts", rec.ID(), PatchRecordInput{
			Fields: json.RawMessage(`{"title":null,"status":"active"}`),
		})
		require.NoError(t, err)

		_, hasTitle := updated.Field("title")
		require.False(t, hasTitle, "a null in the patch removes the field")
		status, _ := updated.Field("status")
		require.Equal(t, "active", status)
		first, _ := updated.Field("first_name")
		require.Equal(t, "Jane", first)

		require.Equal(t, []string{"vip"}, updated.Tags())
		require.Equal(t, "rep@example.com", updated.Assignee())

		events := pub.Events()
		require.Len(t, events, 1)
		evt, ok := events[0].(*record.UpdatedEvent)
		require.True(t, ok)
		prevTitle, _ := evt.Previous.Field("title")
		require.Equal(t, "VP Sales", prevTitle, "the event keeps the pre-patch version")
		require.Equal(t, updated.ID(), evt.Result.ID())
	})

	t.Run("envelope pointers apply independently", func(t *testing.T) {
		repo := newFakeRecordRepo()
		svc := newRecordTestService(t, repo, &stubResolver{}, &capturePublisher{})
		rec := seedContact(repo)

		tags := []string{"cold"}
		assignee := "unassigned"
		isTest := true
		updated, err := svc.Patch(userContext(manager), "contacts", rec.ID(), PatchRecordInput{
			Tags:     &tags,
			Assignee: &assignee,
			IsTest:   &isTest,
		})
		require.NoError(t, err)

		require.Equal(t, []string{"cold"}, updated.Tags())
		require.Empty(t, updated.Assignee(), "the unassigned sentinel clears the assignment")
		require.True(t, updated.IsTest())
		title, _ := updated.Field("title")
		require.Equal(t, "VP Sales", title, "fields stay put when the patch carries none")
	})

	t.Run("removing a required field is rejected", func(t *testing.T) {
		repo := newFakeRecordRepo()
		svc := newRecordTestService(t, repo, &stubResolver{}, &capturePublisher{})
		rec := seedContact(repo)

		_, err := svc.Patch(userContext(manager), "contacts", rec.ID(), PatchRecordInput{
			Fields: json.RawMessage(`{"last_name":null}`),
		})
		var base *serrors.BaseError
		require.ErrorAs(t, err, &base)
		require.Equal(t, "FIELD_REQUIRED", base.Code)

		require.Empty(t, repo.attemptedUpdates)
		last, _ := repo.get(rec.ID()).Field("last_name")
		require.Equal(t, "Doe", last)
	})

	t.Run("malformed patch document", func(t *testing.T) {
		repo := newFakeRecordRepo()
		svc := newRecordTestService(t, repo, &stubResolver{}, &capturePublisher{})
		rec := seedContact(repo)

		_, err := svc.Patch(userContext(manager), "contacts", rec.ID(), PatchRecordInput{
			Fields: json.RawMessage(`{"title":`),
		})
		require.ErrorContains(t, err, "invalid merge patch")
	})

	t.Run("missing record", func(t *testing.T) {
		repo := newFakeRecordRepo()
		svc := newRecordTestService(t, repo, &stubResolver{}, &capturePublisher{})

		_, err := svc.Patch(userContext(manager), "contacts", uuid.New(), PatchRecordInput{
			Fields: json.RawMessage(`{"title":"CTO"}`),
		})
		require.ErrorIs(t, err, record.ErrNotFound)
	})
}

func TestRecordService_Delete(t *testing.T) {
	tenantID := uuid.New()
	repo := newFakeRecordRepo()
	pub := &capturePublisher{}
	svc := newRecordTestService(t, repo, &stubResolver{}, pub)
	rec := record.New(tenantID, "contacts", map[string]any{"first_name": "Jane", "last_name": "Doe"})
	repo.seed(rec)

	manager := user.New(tenantID, "mgr@example.com", user.RoleManager)
	deleted, err := svc.Delete(userContext(manager), "contacts", rec.ID())
	require.NoError(t, err)

	require.Equal(t, rec.ID(), deleted.ID(), "the removed record comes back to the caller")
	require.Zero(t, repo.len())

	events := pub.Events()
	require.Len(t, events, 1)
	evt, ok := events[0].(*record.DeletedEvent)
	require.True(t, ok)
	require.Equal(t, tenantID, evt.Result.TenantID())
	require.Equal(t, "contacts", evt.Result.Entity())
	require.Equal(t, rec.ID(), evt.Result.ID())

	_, err = svc.Delete(userContext(manager), "contacts", rec.ID())
	require.ErrorIs(t, err, record.ErrNotFound)
}
