package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/aggregates/user"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/record"
	"github.com/meridianhq/meridian-sdk/pkg/authz"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/querycache"
)

// allowAll stubs the authorization guard open for the duration of one test.
func allowAll(t *testing.T) {
	t.Helper()
	prev := authorizeCRMFn
	authorizeCRMFn = func(ctx context.Context, object, action string, opts ...authz.RequestOption) error {
		return nil
	}
	t.Cleanup(func() { authorizeCRMFn = prev })
}

// passthroughTx replaces the transaction runner with a direct call, so fake
// repositories work without a database pool.
func passthroughTx(t *testing.T) {
	t.Helper()
	prev := runInTenantTx
	runInTenantTx = func(ctx context.Context, fn func(context.Context) error) error {
		return fn(ctx)
	}
	t.Cleanup(func() { runInTenantTx = prev })
}

func newTestCache(t *testing.T) *querycache.QueryCache {
	t.Helper()
	cache, err := querycache.New(128, time.Minute)
	require.NoError(t, err)
	return cache
}

func userContext(u user.User) context.Context {
	ctx := composables.WithUser(context.Background(), u)
	return composables.WithTenantID(ctx, u.TenantID())
}

type stubResolver struct {
	byName map[string]string
}

func (r *stubResolver) ResolveAssignee(ctx context.Context, tenantID uuid.UUID, selection string) (string, error) {
	if r.byName == nil {
		return "", nil
	}
	return r.byName[selection], nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []interface{}
}

func (p *capturePublisher) Publish(args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, args...)
}

func (p *capturePublisher) Subscribe(handler interface{})   {}
func (p *capturePublisher) Unsubscribe(handler interface{}) {}
func (p *capturePublisher) Clear()                          {}
func (p *capturePublisher) SubscribersCount() int           { return 0 }

func (p *capturePublisher) Events() []interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]interface{}{}, p.events...)
}

// fakeRecordRepo is an in-memory record.Repository with the same filter
// semantics as the postgres implementation, plus call counters and error
// hooks for failure-path tests.
type fakeRecordRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]record.Record

	findCalls        int
	lastFind         *record.FindParams
	countFacetCalls  int
	createManyCalls  int
	deleteCalls      int
	deletedIDs       []uuid.UUID
	attemptedDeletes []uuid.UUID
	attemptedUpdates []uuid.UUID

	deleteErr     func(id uuid.UUID) error
	updateErr     func(id uuid.UUID) error
	createManyErr func(call int) error
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{records: map[uuid.UUID]record.Record{}}
}

func (f *fakeRecordRepo) seed(recs ...record.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range recs {
		f.records[rec.ID()] = rec
	}
}

func (f *fakeRecordRepo) matches(rec record.Record, filter record.Filter) bool {
	if rec.TenantID() != filter.TenantID || rec.Entity() != filter.Entity {
		return false
	}
	if filter.Unassigned && rec.Assignee() != "" {
		return false
	}
	if filter.Assignee != nil && rec.Assignee() != *filter.Assignee {
		return false
	}
	if !filter.IncludeTest && rec.IsTest() {
		return false
	}
	if len(filter.IDs) > 0 {
		found := false
		for _, id := range filter.IDs {
			if rec.ID() == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (f *fakeRecordRepo) Find(ctx context.Context, params *record.FindParams) ([]record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	f.lastFind = params

	var out []record.Record
	for _, rec := range f.records {
		if f.matches(rec, params.Filter) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].CreatedAt().After(out[j].CreatedAt())
		}
		return out[i].ID().String() < out[j].ID().String()
	})
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (f *fakeRecordRepo) Count(ctx context.Context, filter record.Filter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, rec := range f.records {
		if f.matches(rec, filter) {
			n++
		}
	}
	return n, nil
}

func (f *fakeRecordRepo) CountByFacet(ctx context.Context, filter record.Filter, field string) ([]record.FacetCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countFacetCalls++

	counts := map[string]int64{}
	for _, rec := range f.records {
		if !f.matches(rec, filter) {
			continue
		}
		v, _ := rec.Field(field)
		s, _ := v.(string)
		counts[s]++
	}
	out := make([]record.FacetCount, 0, len(counts))
	for value, count := range counts {
		out = append(out, record.FacetCount{Value: value, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}

func (f *fakeRecordRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok || rec.TenantID() != tenantID {
		return nil, fmt.Errorf("id: %s: %w", id, record.ErrNotFound)
	}
	return rec, nil
}

func (f *fakeRecordRepo) FindAccountIDByName(ctx context.Context, tenantID uuid.UUID, name string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.TenantID() != tenantID || rec.Entity() != "accounts" {
			continue
		}
		v, _ := rec.Field("name")
		if s, ok := v.(string); ok && strings.EqualFold(s, name) {
			return rec.ID(), nil
		}
	}
	return uuid.Nil, fmt.Errorf("account name: %s: %w", name, record.ErrNotFound)
}

func (f *fakeRecordRepo) Create(ctx context.Context, rec record.Record) (record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.ID()] = rec
	return rec, nil
}

func (f *fakeRecordRepo) CreateMany(ctx context.Context, recs []record.Record) ([]record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createManyCalls++
	if f.createManyErr != nil {
		if err := f.createManyErr(f.createManyCalls); err != nil {
			return nil, err
		}
	}
	for _, rec := range recs {
		f.records[rec.ID()] = rec
	}
	return recs, nil
}

func (f *fakeRecordRepo) Update(ctx context.Context, rec record.Record) (record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attemptedUpdates = append(f.attemptedUpdates, rec.ID())
	if f.updateErr != nil {
		if err := f.updateErr(rec.ID()); err != nil {
			return nil, err
		}
	}
	if _, ok := f.records[rec.ID()]; !ok {
		return nil, fmt.Errorf("id: %s: %w", rec.ID(), record.ErrNotFound)
	}
	f.records[rec.ID()] = rec
	return rec, nil
}

func (f *fakeRecordRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	f.attemptedDeletes = append(f.attemptedDeletes, id)
	if f.deleteErr != nil {
		if err := f.deleteErr(id); err != nil {
			return err
		}
	}
	rec, ok := f.records[id]
	if !ok || rec.TenantID() != tenantID {
		return fmt.Errorf("id: %s: %w", id, record.ErrNotFound)
	}
	delete(f.records, id)
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

func (f *fakeRecordRepo) get(id uuid.UUID) record.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[id]
}

func (f *fakeRecordRepo) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *fakeRecordRepo) attempted(id uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, did := range f.attemptedDeletes {
		if did == id {
			return true
		}
	}
	for _, uid := range f.attemptedUpdates {
		if uid == id {
			return true
		}
	}
	return false
}
