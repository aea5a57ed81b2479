package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/meridianhq/meridian-sdk/modules/crm/domain/batch"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/catalog"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/record"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/scope"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/eventbus"
	"github.com/meridianhq/meridian-sdk/pkg/querycache"
	"github.com/meridianhq/meridian-sdk/pkg/serrors"
)

// Bulk mutation kinds.
const (
	BulkKindDelete      = "delete"
	BulkKindFieldUpdate = "field_update"
	BulkKindReassign    = "reassign"
)

var errUnknownBulkKind = serrors.NewError("UNKNOWN_BULK_KIND", "unknown bulk operation kind")

// BulkOperation describes one bulk mutation. Targets come from IDs, or, when
// SelectAll is set, from re-resolving the caller's current view so the
// operated set equals the visible set.
type BulkOperation struct {
	Kind      string
	IDs       []uuid.UUID
	SelectAll bool
	View      ViewOptions
	// Field and Value apply to field_update.
	Field string
	Value any
	// Assignee applies to reassign. The unassigned sentinel clears it.
	Assignee string
}

// BulkConfig sizes the executor. Zero values fall back to the platform
// defaults.
type BulkConfig struct {
	BatchSize  int
	FetchLimit int
}

// BulkService executes partitioned mutations over many records. Batches run
// sequentially; items inside a batch run concurrently, each in its own
// transaction, so one failure never drags down its neighbors.
type BulkService struct {
	repo      record.Repository
	catalog   *catalog.Catalog
	cache     *querycache.QueryCache
	resolver  scope.AssigneeResolver
	publisher eventbus.EventBus
	cfg       BulkConfig
	now       func() time.Time
}

func NewBulkService(
	repo record.Repository,
	cat *catalog.Catalog,
	cache *querycache.QueryCache,
	resolver scope.AssigneeResolver,
	publisher eventbus.EventBus,
	cfg BulkConfig,
) *BulkService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = 10000
	}
	return &BulkService{
		repo:      repo,
		catalog:   cat,
		cache:     cache,
		resolver:  resolver,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Execute runs the operation to completion or to the first rate-limit
// signal. Partial completion is terminal: completed batches stand, remaining
// batches are never attempted, and the result says which is which.
func (s *BulkService) Execute(ctx context.Context, entityName string, op BulkOperation) (*batch.Result, error) {
	if err := authorizeRecords(ctx, "bulk"); err != nil {
		return nil, err
	}
	ent, err := s.catalog.Get(entityName)
	if err != nil {
		return nil, err
	}
	if err := validateBulkOp(ent, op); err != nil {
		return nil, err
	}

	ids, tenantID, err := s.targetIDs(ctx, ent, op)
	if err != nil {
		return nil, err
	}

	result := &batch.Result{}
	if len(ids) == 0 {
		return result, nil
	}

	// Hide any request transaction: items run concurrently and must each
	// open their own.
	tenantCtx := composables.WithTenantID(composables.WithoutTx(ctx), tenantID)
	apply := s.itemFunc(tenantCtx, ent, op, tenantID)

	for _, group := range batch.Partition(ids, s.cfg.BatchSize) {
		s.runBatch(tenantCtx, group, apply, result)
		if result.Halted {
			break
		}
	}

	if result.Succeeded > 0 {
		s.cache.InvalidateEntity(entityName)
		s.publisher.Publish(&record.BulkExecutedEvent{
			TenantID:  tenantID,
			Entity:    entityName,
			Kind:      op.Kind,
			Succeeded: result.Succeeded,
			Failed:    result.Failed,
		})
	}
	return result, nil
}

func validateBulkOp(ent catalog.Entity, op BulkOperation) error {
	switch op.Kind {
	case BulkKindDelete, BulkKindReassign:
		return nil
	case BulkKindFieldUpdate:
		return validateFieldValue(ent, op.Field, op.Value)
	default:
		return errUnknownBulkKind
	}
}

// targetIDs resolves the records to operate on. Select-all re-reads the
// backend directly, bypassing the cache, so the operated set matches what
// the caller currently sees rather than a stale snapshot.
func (s *BulkService) targetIDs(ctx context.Context, ent catalog.Entity, op BulkOperation) ([]uuid.UUID, uuid.UUID, error) {
	if !op.SelectAll {
		tenantID, err := ResolveTenant(ctx, op.View.TenantID)
		if err != nil {
			return nil, uuid.Nil, err
		}
		return dedupeIDs(op.IDs), tenantID, nil
	}

	sc := buildViewScope(ctx, s.resolver, ent.Name, op.View)
	if !sc.Fetchable {
		return nil, uuid.Nil, nil
	}
	items, err := fetchScopeSet(ctx, s.repo, sc, record.Sort{}, s.cfg.FetchLimit)
	if err != nil {
		return nil, uuid.Nil, err
	}
	refined := refineRecords(ent, items, op.View.Refinement, s.now())
	ids := make([]uuid.UUID, 0, len(refined))
	for _, rec := range refined {
		ids = append(ids, rec.ID())
	}
	return ids, sc.Filter.TenantID, nil
}

type bulkItemFunc func(ctx context.Context, id uuid.UUID) error

func (s *BulkService) itemFunc(ctx context.Context, ent catalog.Entity, op BulkOperation, tenantID uuid.UUID) bulkItemFunc {
	switch op.Kind {
	case BulkKindFieldUpdate:
		return func(itemCtx context.Context, id uuid.UUID) error {
			return s.mutateItem(itemCtx, ent.Name, tenantID, id, func(rec record.Record) record.Record {
				return rec.MergeFields(map[string]any{op.Field: op.Value})
			})
		}
	case BulkKindReassign:
		assignee := resolveAssigneeValue(ctx, s.resolver, tenantID, op.Assignee)
		return func(itemCtx context.Context, id uuid.UUID) error {
			return s.mutateItem(itemCtx, ent.Name, tenantID, id, func(rec record.Record) record.Record {
				return rec.SetAssignee(assignee)
			})
		}
	default:
		return func(itemCtx context.Context, id uuid.UUID) error {
			return s.deleteItem(itemCtx, tenantID, id)
		}
	}
}

// runBatch executes one batch concurrently and folds the outcomes into
// result. A rate-limit signal marks the result halted; everything else only
// fails its own item.
func (s *BulkService) runBatch(ctx context.Context, ids []uuid.UUID, apply bulkItemFunc, result *batch.Result) {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, id := range ids {
		g.Go(func() error {
			err := apply(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				result.AddSuccess(1)
				return nil
			}
			result.AddFailure(id.String(), err.Error())
			if batch.IsRateLimited(err) {
				result.Halted = true
			}
			return nil
		})
	}
	_ = g.Wait()
}

// deleteItem treats an already-missing record as done: the goal state holds
// either way.
func (s *BulkService) deleteItem(ctx context.Context, tenantID, id uuid.UUID) error {
	err := runInTenantTx(ctx, func(txCtx context.Context) error {
		return s.repo.Delete(txCtx, tenantID, id)
	})
	if errors.Is(err, record.ErrNotFound) {
		return nil
	}
	return err
}

func (s *BulkService) mutateItem(ctx context.Context, entityName string, tenantID, id uuid.UUID, change func(record.Record) record.Record) error {
	return runInTenantTx(ctx, func(txCtx context.Context) error {
		current, err := s.repo.GetByID(txCtx, tenantID, id)
		if err != nil {
			return err
		}
		if current.Entity() != entityName {
			return fmt.Errorf("id: %s: %w", id, record.ErrNotFound)
		}
		_, err = s.repo.Update(txCtx, change(current))
		return err
	})
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
