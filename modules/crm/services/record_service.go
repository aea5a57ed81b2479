package services

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/meridianhq/meridian-sdk/modules/crm/domain/catalog"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/record"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/scope"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/eventbus"
	"github.com/meridianhq/meridian-sdk/pkg/querycache"
	"github.com/meridianhq/meridian-sdk/pkg/serrors"
)

// RecordService covers single-record writes and point reads for every
// catalog entity. The effective tenant comes from the context; controllers
// resolve elevated tenant selections before calling in.
type RecordService struct {
	repo      record.Repository
	catalog   *catalog.Catalog
	cache     *querycache.QueryCache
	resolver  scope.AssigneeResolver
	publisher eventbus.EventBus
}

func NewRecordService(
	repo record.Repository,
	cat *catalog.Catalog,
	cache *querycache.QueryCache,
	resolver scope.AssigneeResolver,
	publisher eventbus.EventBus,
) *RecordService {
	return &RecordService{
		repo:      repo,
		catalog:   cat,
		cache:     cache,
		resolver:  resolver,
		publisher: publisher,
	}
}

// CreateRecordInput is a full new record. Fields must satisfy the entity's
// catalog contract.
type CreateRecordInput struct {
	Fields   map[string]any
	Tags     []string
	Assignee string
	IsTest   bool
}

// PatchRecordInput is a partial update. Fields follows JSON merge-patch
// semantics: null deletes a key. Nil pointers leave the envelope attributes
// untouched.
type PatchRecordInput struct {
	Fields   json.RawMessage
	Tags     *[]string
	Assignee *string
	IsTest   *bool
}

func (s *RecordService) Create(ctx context.Context, entityName string, in CreateRecordInput) (record.Record, error) {
	if err := authorizeRecords(ctx, "create"); err != nil {
		return nil, err
	}
	ent, err := s.catalog.Get(entityName)
	if err != nil {
		return nil, err
	}
	if err := validateFields(ent, in.Fields); err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	entity := record.New(tenantID, entityName, in.Fields,
		record.WithTags(in.Tags),
		record.WithAssignee(resolveAssigneeValue(ctx, s.resolver, tenantID, in.Assignee)),
		record.WithIsTest(in.IsTest),
	)
	created, err := runInTenantTxResult(ctx, func(txCtx context.Context) (record.Record, error) {
		return s.repo.Create(txCtx, entity)
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateEntity(entityName)
	actorID, ip, ua := eventSource(ctx)
	s.publisher.Publish(&record.CreatedEvent{Result: created, ActorID: actorID, IP: ip, UserAgent: ua})
	return created, nil
}

// eventSource names the request behind a mutation so audit subscribers can
// attribute the change without access to the request context.
func eventSource(ctx context.Context) (*uint, string, string) {
	var actorID *uint
	if u, err := composables.UseUser(ctx); err == nil && u != nil {
		id := u.ID()
		actorID = &id
	}
	ip, _ := composables.UseIP(ctx)
	ua, _ := composables.UseUserAgent(ctx)
	return actorID, ip, ua
}

func (s *RecordService) GetByID(ctx context.Context, entityName string, id uuid.UUID) (record.Record, error) {
	if err := authorizeRecords(ctx, "read"); err != nil {
		return nil, err
	}
	if _, err := s.catalog.Get(entityName); err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	return runInTenantTxResult(ctx, func(txCtx context.Context) (record.Record, error) {
		return s.getEntityRecord(txCtx, entityName, tenantID, id)
	})
}

func (s *RecordService) Patch(ctx context.Context, entityName string, id uuid.UUID, in PatchRecordInput) (record.Record, error) {
	if err := authorizeRecords(ctx, "update"); err != nil {
		return nil, err
	}
	ent, err := s.catalog.Get(entityName)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	var previous record.Record
	updated, err := runInTenantTxResult(ctx, func(txCtx context.Context) (record.Record, error) {
		current, err := s.getEntityRecord(txCtx, entityName, tenantID, id)
		if err != nil {
			return nil, err
		}
		previous = current
		next := current
		if len(in.Fields) > 0 {
			merged, err := mergeFieldsPatch(current.Fields(), in.Fields)
			if err != nil {
				return nil, err
			}
			if err := validateFields(ent, merged); err != nil {
				return nil, err
			}
			next = next.SetFields(merged)
		}
		if in.Tags != nil {
			next = next.SetTags(*in.Tags)
		}
		if in.Assignee != nil {
			next = next.SetAssignee(resolveAssigneeValue(txCtx, s.resolver, tenantID, *in.Assignee))
		}
		if in.IsTest != nil {
			next = next.SetIsTest(*in.IsTest)
		}
		return s.repo.Update(txCtx, next)
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateEntity(entityName)
	actorID, ip, ua := eventSource(ctx)
	s.publisher.Publish(&record.UpdatedEvent{Previous: previous, Result: updated, ActorID: actorID, IP: ip, UserAgent: ua})
	return updated, nil
}

// Delete removes the record and returns it, so callers can render what went
// away.
func (s *RecordService) Delete(ctx context.Context, entityName string, id uuid.UUID) (record.Record, error) {
	if err := authorizeRecords(ctx, "delete"); err != nil {
		return nil, err
	}
	if _, err := s.catalog.Get(entityName); err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	deleted, err := runInTenantTxResult(ctx, func(txCtx context.Context) (record.Record, error) {
		current, err := s.getEntityRecord(txCtx, entityName, tenantID, id)
		if err != nil {
			return nil, err
		}
		if err := s.repo.Delete(txCtx, tenantID, id); err != nil {
			return nil, err
		}
		return current, nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateEntity(entityName)
	actorID, ip, ua := eventSource(ctx)
	s.publisher.Publish(&record.DeletedEvent{Result: deleted, ActorID: actorID, IP: ip, UserAgent: ua})
	return deleted, nil
}

// getEntityRecord loads one record and hides records of other entities
// behind not-found, so /contacts/{id} cannot leak an account.
func (s *RecordService) getEntityRecord(ctx context.Context, entityName string, tenantID, id uuid.UUID) (record.Record, error) {
	current, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if current.Entity() != entityName {
		return nil, fmt.Errorf("id: %s: %w", id, record.ErrNotFound)
	}
	return current, nil
}

// mergeFieldsPatch applies an RFC 7386 merge patch to a field map.
func mergeFieldsPatch(current map[string]any, patch json.RawMessage) (map[string]any, error) {
	base, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	merged, err := jsonpatch.MergePatch(base, patch)
	if err != nil {
		return nil, errors.Wrap(err, "invalid merge patch")
	}
	var out map[string]any
	if err := json.Unmarshal(merged, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// validateFields enforces the catalog contract: no unknown fields, every
// required field present and non-empty, select values drawn from the
// declared options.
func validateFields(ent catalog.Entity, fields map[string]any) error {
	for name, v := range fields {
		if err := validateFieldValue(ent, name, v); err != nil {
			return err
		}
	}
	for _, name := range ent.RequiredFields() {
		v, ok := fields[name]
		if !ok || strings.TrimSpace(valueString(v)) == "" {
			return serrors.NewFieldRequiredError(name)
		}
	}
	return nil
}

func validateFieldValue(ent catalog.Entity, name string, v any) error {
	field, ok := ent.Field(name)
	if !ok {
		return serrors.NewInvalidFieldError(name, "not defined for "+ent.Name)
	}
	if field.Kind == catalog.KindSelect {
		raw := strings.TrimSpace(valueString(v))
		if raw != "" && !slices.Contains(field.Options, raw) {
			return serrors.NewInvalidFieldError(name, "must be one of: "+strings.Join(field.Options, ", "))
		}
	}
	return nil
}
