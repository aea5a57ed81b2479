package services

import (
	"context"
	"time"

	"github.com/meridianhq/meridian-sdk/modules/crm/domain/catalog"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/record"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/scope"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/querycache"
)

// QueryConfig bounds list fetches and pagination. Zero values fall back to
// the platform defaults.
type QueryConfig struct {
	FetchLimit      int
	DefaultPageSize int
	MaxPageSize     int
}

func (c QueryConfig) withDefaults() QueryConfig {
	if c.FetchLimit <= 0 {
		c.FetchLimit = 10000
	}
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = 25
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = 100
	}
	return c
}

// RecordQueryService serves scoped, refined, paginated record views. Full
// scope sets are fetched once through the query cache; search, facets, tags,
// age buckets, and the page window are applied in memory on top.
type RecordQueryService struct {
	repo     record.Repository
	catalog  *catalog.Catalog
	cache    *querycache.QueryCache
	resolver scope.AssigneeResolver
	cfg      QueryConfig
	now      func() time.Time
}

func NewRecordQueryService(
	repo record.Repository,
	cat *catalog.Catalog,
	cache *querycache.QueryCache,
	resolver scope.AssigneeResolver,
	cfg QueryConfig,
) *RecordQueryService {
	return &RecordQueryService{
		repo:     repo,
		catalog:  cat,
		cache:    cache,
		resolver: resolver,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

// StatsResult is the per-facet breakdown for one scoped view.
type StatsResult struct {
	Total  int64            `json:"total"`
	Counts map[string]int64 `json:"counts"`
}

// List resolves one page of the caller's view. A non-fetchable scope is a
// terminal empty result: no backend call, page pinned to 1.
func (s *RecordQueryService) List(ctx context.Context, entityName string, opts ViewOptions) (*record.ListResult, error) {
	if err := authorizeRecords(ctx, "read"); err != nil {
		return nil, err
	}
	ent, err := s.catalog.Get(entityName)
	if err != nil {
		return nil, err
	}

	sc := buildViewScope(ctx, s.resolver, entityName, opts)
	if !sc.Fetchable {
		return &record.ListResult{Items: []record.Record{}, Counts: map[string]int64{}, Page: 1}, nil
	}

	srt := sortOrDefault(ent, opts.Sort)
	items, err := s.fetchScoped(ctx, sc, srt)
	if err != nil {
		return nil, err
	}

	refined := refineRecords(ent, items, opts.Refinement, s.now())
	page, size := s.pageWindow(opts.Page, opts.PageSize, len(refined))
	start := (page - 1) * size
	end := min(start+size, len(refined))

	return &record.ListResult{
		Items:  refined[start:end],
		Total:  len(refined),
		Counts: facetCounts(ent, refined),
		Page:   page,
	}, nil
}

// Stats reports facet counts for the whole filtered set, independent of any
// page window. Without refinement the backend GROUP BY is authoritative;
// with refinement the counts come from the same cached set the list shows.
func (s *RecordQueryService) Stats(ctx context.Context, entityName string, opts ViewOptions) (*StatsResult, error) {
	if err := authorizeRecords(ctx, "read"); err != nil {
		return nil, err
	}
	ent, err := s.catalog.Get(entityName)
	if err != nil {
		return nil, err
	}

	sc := buildViewScope(ctx, s.resolver, entityName, opts)
	if !sc.Fetchable {
		return &StatsResult{Counts: map[string]int64{}}, nil
	}

	if opts.Refinement.IsZero() {
		return s.backendStats(ctx, ent, sc)
	}

	items, err := s.fetchScoped(ctx, sc, sortOrDefault(ent, opts.Sort))
	if err != nil {
		return nil, err
	}
	refined := refineRecords(ent, items, opts.Refinement, s.now())
	return &StatsResult{
		Total:  int64(len(refined)),
		Counts: facetCounts(ent, refined),
	}, nil
}

func (s *RecordQueryService) backendStats(ctx context.Context, ent catalog.Entity, sc scope.Scope) (*StatsResult, error) {
	tenantCtx := composables.WithTenantID(ctx, sc.Filter.TenantID)
	return runInTenantTxResult(tenantCtx, func(txCtx context.Context) (*StatsResult, error) {
		total, err := s.repo.Count(txCtx, sc.Filter)
		if err != nil {
			return nil, err
		}
		counts := map[string]int64{}
		if ent.FacetField != "" {
			rows, err := s.repo.CountByFacet(txCtx, sc.Filter, ent.FacetField)
			if err != nil {
				return nil, err
			}
			for _, row := range rows {
				counts[row.Value] = row.Count
			}
		}
		return &StatsResult{Total: total, Counts: counts}, nil
	})
}

func (s *RecordQueryService) fetchScoped(ctx context.Context, sc scope.Scope, srt record.Sort) ([]record.Record, error) {
	key := listCacheKey(sc.Filter.Entity, sc.Filter, srt)
	return querycache.GetOrFetch(ctx, s.cache, key, func(fetchCtx context.Context) ([]record.Record, error) {
		return fetchScopeSet(fetchCtx, s.repo, sc, srt, s.cfg.FetchLimit)
	})
}

// pageWindow normalizes the page request. When the requested page starts past
// the end of the set it steps back until the slice is non-empty or page 1 is
// reached, so a shrunk result never strands the caller on a blank page.
func (s *RecordQueryService) pageWindow(page, size, total int) (int, int) {
	if size <= 0 {
		size = s.cfg.DefaultPageSize
	}
	if size > s.cfg.MaxPageSize {
		size = s.cfg.MaxPageSize
	}
	if page < 1 {
		page = 1
	}
	for page > 1 && (page-1)*size >= total {
		page--
	}
	return page, size
}

func sortOrDefault(ent catalog.Entity, srt record.Sort) record.Sort {
	if srt.Field != "" {
		return srt
	}
	return record.ParseSort(ent.DefaultSort)
}
