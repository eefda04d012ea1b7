package syncer

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/zdbackup/internal/models"
	"github.com/dmitrijs2005/zdbackup/internal/paginate"
)

// maxSnapshotPage is the largest page the configuration list endpoints accept.
const maxSnapshotPage = 100

// SnapshotSyncer re-reads a whole configuration list on every run. These
// endpoints are small and not incremental, so nothing is checkpointed.
type SnapshotSyncer[T any] struct {
	deps     Deps
	opts     Options
	resource models.Resource
	path     string
	include  bool
	decode   func([]byte) (*T, error)
	upsert   func(context.Context, *T) error
}

func NewViewsSyncer(d Deps, o Options) *SnapshotSyncer[models.View] {
	d = d.withDefaults()
	return &SnapshotSyncer[models.View]{
		deps: d, opts: o, resource: models.ResourceViews, path: "/api/v2/views.json", include: true,
		decode: models.Decode[models.View], upsert: d.Store.UpsertView,
	}
}

func NewTriggersSyncer(d Deps, o Options) *SnapshotSyncer[models.Trigger] {
	d = d.withDefaults()
	return &SnapshotSyncer[models.Trigger]{
		deps: d, opts: o, resource: models.ResourceTriggers, path: "/api/v2/triggers.json",
		decode: models.Decode[models.Trigger], upsert: d.Store.UpsertTrigger,
	}
}

func NewTriggerCategoriesSyncer(d Deps, o Options) *SnapshotSyncer[models.TriggerCategory] {
	d = d.withDefaults()
	return &SnapshotSyncer[models.TriggerCategory]{
		deps: d, opts: o, resource: models.ResourceTriggerCategories, path: "/api/v2/trigger_categories.json",
		decode: models.Decode[models.TriggerCategory], upsert: d.Store.UpsertTriggerCategory,
	}
}

func NewMacrosSyncer(d Deps, o Options) *SnapshotSyncer[models.Macro] {
	d = d.withDefaults()
	return &SnapshotSyncer[models.Macro]{
		deps: d, opts: o, resource: models.ResourceMacros, path: "/api/v2/macros.json", include: true,
		decode: models.Decode[models.Macro], upsert: d.Store.UpsertMacro,
	}
}

func (s *SnapshotSyncer[T]) Resource() models.Resource { return s.resource }

func (s *SnapshotSyncer[T]) Sync(ctx context.Context) (Stats, error) {
	var st Stats

	q := pageQuery(min(s.opts.PerPage, maxSnapshotPage))
	if s.include && s.opts.Include != "" {
		q.Set("include", s.opts.Include)
	}

	drv := paginate.NewListDriver(s.deps.Fetcher, endpoint(s.opts.BaseURL, s.path), q)
	for {
		page, ok, err := drv.Next(ctx)
		if err != nil {
			return st, fmt.Errorf("sync %s: %w", s.resource, err)
		}
		if !ok {
			return st, nil
		}
		st.Pages++

		err = each(page.Records(string(s.resource)), s.decode, func(v *T) error {
			st.Records++
			return s.upsert(ctx, v)
		})
		if err != nil {
			return st, fmt.Errorf("sync %s: %w", s.resource, err)
		}
	}
}
