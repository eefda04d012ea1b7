// Package syncer drives one incremental pass per entity family: read the
// checkpoint, walk the remote pages, upsert every record and persist the
// checkpoint after each page.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/dmitrijs2005/zdbackup/internal/config"
	"github.com/dmitrijs2005/zdbackup/internal/logging"
	"github.com/dmitrijs2005/zdbackup/internal/models"
	"github.com/dmitrijs2005/zdbackup/internal/paginate"
)

// Options is the immutable per-run configuration of the coordinators.
type Options struct {
	BaseURL        string
	PerPage        int
	Include        string
	ExcludeDeleted bool
	Lookback       time.Duration

	ClosedOnly      bool
	UseTicketEvents bool
	PruneReopened   bool

	OrgPerPage        int
	OrgPageDelay      time.Duration
	SkipOrganizations bool
}

// FromConfig extracts the sync options from a loaded configuration.
func FromConfig(c *config.Config) Options {
	return Options{
		BaseURL:           c.APIBase(),
		PerPage:           c.PerPage,
		Include:           c.Include,
		ExcludeDeleted:    c.ExcludeDeleted,
		Lookback:          c.Bootstrap(),
		ClosedOnly:        c.ClosedTicketsOnly,
		UseTicketEvents:   c.UseTicketEventsForComments,
		PruneReopened:     c.PruneReopened,
		OrgPerPage:        c.OrgPerPage,
		OrgPageDelay:      c.OrgPageDelay,
		SkipOrganizations: c.SkipOrganizations,
	}
}

// Store is the persistence surface the coordinators write to.
type Store interface {
	UpsertUser(ctx context.Context, u *models.User) error
	UpsertOrganization(ctx context.Context, o *models.Organization) error
	UpsertTicket(ctx context.Context, t *models.Ticket) error
	UpsertComment(ctx context.Context, c *models.Comment) error
	UpsertAttachment(ctx context.Context, a *models.Attachment) error
	UpsertView(ctx context.Context, v *models.View) error
	UpsertTrigger(ctx context.Context, t *models.Trigger) error
	UpsertTriggerCategory(ctx context.Context, c *models.TriggerCategory) error
	UpsertMacro(ctx context.Context, m *models.Macro) error
	DeleteTicketCascade(ctx context.Context, ticketID int64) error

	Cursor(ctx context.Context, resource models.Resource) (string, bool, error)
	SetCursor(ctx context.Context, resource models.Resource, token string) error
	Watermark(ctx context.Context, resource models.Resource) (int64, bool, error)
	SetWatermark(ctx context.Context, resource models.Resource, epoch int64) error
}

// Materializer copies attachment content and reports where it landed.
type Materializer interface {
	Materialize(ctx context.Context, ticketID, commentID int64, a *models.Attachment) (string, bool)
}

// Deps are the collaborators shared by every coordinator.
type Deps struct {
	Fetcher      paginate.Fetcher
	Store        Store
	Materializer Materializer
	Sleeper      paginate.Sleeper
	Now          func() time.Time
	Logger       logging.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	if d.Materializer == nil {
		d.Materializer = noMaterializer{}
	}
	return d
}

type noMaterializer struct{}

func (noMaterializer) Materialize(context.Context, int64, int64, *models.Attachment) (string, bool) {
	return "", false
}

// Stats counts what one coordinator did during a run.
type Stats struct {
	Pages       int
	Records     int
	Skipped     int
	Deleted     int
	Comments    int
	Attachments int
	Downloaded  int
}

// LogArgs renders the non-zero counters as logger key-value pairs.
func (s Stats) LogArgs() []any {
	args := []any{"pages", s.Pages, "records", s.Records}
	for _, kv := range []struct {
		k string
		v int
	}{
		{"skipped", s.Skipped},
		{"deleted", s.Deleted},
		{"comments", s.Comments},
		{"attachments", s.Attachments},
		{"downloaded", s.Downloaded},
	} {
		if kv.v != 0 {
			args = append(args, kv.k, kv.v)
		}
	}
	return args
}

// Syncer is one entity family's coordinator.
type Syncer interface {
	Resource() models.Resource
	Sync(ctx context.Context) (Stats, error)
}

func endpoint(base, path string) string { return base + path }

func pageQuery(perPage int) url.Values {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(perPage))
	return q
}

// each decodes every record under key and hands it to fn.
func each[T any](raws []json.RawMessage, decode func([]byte) (*T, error), fn func(*T) error) error {
	for _, raw := range raws {
		v, err := decode(raw)
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

// startTime resolves a watermark into the first start_time of a walk.
func startTime(ctx context.Context, d Deps, o Options, r models.Resource) (int64, error) {
	wm, ok, err := d.Store.Watermark(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("read %s checkpoint: %w", r, err)
	}
	if ok {
		return wm, nil
	}
	return paginate.Bootstrap(d.Now(), o.Lookback), nil
}

// cursorStart resolves a stored cursor into the start of a cursor walk.
func cursorStart(ctx context.Context, d Deps, o Options, r models.Resource) (paginate.Start, error) {
	cur, ok, err := d.Store.Cursor(ctx, r)
	if err != nil {
		return paginate.Start{}, fmt.Errorf("read %s checkpoint: %w", r, err)
	}
	if ok {
		return paginate.Start{Cursor: cur}, nil
	}
	return paginate.Start{StartTime: paginate.Bootstrap(d.Now(), o.Lookback)}, nil
}
