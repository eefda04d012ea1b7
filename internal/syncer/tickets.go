package syncer

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/zdbackup/internal/models"
	"github.com/dmitrijs2005/zdbackup/internal/paginate"
)

const (
	ticketsPath     = "/api/v2/incremental/tickets/cursor.json"
	commentsPerPage = 100
)

func commentsPath(ticketID int64) string {
	return "/api/v2/tickets/" + strconv.FormatInt(ticketID, 10) + "/comments.json"
}

// TicketsSyncer mirrors tickets through the cursor-based export and, unless
// comments come from the ticket events feed, each ticket's comments and
// attachments.
type TicketsSyncer struct {
	deps Deps
	opts Options
}

func NewTicketsSyncer(d Deps, o Options) *TicketsSyncer {
	return &TicketsSyncer{deps: d.withDefaults(), opts: o}
}

func (s *TicketsSyncer) Resource() models.Resource { return models.ResourceTickets }

func (s *TicketsSyncer) query() url.Values {
	q := pageQuery(s.opts.PerPage)
	if s.opts.Include != "" {
		q.Set("include", s.opts.Include)
	}
	if s.opts.ExcludeDeleted {
		q.Set("exclude_deleted", "true")
	}
	return q
}

func (s *TicketsSyncer) Sync(ctx context.Context) (Stats, error) {
	var st Stats
	start, err := cursorStart(ctx, s.deps, s.opts, models.ResourceTickets)
	if err != nil {
		return st, err
	}

	drv := paginate.NewCursorDriver(s.deps.Fetcher, endpoint(s.opts.BaseURL, ticketsPath), s.query(), start)
	for {
		page, ok, err := drv.Next(ctx)
		if err != nil {
			return st, fmt.Errorf("sync tickets: %w", err)
		}
		if !ok {
			return st, nil
		}
		st.Pages++

		err = each(page.Records("tickets"), models.Decode[models.Ticket], func(t *models.Ticket) error {
			return s.ticket(ctx, t, &st)
		})
		if err != nil {
			return st, fmt.Errorf("sync tickets: %w", err)
		}
		if err := s.deps.Store.SetCursor(ctx, models.ResourceTickets, page.AfterCursor()); err != nil {
			return st, fmt.Errorf("sync tickets: %w", err)
		}
	}
}

func (s *TicketsSyncer) ticket(ctx context.Context, t *models.Ticket, st *Stats) error {
	if s.opts.ClosedOnly && !t.IsClosed() {
		if s.opts.PruneReopened {
			st.Deleted++
			s.deps.Logger.Debug(ctx, "pruning ticket", "ticket_id", t.ID, "status", t.Status)
			return s.deps.Store.DeleteTicketCascade(ctx, t.ID)
		}
		st.Skipped++
		s.deps.Logger.Debug(ctx, "skipping ticket", "ticket_id", t.ID, "status", t.Status)
		return nil
	}

	if err := s.deps.Store.UpsertTicket(ctx, t); err != nil {
		return err
	}
	st.Records++

	if s.opts.UseTicketEvents {
		return nil
	}
	return s.comments(ctx, t.ID, st)
}

// comments walks the full comment list of one ticket.
func (s *TicketsSyncer) comments(ctx context.Context, ticketID int64, st *Stats) error {
	drv := paginate.NewListDriver(s.deps.Fetcher, endpoint(s.opts.BaseURL, commentsPath(ticketID)), pageQuery(commentsPerPage))
	for {
		page, ok, err := drv.Next(ctx)
		if err != nil {
			return fmt.Errorf("comments of ticket %d: %w", ticketID, err)
		}
		if !ok {
			return nil
		}
		err = each(page.Records("comments"), models.Decode[models.Comment], func(c *models.Comment) error {
			c.TicketID = ticketID
			return storeComment(ctx, s.deps, c, st)
		})
		if err != nil {
			return err
		}
	}
}

// storeComment upserts a comment, then materializes and upserts each of
// its attachments.
func storeComment(ctx context.Context, d Deps, c *models.Comment, st *Stats) error {
	if err := d.Store.UpsertComment(ctx, c); err != nil {
		return err
	}
	st.Comments++

	for i := range c.Attachments {
		a := &c.Attachments[i]
		a.TicketID = c.TicketID
		a.CommentID = c.ID
		if loc, ok := d.Materializer.Materialize(ctx, c.TicketID, c.ID, a); ok {
			a.LocalPath = &loc
			st.Downloaded++
		}
		if err := d.Store.UpsertAttachment(ctx, a); err != nil {
			return err
		}
		st.Attachments++
	}
	return nil
}
