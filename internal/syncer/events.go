package syncer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/zdbackup/internal/fetcher"
	"github.com/dmitrijs2005/zdbackup/internal/models"
	"github.com/dmitrijs2005/zdbackup/internal/paginate"
)

const ticketEventsPath = "/api/v2/incremental/ticket_events.json"

func ticketPath(ticketID int64) string {
	return "/api/v2/tickets/" + strconv.FormatInt(ticketID, 10) + ".json"
}

// TicketEventsSyncer sources comments from the ticket events feed instead
// of per-ticket comment lists. The feed carries no ticket status, so the
// closed-only filter costs one ticket lookup per ticket, memoised per run.
type TicketEventsSyncer struct {
	deps   Deps
	opts   Options
	closed map[int64]bool
}

func NewTicketEventsSyncer(d Deps, o Options) *TicketEventsSyncer {
	return &TicketEventsSyncer{deps: d.withDefaults(), opts: o}
}

func (s *TicketEventsSyncer) Resource() models.Resource { return models.ResourceTicketEvents }

func (s *TicketEventsSyncer) Sync(ctx context.Context) (Stats, error) {
	var st Stats
	s.closed = make(map[int64]bool)

	from, err := startTime(ctx, s.deps, s.opts, models.ResourceTicketEvents)
	if err != nil {
		return st, err
	}

	q := pageQuery(s.opts.PerPage)
	q.Set("include", "comment_events")

	drv := paginate.NewLinkDriver(s.deps.Fetcher, endpoint(s.opts.BaseURL, ticketEventsPath), q, from, 0, nil)
	for {
		page, ok, err := drv.Next(ctx)
		if err != nil {
			return st, fmt.Errorf("sync ticket events: %w", err)
		}
		if !ok {
			return st, nil
		}
		st.Pages++

		err = each(page.Records("ticket_events"), models.Decode[models.TicketEvent], func(ev *models.TicketEvent) error {
			return s.event(ctx, ev, &st)
		})
		if err != nil {
			return st, fmt.Errorf("sync ticket events: %w", err)
		}
		if end, ok := page.EndTime(); ok {
			if err := s.deps.Store.SetWatermark(ctx, models.ResourceTicketEvents, end); err != nil {
				return st, fmt.Errorf("sync ticket events: %w", err)
			}
		}
	}
}

func (s *TicketEventsSyncer) event(ctx context.Context, ev *models.TicketEvent, st *Stats) error {
	st.Records++
	comments, err := ev.Comments()
	if err != nil {
		return fmt.Errorf("event %d: %w", ev.ID, err)
	}
	if len(comments) == 0 {
		return nil
	}

	if s.opts.ClosedOnly {
		closed, err := s.isClosed(ctx, ev.TicketID)
		if err != nil {
			return err
		}
		if !closed {
			st.Skipped++
			return nil
		}
	}

	for _, c := range comments {
		if err := storeComment(ctx, s.deps, c, st); err != nil {
			return err
		}
	}
	return nil
}

// isClosed looks the ticket up once per run. A ticket that no longer
// exists is treated as out of scope.
func (s *TicketEventsSyncer) isClosed(ctx context.Context, ticketID int64) (bool, error) {
	if v, ok := s.closed[ticketID]; ok {
		return v, nil
	}

	body, err := s.deps.Fetcher.Fetch(ctx, endpoint(s.opts.BaseURL, ticketPath(ticketID)), url.Values{})
	var se *fetcher.StatusError
	switch {
	case errors.As(err, &se) && se.Status == http.StatusNotFound:
		s.closed[ticketID] = false
		return false, nil
	case err != nil:
		return false, fmt.Errorf("status of ticket %d: %w", ticketID, err)
	}

	closed := false
	if raw := paginate.NewPage(body).Object("ticket"); raw != nil {
		t, err := models.Decode[models.Ticket](raw)
		if err != nil {
			return false, err
		}
		closed = t.IsClosed()
	}
	s.closed[ticketID] = closed
	return closed, nil
}
