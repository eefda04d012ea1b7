package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/zdbackup/internal/common"
	"github.com/dmitrijs2005/zdbackup/internal/dbx"
	"github.com/dmitrijs2005/zdbackup/internal/fetcher"
	"github.com/dmitrijs2005/zdbackup/internal/models"
	"github.com/dmitrijs2005/zdbackup/internal/repositories/repomanager"
	"github.com/dmitrijs2005/zdbackup/internal/services"
)

const base = "https://acme.test"

var now = time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)

type reply struct {
	body string
	err  error
}

type call struct {
	path  string
	query url.Values
}

// scriptedFetcher serves replies per path (base URL stripped). The last
// reply of a path is repeated.
type scriptedFetcher struct {
	routes map[string][]reply
	calls  []call
}

func newFetcher() *scriptedFetcher {
	return &scriptedFetcher{routes: map[string][]reply{}}
}

func (f *scriptedFetcher) on(path string, bodies ...string) *scriptedFetcher {
	for _, b := range bodies {
		f.routes[path] = append(f.routes[path], reply{body: b})
	}
	return f
}

func (f *scriptedFetcher) fail(path string, err error) *scriptedFetcher {
	f.routes[path] = append(f.routes[path], reply{err: err})
	return f
}

func (f *scriptedFetcher) Fetch(_ context.Context, rawURL string, q url.Values) ([]byte, error) {
	path := strings.TrimPrefix(rawURL, base)
	f.calls = append(f.calls, call{path: path, query: q})
	rs, ok := f.routes[path]
	if !ok || len(rs) == 0 {
		return nil, fmt.Errorf("unexpected GET %s", rawURL)
	}
	r := rs[0]
	if len(rs) > 1 {
		f.routes[path] = rs[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	return []byte(r.body), nil
}

func (f *scriptedFetcher) paths() []string {
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.path)
	}
	return out
}

func (f *scriptedFetcher) count(path string) int {
	n := 0
	for _, c := range f.calls {
		if c.path == path {
			n++
		}
	}
	return n
}

type recordingSleeper struct{ delays []time.Duration }

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

type stubMaterializer struct {
	calls []string
}

func (m *stubMaterializer) Materialize(_ context.Context, ticketID, commentID int64, a *models.Attachment) (string, bool) {
	m.calls = append(m.calls, fmt.Sprintf("%d/%d/%d", ticketID, commentID, a.ID))
	if a.ContentURL == "" {
		return "", false
	}
	return fmt.Sprintf("/mirror/%d/%d__%s", ticketID, a.ID, a.FileName), true
}

func newArchive(t *testing.T) (*services.ArchiveService, *sql.DB) {
	t.Helper()
	ctx := context.Background()

	db, dialect, err := dbx.Open(ctx, filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rm, err := repomanager.NewSQLRepositoryManager(dialect, nil)
	require.NoError(t, err)
	require.NoError(t, rm.RunMigrations(ctx, db))

	return services.NewArchiveService(db, rm), db
}

func count(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

func testOptions() Options {
	return Options{
		BaseURL:      base,
		PerPage:      500,
		Lookback:     24 * time.Hour,
		OrgPerPage:   100,
		OrgPageDelay: 1500 * time.Millisecond,
	}
}

func testDeps(f *scriptedFetcher, store Store) Deps {
	return Deps{
		Fetcher: f,
		Store:   store,
		Sleeper: &recordingSleeper{},
		Now:     func() time.Time { return now },
	}
}

func TestUsersSyncer_PersistsCursorPerPage(t *testing.T) {
	archive, db := newArchive(t)
	ctx := context.Background()

	f := newFetcher().
		on(usersPath, `{"users":[{"id":1,"name":"Ada","updated_at":"2025-01-01T00:00:00Z"}],
			"after_cursor":"C1","after_url":"`+base+`/users/next","end_of_stream":false}`).
		on("/users/next", `{"users":[{"id":2,"name":"Bob"}],"end_of_stream":true}`)

	st, err := NewUsersSyncer(testDeps(f, archive), testOptions()).Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Pages: 2, Records: 2}, st)

	require.Len(t, f.calls, 2)
	first := f.calls[0].query
	assert.Equal(t, strconv.FormatInt(now.Add(-24*time.Hour).Unix(), 10), first.Get("start_time"))
	assert.Equal(t, "500", first.Get("per_page"))
	assert.Empty(t, first.Get("cursor"))
	assert.Nil(t, f.calls[1].query)

	tok, ok, err := archive.Cursor(ctx, models.ResourceUsers)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "C1", tok)
	assert.Equal(t, 2, count(t, db, `SELECT COUNT(*) FROM users`))
	assert.Equal(t, 2, count(t, db, `SELECT COUNT(*) FROM raw_snapshots WHERE resource = 'users'`))

	// The next run resumes from the stored cursor instead of bootstrapping.
	f2 := newFetcher().on(usersPath, `{"users":[],"after_cursor":"C2","end_of_stream":true}`)
	_, err = NewUsersSyncer(testDeps(f2, archive), testOptions()).Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, "C1", f2.calls[0].query.Get("cursor"))
	assert.Empty(t, f2.calls[0].query.Get("start_time"))

	tok, _, err = archive.Cursor(ctx, models.ResourceUsers)
	require.NoError(t, err)
	assert.Equal(t, "C2", tok)
}

func TestUsersSyncer_FetchErrorKeepsEarlierCheckpoint(t *testing.T) {
	archive, _ := newArchive(t)
	ctx := context.Background()

	f := newFetcher().
		on(usersPath, `{"users":[{"id":1}],"after_cursor":"C1","after_url":"`+base+`/users/next"}`).
		fail("/users/next", common.ErrMalformedResponse)

	_, err := NewUsersSyncer(testDeps(f, archive), testOptions()).Sync(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMalformedResponse)
	assert.Contains(t, err.Error(), "sync users")

	tok, ok, err := archive.Cursor(ctx, models.ResourceUsers)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "C1", tok)
}

func TestOrganizationsSyncer_ThrottlesAndRaisesWatermark(t *testing.T) {
	archive, db := newArchive(t)
	ctx := context.Background()

	f := newFetcher().
		on(organizationsPath, `{"organizations":[{"id":10,"name":"Acme"}],"end_time":1700000000,
			"next_page":"`+base+`/orgs?page=2"}`).
		on("/orgs?page=2", `{"organizations":[{"id":11,"name":"Globex"}],"end_time":1700000500,"next_page":null}`)

	d := testDeps(f, archive)
	sl := &recordingSleeper{}
	d.Sleeper = sl

	st, err := NewOrganizationsSyncer(d, testOptions()).Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Records)
	assert.Equal(t, []time.Duration{1500 * time.Millisecond}, sl.delays)
	assert.Equal(t, "100", f.calls[0].query.Get("per_page"))

	wm, ok, err := archive.Watermark(ctx, models.ResourceOrganizations)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1700000500), wm)
	assert.Equal(t, 2, count(t, db, `SELECT COUNT(*) FROM organizations`))

	// A later page reporting an older end_time never lowers the watermark.
	f2 := newFetcher().on(organizationsPath, `{"organizations":[],"end_time":1600000000}`)
	_, err = NewOrganizationsSyncer(testDeps(f2, archive), testOptions()).Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1700000500", f2.calls[0].query.Get("start_time"))

	wm, _, err = archive.Watermark(ctx, models.ResourceOrganizations)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000500), wm)
}

func TestOrganizationsSyncer_SkippedTouchesNothing(t *testing.T) {
	archive, _ := newArchive(t)
	ctx := context.Background()

	f := newFetcher()
	o := testOptions()
	o.SkipOrganizations = true

	st, err := NewOrganizationsSyncer(testDeps(f, archive), o).Sync(ctx)
	require.NoError(t, err)
	assert.Zero(t, st)
	assert.Empty(t, f.calls)

	_, ok, err := archive.Watermark(ctx, models.ResourceOrganizations)
	require.NoError(t, err)
	assert.False(t, ok)
}

const closedTicket = `{"id":5,"subject":"Printer","status":"closed","updated_at":"2025-01-01T00:00:00Z"}`

func TestTicketsSyncer_CommentsAndAttachments(t *testing.T) {
	archive, db := newArchive(t)
	ctx := context.Background()

	f := newFetcher().
		on(ticketsPath, `{"tickets":[`+closedTicket+`],"after_cursor":"T1","end_of_stream":true}`).
		on(commentsPath(5),
			`{"comments":[{"id":100,"author_id":1,"public":true,"body":"hello","created_at":"2025-01-01T00:00:00Z",
				"attachments":[{"id":7,"file_name":"report:final.pdf","content_url":"https://files.test/7"},
				               {"id":8,"file_name":"gone.txt"}]}],
			  "next_page":"`+base+`/comments-2"}`).
		on("/comments-2", `{"comments":[{"id":101,"public":false,"body":"internal"}],"next_page":null}`)

	mat := &stubMaterializer{}
	d := testDeps(f, archive)
	d.Materializer = mat
	o := testOptions()
	o.Include = "users"
	o.ExcludeDeleted = true

	st, err := NewTicketsSyncer(d, o).Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Pages: 1, Records: 1, Comments: 2, Attachments: 2, Downloaded: 1}, st)

	q := f.calls[0].query
	assert.Equal(t, "users", q.Get("include"))
	assert.Equal(t, "true", q.Get("exclude_deleted"))
	assert.Equal(t, "100", f.calls[1].query.Get("per_page"))
	assert.Equal(t, []string{"5/100/7", "5/100/8"}, mat.calls)

	assert.Equal(t, 2, count(t, db, `SELECT COUNT(*) FROM ticket_comments WHERE ticket_id = 5`))

	var local sql.NullString
	require.NoError(t, db.QueryRow(`SELECT local_path FROM attachments WHERE id = 7`).Scan(&local))
	assert.Equal(t, "/mirror/5/7__report:final.pdf", local.String)
	require.NoError(t, db.QueryRow(`SELECT local_path FROM attachments WHERE id = 8`).Scan(&local))
	assert.False(t, local.Valid)

	var commentID int64
	require.NoError(t, db.QueryRow(`SELECT comment_id FROM attachments WHERE id = 8`).Scan(&commentID))
	assert.Equal(t, int64(100), commentID)

	tok, _, err := archive.Cursor(ctx, models.ResourceTickets)
	require.NoError(t, err)
	assert.Equal(t, "T1", tok)
}

func TestTicketsSyncer_ClosedOnlySkipsOpenTicket(t *testing.T) {
	archive, db := newArchive(t)
	ctx := context.Background()

	f := newFetcher().on(ticketsPath, `{"tickets":[{"id":42,"status":"open"}],"end_of_stream":true}`)
	o := testOptions()
	o.ClosedOnly = true

	st, err := NewTicketsSyncer(testDeps(f, archive), o).Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Skipped)
	assert.Equal(t, 0, st.Records)
	assert.Equal(t, []string{ticketsPath}, f.paths())
	assert.Equal(t, 0, count(t, db, `SELECT COUNT(*) FROM tickets WHERE id = 42`))
}

func TestTicketsSyncer_PruneRemovesReopenedTicket(t *testing.T) {
	archive, db := newArchive(t)
	ctx := context.Background()

	// A prior run mirrored ticket 42 while it was closed.
	seed := newFetcher().
		on(ticketsPath, `{"tickets":[{"id":42,"status":"closed"}],"after_cursor":"A","end_of_stream":true}`).
		on(commentsPath(42), `{"comments":[{"id":420,"body":"x","attachments":[{"id":4200,"file_name":"a.txt"}]}]}`)
	o := testOptions()
	o.ClosedOnly = true
	o.PruneReopened = true
	_, err := NewTicketsSyncer(testDeps(seed, archive), o).Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count(t, db, `SELECT COUNT(*) FROM tickets WHERE id = 42`))
	require.Equal(t, 3, count(t, db, `SELECT COUNT(*) FROM raw_snapshots`))

	f := newFetcher().on(ticketsPath, `{"tickets":[{"id":42,"status":"open"}],"after_cursor":"B","end_of_stream":true}`)
	st, err := NewTicketsSyncer(testDeps(f, archive), o).Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Deleted)

	assert.Equal(t, 0, count(t, db, `SELECT COUNT(*) FROM tickets WHERE id = 42`))
	assert.Equal(t, 0, count(t, db, `SELECT COUNT(*) FROM ticket_comments WHERE ticket_id = 42`))
	assert.Equal(t, 0, count(t, db, `SELECT COUNT(*) FROM attachments WHERE ticket_id = 42`))
	assert.Equal(t, 0, count(t, db, `SELECT COUNT(*) FROM raw_snapshots`))
}

func TestTicketsSyncer_EventsModeSkipsCommentLists(t *testing.T) {
	archive, _ := newArchive(t)
	ctx := context.Background()

	f := newFetcher().on(ticketsPath, `{"tickets":[`+closedTicket+`],"end_of_stream":true}`)
	o := testOptions()
	o.UseTicketEvents = true

	_, err := NewTicketsSyncer(testDeps(f, archive), o).Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{ticketsPath}, f.paths())
}

func TestTicketEventsSyncer_ClosedOnlyWithMemoisedLookups(t *testing.T) {
	archive, db := newArchive(t)
	ctx := context.Background()

	events := `{"ticket_events":[
		{"id":1,"ticket_id":9,"created_at":"2025-01-01T00:00:00Z","child_events":[
			{"id":900,"event_type":"Comment","body":"closed one","public":true,
			 "attachments":[{"id":77,"file_name":"log.txt","content_url":"https://files.test/77"}]},
			{"id":901,"event_type":"Change"}]},
		{"id":2,"ticket_id":10,"child_events":[{"id":1000,"event_type":"Comment","body":"open one"}]},
		{"id":3,"ticket_id":9,"child_events":[{"id":902,"type":"Comment","body":"again"}]},
		{"id":4,"ticket_id":11,"child_events":[{"id":1100,"event_type":"Comment","body":"deleted"}]}
	],"end_time":1700000900,"next_page":null}`

	f := newFetcher().
		on(ticketEventsPath, events).
		on(ticketPath(9), `{"ticket":{"id":9,"status":"Closed"}}`).
		on(ticketPath(10), `{"ticket":{"id":10,"status":"open"}}`).
		fail(ticketPath(11), &fetcher.StatusError{Status: 404})

	mat := &stubMaterializer{}
	d := testDeps(f, archive)
	d.Materializer = mat
	o := testOptions()
	o.ClosedOnly = true

	st, err := NewTicketEventsSyncer(d, o).Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, st.Records)
	assert.Equal(t, 2, st.Skipped)
	assert.Equal(t, 2, st.Comments)
	assert.Equal(t, 1, st.Downloaded)

	q := f.calls[0].query
	assert.Equal(t, "comment_events", q.Get("include"))
	assert.Equal(t, 1, f.count(ticketPath(9)))
	assert.Equal(t, 1, f.count(ticketPath(10)))

	assert.Equal(t, 2, count(t, db, `SELECT COUNT(*) FROM ticket_comments WHERE ticket_id = 9`))
	assert.Equal(t, 0, count(t, db, `SELECT COUNT(*) FROM ticket_comments WHERE ticket_id IN (10, 11)`))
	assert.Equal(t, 1, count(t, db, `SELECT COUNT(*) FROM attachments WHERE id = 77 AND comment_id = 900`))

	wm, ok, err := archive.Watermark(ctx, models.ResourceTicketEvents)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1700000900), wm)
}

func TestTicketEventsSyncer_LookupErrorIsFatal(t *testing.T) {
	archive, _ := newArchive(t)
	ctx := context.Background()

	f := newFetcher().
		on(ticketEventsPath, `{"ticket_events":[{"id":1,"ticket_id":9,"child_events":[{"id":5,"event_type":"Comment","body":"hi"}]}]}`).
		fail(ticketPath(9), &fetcher.StatusError{Status: 403})
	o := testOptions()
	o.ClosedOnly = true

	_, err := NewTicketEventsSyncer(testDeps(f, archive), o).Sync(ctx)
	var se *fetcher.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 403, se.Status)
}

func TestTicketEventsSyncer_EventsWithoutCommentsNeedNoLookup(t *testing.T) {
	archive, _ := newArchive(t)
	ctx := context.Background()

	events := `{"ticket_events":[
		{"id":1,"ticket_id":9,"child_events":[]},
		{"id":2,"ticket_id":10,"child_events":[{"id":901,"event_type":"Change"}]}
	],"end_time":1700000100,"next_page":null}`
	f := newFetcher().on(ticketEventsPath, events)
	o := testOptions()
	o.ClosedOnly = true

	st, err := NewTicketEventsSyncer(testDeps(f, archive), o).Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Records)
	assert.Zero(t, st.Skipped)
	assert.Zero(t, st.Comments)
	assert.Zero(t, f.count(ticketPath(9)))
	assert.Zero(t, f.count(ticketPath(10)))
	assert.Len(t, f.calls, 1)
}

func TestSnapshotSyncers(t *testing.T) {
	archive, db := newArchive(t)
	ctx := context.Background()

	f := newFetcher().
		on("/api/v2/views.json", `{"views":[{"id":1,"title":"Open","active":true}],"next_page":null}`).
		on("/api/v2/triggers.json", `{"triggers":[{"id":2,"title":"Notify","category_id":"c1","conditions":{},"actions":[]}]}`).
		on("/api/v2/trigger_categories.json", `{"trigger_categories":[{"id":"c1","name":"General"}],
			"links":{"next":"`+base+`/cats-2"}}`).
		on("/cats-2", `{"trigger_categories":[{"id":3,"name":"Numeric"}],"links":{"next":null}}`).
		on("/api/v2/macros.json", `{"macros":[{"id":4,"title":"Close","actions":[]}]}`)

	o := testOptions()
	o.Include = "usage_7d"
	d := testDeps(f, archive)

	for _, s := range []Syncer{
		NewViewsSyncer(d, o),
		NewTriggersSyncer(d, o),
		NewTriggerCategoriesSyncer(d, o),
		NewMacrosSyncer(d, o),
	} {
		_, err := s.Sync(ctx)
		require.NoError(t, err, s.Resource())
	}

	byPath := map[string]url.Values{}
	for _, c := range f.calls {
		byPath[c.path] = c.query
	}
	assert.Equal(t, "100", byPath["/api/v2/views.json"].Get("per_page"))
	assert.Equal(t, "usage_7d", byPath["/api/v2/views.json"].Get("include"))
	assert.Equal(t, "usage_7d", byPath["/api/v2/macros.json"].Get("include"))
	assert.Empty(t, byPath["/api/v2/triggers.json"].Get("include"))
	assert.Empty(t, byPath["/api/v2/trigger_categories.json"].Get("include"))

	assert.Equal(t, 1, count(t, db, `SELECT COUNT(*) FROM views`))
	assert.Equal(t, 1, count(t, db, `SELECT COUNT(*) FROM triggers WHERE category_id = 'c1'`))
	assert.Equal(t, 2, count(t, db, `SELECT COUNT(*) FROM trigger_categories`))
	assert.Equal(t, 1, count(t, db, `SELECT COUNT(*) FROM raw_snapshots WHERE resource = 'trigger_categories' AND entity_id = '3'`))
	assert.Equal(t, 1, count(t, db, `SELECT COUNT(*) FROM macros`))
}

func TestSnapshotSyncer_SmallPageSize(t *testing.T) {
	archive, _ := newArchive(t)
	f := newFetcher().on("/api/v2/triggers.json", `{"triggers":[]}`)
	o := testOptions()
	o.PerPage = 25

	_, err := NewTriggersSyncer(testDeps(f, archive), o).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "25", f.calls[0].query.Get("per_page"))
}

func emptyPass(f *scriptedFetcher) *scriptedFetcher {
	return f.
		on(usersPath, `{"users":[],"end_of_stream":true}`).
		on(organizationsPath, `{"organizations":[]}`).
		on(ticketsPath, `{"tickets":[],"end_of_stream":true}`).
		on(ticketEventsPath, `{"ticket_events":[]}`).
		on("/api/v2/views.json", `{"views":[]}`).
		on("/api/v2/triggers.json", `{"triggers":[]}`).
		on("/api/v2/trigger_categories.json", `{"trigger_categories":[]}`).
		on("/api/v2/macros.json", `{"macros":[]}`)
}

func TestRunner_RunsFamiliesInOrder(t *testing.T) {
	archive, _ := newArchive(t)
	f := emptyPass(newFetcher())

	o := testOptions()
	o.UseTicketEvents = true
	r := NewRunner(testDeps(f, archive), o)
	r.newID = func() string { return "run-1" }

	rep, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", rep.RunID)

	assert.Equal(t, []string{
		usersPath,
		organizationsPath,
		ticketsPath,
		ticketEventsPath,
		"/api/v2/views.json",
		"/api/v2/triggers.json",
		"/api/v2/trigger_categories.json",
		"/api/v2/macros.json",
	}, f.paths())

	var got []models.Resource
	for _, fr := range rep.Families {
		got = append(got, fr.Resource)
	}
	assert.Equal(t, []models.Resource{
		models.ResourceUsers, models.ResourceOrganizations, models.ResourceTickets, models.ResourceTicketEvents,
		models.ResourceViews, models.ResourceTriggers, models.ResourceTriggerCategories, models.ResourceMacros,
	}, got)
}

func TestRunner_StopsAtFirstFailure(t *testing.T) {
	archive, _ := newArchive(t)
	boom := errors.New("boom")
	f := newFetcher().
		on(usersPath, `{"users":[],"end_of_stream":true}`).
		fail(organizationsPath, boom)

	rep, err := NewRunner(testDeps(f, archive), testOptions()).Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.NotEmpty(t, rep.RunID)
	assert.Len(t, rep.Families, 2)
	assert.Equal(t, []string{usersPath, organizationsPath}, f.paths())
}

func TestStatsLogArgs(t *testing.T) {
	assert.Equal(t, []any{"pages", 1, "records", 2}, Stats{Pages: 1, Records: 2}.LogArgs())
	assert.Equal(t, []any{"pages", 0, "records", 0, "deleted", 3}, Stats{Deleted: 3}.LogArgs())
}
