package paginate

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// Fetcher is the subset of the HTTP client a driver needs.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, query url.Values) ([]byte, error)
}

// Sleeper pauses between pages.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type state int

const (
	stateInitial state = iota
	statePaging
	stateDone
)

// Start describes where an incremental walk begins: a stored cursor or a
// start_time epoch. Cursor wins when both are set.
type Start struct {
	Cursor    string
	StartTime int64
}

func (s Start) apply(q url.Values) url.Values {
	out := cloneValues(q)
	if s.Cursor != "" {
		out.Set("cursor", s.Cursor)
		out.Del("start_time")
	} else {
		out.Set("start_time", strconv.FormatInt(s.StartTime, 10))
	}
	return out
}

// CursorDriver walks a cursor-based incremental export.
type CursorDriver struct {
	fetcher Fetcher
	url     string
	query   url.Values
	state   state
}

func NewCursorDriver(f Fetcher, endpoint string, query url.Values, start Start) *CursorDriver {
	return &CursorDriver{fetcher: f, url: endpoint, query: start.apply(query)}
}

// Next returns the following page. ok is false once the stream is done.
func (d *CursorDriver) Next(ctx context.Context) (Page, bool, error) {
	if d.state == stateDone {
		return Page{}, false, nil
	}
	body, err := d.fetcher.Fetch(ctx, d.url, d.query)
	if err != nil {
		d.state = stateDone
		return Page{}, false, err
	}
	p := NewPage(body)
	d.state = statePaging

	next := p.AfterURL()
	if p.EndOfStream() || next == "" {
		d.state = stateDone
	} else {
		d.url, d.query = next, nil
	}
	return p, true, nil
}

// Done reports whether the driver has no more pages.
func (d *CursorDriver) Done() bool { return d.state == stateDone }

// LinkDriver walks a time-based incremental export that advances through
// full next_page URLs.
type LinkDriver struct {
	fetcher Fetcher
	sleeper Sleeper
	delay   time.Duration
	url     string
	query   url.Values
	state   state
}

// NewLinkDriver builds a driver starting at start_time. When delay is
// positive the driver pauses that long before every follow-up fetch.
func NewLinkDriver(f Fetcher, endpoint string, query url.Values, startTime int64, delay time.Duration, s Sleeper) *LinkDriver {
	return &LinkDriver{
		fetcher: f,
		sleeper: s,
		delay:   delay,
		url:     endpoint,
		query:   Start{StartTime: startTime}.apply(query),
	}
}

// Next returns the following page. ok is false once the stream is done.
func (d *LinkDriver) Next(ctx context.Context) (Page, bool, error) {
	switch d.state {
	case stateDone:
		return Page{}, false, nil
	case statePaging:
		if d.delay > 0 && d.sleeper != nil {
			if err := d.sleeper.Sleep(ctx, d.delay); err != nil {
				d.state = stateDone
				return Page{}, false, err
			}
		}
	}

	body, err := d.fetcher.Fetch(ctx, d.url, d.query)
	if err != nil {
		d.state = stateDone
		return Page{}, false, err
	}
	p := NewPage(body)
	d.state = statePaging

	// Time-based exports keep handing out next_page at the end of the
	// stream, pointing back at the same window.
	next := p.NextPage()
	if next == "" || p.EndOfStream() || next == d.url {
		d.state = stateDone
	} else {
		d.url, d.query = next, nil
	}
	return p, true, nil
}

func (d *LinkDriver) Done() bool { return d.state == stateDone }

// ListDriver walks a non-incremental list endpoint.
type ListDriver struct {
	fetcher Fetcher
	url     string
	query   url.Values
	state   state
}

func NewListDriver(f Fetcher, endpoint string, query url.Values) *ListDriver {
	return &ListDriver{fetcher: f, url: endpoint, query: cloneValues(query)}
}

func (d *ListDriver) Next(ctx context.Context) (Page, bool, error) {
	if d.state == stateDone {
		return Page{}, false, nil
	}
	body, err := d.fetcher.Fetch(ctx, d.url, d.query)
	if err != nil {
		d.state = stateDone
		return Page{}, false, err
	}
	p := NewPage(body)
	d.state = statePaging

	if next := p.NextPage(); next == "" || next == d.url {
		d.state = stateDone
	} else {
		d.url, d.query = next, nil
	}
	return p, true, nil
}

func (d *ListDriver) Done() bool { return d.state == stateDone }

func cloneValues(q url.Values) url.Values {
	out := make(url.Values, len(q)+1)
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}
