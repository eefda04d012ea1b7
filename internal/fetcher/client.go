package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/zdbackup/internal/common"
	"github.com/dmitrijs2005/zdbackup/internal/logging"
)

const maxErrorBody = 300

// Options configures a Client. Zero values fall back to the package defaults.
type Options struct {
	Email      string
	APIToken   string
	OAuthToken string

	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// HTTPClient replaces the default clients for both JSON and stream calls.
	HTTPClient *http.Client
	Sleeper    Sleeper
	Now        func() time.Time
	Logger     logging.Logger
}

// StatusError is returned for a non-retryable HTTP status.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s failed [%d]: %s", e.URL, e.Status, e.Body)
}

// Client is the rate-limited fetcher. It is safe for sequential use by one
// sync run; it holds no per-request state between calls.
type Client struct {
	opts   Options
	json   *http.Client
	stream *http.Client
	sleep  Sleeper
	now    func() time.Time
	log    logging.Logger
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}

	c := &Client{opts: opts, sleep: opts.Sleeper, now: opts.Now, log: opts.Logger}
	if c.sleep == nil {
		c.sleep = RealSleeper
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.log == nil {
		c.log = logging.Nop()
	}

	if opts.HTTPClient != nil {
		c.json = opts.HTTPClient
		c.stream = opts.HTTPClient
	} else {
		c.json = &http.Client{Timeout: opts.Timeout}
		// The body of a stream is bounded per read by idleBody, not as a whole.
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.ResponseHeaderTimeout = opts.Timeout
		c.stream = &http.Client{Transport: tr}
	}
	return c
}

// Fetch performs a GET and returns the JSON body verbatim.
func (c *Client) Fetch(ctx context.Context, rawURL string, query url.Values) ([]byte, error) {
	resp, err := c.get(ctx, c.json, rawURL, query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: read body: %w", rawURL, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("GET %s: %w", rawURL, common.ErrMalformedResponse)
	}
	return body, nil
}

// FetchStream performs a GET and hands the body to the caller, who must close it.
// A read that waits longer than the per-call timeout for the next bytes fails
// with ErrStreamIdle.
func (c *Client) FetchStream(ctx context.Context, rawURL string, query url.Values) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	resp, err := c.get(ctx, c.stream, rawURL, query)
	if err != nil {
		cancel(err)
		return nil, err
	}
	return newIdleBody(ctx, cancel, resp.Body, c.opts.Timeout), nil
}

// get runs the retry state machine: send, classify, then either return,
// fail, or sleep and try again until the attempt budget is spent.
func (c *Client) get(ctx context.Context, hc *http.Client, rawURL string, query url.Values) (*http.Response, error) {
	target, err := buildURL(rawURL, query)
	if err != nil {
		return nil, err
	}

	backoff := newBackoff(c.opts.MaxAttempts, c.opts.InitialBackoff, c.opts.MaxBackoff)

	for attempt := 1; ; attempt++ {
		resp, err := c.send(ctx, hc, target)

		var status int
		var hint time.Duration
		var hinted bool

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		case resp.StatusCode == http.StatusOK:
			return resp, nil
		case Retryable(resp.StatusCode):
			status = resp.StatusCode
			hint, hinted = RetryAfter(resp.Header, c.now())
			drain(resp)
		default:
			return nil, statusError(target, resp)
		}

		delay, stop := backoff.Next()
		if stop {
			if err != nil {
				return nil, fmt.Errorf("GET %s: %w after %d attempts: %v", target, common.ErrRetriesExhausted, attempt, err)
			}
			return nil, fmt.Errorf("GET %s: %w after %d attempts (last status %d)", target, common.ErrRetriesExhausted, attempt, status)
		}
		if hinted {
			delay = hint
		}

		c.log.Warn(ctx, "retryable response",
			"url", target, "status", status, "error", errString(err),
			"attempt", attempt, "sleep", delay.String())

		if err := c.sleep.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (c *Client) send(ctx context.Context, hc *http.Client, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", common.UserAgent)

	switch {
	case c.opts.OAuthToken != "":
		req.Header.Set("Authorization", "Bearer "+c.opts.OAuthToken)
	case c.opts.APIToken != "":
		req.SetBasicAuth(c.opts.Email+"/token", c.opts.APIToken)
	}

	return hc.Do(req)
}

func buildURL(rawURL string, query url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			q.Del(k)
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func statusError(target string, resp *http.Response) error {
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{URL: target, Status: resp.StatusCode, Body: string(b)}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err.Error()
	}
	return err.Error()
}
