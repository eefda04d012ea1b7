package paginate

import (
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
)

// MinBootstrapLag is how far behind now the first incremental request must
// start. The incremental export endpoints reject start times closer to now.
const MinBootstrapLag = 2 * time.Minute

// Bootstrap computes the start_time epoch for a resource with no checkpoint.
func Bootstrap(now time.Time, lookback time.Duration) int64 {
	if lookback < MinBootstrapLag {
		lookback = MinBootstrapLag
	}
	return now.Add(-lookback).Unix()
}

// Page is one decoded response envelope.
type Page struct {
	body []byte
}

func NewPage(body []byte) Page { return Page{body: body} }

func (p Page) get(path string) gjson.Result { return gjson.GetBytes(p.body, path) }

// Records returns the raw elements of the array under key.
func (p Page) Records(key string) []json.RawMessage {
	arr := p.get(key)
	if !arr.IsArray() {
		return nil
	}
	out := make([]json.RawMessage, 0, len(arr.Array()))
	arr.ForEach(func(_, v gjson.Result) bool {
		out = append(out, json.RawMessage(v.Raw))
		return true
	})
	return out
}

// Object returns the raw object under key, or nil.
func (p Page) Object(key string) json.RawMessage {
	v := p.get(key)
	if !v.IsObject() {
		return nil
	}
	return json.RawMessage(v.Raw)
}

// AfterCursor is the token to resume a cursor export from, if the page has one.
func (p Page) AfterCursor() string {
	if v := p.get("after_cursor"); v.Type == gjson.String {
		return v.String()
	}
	if v := p.get("meta.after_cursor"); v.Type == gjson.String {
		return v.String()
	}
	return ""
}

// EndOfStream reports the explicit end flag of incremental exports.
func (p Page) EndOfStream() bool { return p.get("end_of_stream").Bool() }

// AfterURL is the follow-up link of a cursor export.
func (p Page) AfterURL() string {
	return firstString(p.get("after_url"), p.get("links.next"))
}

// NextPage is the follow-up link of offset and time-based endpoints.
func (p Page) NextPage() string {
	return firstString(p.get("next_page"), p.get("links.next"))
}

// EndTime is the server's watermark for time-based exports.
func (p Page) EndTime() (int64, bool) {
	v := p.get("end_time")
	if !v.Exists() || v.Type == gjson.Null {
		return 0, false
	}
	n := v.Int()
	if n <= 0 {
		return 0, false
	}
	return n, true
}

func firstString(rs ...gjson.Result) string {
	for _, r := range rs {
		if r.Type == gjson.String && r.String() != "" {
			return r.String()
		}
	}
	return ""
}
