// Package paginate walks the remote API's paged responses.
//
// Three drivers share one shape: Next fetches the following page until the
// stream is exhausted. CursorDriver follows opaque forward cursors,
// LinkDriver follows time-based next_page links and surfaces end_time, and
// ListDriver walks plain list endpoints that carry no checkpoint at all.
package paginate
