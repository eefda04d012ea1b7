package fetcher

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	DefaultMaxAttempts    = 8
	DefaultInitialBackoff = 1 * time.Second
	DefaultMaxBackoff     = 30 * time.Second
	DefaultTimeout        = 120 * time.Second
)

var retryableStatus = map[int]struct{}{
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// Retryable reports whether a response status is worth retrying.
func Retryable(status int) bool {
	_, ok := retryableStatus[status]
	return ok
}

// newBackoff returns the retry schedule for one request: initial, doubling,
// capped at ceiling, stopping after maxAttempts-1 retries.
func newBackoff(maxAttempts int, initial, ceiling time.Duration) retry.Backoff {
	b := retry.NewExponential(initial)
	b = retry.WithCappedDuration(ceiling, b)
	return retry.WithMaxRetries(uint64(maxAttempts-1), b)
}

// Backoff returns the delay before retry number attempt (1-based) when the
// server gives no Retry-After hint.
func Backoff(attempt int, initial, ceiling time.Duration) time.Duration {
	if attempt < 1 {
		return 0
	}
	b := retry.WithCappedDuration(ceiling, retry.NewExponential(initial))
	var d time.Duration
	for i := 0; i < attempt; i++ {
		d, _ = b.Next()
	}
	return d
}

// RetryAfter parses a Retry-After header given either as (fractional)
// seconds or as an HTTP date relative to now.
func RetryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
			return 0, false
		}
		return time.Duration(secs * float64(time.Second)), true
	}
	if at, err := http.ParseTime(v); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
