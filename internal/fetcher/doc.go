// Package fetcher issues authenticated GET requests against the helpdesk API.
//
// Every call is bounded by a per-call timeout. Responses are classified by
// status: 200 is success; 429, 500, 502, 503 and 504 are retried with
// exponential backoff (or the server's Retry-After hint) for a bounded number
// of attempts; anything else fails immediately with a *StatusError carrying
// the status and a truncated body.
package fetcher
