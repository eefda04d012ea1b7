// Package common defines shared constants and sentinel errors used across
// the fetch, sync and persistence layers of zdbackup. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound     = errors.New("not found")
	ErrCheckpointKind = errors.New("checkpoint kind mismatch")

	// Remote API errors.
	ErrRetriesExhausted  = errors.New("retries exhausted")
	ErrMalformedResponse = errors.New("malformed response")

	// Invocation errors.
	ErrRunInProgress = errors.New("sync run already in progress")
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")

	// Configuration errors.
	ErrMissingCredentials = errors.New("missing credentials")
)
