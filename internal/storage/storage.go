// Package storage implements the media attachment binaries are
// materialized to: a local directory tree or an S3-compatible bucket.
//
// Keys are slash-separated relative paths such as "42/7__report.pdf".
package storage

import (
	"context"
	"io"
)

// Storage is a write-once blob store addressed by key.
type Storage interface {
	// Lookup returns the location of a non-empty object stored under key.
	Lookup(ctx context.Context, key string) (location string, ok bool, err error)
	// Put stores r under key and returns its location and size.
	Put(ctx context.Context, key string, r io.Reader) (location string, size int64, err error)
}
