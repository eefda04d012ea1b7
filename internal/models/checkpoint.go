package models

import "time"

// CheckpointKind separates the two resumption semantics that share the
// sync_state table.
type CheckpointKind string

const (
	// KindCursor is an opaque server-issued token replayed verbatim.
	KindCursor CheckpointKind = "cursor"
	// KindWatermark is a decimal epoch timestamp that never decreases.
	KindWatermark CheckpointKind = "watermark"
)

// Checkpoint is the resume point of one resource.
type Checkpoint struct {
	Resource  Resource
	Kind      CheckpointKind
	Token     string
	UpdatedAt time.Time
}
