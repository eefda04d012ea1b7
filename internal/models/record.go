package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Entity is implemented by every mirrored record.
type Entity interface {
	Resource() Resource
	EntityID() string
	ObservedAt() Timestamp
	Payload() json.RawMessage
}

// record keeps the verbatim JSON a typed record was decoded from.
type record struct {
	raw json.RawMessage
}

func (r *record) setRaw(b []byte) {
	r.raw = append(json.RawMessage(nil), b...)
}

// Payload returns the verbatim API representation.
func (r record) Payload() json.RawMessage {
	if len(r.raw) == 0 {
		return json.RawMessage("{}")
	}
	return r.raw
}

type rawSetter[T any] interface {
	*T
	setRaw([]byte)
}

// Decode unmarshals one API record and keeps its raw bytes for the snapshot mirror.
func Decode[T any, P rawSetter[T]](b []byte) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(b, v); err != nil {
		return nil, fmt.Errorf("decode %T: %w", v, err)
	}
	P(v).setRaw(b)
	return v, nil
}

// Snapshot is one row of the raw mirror table.
type Snapshot struct {
	Resource  Resource
	EntityID  string
	UpdatedAt Timestamp
	Payload   json.RawMessage
}

// SnapshotOf projects any entity onto its raw mirror row.
func SnapshotOf(e Entity) Snapshot {
	return Snapshot{
		Resource:  e.Resource(),
		EntityID:  e.EntityID(),
		UpdatedAt: e.ObservedAt(),
		Payload:   e.Payload(),
	}
}

// FlexID is an identifier the API may send either as a JSON string or a number.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = FlexID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("flex id: %w", err)
	}
	*f = FlexID(n.String())
	return nil
}

// Nullable returns nil for an empty id so it is stored as SQL NULL.
func (f FlexID) Nullable() any {
	if f == "" {
		return nil
	}
	return string(f)
}

// JSONText renders a raw JSON sub-document for a text/json column,
// substituting fallback when the field was absent or null.
func JSONText(raw json.RawMessage, fallback string) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return fallback
	}
	return s
}

func idString(id int64) string { return strconv.FormatInt(id, 10) }
