// Package payload stores a typed value in a single JSON column and reads it back.
//
// A Payload[T] is the only schemaless part of a record. The column itself carries
// no type information beyond an optional kind tag, so every reader names the T it
// expects and decoding fails when the stored shape disagrees with it.
package payload

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/mohae/deepcopy"
)

// Payload is the generic value persisted in a record's payload column.
// Meta is the caller's typed value; Data is a free-form string map.
type Payload[T any] struct {
	Meta *T                `json:"meta"`
	Data map[string]string `json:"data"`
}

// Kinded is implemented by meta types that want their payloads tagged.
// Encode stores the kind next to the value and Decode rejects rows tagged
// with a different kind.
type Kinded interface {
	PayloadKind() string
}

// Validator is implemented by meta types that check their own invariants.
// Decode calls Validate after a successful unmarshal.
type Validator interface {
	Validate() error
}

// New returns a payload holding meta and data.
func New[T any](meta T, data map[string]string) Payload[T] {
	return Payload[T]{Meta: &meta, Data: data}
}

// Kind returns the kind tag T declares, or "" when T is untagged.
func Kind[T any]() string {
	var zero T
	if k, ok := any(zero).(Kinded); ok {
		return k.PayloadKind()
	}
	if k, ok := any(&zero).(Kinded); ok {
		return k.PayloadKind()
	}
	return ""
}

// Clone returns a deep copy of p. Mutating the clone never affects p.
func (p Payload[T]) Clone() Payload[T] {
	out := Payload[T]{Data: maps.Clone(p.Data)}
	if p.Meta != nil {
		meta, ok := deepcopy.Copy(*p.Meta).(T)
		if !ok {
			// deepcopy returns nil for nil interface values.
			var zero T
			meta = zero
		}
		out.Meta = &meta
	}
	return out
}

// IsZero reports whether p carries neither meta nor data.
func (p Payload[T]) IsZero() bool {
	return p.Meta == nil && p.Data == nil
}

// LogValue implements slog.LogValuer. Only the kind and the data keys are
// logged; values may be sensitive.
func (p Payload[T]) LogValue() slog.Value {
	keys := slices.Sorted(maps.Keys(p.Data))
	return slog.GroupValue(
		slog.String("kind", Kind[T]()),
		slog.Bool("has_meta", p.Meta != nil),
		slog.Any("data_keys", keys),
	)
}
