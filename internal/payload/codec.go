package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrMalformed means the stored bytes are not a JSON document.
	ErrMalformed = errors.New("payload: malformed")
	// ErrSchemaMismatch means the document is valid JSON but its shape does
	// not fit the requested type.
	ErrSchemaMismatch = errors.New("payload: schema mismatch")
	// ErrUnencodable means the in-memory value cannot be stored without
	// change: non-finite floats, invalid UTF-8 and NUL in strings.
	ErrUnencodable = errors.New("payload: unencodable value")
)

// CodecError carries the error kind and the underlying cause.
type CodecError struct {
	Kind error
	Err  error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *CodecError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func malformed(err error) error { return &CodecError{Kind: ErrMalformed, Err: err} }
func mismatch(err error) error  { return &CodecError{Kind: ErrSchemaMismatch, Err: err} }

// envelope is the stored JSON shape of a payload.
type envelope[T any] struct {
	Kind string            `json:"kind,omitempty"`
	Meta *T                `json:"meta"`
	Data map[string]string `json:"data"`
}

// Encode serializes p into the JSON document stored in the payload column.
// Values that would not decode back unchanged are rejected with
// ErrUnencodable.
func Encode[T any](p Payload[T]) ([]byte, error) {
	data, err := json.Marshal(envelope[T]{
		Kind: Kind[T](),
		Meta: p.Meta,
		Data: p.Data,
	})
	if err != nil {
		return nil, &CodecError{Kind: ErrUnencodable, Err: err}
	}
	if err := checkStrings("meta", reflect.ValueOf(p.Meta)); err != nil {
		return nil, &CodecError{Kind: ErrUnencodable, Err: err}
	}
	if err := checkStrings("data", reflect.ValueOf(p.Data)); err != nil {
		return nil, &CodecError{Kind: ErrUnencodable, Err: err}
	}
	return data, nil
}

// Decode parses raw into a Payload[T]. Unknown fields, missing fields, type
// mismatches and a missing or foreign kind tag are reported as
// ErrSchemaMismatch; anything that is not a single JSON document is
// ErrMalformed. On error the returned payload is zero.
func Decode[T any](raw []byte) (Payload[T], error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Payload[T]{}, malformed(errors.New("empty document"))
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return Payload[T]{}, mismatch(errors.New("document is null"))
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()

	var env envelope[T]
	if err := dec.Decode(&env); err != nil {
		return Payload[T]{}, classify(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Payload[T]{}, malformed(errors.New("trailing data after document"))
	}

	if want := Kind[T](); want != "" && env.Kind != want {
		if env.Kind == "" {
			return Payload[T]{}, mismatch(fmt.Errorf("stored payload has no kind, want %q", want))
		}
		return Payload[T]{}, mismatch(fmt.Errorf("stored kind %q, want %q", env.Kind, want))
	}

	if env.Meta != nil {
		var stored struct {
			Meta json.RawMessage `json:"meta"`
		}
		if err := json.Unmarshal(trimmed, &stored); err != nil {
			return Payload[T]{}, malformed(err)
		}
		if err := checkPresent("meta", reflect.TypeFor[T](), stored.Meta); err != nil {
			return Payload[T]{}, mismatch(err)
		}

		if v, ok := any(env.Meta).(Validator); ok {
			if err := v.Validate(); err != nil {
				return Payload[T]{}, mismatch(fmt.Errorf("validate meta: %w", err))
			}
		}
	}

	return Payload[T]{Meta: env.Meta, Data: env.Data}, nil
}

// classify maps encoding/json decode errors to codec error kinds.
func classify(err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &syntaxErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return malformed(err)
	case errors.As(err, &typeErr):
		return mismatch(err)
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		return mismatch(err)
	}
	return malformed(err)
}
