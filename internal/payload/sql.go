package payload

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
)

var (
	_ driver.Valuer = Payload[struct{}]{}
	_ sql.Scanner   = (*Payload[struct{}])(nil)
)

// Value implements driver.Valuer. The document is passed as text so both
// lib/pq and pgx bind it to a JSONB parameter without a bytea conversion.
func (p Payload[T]) Value() (driver.Value, error) {
	data, err := Encode(p)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner. A NULL column is malformed, never an empty payload.
func (p *Payload[T]) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return malformed(errors.New("payload column is NULL"))
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return malformed(fmt.Errorf("unsupported column type %T", src))
	}

	decoded, err := Decode[T](raw)
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}
