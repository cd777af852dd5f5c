// Package idgen generates record identifiers: a fixed prefix followed by a
// random nanoid over an alphanumeric alphabet.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefix is prepended to every record ID.
const Prefix = "rec-"

// Alphabet is the character set of the random part.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters (excluding the prefix).
const Length = 16

// NewRecordID returns a fresh record ID.
func NewRecordID() (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return Prefix + id, nil
}

// Valid reports whether id has the shape NewRecordID produces. IDs that
// fail this check cannot exist in the store.
func Valid(id string) bool {
	rest, ok := strings.CutPrefix(id, Prefix)
	if !ok || len(rest) != Length {
		return false
	}
	for _, c := range rest {
		if !strings.ContainsRune(Alphabet, c) {
			return false
		}
	}
	return true
}
