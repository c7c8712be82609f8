// Package idgen generates identifiers.
//
// Entity IDs (cards, boards) are short, URL-safe nanoids with a type
// prefix. Row keys for high-volume append-only tables (events,
// notifications, deliveries, jobs) are UUIDv7, which sort by creation time
// so ascending primary-key scans yield chronological order.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// Entity ID prefixes.
const (
	PrefixCard    = "cd-"
	PrefixBoard   = "brd-"
	PrefixComment = "cmt-"
	PrefixWebhook = "wh-"
)

// Alphabet defines the character set used for the random portion of entity IDs.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// secretLength is the length of generated webhook secrets.
const secretLength = 32

// NewEntityID returns a new unique entity ID with the given prefix.
func NewEntityID(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// NewRowKey returns a time-ordered globally unique key (UUIDv7).
func NewRowKey() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return id.String(), nil
}

// NewSecret returns a random secret suitable for webhook signing.
func NewSecret() (string, error) {
	s, err := nanoid.Generate(Alphabet, secretLength)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return s, nil
}
