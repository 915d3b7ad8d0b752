package common

import (
	"strings"

	"github.com/google/uuid"
)

// NewID generates an opaque unique identifier (long form).
func NewID() string {
	return uuid.New().String()
}

// NewShortID generates an opaque unique identifier (short form), suitable
// for display and log correlation. Uniqueness is best-effort only.
func NewShortID() string {
	id := uuid.New().String()
	return id[:strings.Index(id, "-")]
}
