// Package idgen generates the opaque identifiers used for audit events,
// queued operations, and pending external requests.
package idgen

import (
	"crypto/rand"
	"fmt"
)

// NewUUID generates a cryptographically secure UUID v4, formatted as
// xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx.
func NewUUID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random uuid: %w", err)
	}

	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // RFC 4122 variant

	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		b[0:4], b[4:6], b[6:8], b[8:10], b[10:16]), nil
}

// MustUUID panics on generation failure; used where the caller has no
// error path (e.g. struct literal initialization in tests).
func MustUUID() string {
	id, err := NewUUID()
	if err != nil {
		panic(err)
	}
	return id
}
