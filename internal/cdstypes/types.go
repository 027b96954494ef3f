// Package cdstypes holds the data model shared across the sealed core:
// phones, client UUIDs and the ABI error codes.
package cdstypes

import (
	"github.com/google/uuid"
)

// Phone is a 64-bit secret token: initially a numeric phone number, later
// overwritten in place by phonehash.Hash with a truncated SHA-1 digest.
type Phone = uint64

const (
	// BytesPerPhone is the wire size of one Phone.
	BytesPerPhone = 8
	// BytesPerUUID is the wire size of one Uuid.
	BytesPerUUID = 16
)

// Uuid is a 128-bit client identifier. The all-zero value denotes
// "absent", mirrored here as IsZero rather than a pointer/bool pair so
// Uuid stays a plain value type.
type Uuid struct {
	id uuid.UUID
}

// UuidFromBytes builds a Uuid from its 16-byte wire representation.
func UuidFromBytes(b [16]byte) Uuid {
	return Uuid{id: uuid.UUID(b)}
}

// NewUuid generates a fresh random (v4) client identifier; used by test
// harnesses, never by the sealed core itself.
func NewUuid() Uuid {
	return Uuid{id: uuid.New()}
}

// IsZero reports whether this is the all-zero "absent" sentinel.
func (u Uuid) IsZero() bool {
	return u.id == uuid.Nil
}

// Bytes returns the 16-byte wire representation.
func (u Uuid) Bytes() [16]byte {
	return [16]byte(u.id)
}

// String returns the canonical hyphenated form, for logging only — never
// log phone numbers, but UUIDs are not considered secret at this layer.
func (u Uuid) String() string {
	return u.id.String()
}
