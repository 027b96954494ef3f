package ratelimitset

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/privatecds/sealedcore/internal/cdstypes"
	"github.com/privatecds/sealedcore/internal/ct"
	"github.com/privatecds/sealedcore/internal/secret"
)

// sizeLimitDataLen is the width of the size_limit header.
const sizeLimitDataLen = 4

// Data wraps the plaintext ratelimit-state slab:
// [size_limit: u32 LE][slots: raw_slot_count*8 bytes].
type Data struct {
	data *secret.Bytes
}

// New wraps an already-owned secret slab as ratelimit-state data.
func New(data *secret.Bytes) *Data {
	return &Data{data: data}
}

// SetSizeLimit draws 4 bytes from the hardware RNG, reduces them modulo
// rangeVal in constant time, adds lowerInclusive with a saturating add, and
// writes the result as the slab's size_limit header. Must only be
// called when initialising a fresh (all-zero) state.
func (d *Data) SetSizeLimit(lowerInclusive, rangeVal uint32) error {
	if d.data.Len() < sizeLimitDataLen {
		return cdstypes.NewError(cdstypes.StatusErrInvalidRateLimitState)
	}

	var randBytes [4]byte
	if _, err := rand.Read(randBytes[:]); err != nil {
		return cdstypes.NewError(cdstypes.StatusErrUnexpected)
	}

	var randVal, rangeCt ct.U64
	randVal.Set(uint64(binary.LittleEndian.Uint32(randBytes[:])))
	rangeCt.Set(uint64(rangeVal))
	randVal.RemAssign(rangeCt)

	sizeLimit := saturatingAddU32(uint32(randVal.Get()), lowerInclusive)
	binary.LittleEndian.PutUint32(d.data.GetMut()[:sizeLimitDataLen], sizeLimit)
	return nil
}

func saturatingAddU32(a, b uint32) uint32 {
	sum := uint64(a) + uint64(b)
	if sum > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(sum)
}

// SlotCount returns the effective capacity advertised to users: one quarter
// of the raw slots are dummy slots.
func (d *Data) SlotCount() uint32 {
	slotsLen := d.data.Len() - sizeLimitDataLen
	rawSlotCount := slotsLen / 8
	return uint32(rawSlotCount) * 3 / 4
}

// Add inserts phones into the slab's ratelimit set and enforces the hidden
// capacity: it fails with RATE_LIMIT_EXCEEDED iff the post-add distinct
// count reaches size_limit.
func (d *Data) Add(phones []cdstypes.Phone) error {
	if d.data.Len() < sizeLimitDataLen {
		return cdstypes.NewError(cdstypes.StatusErrInvalidRateLimitState)
	}
	raw := d.data.GetMut()
	sizeLimit := binary.LittleEndian.Uint32(raw[:sizeLimitDataLen])
	slots := raw[sizeLimitDataLen:]

	Add(slots, phones)

	if Size(slots) < sizeLimit {
		return nil
	}
	return cdstypes.NewError(cdstypes.StatusErrRateLimitExceeded)
}

// Into returns the underlying secret slab, consuming this wrapper.
func (d *Data) Into() *secret.Bytes {
	return d.data
}
