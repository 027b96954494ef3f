package ratelimitset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privatecds/sealedcore/internal/cdstypes"
)

func TestAddIncreasesSize(t *testing.T) {
	slots := make([]byte, 64*bytesPerSlot)
	require.EqualValues(t, 0, Size(slots))

	Add(slots, []cdstypes.Phone{111, 222, 333})
	assert.EqualValues(t, 3, Size(slots))
}

func TestAddIsIdempotent(t *testing.T) {
	slots := make([]byte, 64*bytesPerSlot)
	Add(slots, []cdstypes.Phone{111})
	Add(slots, []cdstypes.Phone{111})
	Add(slots, []cdstypes.Phone{111})
	assert.EqualValues(t, 1, Size(slots))
}

func TestAddSkipsZeroEntry(t *testing.T) {
	slots := make([]byte, 8*bytesPerSlot)
	Add(slots, []cdstypes.Phone{0, 0, 0})
	assert.EqualValues(t, 0, Size(slots))
}

func TestAddManyDistinctEntries(t *testing.T) {
	slots := make([]byte, 256*bytesPerSlot)
	entries := make([]cdstypes.Phone, 0, 150)
	for i := uint64(1); i <= 150; i++ {
		entries = append(entries, i)
	}
	Add(slots, entries)
	// Some entries may be dropped under pathological load (maxKicks
	// exhaustion), but well under capacity should all land.
	assert.GreaterOrEqual(t, Size(slots), uint32(140))
}

func TestSizeOnEmptySlab(t *testing.T) {
	slots := make([]byte, 32*bytesPerSlot)
	assert.EqualValues(t, 0, Size(slots))
}
