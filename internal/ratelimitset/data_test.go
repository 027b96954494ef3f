package ratelimitset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privatecds/sealedcore/internal/cdstypes"
	"github.com/privatecds/sealedcore/internal/secret"
)

func newTestData(t *testing.T, rawSlots int) *Data {
	t.Helper()
	buf := secret.New(sizeLimitDataLen + rawSlots*bytesPerSlot)
	return New(buf)
}

func TestSlotCountIsThreeQuartersOfRaw(t *testing.T) {
	d := newTestData(t, 100)
	assert.EqualValues(t, 75, d.SlotCount())
}

func TestSetSizeLimitWritesWithinRange(t *testing.T) {
	d := newTestData(t, 100)
	require.NoError(t, d.SetSizeLimit(10, 20))

	for i := 0; i < 50; i++ {
		d2 := newTestData(t, 100)
		require.NoError(t, d2.SetSizeLimit(10, 20))
		// re-derive the stored limit the same way Add reads it
		raw := d2.data.Get()
		limit := uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24
		assert.GreaterOrEqual(t, limit, uint32(10))
		assert.Less(t, limit, uint32(30))
	}
}

func TestAddFailsAtSizeLimit(t *testing.T) {
	d := newTestData(t, 100)
	require.NoError(t, d.SetSizeLimit(2, 1)) // size_limit == 2, fixed

	require.NoError(t, d.Add([]cdstypes.Phone{1}))
	err := d.Add([]cdstypes.Phone{2})
	require.Error(t, err)
	assert.Equal(t, cdstypes.StatusErrRateLimitExceeded, cdstypes.AsStatus(err))
}

func TestAddIdempotentDoesNotTripLimit(t *testing.T) {
	d := newTestData(t, 100)
	require.NoError(t, d.SetSizeLimit(2, 1))

	require.NoError(t, d.Add([]cdstypes.Phone{1}))
	require.NoError(t, d.Add([]cdstypes.Phone{1}))
	require.NoError(t, d.Add([]cdstypes.Phone{1}))
}

func TestSaturatingAddU32(t *testing.T) {
	assert.EqualValues(t, 10, saturatingAddU32(4, 6))
	assert.EqualValues(t, ^uint32(0), saturatingAddU32(^uint32(0), 1))
}
