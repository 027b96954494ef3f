package lookup

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privatecds/sealedcore/internal/cdstypes"
)

func buildDirectory(t *testing.T, phones []uint64, uuids [][16]byte) ([]byte, []byte) {
	t.Helper()
	require.Equal(t, len(phones), len(uuids))
	inPhones := make([]byte, len(phones)*cdstypes.BytesPerPhone)
	inUUIDs := make([]byte, len(phones)*cdstypes.BytesPerUUID)
	for i, p := range phones {
		binary.NativeEndian.PutUint64(inPhones[i*8:], p)
		copy(inUUIDs[i*16:], uuids[i][:])
	}
	return inPhones, inUUIDs
}

func TestLinearScanDirectoryFindsMatches(t *testing.T) {
	uuidA := [16]byte{1, 2, 3}
	uuidB := [16]byte{4, 5, 6}
	inPhones, inUUIDs := buildDirectory(t, []uint64{100, 200}, [][16]byte{uuidA, uuidB})

	out := make([]byte, 2*cdstypes.BytesPerUUID)
	err := LinearScanDirectory{}.HashLookup(inPhones, inUUIDs, 2, []cdstypes.Phone{200, 999}, out)
	require.NoError(t, err)

	assert.Equal(t, uuidB[:], out[:16])
	assert.Equal(t, make([]byte, 16), out[16:32])
}

func TestLinearScanDirectoryRejectsSizeMismatch(t *testing.T) {
	inPhones := make([]byte, 7) // not a multiple of BytesPerPhone
	inUUIDs := make([]byte, 16)
	out := make([]byte, 16)
	err := LinearScanDirectory{}.HashLookup(inPhones, inUUIDs, 1, []cdstypes.Phone{1}, out)
	assert.Error(t, err)
}

func TestLinearScanDirectoryEmptyDirectory(t *testing.T) {
	out := make([]byte, cdstypes.BytesPerUUID)
	err := LinearScanDirectory{}.HashLookup(nil, nil, 0, []cdstypes.Phone{123}, out)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 16), out)
}

func TestLinearScanDirectoryNoQueries(t *testing.T) {
	inPhones, inUUIDs := buildDirectory(t, []uint64{1}, [][16]byte{{9}})
	err := LinearScanDirectory{}.HashLookup(inPhones, inUUIDs, 1, nil, nil)
	assert.NoError(t, err)
}
