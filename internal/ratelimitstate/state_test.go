package ratelimitstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privatecds/sealedcore/internal/aeadcrypto"
	"github.com/privatecds/sealedcore/internal/cdstypes"
	"github.com/privatecds/sealedcore/internal/secret"
)

func freshCiphertext(t *testing.T, n int) *secret.Bytes {
	t.Helper()
	return secret.New(n)
}

func TestFirstUpdateInitialisesAndAccepts(t *testing.T) {
	st, err := New()
	require.NoError(t, err)

	ciphertext := freshCiphertext(t, 4+100*8)
	out, mac, err := st.Update(ciphertext, aeadcrypto.Mac{}, []cdstypes.Phone{42})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, 4+100*8, out.Len())
	_ = mac
}

func TestSecondUpdateDecryptsAndAccumulates(t *testing.T) {
	st, err := New()
	require.NoError(t, err)

	ciphertext := freshCiphertext(t, 4+100*8)
	out1, mac1, err := st.Update(ciphertext, aeadcrypto.Mac{}, []cdstypes.Phone{42})
	require.NoError(t, err)

	out2, _, err := st.Update(out1, mac1, []cdstypes.Phone{43})
	require.NoError(t, err)
	require.NotNil(t, out2)
}

func TestUpdateFailsOnTamperedMac(t *testing.T) {
	st, err := New()
	require.NoError(t, err)

	ciphertext := freshCiphertext(t, 4+100*8)
	out1, mac1, err := st.Update(ciphertext, aeadcrypto.Mac{}, []cdstypes.Phone{42})
	require.NoError(t, err)

	mac1.Data[0] ^= 0xFF
	_, _, err = st.Update(out1, mac1, []cdstypes.Phone{43})
	require.Error(t, err)
	assert.Equal(t, cdstypes.StatusErrInvalidRateLimitState, cdstypes.AsStatus(err))
}

func TestNonceMonotonicallyIncreasesAcrossUpdates(t *testing.T) {
	st, err := New()
	require.NoError(t, err)
	require.EqualValues(t, 1, st.nonce)

	ciphertext := freshCiphertext(t, 4+100*8)
	out1, mac1, err := st.Update(ciphertext, aeadcrypto.Mac{}, []cdstypes.Phone{1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.nonce)

	_, _, err = st.Update(out1, mac1, []cdstypes.Phone{2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, st.nonce)
}

func TestUpdateFailsWhenRatelimitExceeded(t *testing.T) {
	st, err := New()
	require.NoError(t, err)

	// A tiny slab: 4 raw slots give slotCount 3, so SetSizeLimit(1, 1)
	// fixes size_limit at exactly 1, which the very first add reaches.
	ciphertext := freshCiphertext(t, 4+4*8)
	_, _, err = st.Update(ciphertext, aeadcrypto.Mac{}, []cdstypes.Phone{1, 2, 3, 4, 5, 6, 7, 8})
	require.Error(t, err)
	assert.Equal(t, cdstypes.StatusErrRateLimitExceeded, cdstypes.AsStatus(err))
}

func TestIsAllZero(t *testing.T) {
	assert.True(t, isAllZero(make([]byte, 8)))
	assert.False(t, isAllZero([]byte{0, 0, 1}))
}
