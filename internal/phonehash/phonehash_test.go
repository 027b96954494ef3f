package phonehash

import (
	"crypto/sha1"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privatecds/sealedcore/internal/aeadcrypto"
)

// newCountingSha1Factory wraps the real crypto/sha1 implementation but
// counts how many times a fresh instance is requested, so tests can assert
// the canonicalisation loop always drives exactly 20 digests regardless of
// the phone's value.
func newCountingSha1Factory(calls *int) func() aeadcrypto.Sha1er {
	return func() aeadcrypto.Sha1er {
		*calls++
		return sha1.New()
	}
}

func TestHashDrives20Sha1CallsRegardlessOfPhone(t *testing.T) {
	phones := []uint64{0, 1, 42, 1_234_567_890_123, ^uint64(0) - 1, ^uint64(0)}
	for _, p := range phones {
		calls := 0
		phone := p
		hashWithFactory(&phone, newCountingSha1Factory(&calls))
		assert.Equal(t, 20, calls, "phone=%d", p)
	}
}

func TestHashMatchesExpectedDigestPrefix(t *testing.T) {
	var phone uint64 = 15550001234
	original := phone
	Hash(&phone)

	require.NotEqual(t, original, phone)

	digits := decimalDigits(original)
	expected := sha1.Sum(append([]byte{'+'}, digits...))
	wantTruncated := binary.NativeEndian.Uint64(expected[:8])
	assert.Equal(t, wantTruncated, phone)
}

func TestHashZeroPhoneUnchanged(t *testing.T) {
	var phone uint64 = 0
	Hash(&phone)
	assert.Equal(t, uint64(0), phone)
}

func TestHashDeterministic(t *testing.T) {
	var a, b uint64 = 15550001234, 15550001234
	Hash(&a)
	Hash(&b)
	assert.Equal(t, a, b)
}

func TestHashDistinctPhonesDiffer(t *testing.T) {
	var a, b uint64 = 15550001234, 15550001235
	Hash(&a)
	Hash(&b)
	assert.NotEqual(t, a, b)
}

// decimalDigits mirrors the real canonicalisation's 20-digit zero-padded
// decimal rendering, without constant-time tricks, for use as a test oracle.
func decimalDigits(phone uint64) []byte {
	var buf [asciiDigits]byte
	for i := asciiDigits - 1; i >= 0; i-- {
		buf[i] = '0' + byte(phone%10)
		phone /= 10
	}
	// strip leading zeroes, same selection the implementation performs
	i := 0
	for i < len(buf)-1 && buf[i] == '0' {
		i++
	}
	return buf[i:]
}
