package aeadcrypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	plaintext := []byte("hello sealed core")
	data := append([]byte(nil), plaintext...)
	iv := IvFromNonce(1)

	mac, err := key.Encrypt(data, nil, iv)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, data, "ciphertext should differ from plaintext")

	err = key.Decrypt(data, nil, iv, mac)
	require.NoError(t, err)
	assert.Equal(t, plaintext, data)
}

func TestDecryptFailsOnWrongMac(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	data := []byte("phone number payload")
	iv := IvFromNonce(1)

	mac, err := key.Encrypt(data, nil, iv)
	require.NoError(t, err)
	mac.Data[0] ^= 0xFF

	err = key.Decrypt(data, nil, iv, mac)
	assert.Error(t, err)
}

func TestDecryptFailsOnWrongIv(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	data := []byte("phone number payload")
	mac, err := key.Encrypt(data, nil, IvFromNonce(1))
	require.NoError(t, err)

	err = key.Decrypt(data, nil, IvFromNonce(2), mac)
	assert.Error(t, err)
}

func TestNewKeyRejectsWrongLength(t *testing.T) {
	_, err := NewKey(make([]byte, KeySize-1))
	assert.Error(t, err)
}

func TestIvFromNonceLittleEndian(t *testing.T) {
	iv := IvFromNonce(0x04030201)
	assert.Equal(t, byte(0x01), iv.Data[0])
	assert.Equal(t, byte(0x02), iv.Data[1])
	assert.Equal(t, byte(0x03), iv.Data[2])
	assert.Equal(t, byte(0x04), iv.Data[3])
	for i := 4; i < IvSize; i++ {
		assert.Equal(t, byte(0), iv.Data[i])
	}
}

func TestSha256Deterministic(t *testing.T) {
	a := Sha256([]byte("phone"))
	b := Sha256([]byte("phone"))
	assert.Equal(t, a, b)

	c := Sha256([]byte("other"))
	assert.NotEqual(t, a, c)
}
