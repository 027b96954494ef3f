// Package aeadcrypto is a thin AES-GCM/SHA binding: wrappers around the
// SHA-1/SHA-256/AES-GCM primitives the sealed core relies on but does
// not itself design. Encrypt/Decrypt operate in place; failures,
// including a bad key length, are returned as errors rather than panics.
package aeadcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"

	"github.com/privatecds/sealedcore/internal/cdstypes"
)

const (
	KeySize = 32 // AES-256-GCM, matching SGXSD_AES_GCM_KEY_SIZE in the original enclave ABI
	IvSize  = 12
	MacSize = 16
)

type Key struct {
	data [KeySize]byte
}

type Iv struct {
	Data [IvSize]byte
}

type Mac struct {
	Data [MacSize]byte
}

// NewKey validates and wraps externally supplied key bytes, e.g. a
// per-request symmetric key handed to the sealed core over an already
// authenticated channel.
func NewKey(data []byte) (*Key, error) {
	if len(data) != KeySize {
		return nil, cdstypes.NewError(cdstypes.StatusErrInvalidRequestSize)
	}
	var k Key
	copy(k.data[:], data)
	return &k, nil
}

// GenerateKey draws a fresh random AES-GCM key, as RatelimitState does
// by default at slot creation.
func GenerateKey() (*Key, error) {
	var k Key
	if _, err := rand.Read(k.data[:]); err != nil {
		return nil, cdstypes.NewError(cdstypes.StatusErrUnexpected)
	}
	return &k, nil
}

// IvFromNonce derives the 12-byte AES-GCM IV whose first 4 bytes are
// the little-endian nonce and the rest are zero.
func IvFromNonce(nonce uint32) Iv {
	var iv Iv
	iv.Data[0] = byte(nonce)
	iv.Data[1] = byte(nonce >> 8)
	iv.Data[2] = byte(nonce >> 16)
	iv.Data[3] = byte(nonce >> 24)
	return iv
}

// Encrypt seals data in place under (iv, aad) and returns the detached MAC.
func (k *Key) Encrypt(data []byte, aad []byte, iv Iv) (Mac, error) {
	aesgcm, err := gcmFor(k)
	if err != nil {
		return Mac{}, err
	}
	sealed := aesgcm.Seal(nil, iv.Data[:], data, aad)
	ctLen := len(sealed) - aesgcm.Overhead()
	copy(data, sealed[:ctLen])
	var mac Mac
	copy(mac.Data[:], sealed[ctLen:])
	return mac, nil
}

// Decrypt opens data in place under (iv, aad, mac). A MAC failure is
// reported as StatusErrUnexpected; package ratelimitstate maps it to
// StatusErrInvalidRateLimitState, while package reqcodec returns it
// unchanged.
func (k *Key) Decrypt(data []byte, aad []byte, iv Iv, mac Mac) error {
	aesgcm, err := gcmFor(k)
	if err != nil {
		return err
	}
	combined := make([]byte, len(data)+MacSize)
	copy(combined, data)
	copy(combined[len(data):], mac.Data[:])
	pt, err := aesgcm.Open(data[:0], iv.Data[:], combined, aad)
	if err != nil {
		return cdstypes.NewError(cdstypes.StatusErrUnexpected)
	}
	copy(data, pt)
	return nil
}

func gcmFor(k *Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(k.data[:])
	if err != nil {
		return nil, cdstypes.NewError(cdstypes.StatusErrUnexpected)
	}
	aesgcm, err := cipher.NewGCMWithNonceSize(block, IvSize)
	if err != nil {
		return nil, cdstypes.NewError(cdstypes.StatusErrUnexpected)
	}
	return aesgcm, nil
}

// Sha256 is the commitment hash used by the request decoder.
func Sha256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// Sha1er is the raw SHA-1 primitive phonehash drives 20 times per
// canonicalised phone. Exposed as a small interface so phonehash can
// substitute a counting double in tests.
type Sha1er interface {
	Reset()
	Write(p []byte) (int, error)
	Sum(b []byte) []byte
}

func NewSha1() Sha1er {
	return sha1.New()
}
