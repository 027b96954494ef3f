// Package ratelimitstate implements the per-client
// authenticated-encryption wrapper around a RatelimitStateData slab,
// with a monotonic nonce that must never repeat for a given key.
package ratelimitstate

import (
	"github.com/privatecds/sealedcore/internal/aeadcrypto"
	"github.com/privatecds/sealedcore/internal/cdstypes"
	"github.com/privatecds/sealedcore/internal/ratelimitset"
	"github.com/privatecds/sealedcore/internal/secret"
)

// State is a single client's in-enclave ratelimit cell.
type State struct {
	nonce uint32 // invariant: 1 <= nonce <= math.MaxUint32, strictly monotonic
	key   *aeadcrypto.Key
}

// New builds a fresh state: nonce=1, a freshly generated random key.
func New() (*State, error) {
	key, err := aeadcrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &State{nonce: 1, key: key}, nil
}

func (s *State) ivForReveal() aeadcrypto.Iv {
	return aeadcrypto.IvFromNonce(s.nonce)
}

// Update runs the decrypt-or-initialise, add, re-encrypt sequence.
// ciphertextIn is consumed; on success it returns the fresh (ciphertext,
// mac) to be written back to the untrusted slab. On any error the slab
// must not be written back -- the caller is expected to discard
// ciphertextOut/macOut in that case, which the nil/zero return values
// enforce by construction.
// Update's returned *secret.Bytes is reused from ciphertextIn and becomes
// the new ciphertext to be written back to the untrusted slab -- it is
// the caller's to Zero once that write-back completes, not this
// function's. On every error path below, the (partially mutated) buffer
// is zeroed here instead, so a partially updated plaintext never
// escapes.
func (s *State) Update(ciphertextIn *secret.Bytes, macIn aeadcrypto.Mac, queryPhones []cdstypes.Phone) (*secret.Bytes, aeadcrypto.Mac, error) {
	data, err := s.decryptOrInit(ciphertextIn, macIn)
	if err != nil {
		return nil, aeadcrypto.Mac{}, err
	}

	// Increment the nonce before revealing any output: a crash between the
	// encrypt step below and the client receiving its result can never
	// cause a ciphertext to be replayed under the nonce that produced it.
	nextNonce := s.nonce + 1
	if nextNonce == 0 {
		// wrapped past u32::MAX
		data.Zero()
		return nil, aeadcrypto.Mac{}, cdstypes.NewError(cdstypes.StatusErrInvalidRateLimitState)
	}
	s.nonce = nextNonce

	rsData := ratelimitset.New(data)
	if err := rsData.Add(queryPhones); err != nil {
		data.Zero()
		return nil, aeadcrypto.Mac{}, err
	}

	plaintext := rsData.Into()
	mac, err := s.key.Encrypt(plaintext.GetMut(), nil, s.ivForReveal())
	if err != nil {
		plaintext.Zero()
		return nil, aeadcrypto.Mac{}, err
	}
	return plaintext, mac, nil
}

// decryptOrInit is the decrypt-or-initialise step: an all-zero
// ciphertext means "first use" and skips decryption entirely.
func (s *State) decryptOrInit(ciphertextIn *secret.Bytes, macIn aeadcrypto.Mac) (*secret.Bytes, error) {
	raw := ciphertextIn.GetMut()
	if isAllZero(raw) {
		ciphertextIn.Clear() // redundant on an already-zero buffer, kept explicit
		data := ratelimitset.New(ciphertextIn)
		slotCount := data.SlotCount()
		if err := data.SetSizeLimit(slotCount/2, slotCount/2); err != nil {
			return nil, err
		}
		return data.Into(), nil
	}

	if err := s.key.Decrypt(raw, nil, s.ivForReveal(), macIn); err != nil {
		ciphertextIn.Zero()
		return nil, cdstypes.NewError(cdstypes.StatusErrInvalidRateLimitState)
	}
	return ciphertextIn, nil
}

func isAllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
