// Package reqcodec implements parsing and authenticating an inbound
// request against a client commitment and a per-request AES-GCM key.
package reqcodec

import (
	"crypto/subtle"
	"encoding/binary"

	"github.com/privatecds/sealedcore/internal/aeadcrypto"
	"github.com/privatecds/sealedcore/internal/cdstypes"
	"github.com/privatecds/sealedcore/internal/secret"
)

// CommitmentNonceSize is the leading nonce width inside the decrypted
// query buffer.
const CommitmentNonceSize = 32

// CallArgs mirrors the CallArgs ABI struct. QueryData and
// RatelimitStateData stand in for untrusted pointer+size pairs: the
// transport is responsible for handing us slices that already refer to
// memory outside the sealed core's own exclusively-owned buffers.
type CallArgs struct {
	QueryData          []byte
	QueryIV            aeadcrypto.Iv
	QueryMAC           aeadcrypto.Mac
	QueryCommitment    [32]byte
	QueryPhoneCount    uint32
	RatelimitStateUUID cdstypes.Uuid
	RatelimitStateData []byte
}

// RequestPhoneList is the decrypted, commitment-verified query buffer:
// [commitment_nonce: 32 bytes][phones_plaintext: n*8 bytes].
type RequestPhoneList struct {
	data *secret.Bytes
}

// Iter decodes the phone list, skipping the leading nonce. Phones are
// decoded native-endian, matching the original enclave's
// from_ne_bytes phone-list layout.
func (r *RequestPhoneList) Iter() []cdstypes.Phone {
	raw := r.data.Get()
	phoneBytes := raw[CommitmentNonceSize:]
	count := len(phoneBytes) / cdstypes.BytesPerPhone
	phones := make([]cdstypes.Phone, count)
	for i := 0; i < count; i++ {
		phones[i] = decodeNative(phoneBytes[i*cdstypes.BytesPerPhone : (i+1)*cdstypes.BytesPerPhone])
	}
	return phones
}

// Zero releases the decrypted query buffer.
func (r *RequestPhoneList) Zero() {
	r.data.Zero()
}

// RatelimitState is the decoded rate-limit handle of a request, present iff
// CallArgs.RatelimitStateUUID is non-zero.
type RatelimitState struct {
	UUID cdstypes.Uuid
	// Data is the untrusted, mutable ratelimit-state slab the caller
	// supplied; package server/ratelimitmap read and overwrite it in place.
	Data []byte
}

// Request is the fully decoded and authenticated inbound call.
type Request struct {
	Phones         *RequestPhoneList
	RatelimitState *RatelimitState // nil iff absent
}

// Decode parses and authenticates one inbound call. remainingCapacity
// is the server's query_phones accumulator headroom
// (query_phones.capacity() - query_phones.len()), enforced before
// anything else is parsed.
func Decode(args *CallArgs, requestData []byte, remainingCapacity int) (*Request, error) {
	if args.QueryPhoneCount == 0 || int(args.QueryPhoneCount) > remainingCapacity {
		return nil, cdstypes.NewError(cdstypes.StatusErrInvalidParameter)
	}

	// Copy the caller-supplied query bytes into an owned, in-enclave
	// buffer before any parsing touches them.
	owned := secret.Wrap(append([]byte(nil), args.QueryData...))

	if owned.Len() < CommitmentNonceSize {
		owned.Zero()
		return nil, cdstypes.NewError(cdstypes.StatusErrInvalidRequestSize)
	}
	phoneBytesLen := owned.Len() - CommitmentNonceSize

	if len(requestData) != aeadcrypto.KeySize ||
		phoneBytesLen%cdstypes.BytesPerPhone != 0 ||
		phoneBytesLen/cdstypes.BytesPerPhone != int(args.QueryPhoneCount) {
		owned.Zero()
		return nil, cdstypes.NewError(cdstypes.StatusErrInvalidRequestSize)
	}

	key, err := aeadcrypto.NewKey(requestData)
	if err != nil {
		owned.Zero()
		return nil, err
	}
	if err := key.Decrypt(owned.GetMut(), nil, args.QueryIV, args.QueryMAC); err != nil {
		owned.Zero()
		return nil, err
	}

	if err := verifyCommitment(owned.Get(), &args.QueryCommitment); err != nil {
		owned.Zero()
		return nil, err
	}

	var ratelimitState *RatelimitState
	if !args.RatelimitStateUUID.IsZero() {
		ratelimitState = &RatelimitState{
			UUID: args.RatelimitStateUUID,
			Data: args.RatelimitStateData,
		}
	}

	return &Request{
		Phones:         &RequestPhoneList{data: owned},
		RatelimitState: ratelimitState,
	}, nil
}

func verifyCommitment(data []byte, expected *[32]byte) error {
	commitment := aeadcrypto.Sha256(data)
	if subtle.ConstantTimeCompare(commitment[:], expected[:]) == 1 {
		return nil
	}
	return cdstypes.NewError(cdstypes.StatusErrQueryCommitmentMismatch)
}

func decodeNative(b []byte) uint64 {
	return binary.NativeEndian.Uint64(b)
}
