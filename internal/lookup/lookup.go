// Package lookup implements the bulk oblivious hash-table lookup
// contract: the Directory interface package server drives, plus a
// reference implementation suitable for tests and the demo harness —
// a full linear scan per query so the directory access pattern never
// depends on query content, giving an equal access pattern for any two
// query sets of equal size by construction rather than by trusted
// hardware.
package lookup

import (
	"encoding/binary"

	"github.com/privatecds/sealedcore/internal/cdstypes"
	"github.com/privatecds/sealedcore/internal/ct"
)

// MaxHashTableSize bounds how many query phones package server probes
// in a single hash_lookup call.
const MaxHashTableSize = 8192

// Directory is the lookup contract: for each query phone, write the
// matching UUID (or all-zero) into outUUIDs, in query order, accessing
// (inPhones, inUUIDs) in a data-oblivious pattern.
type Directory interface {
	HashLookup(inPhones, inUUIDs []byte, inPhoneCount int, queries []cdstypes.Phone, outUUIDs []byte) error
}

// LinearScanDirectory is the reference Directory: it treats (inPhones,
// inUUIDs) as parallel arrays of native-endian uint64 phones and 16-byte
// UUIDs and, for every query, touches every directory entry exactly once
// regardless of whether it matches.
type LinearScanDirectory struct{}

func (LinearScanDirectory) HashLookup(inPhones, inUUIDs []byte, inPhoneCount int, queries []cdstypes.Phone, outUUIDs []byte) error {
	if inPhoneCount*cdstypes.BytesPerPhone != len(inPhones) {
		return errInvalid()
	}
	if inPhoneCount*cdstypes.BytesPerUUID != len(inUUIDs) {
		return errInvalid()
	}
	if len(queries)*cdstypes.BytesPerUUID != len(outUUIDs) {
		return errInvalid()
	}

	for qi, q := range queries {
		var qBytes [cdstypes.BytesPerPhone]byte
		binary.NativeEndian.PutUint64(qBytes[:], q)

		out := outUUIDs[qi*cdstypes.BytesPerUUID : (qi+1)*cdstypes.BytesPerUUID]
		for j := 0; j < 16; j++ {
			out[j] = 0
		}
		for j := 0; j < inPhoneCount; j++ {
			phoneBytes := inPhones[j*cdstypes.BytesPerPhone : (j+1)*cdstypes.BytesPerPhone]
			match := ct.ConstantTimeEqBytes(phoneBytes, qBytes[:])
			uuidBytes := inUUIDs[j*cdstypes.BytesPerUUID : (j+1)*cdstypes.BytesPerUUID]
			ct.ConditionalAssignBytes(out, uuidBytes, match)
		}
	}
	return nil
}

func errInvalid() error {
	return cdstypes.NewError(cdstypes.StatusErrInvalidParameter)
}
