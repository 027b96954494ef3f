// Package phonehash implements replacing a numeric phone with the
// 64-bit native-endian prefix of SHA1("+" || decimal_form(phone)),
// using constant-time selection so the computation's timing does not
// reveal the phone's decimal length.
package phonehash

import (
	"encoding/binary"

	"github.com/privatecds/sealedcore/internal/aeadcrypto"
	"github.com/privatecds/sealedcore/internal/cdstypes"
	"github.com/privatecds/sealedcore/internal/ct"
	"github.com/privatecds/sealedcore/internal/secret"
)

// asciiDigits is long enough to hold 2^64-1 in decimal.
const asciiDigits = 20

// Hash replaces *phone in place with the truncated SHA-1 digest described
// above. phone == 0 is left unchanged: no digit of "00000000000000000000"
// is ever the first non-zero digit, so the constant-time selection never
// fires -- callers must treat phone 0 as a caller error.
func Hash(phone *cdstypes.Phone) {
	hashWithFactory(phone, aeadcrypto.NewSha1)
}

// hashWithFactory is the testable entry point: it takes a Sha1er factory
// so tests can substitute a counting double and assert the 20-call
// invariant.
func hashWithFactory(phone *cdstypes.Phone, newSha1 func() aeadcrypto.Sha1er) {
	ascii := secret.New(asciiDigits)
	defer ascii.Zero()

	var divisor, quotient, remainder ct.U64
	divisor.Set(10)
	quotient.Set(*phone)
	digits := ascii.GetMut()
	for i := asciiDigits - 1; i >= 0; i-- {
		quotient.DivRemAssign(divisor, &remainder)
		digits[i] = '0' + byte(remainder.Get())
	}

	hashAscii(phone, digits, newSha1)
}

// hashAscii runs the constant-time "first non-zero digit" selection over
// all 20 suffixes of digits, always computing all 20 SHA-1s.
func hashAscii(phone *cdstypes.Phone, digits []byte, newSha1 func() aeadcrypto.Sha1er) {
	leadingZeroes := ct.ChoiceOf(1)
	for i := 0; i < len(digits); i++ {
		leadingZero := ct.ConstantTimeEqByte(digits[i], '0')
		choice := leadingZeroes.And(leadingZero.Not())
		hashTruncated(digits[i:], phone, choice, newSha1)
		leadingZeroes = leadingZeroes.And(leadingZero)
	}
}

// hashTruncated computes SHA1("+" || suffix) and conditionally assigns
// its first 8 bytes (native-endian) into *phone.
func hashTruncated(suffix []byte, phone *cdstypes.Phone, choice ct.Choice, newSha1 func() aeadcrypto.Sha1er) {
	h := newSha1()
	h.Reset()
	h.Write([]byte{'+'})
	h.Write(suffix)

	digest := secret.Wrap(h.Sum(nil))
	defer digest.Zero()

	truncated := binary.NativeEndian.Uint64(digest.Get()[:8])
	ct.ConditionalAssignU64(phone, truncated, choice)
}
