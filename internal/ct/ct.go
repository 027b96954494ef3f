// Package ct provides branch-free, data-independent-timing primitives for
// operating on secret integers and byte buffers. It is the Go analogue of
// the `subtle`/custom `CtU64` combination used by the sealed core this
// package was ported from: crypto/subtle covers constant-time byte
// comparison and selection, and U64 below covers constant-time divmod,
// which crypto/subtle does not provide.
package ct

import (
	"crypto/subtle"
	"math/bits"
)

// Choice is a branch-free boolean: 0 or 1. Never compare it with == in
// conditional logic on secret data; combine with And/Not/Or instead.
type Choice uint8

// ChoiceOf converts an int reduced to {0,1} into a Choice (e.g. from an
// equality test already computed in constant time).
func ChoiceOf(v int) Choice {
	return Choice(v & 1)
}

func (c Choice) And(o Choice) Choice { return c & o }
func (c Choice) Or(o Choice) Choice  { return c | o }
func (c Choice) Not() Choice         { return c ^ 1 }

// mask64 returns 0xFF...FF when c == 1, else 0.
func (c Choice) mask64() uint64 {
	return uint64(0) - uint64(c&1)
}

// ConditionalAssignU64 sets *dst = src iff choice == 1, without branching on
// choice.
func ConditionalAssignU64(dst *uint64, src uint64, choice Choice) {
	m := choice.mask64()
	*dst = (*dst &^ m) | (src & m)
}

// ConditionalAssignBytes sets dst = src iff choice == 1, in constant time.
// dst and src must be the same length.
func ConditionalAssignBytes(dst, src []byte, choice Choice) {
	if len(dst) != len(src) {
		panic("ct: ConditionalAssignBytes: length mismatch")
	}
	subtle.ConstantTimeCopy(int(choice&1), dst, src)
}

// ConstantTimeEqByte reports, in constant time, whether a == b.
func ConstantTimeEqByte(a, b byte) Choice {
	return ChoiceOf(subtle.ConstantTimeByteEq(a, b))
}

// ConstantTimeEqBytes reports, in constant time, whether a and b are equal.
// Unlike subtle.ConstantTimeCompare this always returns a Choice even for
// mismatched lengths (false, but still without leaking *where* byte slices
// differ in the equal-length case).
func ConstantTimeEqBytes(a, b []byte) Choice {
	if len(a) != len(b) {
		return 0
	}
	return ChoiceOf(subtle.ConstantTimeCompare(a, b))
}

// U64 is a secret 64-bit integer that supports constant-time arithmetic.
// The zero value is NOT safe to use uninitialised for divrem; call Set
// first. (There is no hardware "NaN" state in Go; callers that ported the
// NaN-until-set discipline from the source should just always Set before
// use — Go has no uninitialised-read detector to enforce it for us.)
type U64 struct {
	v uint64
}

// Set assigns the value in constant time (a plain assignment already is).
func (u *U64) Set(v uint64) { u.v = v }

// Get returns the underlying value.
func (u *U64) Get() uint64 { return u.v }

// DivRemAssign computes u, *remainder = u / divisor, u % divisor using a
// branch-free binary long-division so that neither the loop bounds nor any
// memory access depend on the secret operands — only the iteration count
// (fixed at 64) is public.
func (u *U64) DivRemAssign(divisor U64, remainder *U64) {
	var quotient, rem uint64
	d := divisor.v
	n := u.v
	for i := 63; i >= 0; i-- {
		rem <<= 1
		rem |= (n >> uint(i)) & 1
		// ge = 1 iff rem >= d, computed without a data-dependent branch
		ge := ct64GreaterEqual(rem, d)
		quotient |= (ge & 1) << uint(i)
		sub := (uint64(0) - ge) & d
		rem -= sub
	}
	u.v = quotient
	remainder.v = rem
}

// RemAssign computes u %= divisor in constant time.
func (u *U64) RemAssign(divisor U64) {
	var q, r U64
	q.v = u.v
	q.DivRemAssign(divisor, &r)
	u.v = r.v
}

// ct64GreaterEqual returns 1 if a >= b, else 0, without branching on a or b.
// math/bits.Sub64 is a compiler intrinsic (ADC/SBB on amd64) that computes
// the borrow bit arithmetically rather than via a comparison branch; a < b
// exactly when subtracting b from a borrows.
func ct64GreaterEqual(a, b uint64) uint64 {
	_, borrow := bits.Sub64(a, b, 0)
	return borrow ^ 1
}
