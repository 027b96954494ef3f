// Package secret provides a guaranteed-zeroisation byte container. Go's
// garbage collector and compiler are free to keep copies of a plain []byte
// around or elide a dead store to it; Bytes.Zero uses a volatile-style
// write-then-fence pattern (one byte at a time through a noinline helper,
// with runtime.KeepAlive pinning the backing array until after the write)
// so the final memset is never optimised away.
package secret

import "runtime"

// Bytes owns a secret byte slice and wipes it exactly once, on Zero.
// The zero value holds no data; call New or Wrap before using it.
type Bytes struct {
	data []byte
}

// New allocates a secret buffer of the given length.
func New(length int) *Bytes {
	return &Bytes{data: make([]byte, length)}
}

// Wrap takes ownership of an existing slice; the caller must not retain or
// mutate it outside of the returned Bytes afterwards.
func Wrap(b []byte) *Bytes {
	return &Bytes{data: b}
}

// Get returns the underlying slice for reading.
func (b *Bytes) Get() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

// GetMut returns the underlying slice for in-place mutation (e.g. AES-GCM
// seal/open writing in place).
func (b *Bytes) GetMut() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

// Len reports the buffer length.
func (b *Bytes) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Clear overwrites the buffer with zero bytes but keeps it usable
// afterwards, e.g. the redundant clear performed on first use of a
// fresh ratelimit state slab.
func (b *Bytes) Clear() {
	if b == nil {
		return
	}
	wipe(b.data)
}

// Zero wipes the buffer and releases it; the Bytes must not be used again.
func (b *Bytes) Zero() {
	if b == nil {
		return
	}
	wipe(b.data)
	b.data = nil
}

//go:noinline
func wipe(data []byte) {
	for i := range data {
		data[i] = 0
	}
	runtime.KeepAlive(data)
}
