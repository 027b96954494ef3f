// Package ratelimitmap implements the process-wide UUID -> per-client
// ratelimit-state mapping, plus the free functions that manage cells
// independently of any single server instance. A plain map guarded by
// one mutex, with per-key lazy creation, is enough here: cells are
// cheap and contention across distinct UUIDs matters more than
// contention on a single cell.
package ratelimitmap

import (
	"sync"

	"github.com/privatecds/sealedcore/internal/aeadcrypto"
	"github.com/privatecds/sealedcore/internal/cdstypes"
	"github.com/privatecds/sealedcore/internal/ratelimitstate"
	"github.com/privatecds/sealedcore/internal/secret"
)

// Cell is a per-UUID shared mutex slot holding an optional ratelimit
// state. Holders must not acquire any other lock while holding a
// Cell's lock.
type Cell struct {
	mu    sync.Mutex
	state *ratelimitstate.State // nil means no state installed yet
}

// Update drives the full decrypt-or-initialise / add / re-encrypt
// sequence against this cell's state, installing a default state on
// first use. The whole sequence runs under the cell's lock, serialising
// all updates for this UUID.
func (c *Cell) Update(ciphertextIn *secret.Bytes, macIn aeadcrypto.Mac, queryPhones []cdstypes.Phone) (*secret.Bytes, aeadcrypto.Mac, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == nil {
		st, err := ratelimitstate.New()
		if err != nil {
			return nil, aeadcrypto.Mac{}, err
		}
		c.state = st
	}
	return c.state.Update(ciphertextIn, macIn, queryPhones)
}

// Delete resets the cell's contents to "absent"; the map entry itself
// is kept.
func (c *Cell) Delete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = nil
}

// Map is the process-wide UUID -> Cell table.
type Map struct {
	mu    sync.RWMutex
	cells map[cdstypes.Uuid]*Cell
}

func newMap(capacity int) *Map {
	if capacity < 0 {
		capacity = 0
	}
	return &Map{cells: make(map[cdstypes.Uuid]*Cell, capacity)}
}

// Get returns a shared handle to uuid's cell, inserting a fresh (empty)
// cell on first access. The map's own lock only ever guards the
// insert-or-find; callers then serialise on the returned Cell's lock.
func (m *Map) Get(uuid cdstypes.Uuid) *Cell {
	m.mu.RLock()
	if c, ok := m.cells[uuid]; ok {
		m.mu.RUnlock()
		return c
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cells[uuid]; ok {
		return c
	}
	c := &Cell{}
	m.cells[uuid] = c
	return c
}

var (
	globalOnce sync.Once
	globalMap  *Map
)

// Global returns the single process-wide Map, initialising it lazily
// with capacity on first call; every later call ignores its capacity
// argument and returns the same instance.
func Global(capacity int) *Map {
	globalOnce.Do(func() {
		globalMap = newMap(capacity)
	})
	return globalMap
}

// wireDataAndMac splits the wire format ([ciphertext_bytes][16-byte GCM
// MAC]) out of a raw byte slice.
func wireDataAndMac(raw []byte) ([]byte, aeadcrypto.Mac, error) {
	if len(raw) < aeadcrypto.MacSize {
		return nil, aeadcrypto.Mac{}, cdstypes.NewError(cdstypes.StatusErrInvalidRateLimitState)
	}
	split := len(raw) - aeadcrypto.MacSize
	var mac aeadcrypto.Mac
	copy(mac.Data[:], raw[split:])
	return raw[:split], mac, nil
}

// UpdateRatelimitState updates uuid's ratelimit state in place against
// the supplied encrypted wire buffer. Phones are accepted verbatim
// here -- canonicalisation to their hash happens on the handle_call
// ratelimit path in package server, not inside the map.
func UpdateRatelimitState(uuid cdstypes.Uuid, encryptedState []byte, queryPhones []cdstypes.Phone) error {
	if uuid.IsZero() {
		return cdstypes.NewError(cdstypes.StatusErrInvalidParameter)
	}

	data, mac, err := wireDataAndMac(encryptedState)
	if err != nil {
		return err
	}

	cell := Global(0).Get(uuid)
	ciphertextIn := secret.Wrap(append([]byte(nil), data...))
	newData, newMac, err := cell.Update(ciphertextIn, mac, queryPhones)
	if err != nil {
		return err
	}
	defer newData.Zero()

	copy(data, newData.Get())
	copy(encryptedState[len(data):], newMac.Data[:])
	return nil
}

// DeleteRatelimitState clears uuid's cell to absent.
func DeleteRatelimitState(uuid cdstypes.Uuid) error {
	if uuid.IsZero() {
		return cdstypes.NewError(cdstypes.StatusErrInvalidParameter)
	}
	Global(0).Get(uuid).Delete()
	return nil
}
