package state

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"recycless/storage"
)

// Scope partitions the key space. Global entries exist once per contract,
// local entries once per (identity, key) pair.
type Scope uint8

const (
	ScopeGlobal Scope = iota
	ScopeLocal
	// ScopeSystem holds host bookkeeping (call nonces) that is not part of the
	// contract's own data model.
	ScopeSystem
)

func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeLocal:
		return "local"
	case ScopeSystem:
		return "system"
	default:
		return fmt.Sprintf("scope(%d)", uint8(s))
	}
}

var (
	// ErrOverlayClosed is returned when an overlay is used after Commit or
	// Discard.
	ErrOverlayClosed = errors.New("state: overlay closed")
)

// Reader exposes scoped reads. The boolean reports whether the key was present;
// absent keys leave out untouched so callers can apply their own default.
type Reader interface {
	Get(scope Scope, owner common.Address, key string, out interface{}) (bool, error)
}

// Store adds scoped writes to Reader.
type Store interface {
	Reader
	Put(scope Scope, owner common.Address, key string, value interface{}) error
}

// Manager is the committed view of contract state backed by a key-value
// database. Writes go through an Overlay so a call's mutations land in a single
// batch.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// StorageKey derives the hashed database key for a scoped entry. Global keys
// ignore the owner.
func StorageKey(scope Scope, owner common.Address, key string) ([]byte, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return nil, fmt.Errorf("state: key must not be empty")
	}
	var raw string
	switch scope {
	case ScopeGlobal:
		raw = "global/" + trimmed
	case ScopeLocal, ScopeSystem:
		raw = fmt.Sprintf("%s/%x/%s", scope, owner.Bytes(), trimmed)
	default:
		return nil, fmt.Errorf("state: unknown scope %d", scope)
	}
	return ethcrypto.Keccak256([]byte(raw)), nil
}

func (m *Manager) raw(hashed []byte) ([]byte, bool, error) {
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Get decodes the committed value stored under the scoped key into out.
func (m *Manager) Get(scope Scope, owner common.Address, key string, out interface{}) (bool, error) {
	hashed, err := StorageKey(scope, owner, key)
	if err != nil {
		return false, err
	}
	data, ok, err := m.raw(hashed)
	if err != nil || !ok {
		return false, err
	}
	return true, decodeInto(data, out)
}

// Begin opens a write overlay on top of the committed state.
func (m *Manager) Begin() *Overlay {
	return &Overlay{base: m, pending: make(map[string][]byte)}
}

func decodeInto(data []byte, out interface{}) error {
	if out == nil {
		return nil
	}
	return rlp.DecodeBytes(data, out)
}

// Overlay stages writes for a single call. Reads see staged values first.
// Nothing reaches the database until Commit; Discard drops everything.
//
// Overlay is not safe for concurrent use.
type Overlay struct {
	base    *Manager
	pending map[string][]byte
	closed  bool
}

// Get returns the staged value if present, otherwise the committed one.
func (o *Overlay) Get(scope Scope, owner common.Address, key string, out interface{}) (bool, error) {
	if o.closed {
		return false, ErrOverlayClosed
	}
	hashed, err := StorageKey(scope, owner, key)
	if err != nil {
		return false, err
	}
	if data, ok := o.pending[string(hashed)]; ok {
		return true, decodeInto(data, out)
	}
	data, ok, err := o.base.raw(hashed)
	if err != nil || !ok {
		return false, err
	}
	return true, decodeInto(data, out)
}

// Put stages value under the scoped key using RLP encoding.
func (o *Overlay) Put(scope Scope, owner common.Address, key string, value interface{}) error {
	if o.closed {
		return ErrOverlayClosed
	}
	hashed, err := StorageKey(scope, owner, key)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %s/%s: %w", scope, key, err)
	}
	o.pending[string(hashed)] = encoded
	return nil
}

// Dirty reports the number of staged keys.
func (o *Overlay) Dirty() int {
	return len(o.pending)
}

// Commit writes all staged entries in one batch and closes the overlay.
func (o *Overlay) Commit() error {
	if o.closed {
		return ErrOverlayClosed
	}
	o.closed = true
	if len(o.pending) == 0 {
		return nil
	}
	keys := make([]string, 0, len(o.pending))
	for k := range o.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	batch := o.base.db.NewBatch()
	for _, k := range keys {
		batch.Put([]byte(k), o.pending[k])
	}
	o.pending = nil
	return batch.Write()
}

// Discard drops staged entries. Safe to call after Commit.
func (o *Overlay) Discard() {
	o.closed = true
	o.pending = nil
}
