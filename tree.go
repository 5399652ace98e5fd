// Package statetree implements an ordered key/value store as a height
// balanced binary search tree with entries at the leaves. Every insertion
// rebalances with AVL rotations, and the whole structure folds into a single
// SHA3-256 Merkle root on demand. One reader/writer lock guards the tree, so
// any number of readers run concurrently between writes.
package statetree

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	clog "cosmossdk.io/log"
)

// ErrPoisoned is returned by every operation after a mutation panicked while
// holding the write lock. The tree may be mid-restructure and cannot be
// trusted; callers must rebuild the store.
var ErrPoisoned = errors.New("tree poisoned by a failed mutation")

// Tree is the shared handle over the root. Get and Has take the lock in
// shared mode; Set, Hash and SaveVersion take it exclusively.
type Tree struct {
	mtx      sync.RWMutex
	root     *Node
	version  int64
	poisoned bool
	logger   clog.Logger
}

func NewTree(logger clog.Logger) *Tree {
	if logger == nil {
		logger = clog.NewNopLogger()
	}
	return &Tree{logger: logger}
}

// recoverPoison marks the tree poisoned when a mutation panics, then rethrows
// the panic. It must be deferred after the lock's own deferred unlock so the
// flag is set while the lock is still held.
func (t *Tree) recoverPoison() {
	if r := recover(); r != nil {
		t.poisoned = true
		t.logger.Error("tree poisoned, mutation panicked", "panic", r)
		panic(r)
	}
}

// Set inserts value under key at the working version. Re-inserting an
// existing key shadows the previous entry: the old leaf stays in the tree
// physically, no search reaches it, and Size still counts it.
func (t *Tree) Set(key, value []byte) error {
	if value == nil {
		return fmt.Errorf("nil value is not allowed")
	}
	t.mtx.Lock()
	defer t.mtx.Unlock()
	defer t.recoverPoison()
	if t.poisoned {
		return ErrPoisoned
	}
	t.root = insertRecursive(t.root, key, value, t.version+1)
	return nil
}

// Get returns the value most recently inserted under key, or nil if the key
// was never inserted. The returned slice is a copy.
func (t *Tree) Get(key []byte) ([]byte, error) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	if t.poisoned {
		return nil, ErrPoisoned
	}
	value, found := t.root.get(key)
	if !found {
		return nil, nil
	}
	return bytes.Clone(value), nil
}

func (t *Tree) Has(key []byte) (bool, error) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	if t.poisoned {
		return false, ErrPoisoned
	}
	_, found := t.root.get(key)
	return found, nil
}

// Hash recomputes the digest of every node and returns the root digest. An
// empty tree hashes to EmptyHash. Cached digests are rebuilt unconditionally.
func (t *Tree) Hash() ([]byte, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	defer t.recoverPoison()
	if t.poisoned {
		return nil, ErrPoisoned
	}
	rootHash, err := hashRecursive(t.root)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(rootHash), nil
}

// SaveVersion recomputes the root digest and advances the committed version.
// Entries inserted afterwards are stamped with the next working version.
func (t *Tree) SaveVersion() ([]byte, int64, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	defer t.recoverPoison()
	if t.poisoned {
		return nil, 0, ErrPoisoned
	}
	rootHash, err := hashRecursive(t.root)
	if err != nil {
		return nil, 0, err
	}
	t.version++
	t.logger.Debug("saved version", "version", t.version, "size", sizeOf(t.root))
	return bytes.Clone(rootHash), t.version, nil
}

// Size counts the physical leaves in the tree, including entries shadowed by
// later insertions of the same key.
func (t *Tree) Size() int64 {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return sizeOf(t.root)
}

// Height reports the height of the root, 0 for an empty or one-entry tree.
func (t *Tree) Height() int8 {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return heightOf(t.root)
}

// Version reports the last committed version.
func (t *Tree) Version() int64 {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return t.version
}
