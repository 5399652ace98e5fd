package bench

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"golang.org/x/exp/maps"
)

// Tree is the contract a tree backend must satisfy to be driven by the
// harness.
type Tree interface {
	Set(key, value []byte) error
	Get(key []byte) ([]byte, error)
	SaveVersion() ([]byte, int64, error)
	Size() int64
	Height() int8
}

// Remover marks backends that support deletion. Replaying a changeset with
// deletes into a backend without it is an error.
type Remover interface {
	Remove(key []byte) ([]byte, bool, error)
}

// MultiTree addresses one tree per store key.
type MultiTree interface {
	GetTree(storeKey string) (Tree, error)
	SaveVersions() ([]byte, error)
}

// NaiveMultiTree commits every tree and hashes the concatenated root hashes
// in store key order. All trees must be at the same version.
type NaiveMultiTree struct {
	Trees map[string]Tree
}

func NewMultiTree() *NaiveMultiTree {
	return &NaiveMultiTree{
		Trees: make(map[string]Tree),
	}
}

func (nmt *NaiveMultiTree) GetTree(storeKey string) (Tree, error) {
	tree, ok := nmt.Trees[storeKey]
	if !ok {
		return nil, fmt.Errorf("tree with key %s not found", storeKey)
	}
	return tree, nil
}

func (nmt *NaiveMultiTree) SaveVersions() ([]byte, error) {
	storeKeys := maps.Keys(nmt.Trees)
	sort.Strings(storeKeys)
	var (
		hashes  []byte
		version = int64(-1)
	)
	for _, storeKey := range storeKeys {
		hash, v, err := nmt.Trees[storeKey].SaveVersion()
		if err != nil {
			return nil, fmt.Errorf("saving %s: %w", storeKey, err)
		}
		if version != -1 && version != v {
			return nil, fmt.Errorf("unexpected; trees are at different versions: %d != %d", version, v)
		}
		version = v
		hashes = append(hashes, hash...)
	}
	h := sha256.Sum256(hashes)
	return h[:], nil
}
