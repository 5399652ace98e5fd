package statetree

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	"sync"

	"golang.org/x/crypto/sha3"
)

const hashSize = 32

// emptyHash is the reserved all-zero digest. It stands in for an absent
// child during branch hashing and is the root digest of an empty tree.
var emptyHash = make([]byte, hashSize)

// EmptyHash returns the digest reported for an empty tree.
func EmptyHash() []byte {
	return bytes.Clone(emptyHash)
}

var hashPool = &sync.Pool{
	New: func() any {
		return sha3.New256()
	},
}

// hashRecursive recomputes the digest of every node under node in post-order
// and caches it on the node. Leaf digests bind the entry content, branch
// digests bind the two child digests in order.
func hashRecursive(node *Node) ([]byte, error) {
	if node == nil {
		return emptyHash, nil
	}
	hasher := hashPool.Get().(hash.Hash)
	hasher.Reset()
	if node.isLeaf() {
		if err := writeLeafBytes(node, hasher); err != nil {
			return nil, err
		}
	} else {
		leftHash, err := hashRecursive(node.leftNode)
		if err != nil {
			return nil, err
		}
		rightHash, err := hashRecursive(node.rightNode)
		if err != nil {
			return nil, err
		}
		if _, err := hasher.Write(leftHash); err != nil {
			return nil, fmt.Errorf("writing left child digest, %w", err)
		}
		if _, err := hasher.Write(rightHash); err != nil {
			return nil, fmt.Errorf("writing right child digest, %w", err)
		}
	}
	node.hash = hasher.Sum(nil)
	hashPool.Put(hasher)
	return node.hash, nil
}

// writeLeafBytes writes the content binding of a leaf entry: the version
// stamp followed by the length-prefixed key and value.
func writeLeafBytes(node *Node, w io.Writer) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64(node.version))
	if _, err := w.Write(buf[0:n]); err != nil {
		return fmt.Errorf("writing version, %w", err)
	}
	if err := encodeBytes(w, node.key); err != nil {
		return fmt.Errorf("writing key, %w", err)
	}
	if err := encodeBytes(w, node.value); err != nil {
		return fmt.Errorf("writing value, %w", err)
	}
	return nil
}

func encodeBytes(w io.Writer, bz []byte) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64(len(bz)))
	if _, err := w.Write(buf[0:n]); err != nil {
		return err
	}
	_, err := w.Write(bz)
	return err
}
