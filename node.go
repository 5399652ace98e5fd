package statetree

import (
	"bytes"
)

// Node is either a leaf carrying a key/value entry or a branch carrying a
// boundary key and two children. A node with subtreeHeight 0 is a leaf.
type Node struct {
	key           []byte
	value         []byte
	hash          []byte
	version       int64
	size          int64
	subtreeHeight int8
	leftNode      *Node
	rightNode     *Node
}

func newLeafNode(key, value []byte, version int64) *Node {
	return &Node{
		key:     key,
		value:   value,
		version: version,
		size:    1,
	}
}

func (node *Node) isLeaf() bool {
	return node.subtreeHeight == 0
}

func heightOf(node *Node) int8 {
	if node == nil {
		return 0
	}
	return node.subtreeHeight
}

func sizeOf(node *Node) int64 {
	if node == nil {
		return 0
	}
	return node.size
}

func (node *Node) updateHeightSize() {
	node.subtreeHeight = maxInt8(heightOf(node.leftNode), heightOf(node.rightNode)) + 1
	node.size = sizeOf(node.leftNode) + sizeOf(node.rightNode)
}

func (node *Node) calcBalance() int {
	return int(heightOf(node.leftNode)) - int(heightOf(node.rightNode))
}

// insertRecursive descends to the leaf covering key, splits it into a branch
// over the old and new entries, then rebalances on the way back up.
// Equal keys compare "not less than" and route right, so the newest duplicate
// is the one searches reach; superseded entries stay in place unreachable.
func insertRecursive(node *Node, key, value []byte, version int64) *Node {
	if node == nil {
		return newLeafNode(key, value, version)
	}
	if node.isLeaf() {
		leaf := newLeafNode(key, value, version)
		branch := &Node{
			version:       version,
			size:          2,
			subtreeHeight: 1,
		}
		if bytes.Compare(key, node.key) < 0 {
			branch.key = node.key
			branch.leftNode = leaf
			branch.rightNode = node
		} else {
			branch.key = key
			branch.leftNode = node
			branch.rightNode = leaf
		}
		return branch
	}
	if bytes.Compare(key, node.key) < 0 {
		node.leftNode = insertRecursive(node.leftNode, key, value, version)
	} else {
		node.rightNode = insertRecursive(node.rightNode, key, value, version)
	}
	node.updateHeightSize()
	return node.balance()
}

// balance restores the AVL invariant for node after one insertion below it.
// The balance factor can only be off by one step, anything further means the
// structure is corrupt.
func (node *Node) balance() *Node {
	switch node.calcBalance() {
	case -1, 0, 1:
		return node
	case 2:
		left := node.leftNode
		if heightOf(left.rightNode) > heightOf(left.leftNode) {
			node.leftNode = left.rotateLeft()
		}
		return node.rotateRight()
	case -2:
		right := node.rightNode
		if heightOf(right.leftNode) > heightOf(right.rightNode) {
			node.rightNode = right.rotateRight()
		}
		return node.rotateLeft()
	default:
		panic("statetree: balance factor out of range")
	}
}

func (node *Node) rotateRight() *Node {
	if node.isLeaf() {
		panic("statetree: rotate on a leaf node")
	}
	pivot := node.leftNode
	if pivot == nil || pivot.isLeaf() {
		panic("statetree: rotation pivot is not a branch")
	}
	node.leftNode = pivot.rightNode
	pivot.rightNode = node
	node.updateHeightSize()
	pivot.updateHeightSize()
	return pivot
}

func (node *Node) rotateLeft() *Node {
	if node.isLeaf() {
		panic("statetree: rotate on a leaf node")
	}
	pivot := node.rightNode
	if pivot == nil || pivot.isLeaf() {
		panic("statetree: rotation pivot is not a branch")
	}
	node.rightNode = pivot.leftNode
	pivot.leftNode = node
	node.updateHeightSize()
	pivot.updateHeightSize()
	return pivot
}

// get walks from node to the leaf covering key. Branch boundaries route
// strictly smaller keys left and everything else right, mirroring insertion.
func (node *Node) get(key []byte) ([]byte, bool) {
	for node != nil {
		if node.isLeaf() {
			if bytes.Equal(key, node.key) {
				return node.value, true
			}
			return nil, false
		}
		if bytes.Compare(key, node.key) < 0 {
			node = node.leftNode
		} else {
			node = node.rightNode
		}
	}
	return nil, false
}

func maxInt8(a, b int8) int8 {
	if a > b {
		return a
	}
	return b
}
