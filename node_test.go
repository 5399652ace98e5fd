package statetree

import (
	"bytes"
	"fmt"
	"math"
	"math/rand"
	"testing"

	sdklog "cosmossdk.io/log"
	"github.com/stretchr/testify/require"
)

// checkInvariants verifies height and size bookkeeping and the AVL balance
// bound for every branch under node.
func checkInvariants(t require.TestingT, node *Node) {
	if node == nil {
		return
	}
	if node.isLeaf() {
		require.EqualValues(t, 1, node.size)
		return
	}
	require.NotNil(t, node.leftNode)
	require.NotNil(t, node.rightNode)
	checkInvariants(t, node.leftNode)
	checkInvariants(t, node.rightNode)
	require.Equal(t, maxInt8(heightOf(node.leftNode), heightOf(node.rightNode))+1, node.subtreeHeight)
	require.Equal(t, sizeOf(node.leftNode)+sizeOf(node.rightNode), node.size)
	balance := node.calcBalance()
	require.GreaterOrEqual(t, balance, -1)
	require.LessOrEqual(t, balance, 1)
}

func collectLeaves(node *Node, leaves *[]*Node) {
	if node == nil {
		return
	}
	if node.isLeaf() {
		*leaves = append(*leaves, node)
		return
	}
	collectLeaves(node.leftNode, leaves)
	collectLeaves(node.rightNode, leaves)
}

// checkLeafOrder verifies the in-order leaf keys never decrease. Shadowed
// duplicates sit immediately left of their successors, so equal neighbors are
// expected.
func checkLeafOrder(t require.TestingT, root *Node) {
	var leaves []*Node
	collectLeaves(root, &leaves)
	for i := 1; i < len(leaves); i++ {
		require.LessOrEqual(t, bytes.Compare(leaves[i-1].key, leaves[i].key), 0,
			"leaf %d key %x above leaf %d key %x", i-1, leaves[i-1].key, i, leaves[i].key)
	}
}

// renderShape prints the structure with single byte keys, leaves as Lxx and
// branches as (boundary left right).
func renderShape(node *Node) string {
	if node == nil {
		return "_"
	}
	if node.isLeaf() {
		return fmt.Sprintf("L%x", node.key)
	}
	return fmt.Sprintf("(%x %s %s)", node.key, renderShape(node.leftNode), renderShape(node.rightNode))
}

func TestRotationShapes(t *testing.T) {
	cases := []struct {
		name  string
		keys  []byte
		shape string
	}{
		{"right right", []byte{1, 2, 3, 4}, "(03 (02 L01 L02) (04 L03 L04))"},
		{"left left", []byte{4, 3, 2, 1}, "(03 (02 L01 L02) (04 L03 L04))"},
		{"left right", []byte{5, 1, 3, 4}, "(04 (03 L01 L03) (05 L04 L05))"},
		{"right left", []byte{1, 2, 4, 3}, "(03 (02 L01 L02) (04 L03 L04))"},
		{"no rotation", []byte{3, 1, 2}, "(03 (02 L01 L02) L03)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tree := NewTree(sdklog.NewNopLogger())
			for _, k := range tc.keys {
				require.NoError(t, tree.Set([]byte{k}, []byte{k}))
				checkInvariants(t, tree.root)
				checkLeafOrder(t, tree.root)
			}
			require.Equal(t, tc.shape, renderShape(tree.root))
		})
	}
}

func TestLeafSplitDirections(t *testing.T) {
	tree := NewTree(sdklog.NewNopLogger())
	require.NoError(t, tree.Set([]byte{10}, []byte{10}))
	require.Equal(t, "L0a", renderShape(tree.root))

	// A smaller key lands left under the old key as boundary.
	require.NoError(t, tree.Set([]byte{5}, []byte{5}))
	require.Equal(t, "(0a L05 L0a)", renderShape(tree.root))

	// A key at least as large lands right under itself as boundary.
	require.NoError(t, tree.Set([]byte{20}, []byte{20}))
	require.Equal(t, "(0a L05 (14 L0a L14))", renderShape(tree.root))
}

func TestInsertStaysBalanced(t *testing.T) {
	orders := map[string]func(n int) []byte{
		"ascending": func(n int) []byte {
			keys := make([]byte, n)
			for i := range keys {
				keys[i] = byte(i)
			}
			return keys
		},
		"descending": func(n int) []byte {
			keys := make([]byte, n)
			for i := range keys {
				keys[i] = byte(n - 1 - i)
			}
			return keys
		},
		"shuffled": func(n int) []byte {
			keys := make([]byte, n)
			for i := range keys {
				keys[i] = byte(i)
			}
			rnd := rand.New(rand.NewSource(42))
			rnd.Shuffle(n, func(i, j int) {
				keys[i], keys[j] = keys[j], keys[i]
			})
			return keys
		},
	}
	const n = 256
	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			tree := NewTree(sdklog.NewNopLogger())
			for _, k := range order(n) {
				require.NoError(t, tree.Set([]byte{k}, []byte{k}))
				checkInvariants(t, tree.root)
			}
			checkLeafOrder(t, tree.root)
			require.EqualValues(t, n, tree.Size())
			bound := int8(math.Ceil(1.44 * math.Log2(float64(n+1))))
			require.LessOrEqual(t, tree.Height(), bound)
		})
	}
}

func TestMixedInsertThenSearch(t *testing.T) {
	tree := NewTree(sdklog.NewNopLogger())
	for _, k := range []byte{5, 3, 8, 1, 4, 7, 9, 2, 6, 0} {
		require.NoError(t, tree.Set([]byte{k}, []byte{k, k}))
		checkInvariants(t, tree.root)
	}
	require.LessOrEqual(t, tree.Height(), int8(4))

	value, err := tree.Get([]byte{6})
	require.NoError(t, err)
	require.Equal(t, []byte{6, 6}, value)

	value, err = tree.Get([]byte{10})
	require.NoError(t, err)
	require.Nil(t, value)

	found, err := tree.Has([]byte{0})
	require.NoError(t, err)
	require.True(t, found)
}

func TestRotateOnLeafPanics(t *testing.T) {
	leaf := newLeafNode([]byte{1}, []byte{1}, 1)
	require.Panics(t, func() { leaf.rotateLeft() })
	require.Panics(t, func() { leaf.rotateRight() })

	// A two leaf branch has no branch pivot on either side.
	branch := insertRecursive(newLeafNode([]byte{1}, []byte{1}, 1), []byte{2}, []byte{2}, 1)
	require.Panics(t, func() { branch.rotateLeft() })
	require.Panics(t, func() { branch.rotateRight() })
}
