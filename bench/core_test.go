package bench_test

import (
	"context"
	"testing"

	"github.com/aerius-labs/statetree"
	"github.com/aerius-labs/statetree/bench"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// countSets replays the generator and returns how many non-delete operations
// it emits, which is the physical leaf count a shadowing tree ends up with.
func countSets(t *testing.T, gen bench.ChangesetGenerator) int64 {
	t.Helper()
	itr, err := gen.Iterator()
	require.NoError(t, err)
	var sets int64
	for ; itr.Valid(); err = itr.Next() {
		require.NoError(t, err)
		nodes := itr.Nodes()
		for ; nodes.Valid(); err = nodes.Next() {
			require.NoError(t, err)
			if !nodes.GetNode().Delete {
				sets++
			}
		}
	}
	return sets
}

func Test_Build_MultiStore(t *testing.T) {
	genBank := fileTestGenerator(5, "bank")
	genBank.DeleteFraction = 0
	genAcc := fileTestGenerator(6, "acc")
	genAcc.DeleteFraction = 0

	bankTree := statetree.NewTree(nil)
	accTree := statetree.NewTree(nil)
	multiTree := bench.NewMultiTree()
	multiTree.Trees["bank"] = bankTree
	multiTree.Trees["acc"] = accTree

	ctx := &bench.TreeContext{
		Context:    context.Background(),
		Log:        zerolog.Nop(),
		Generators: []bench.ChangesetGenerator{genBank, genAcc},
	}
	require.NoError(t, ctx.Build(multiTree))

	require.Equal(t, int64(5), bankTree.Version())
	require.Equal(t, int64(5), accTree.Version())
	require.Equal(t, countSets(t, genBank), bankTree.Size())
	require.Equal(t, countSets(t, genAcc), accTree.Size())
}

func Test_Build_OneTree(t *testing.T) {
	genBank := fileTestGenerator(7, "bank")
	genBank.DeleteFraction = 0
	genAcc := fileTestGenerator(8, "acc")
	genAcc.DeleteFraction = 0

	tree := statetree.NewTree(nil)
	multiTree := bench.NewMultiTree()
	multiTree.Trees["all"] = tree

	ctx := &bench.TreeContext{
		Context:           context.Background(),
		Log:               zerolog.Nop(),
		Generators:        []bench.ChangesetGenerator{genBank, genAcc},
		OneTree:           "all",
		MetricLeafCount:   prometheus.NewCounter(prometheus.CounterOpts{Name: "test_leaf_count"}),
		MetricTreeSize:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_tree_size"}),
		MetricsTreeHeight: prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_tree_height"}),
	}
	require.NoError(t, ctx.Build(multiTree))

	require.Equal(t, int64(5), tree.Version())
	require.Equal(t, countSets(t, genBank)+countSets(t, genAcc), tree.Size())
}

func Test_Build_VersionLimit(t *testing.T) {
	gen := fileTestGenerator(9, "bank")
	gen.DeleteFraction = 0

	tree := statetree.NewTree(nil)
	multiTree := bench.NewMultiTree()
	multiTree.Trees["bank"] = tree

	ctx := &bench.TreeContext{
		Context:      context.Background(),
		Log:          zerolog.Nop(),
		Generators:   []bench.ChangesetGenerator{gen},
		VersionLimit: 2,
	}
	require.NoError(t, ctx.Build(multiTree))
	require.Equal(t, int64(2), tree.Version())
}

func Test_Build_DeleteUnsupported(t *testing.T) {
	gen := fileTestGenerator(10, "bank")
	require.Positive(t, gen.DeleteFraction)

	multiTree := bench.NewMultiTree()
	multiTree.Trees["bank"] = statetree.NewTree(nil)

	ctx := &bench.TreeContext{
		Context:    context.Background(),
		Log:        zerolog.Nop(),
		Generators: []bench.ChangesetGenerator{gen},
	}
	err := ctx.Build(multiTree)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot delete")
}

func Test_Build_FromChangesetDir(t *testing.T) {
	dir := t.TempDir()
	gen := fileTestGenerator(13, "bank")
	gen.DeleteFraction = 0
	require.NoError(t, bench.GenerateChangesets(dir, gen))

	tree := statetree.NewTree(nil)
	multiTree := bench.NewMultiTree()
	multiTree.Trees["bank"] = tree

	ctx := &bench.TreeContext{
		Context:      context.Background(),
		Log:          zerolog.Nop(),
		ChangesetDir: dir,
	}
	require.NoError(t, ctx.Build(multiTree))
	require.Equal(t, int64(5), tree.Version())
	require.Equal(t, countSets(t, gen), tree.Size())
}
