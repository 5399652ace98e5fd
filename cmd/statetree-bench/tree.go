package main

import (
	"context"
	"fmt"
	"os"

	clog "cosmossdk.io/log"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/cosmos/iavl"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/spf13/cobra"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/aerius-labs/statetree"
	"github.com/aerius-labs/statetree/bench"
	"github.com/aerius-labs/statetree/bench/util"
)

type treeContext struct {
	bench.TreeContext
	legacy      bool
	levelDbName string
	seed        int64
	oneTree     string
}

// legacyTree adapts the iavl mutable tree to the harness contract.
type legacyTree struct {
	*iavl.MutableTree
}

func (t *legacyTree) Set(key, value []byte) error {
	_, err := t.MutableTree.Set(key, value)
	return err
}

func treeCommand(c context.Context) *cobra.Command {
	ctx := &treeContext{}
	ctx.Context = c
	ctx.Log = log
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "rebuild the tree from changesets",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx.IndexDir = cmd.Flag("index-dir").Value.String()
			if err := os.MkdirAll(ctx.IndexDir, 0o755); err != nil {
				return err
			}

			hashLog, err := os.Create(fmt.Sprintf("%s/statetree-hash.log", ctx.IndexDir))
			if err != nil {
				return err
			}
			defer hashLog.Close()
			ctx.HashLog = hashLog

			gens := []bench.ChangesetGenerator{
				bench.BankLikeGenerator(ctx.seed, 10_000_000),
				bench.LockupLikeGenerator(ctx.seed, 10_000_000),
				bench.StakingLikeGenerator(ctx.seed, 10_000_000),
			}
			if !ctx.legacy {
				// a shadowing tree keeps stale entries instead of deleting them
				for i := range gens {
					gens[i].DeleteFraction = 0
				}
			}
			if ctx.ChangesetDir == "" && ctx.LogDir == "" {
				ctx.Generators = gens
			}

			storeKeys := make([]string, len(gens))
			for i, gen := range gens {
				storeKeys[i] = gen.StoreKey
			}
			if ctx.oneTree != "" {
				ctx.OneTree = ctx.oneTree
				storeKeys = []string{ctx.oneTree}
			}

			labels := map[string]string{}
			multiTree := bench.NewMultiTree()
			if ctx.legacy {
				labels["backend"] = "leveldb"
				labels["tree"] = "iavl"
				version, err := util.LoadVersion(ctx.IndexDir)
				if err != nil {
					return err
				}
				if version > 0 {
					log.Warn().Msgf("index dir already contains a build at version %d", version)
				}
				levelDb, err := dbm.NewGoLevelDBWithOpts(ctx.levelDbName, ctx.IndexDir, &opt.Options{})
				if err != nil {
					return err
				}
				for _, storeKey := range storeKeys {
					prefix := fmt.Sprintf("s/k:%s/", storeKey)
					prefixDb := dbm.NewPrefixDB(levelDb, []byte(prefix))
					multiTree.Trees[storeKey] = &legacyTree{
						MutableTree: iavl.NewMutableTree(prefixDb, 1_000_000, true, clog.NewNopLogger()),
					}
				}
			} else {
				labels["backend"] = "memory"
				labels["tree"] = "statetree"
				treeLog := clog.NewLogger(os.Stderr)
				for _, storeKey := range storeKeys {
					multiTree.Trees[storeKey] = statetree.NewTree(treeLog)
				}
			}

			ctx.MetricLeafCount = promauto.NewCounter(prometheus.CounterOpts{
				Name:        "statetree_index_tree_leaf_count",
				Help:        "number of leaf nodes processed into the tree",
				ConstLabels: labels,
			})
			ctx.MetricTreeSize = promauto.NewGauge(prometheus.GaugeOpts{
				Name:        "statetree_tree_size",
				ConstLabels: labels,
			})
			ctx.MetricsTreeHeight = promauto.NewGauge(prometheus.GaugeOpts{
				Name:        "statetree_tree_height",
				ConstLabels: labels,
			})

			if err := ctx.Build(multiTree); err != nil {
				return err
			}

			if ctx.legacy && ctx.ChangesetDir == "" && ctx.LogDir == "" {
				built := gens[0].Versions
				if ctx.VersionLimit > 0 && ctx.VersionLimit < built {
					built = ctx.VersionLimit
				}
				if err := util.SaveVersion(ctx.IndexDir, built); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&ctx.legacy, "legacy", false, "use the legacy iavl tree backed by leveldb")
	cmd.Flags().StringVar(&ctx.levelDbName, "leveldb-name", "legacy", "name to give the new leveldb instance")
	cmd.Flags().StringVar(&ctx.LogDir, "log-dir", "", "directory containing the compressed changeset logs")
	cmd.Flags().StringVar(&ctx.ChangesetDir, "changeset-dir", "", "directory containing generated changeset files")
	cmd.Flags().Int64Var(&ctx.VersionLimit, "versions", 0, "number of versions to apply; 0 applies all of them")
	cmd.Flags().Int64Var(&ctx.seed, "seed", 1234, "seed for the data generators")
	cmd.Flags().StringVar(&ctx.oneTree, "one-tree", "", "write all stores into a single tree with this store key")

	return cmd
}
