package bench

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kocubinski/costor-api/compact"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// TreeContext carries everything a build run needs: the changeset source,
// metrics, and logging sinks. Exactly one of ChangesetDir, LogDir or
// Generators selects the source.
type TreeContext struct {
	context.Context

	Log               zerolog.Logger
	IndexDir          string
	LogDir            string
	ChangesetDir      string
	Generators        []ChangesetGenerator
	VersionLimit      int64
	MetricLeafCount   prometheus.Counter
	MetricTreeSize    prometheus.Gauge
	MetricsTreeHeight prometheus.Gauge
	HashLog           *os.File

	// hack to use a single tree instead of per storekey
	OneTree string
}

func (c *TreeContext) changesetIterator() (ChangesetIterator, error) {
	switch {
	case c.ChangesetDir != "":
		return NewFileChangesetIterator(c.ChangesetDir)
	case c.LogDir != "":
		itr, err := compact.NewMultiChangesetIterator(c.LogDir)
		if err == nil {
			return itr, nil
		}
		// not a multi-store layout; treat the directory name as the store key
		path := strings.Split(c.LogDir, "/")
		return compact.NewChangesetIterator(c.LogDir, path[len(path)-1])
	default:
		return NewChangesetIterators(c.Generators)
	}
}

// Build streams every changeset version into the multi-tree, committing after
// each version. Every 1000th version it writes a root hash line to HashLog so
// runs against different backends can be diffed.
func (c *TreeContext) Build(multiTree MultiTree) error {
	cnt := 1
	since := time.Now()
	itr, err := c.changesetIterator()
	if err != nil {
		return err
	}

	for ; itr.Valid(); err = itr.Next() {
		if err != nil {
			return err
		}
		if c.VersionLimit > 0 && itr.Version() > c.VersionLimit {
			break
		}
		changeset := itr.Nodes()

		var (
			storekey string
			key      []byte
		)
		for ; changeset.Valid(); err = changeset.Next() {
			if err != nil {
				return err
			}
			cnt++
			if cnt%100_000 == 0 {
				c.Log.Info().Msgf("processed %s leaves in %s; %s leaves/s; version=%d",
					humanize.Comma(int64(cnt)),
					time.Since(since),
					humanize.Comma(int64(100_000/time.Since(since).Seconds())),
					itr.Version())
				since = time.Now()
			}
			if c.MetricLeafCount != nil {
				c.MetricLeafCount.Inc()
			}

			n := changeset.GetNode()
			if n.Block != itr.Version() {
				return fmt.Errorf("expected block %d; got %d", itr.Version(), n.Block)
			}
			if c.OneTree != "" {
				storekey = c.OneTree
				var keyBz bytes.Buffer
				keyBz.Write([]byte(n.StoreKey))
				keyBz.Write(n.Key)
				key = keyBz.Bytes()
			} else {
				storekey = n.StoreKey
				key = n.Key
			}
			storeTree, err := multiTree.GetTree(storekey)
			if err != nil {
				return err
			}
			if !n.Delete {
				if err := storeTree.Set(key, n.Value); err != nil {
					return err
				}
			} else {
				remover, ok := storeTree.(Remover)
				if !ok {
					return fmt.Errorf("store %s cannot delete key %x; use a delete-free generator", storekey, n.Key)
				}
				_, removed, err := remover.Remove(key)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("failed to remove key %x; version %d", n.Key, n.Block)
				}
			}
		}

		var (
			hash    []byte
			version int64
		)
		if c.OneTree == "" {
			hash, err = multiTree.SaveVersions()
			if err != nil {
				return err
			}
			version = itr.Version()
		} else {
			storeTree, err := multiTree.GetTree(storekey)
			if err != nil {
				return err
			}
			hash, version, err = storeTree.SaveVersion()
			if err != nil {
				return err
			}
		}

		if itr.Version()%1000 == 0 {
			if c.HashLog != nil {
				if _, err := fmt.Fprintf(c.HashLog, "%d|%x\n", version, hash); err != nil {
					return err
				}
			}
			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)
			c.Log.Debug().
				Int64("version", version).
				Str("mem_allocs", humanize.Bytes(memStats.Alloc)).
				Str("mem_sys", humanize.Bytes(memStats.Sys)).
				Str("mem_num_gc", humanize.Comma(int64(memStats.NumGC))).
				Msg("committed version")
		}
		c.updateTreeMetrics(multiTree)
	}

	return nil
}

func (c *TreeContext) updateTreeMetrics(multiTree MultiTree) {
	if c.MetricTreeSize == nil && c.MetricsTreeHeight == nil {
		return
	}
	naive, ok := multiTree.(*NaiveMultiTree)
	if !ok {
		return
	}
	var (
		size   int64
		height int8
	)
	for _, tree := range naive.Trees {
		size += tree.Size()
		if h := tree.Height(); h > height {
			height = h
		}
	}
	if c.MetricTreeSize != nil {
		c.MetricTreeSize.Set(float64(size))
	}
	if c.MetricsTreeHeight != nil {
		c.MetricsTreeHeight.Set(float64(height))
	}
}
