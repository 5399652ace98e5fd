package bench

import (
	"bytes"
	"fmt"
	"math/rand"

	api "github.com/kocubinski/costor-api"
	"github.com/tidwall/btree"
)

// ChangesetIterator yields one version of store updates at a time.
type ChangesetIterator interface {
	Next() error
	Valid() bool
	Nodes() api.NodeIterator
	Version() int64
}

// ChangesetGenerator deterministically generates create, update and delete
// operations against one store, trending the live key count from InitialSize
// to exactly FinalSize over Versions versions.
type ChangesetGenerator struct {
	StoreKey         string
	Seed             int64
	KeyMean          int
	KeyStdDev        int
	ValueMean        int
	ValueStdDev      int
	InitialSize      int
	FinalSize        int
	Versions         int64
	ChangePerVersion int
	DeleteFraction   float64
}

func (c ChangesetGenerator) Iterator() (ChangesetIterator, error) {
	if c.StoreKey == "" {
		return nil, fmt.Errorf("store key is required")
	}
	if c.Versions < 1 {
		return nil, fmt.Errorf("versions must be at least 1")
	}
	if c.InitialSize < 1 {
		return nil, fmt.Errorf("initial size must be at least 1")
	}
	if c.FinalSize < c.InitialSize {
		return nil, fmt.Errorf("final size must be greater than initial size")
	}
	if c.Versions == 1 && c.FinalSize != c.InitialSize {
		return nil, fmt.Errorf("a single version cannot grow from %d to %d keys", c.InitialSize, c.FinalSize)
	}
	if c.DeleteFraction < 0 || c.DeleteFraction >= 1 {
		return nil, fmt.Errorf("delete fraction must be in [0, 1)")
	}

	itr := &changesetItr{
		gen:  c,
		rand: rand.New(rand.NewSource(c.Seed)),
		existingKeys: btree.NewBTreeG[[]byte](func(a, b []byte) bool {
			return bytes.Compare(a, b) < 0
		}),
	}
	if c.Versions > 1 {
		itr.createsPerVersion = float64(c.FinalSize-c.InitialSize) / float64(c.Versions-1)
	}
	err := itr.Next()
	return itr, err
}

const (
	opDelete = -1
	opUpdate = 0
	opCreate = 1
)

type changesetItr struct {
	version           int64
	rand              *rand.Rand
	gen               ChangesetGenerator
	existingKeys      *btree.BTreeG[[]byte]
	createsPerVersion float64
	createAccumulator float64
	nodes             *versionNodeItr
}

func (itr *changesetItr) Next() error {
	if itr.version == itr.gen.Versions {
		itr.nodes = nil
		return nil
	}
	// keys created in the previous version become visible to updates and
	// deletes now
	if itr.nodes != nil {
		for _, key := range itr.nodes.createdKeys {
			itr.existingKeys.Set(key)
		}
	}
	itr.nodes = itr.nextVersion()
	return nil
}

func (itr *changesetItr) Valid() bool { return itr.nodes != nil }

func (itr *changesetItr) Nodes() api.NodeIterator { return itr.nodes }

func (itr *changesetItr) Version() int64 { return itr.version }

func (itr *changesetItr) nextVersion() *versionNodeItr {
	itr.version++
	nodeItr := &versionNodeItr{itr: itr}

	var creates, updates, deletes int
	if itr.version == 1 {
		creates = itr.gen.InitialSize
	} else {
		live := itr.existingKeys.Len()
		deletes = int(itr.gen.DeleteFraction * float64(itr.gen.ChangePerVersion))
		if deletes > live {
			deletes = live
		}
		updates = itr.gen.ChangePerVersion - deletes
		if remaining := live - deletes; updates > remaining {
			updates = remaining
		}
		if itr.version == itr.gen.Versions {
			// land exactly on the final size
			creates = itr.gen.FinalSize - (live - deletes)
		} else {
			itr.createAccumulator += itr.createsPerVersion
			clamped := int(itr.createAccumulator)
			creates = clamped + deletes
			itr.createAccumulator -= float64(clamped)
		}
		if creates < 0 {
			creates = 0
		}
	}

	for i := 0; i < deletes; i++ {
		nodeItr.ops = append(nodeItr.ops, opDelete)
	}
	for i := 0; i < updates; i++ {
		nodeItr.ops = append(nodeItr.ops, opUpdate)
	}
	for i := 0; i < creates; i++ {
		nodeItr.ops = append(nodeItr.ops, opCreate)
	}
	itr.rand.Shuffle(len(nodeItr.ops), func(i, j int) {
		nodeItr.ops[i], nodeItr.ops[j] = nodeItr.ops[j], nodeItr.ops[i]
	})
	_ = nodeItr.Next()
	return nodeItr
}

func (itr *changesetItr) genBytes(mean, stdDev int) []byte {
	length := int(itr.rand.NormFloat64()*float64(stdDev) + float64(mean))
	// Large std devs put part of the length distribution below zero.
	// Resampling closer to the mean keeps lengths realistic without piling
	// them up at 1.
	if length < 1 {
		length = int(itr.rand.NormFloat64()*float64(mean/3) + float64(mean))
		if length < 1 {
			length = 1
		}
	}
	bz := make([]byte, length)
	itr.rand.Read(bz)
	return bz
}

// versionNodeItr yields the shuffled operations of a single version. State
// mutations happen as operations are emitted, so an iterator must be drained
// before advancing to the next version.
type versionNodeItr struct {
	itr         *changesetItr
	ops         []int8
	createdKeys [][]byte
	node        *api.Node
}

func (itr *versionNodeItr) Next() error {
	if len(itr.ops) == 0 {
		itr.node = nil
		return nil
	}
	itr.node = itr.genNode(itr.ops[0])
	itr.ops = itr.ops[1:]
	return nil
}

func (itr *versionNodeItr) Valid() bool { return itr.node != nil }

func (itr *versionNodeItr) GetNode() *api.Node { return itr.node }

func (itr *versionNodeItr) genNode(op int8) *api.Node {
	gen := itr.itr
	switch op {
	case opDelete:
		i := gen.rand.Intn(gen.existingKeys.Len())
		key, _ := gen.existingKeys.GetAt(i)
		gen.existingKeys.Delete(key)
		return &api.Node{
			StoreKey: gen.gen.StoreKey,
			Block:    gen.version,
			Key:      key,
			Delete:   true,
		}
	case opUpdate:
		i := gen.rand.Intn(gen.existingKeys.Len())
		key, _ := gen.existingKeys.GetAt(i)
		return &api.Node{
			StoreKey: gen.gen.StoreKey,
			Block:    gen.version,
			Key:      key,
			Value:    gen.genBytes(gen.gen.ValueMean, gen.gen.ValueStdDev),
		}
	case opCreate:
		node := &api.Node{
			StoreKey: gen.gen.StoreKey,
			Block:    gen.version,
			Key:      gen.genBytes(gen.gen.KeyMean, gen.gen.KeyStdDev),
			Value:    gen.genBytes(gen.gen.ValueMean, gen.gen.ValueStdDev),
		}
		itr.createdKeys = append(itr.createdKeys, node.Key)
		return node
	default:
		panic(fmt.Sprintf("invalid op %d", op))
	}
}

// NewChangesetIterators merges the generators into one iterator whose
// versions advance in lockstep, interleaving each store's nodes round robin.
func NewChangesetIterators(gens []ChangesetGenerator) (ChangesetIterator, error) {
	if len(gens) == 0 {
		return nil, fmt.Errorf("must provide at least one generator")
	}
	versions := gens[0].Versions
	iterators := make([]ChangesetIterator, len(gens))
	for i, gen := range gens {
		if gen.Versions != versions {
			return nil, fmt.Errorf("all generators must have the same version count, got %d and %d",
				versions, gen.Versions)
		}
		itr, err := gen.Iterator()
		if err != nil {
			return nil, err
		}
		iterators[i] = itr
	}
	if len(iterators) == 1 {
		return iterators[0], nil
	}
	return &multiChangesetItr{
		version:   1,
		iterators: iterators,
		nodes:     newMultiNodeIterator(iterators),
	}, nil
}

type multiChangesetItr struct {
	version   int64
	iterators []ChangesetIterator
	nodes     *multiNodeIterator
}

func (itr *multiChangesetItr) Next() error {
	for _, sub := range itr.iterators {
		if err := sub.Next(); err != nil {
			return err
		}
	}
	if !itr.iterators[0].Valid() {
		itr.nodes = nil
		return nil
	}
	itr.version++
	itr.nodes = newMultiNodeIterator(itr.iterators)
	return nil
}

func (itr *multiChangesetItr) Valid() bool { return itr.nodes != nil }

func (itr *multiChangesetItr) Nodes() api.NodeIterator { return itr.nodes }

func (itr *multiChangesetItr) Version() int64 { return itr.version }

type multiNodeIterator struct {
	iterators []api.NodeIterator
	idx       int
}

func newMultiNodeIterator(subs []ChangesetIterator) *multiNodeIterator {
	nodeItrs := make([]api.NodeIterator, len(subs))
	for i, sub := range subs {
		nodeItrs[i] = sub.Nodes()
	}
	itr := &multiNodeIterator{iterators: nodeItrs, idx: len(nodeItrs) - 1}
	itr.advance()
	return itr
}

// advance moves idx to the next iterator with a node left, or parks at -1
// when all are drained.
func (itr *multiNodeIterator) advance() {
	for i := 0; i < len(itr.iterators); i++ {
		itr.idx = (itr.idx + 1) % len(itr.iterators)
		if itr.iterators[itr.idx].Valid() {
			return
		}
	}
	itr.idx = -1
}

func (itr *multiNodeIterator) Valid() bool { return itr.idx >= 0 }

func (itr *multiNodeIterator) GetNode() *api.Node { return itr.iterators[itr.idx].GetNode() }

func (itr *multiNodeIterator) Next() error {
	if err := itr.iterators[itr.idx].Next(); err != nil {
		return err
	}
	itr.advance()
	return nil
}
