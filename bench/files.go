package bench

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	storev1beta1 "cosmossdk.io/api/cosmos/store/v1beta1"
	api "github.com/kocubinski/costor-api"
	"google.golang.org/protobuf/encoding/protodelim"
)

func changesetDataFilename(dataDir string, version int64) string {
	return filepath.Join(dataDir, fmt.Sprintf("%09d.delimpb", version))
}

func changesetInfoFilename(dataDir string) string {
	return filepath.Join(dataDir, "changeset_info.json")
}

type changesetInfo struct {
	Versions   int64                `json:"versions"`
	StoreNames []string             `json:"store_names"`
	Generators []ChangesetGenerator `json:"generators"`
}

func writeChangesetInfo(dataDir string, info changesetInfo) error {
	filename := changesetInfoFilename(dataDir)
	bz, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("error marshaling info file: %w", err)
	}
	return os.WriteFile(filename, bz, 0o644)
}

func readChangesetInfo(dataDir string) (changesetInfo, error) {
	filename := changesetInfoFilename(dataDir)
	bz, err := os.ReadFile(filename)
	if err != nil {
		return changesetInfo{}, fmt.Errorf("error reading info file: %w", err)
	}
	var info changesetInfo
	err = json.Unmarshal(bz, &info)
	if err != nil {
		return changesetInfo{}, fmt.Errorf("error unmarshaling info file: %w", err)
	}
	return info, nil
}

// GenerateChangesets runs the generators to completion and writes one
// length-delimited protobuf file of StoreKVPair records per version, plus a
// changeset_info.json describing the run so the files can be replayed later
// without knowing the generator parameters.
func GenerateChangesets(dataDir string, gens ...ChangesetGenerator) error {
	if len(gens) == 0 {
		return fmt.Errorf("no generators provided")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	itr, err := NewChangesetIterators(gens)
	if err != nil {
		return err
	}
	info := changesetInfo{Generators: gens}
	for _, gen := range gens {
		info.StoreNames = append(info.StoreNames, gen.StoreKey)
	}
	for ; itr.Valid(); err = itr.Next() {
		if err != nil {
			return err
		}
		if err := writeChangesetFile(dataDir, itr); err != nil {
			return err
		}
		info.Versions = itr.Version()
	}
	return writeChangesetInfo(dataDir, info)
}

func writeChangesetFile(dataDir string, itr ChangesetIterator) (err error) {
	f, err := os.Create(changesetDataFilename(dataDir, itr.Version()))
	if err != nil {
		return err
	}
	defer func() {
		cerr := f.Close()
		if err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	nodes := itr.Nodes()
	for ; nodes.Valid(); err = nodes.Next() {
		if err != nil {
			return err
		}
		node := nodes.GetNode()
		pair := &storev1beta1.StoreKVPair{
			StoreKey: node.StoreKey,
			Key:      node.Key,
			Value:    node.Value,
			Delete:   node.Delete,
		}
		if _, err := protodelim.MarshalTo(w, pair); err != nil {
			return fmt.Errorf("error writing changeset file for version %d: %w", itr.Version(), err)
		}
	}
	return w.Flush()
}

// NewFileChangesetIterator replays changeset files previously written by
// GenerateChangesets. Each version's file is loaded eagerly when the iterator
// advances to it.
func NewFileChangesetIterator(dataDir string) (ChangesetIterator, error) {
	info, err := readChangesetInfo(dataDir)
	if err != nil {
		return nil, err
	}
	if info.Versions < 1 {
		return nil, fmt.Errorf("changeset dir %s contains no versions", dataDir)
	}
	itr := &fileChangesetIterator{
		dataDir:  dataDir,
		version:  1,
		versions: info.Versions,
	}
	if err := itr.readVersion(); err != nil {
		return nil, err
	}
	return itr, nil
}

type fileChangesetIterator struct {
	dataDir  string
	version  int64
	versions int64
	nodes    *sliceNodeIterator
}

func (itr *fileChangesetIterator) readVersion() (err error) {
	f, err := os.Open(changesetDataFilename(itr.dataDir, itr.version))
	if err != nil {
		return fmt.Errorf("error opening changeset file for version %d: %w", itr.version, err)
	}
	defer func() {
		cerr := f.Close()
		if err == nil {
			err = cerr
		}
	}()
	reader := bufio.NewReader(f)
	var nodes []*api.Node
	for {
		pair := &storev1beta1.StoreKVPair{}
		err := protodelim.UnmarshalFrom(reader, pair)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("error reading changeset file for version %d: %w", itr.version, err)
		}
		nodes = append(nodes, &api.Node{
			StoreKey: pair.StoreKey,
			Block:    itr.version,
			Key:      pair.Key,
			Value:    pair.Value,
			Delete:   pair.Delete,
		})
	}
	itr.nodes = &sliceNodeIterator{nodes: nodes}
	return nil
}

func (itr *fileChangesetIterator) Next() error {
	if itr.version >= itr.versions {
		itr.nodes = nil
		return nil
	}
	itr.version++
	return itr.readVersion()
}

func (itr *fileChangesetIterator) Valid() bool {
	return itr.nodes != nil
}

func (itr *fileChangesetIterator) Nodes() api.NodeIterator {
	return itr.nodes
}

func (itr *fileChangesetIterator) Version() int64 {
	return itr.version
}

type sliceNodeIterator struct {
	nodes []*api.Node
	idx   int
}

func (itr *sliceNodeIterator) Valid() bool {
	return itr.idx < len(itr.nodes)
}

func (itr *sliceNodeIterator) Next() error {
	itr.idx++
	return nil
}

func (itr *sliceNodeIterator) GetNode() *api.Node {
	return itr.nodes[itr.idx]
}
