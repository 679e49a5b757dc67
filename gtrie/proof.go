package gtrie

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/ChainSafe/gossamer/pkg/scale"
	"github.com/gordian-engine/glight/gchain"
	"github.com/gordian-engine/glight/gmerkle"
)

const (
	leafPrefix   = 0x00
	branchPrefix = 0x01
)

// EmptyRoot is the root of an image with no pairs.
var EmptyRoot = gchain.Blake2b256()

// scheme is the binary tree scheme over sorted key/value pairs.
type scheme struct{}

func (scheme) BranchFactor() uint8 { return 2 }

func (scheme) LeafID(_ int, kv gchain.KeyValue) (gchain.Hash, error) {
	k, err := scale.Marshal(kv.Key)
	if err != nil {
		return gchain.Hash{}, err
	}
	v, err := scale.Marshal(kv.Value)
	if err != nil {
		return gchain.Hash{}, err
	}
	return gchain.Blake2b256([]byte{leafPrefix}, k, v), nil
}

func (scheme) BranchID(_, _ int, childIDs []gchain.Hash) (gchain.Hash, error) {
	parts := make([][]byte, 0, len(childIDs)+1)
	parts = append(parts, []byte{branchPrefix})
	for i := range childIDs {
		parts = append(parts, childIDs[i][:])
	}
	return gchain.Blake2b256(parts...), nil
}

type rootResult struct {
	keys []string
	tree *gmerkle.MerkleTree[gchain.Hash]
	root gchain.Hash
}

func rootOf(m map[string][]byte) rootResult {
	if len(m) == 0 {
		return rootResult{root: EmptyRoot}
	}

	keys := slices.Sorted(maps.Keys(m))
	leaves := make([]gchain.KeyValue, len(keys))
	for i, k := range keys {
		leaves[i] = gchain.KeyValue{Key: []byte(k), Value: m[k]}
	}

	tree, err := gmerkle.NewMerkleTree[gchain.KeyValue, gchain.Hash](scheme{}, leaves)
	if err != nil {
		panic(fmt.Errorf("BUG: failed to build storage tree: %w", err))
	}

	return rootResult{keys: keys, tree: tree, root: tree.RootID()}
}

// proofNode is the SCALE layout of one proof node:
// the proven pair and the hashing steps up to the root.
type proofNode struct {
	Key   []byte
	Value []byte
	Steps []proofStep
}

type proofStep struct {
	Position uint32
	Siblings []gchain.Hash
}

// Prove returns a proof of the current values of keys in main storage,
// one node per key, in the order given.
// It returns an error wrapping [ErrKeyNotFound] for an absent key.
func (s *Storage) Prove(keys [][]byte) (gchain.StorageProof, error) {
	proof := make(gchain.StorageProof, 0, len(keys))
	for _, key := range keys {
		idx, found := sort.Find(len(s.cur.keys), func(i int) int {
			return bytes.Compare(key, []byte(s.cur.keys[i]))
		})
		if !found {
			return nil, fmt.Errorf("cannot prove key %x: %w", key, ErrKeyNotFound)
		}

		p, err := s.cur.tree.Proof(idx)
		if err != nil {
			return nil, fmt.Errorf("failed to build proof for key %x: %w", key, err)
		}

		node := proofNode{
			Key:   bytes.Clone(key),
			Value: s.cur.main[s.cur.keys[idx]],
			Steps: make([]proofStep, len(p.Steps)),
		}
		for i, st := range p.Steps {
			node.Steps[i] = proofStep{
				Position: uint32(st.Position),
				Siblings: st.Siblings,
			}
		}

		enc, err := scale.Marshal(node)
		if err != nil {
			return nil, fmt.Errorf("failed to encode proof node for key %x: %w", key, err)
		}
		proof = append(proof, enc)
	}
	return proof, nil
}

// VerifyProof checks that every item is included in the image committed to by root,
// using the nodes in proof.
// Nodes for keys not named in items are decoded but otherwise ignored.
func VerifyProof(root gchain.Hash, proof gchain.StorageProof, items []gchain.KeyValue) error {
	nodes := make(map[string]proofNode, len(proof))
	for i, enc := range proof {
		var n proofNode
		if err := scale.Unmarshal(enc, &n); err != nil {
			return ProofDecodeError{Index: i, Err: err}
		}
		nodes[string(n.Key)] = n
	}

	for _, item := range items {
		n, ok := nodes[string(item.Key)]
		if !ok {
			return ProofMissingKeyError{Key: item.Key}
		}
		if !bytes.Equal(n.Value, item.Value) {
			return ProofValueMismatchError{Key: item.Key, Want: item.Value, Got: n.Value}
		}

		p := gmerkle.Proof[gchain.Hash]{Steps: make([]gmerkle.ProofStep[gchain.Hash], len(n.Steps))}
		for i, st := range n.Steps {
			p.Steps[i] = gmerkle.ProofStep[gchain.Hash]{
				Position: int(st.Position),
				Siblings: st.Siblings,
			}
		}

		err := gmerkle.VerifyProof[gchain.KeyValue, gchain.Hash](
			scheme{}, root, gchain.KeyValue{Key: n.Key, Value: n.Value}, p,
		)
		if err != nil {
			if errors.Is(err, gmerkle.ErrRootMismatch) {
				return ProofRootMismatchError{Key: item.Key}
			}
			return fmt.Errorf("invalid proof for key %x: %w", item.Key, err)
		}
	}
	return nil
}
