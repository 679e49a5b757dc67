// Package gtrie is the trie-backed storage image that blocks are applied to.
//
// The image is a sorted key/value set committed to by a binary Merkle tree
// built with [gmerkle]. Child tries are committed to independently,
// and each child root is written into main storage
// under [ChildStoragePrefix] followed by the child's storage key.
package gtrie

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gordian-engine/glight/gchain"
	"github.com/gordian-engine/glight/gmerkle"
)

// ChildStoragePrefix prefixes the main-storage keys holding child trie roots.
// Keys under this prefix are derived and cannot be written directly.
const ChildStoragePrefix = ":child_storage:default:"

// Storage is an in-memory storage image.
//
// Changes are applied in two phases:
// [*Storage.CalcRootIfChanges] computes the resulting root without mutating anything,
// and [*Storage.ApplyChanges] commits the computed [*Transaction].
//
// Storage is not safe for concurrent use.
type Storage struct {
	cur *image

	// Incremented on every commit,
	// so that stale transactions can be detected.
	gen uint64
}

// Transaction is a computed but uncommitted set of changes.
type Transaction struct {
	owner *Storage
	base  uint64

	next *image
}

// Root returns the root that committing tx would produce.
func (tx *Transaction) Root() gchain.Hash {
	return tx.next.root
}

type image struct {
	main  map[string][]byte
	child map[string]map[string][]byte

	// Sorted main keys and the tree over them.
	// The tree is nil when main is empty.
	keys []string
	tree *gmerkle.MerkleTree[gchain.Hash]

	root gchain.Hash
}

// New returns an empty Storage.
func New() *Storage {
	return &Storage{cur: newImage(map[string][]byte{}, map[string]map[string][]byte{})}
}

// NewFromPairs returns a Storage holding the given main and child pairs.
//
// Main keys under [ChildStoragePrefix] are ignored
// and derived again from the child pairs.
func NewFromPairs(main []gchain.KeyValue, child []gchain.ChildStorageChanges) (*Storage, error) {
	m := make(map[string][]byte, len(main))
	for _, kv := range main {
		if kv.Value == nil {
			return nil, fmt.Errorf("main pair %x has no value", kv.Key)
		}
		if strings.HasPrefix(string(kv.Key), ChildStoragePrefix) {
			continue
		}
		m[string(kv.Key)] = bytes.Clone(kv.Value)
	}

	c := make(map[string]map[string][]byte, len(child))
	for _, cc := range child {
		cm := c[string(cc.StorageKey)]
		if cm == nil {
			cm = make(map[string][]byte, len(cc.Changes))
			c[string(cc.StorageKey)] = cm
		}
		for _, kv := range cc.Changes {
			if kv.Value == nil {
				return nil, fmt.Errorf("child %x pair %x has no value", cc.StorageKey, kv.Key)
			}
			cm[string(kv.Key)] = bytes.Clone(kv.Value)
		}
	}

	for k, cm := range c {
		if len(cm) == 0 {
			delete(c, k)
			continue
		}
		r := rootOf(cm)
		m[ChildStoragePrefix+k] = r.root[:]
	}

	return &Storage{cur: newImage(m, c)}, nil
}

// Root returns the current root of main storage.
func (s *Storage) Root() gchain.Hash {
	return s.cur.root
}

// Get returns the value of key in main storage.
func (s *Storage) Get(key []byte) ([]byte, bool) {
	v, ok := s.cur.main[string(key)]
	if !ok {
		return nil, false
	}
	return bytes.Clone(v), true
}

// ChildGet returns the value of key in the child trie identified by storageKey.
func (s *Storage) ChildGet(storageKey, key []byte) ([]byte, bool) {
	v, ok := s.cur.child[string(storageKey)][string(key)]
	if !ok {
		return nil, false
	}
	return bytes.Clone(v), true
}

// Pairs returns every main storage pair, sorted by key.
// The result includes the derived child root entries.
func (s *Storage) Pairs() []gchain.KeyValue {
	return sortedPairs(s.cur.main)
}

// ChildKeys returns the storage keys of all non-empty child tries, sorted.
func (s *Storage) ChildKeys() [][]byte {
	keys := slices.Sorted(maps.Keys(s.cur.child))
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = []byte(k)
	}
	return out
}

// ChildPairs returns every pair of the child trie identified by storageKey, sorted by key.
func (s *Storage) ChildPairs(storageKey []byte) []gchain.KeyValue {
	return sortedPairs(s.cur.child[string(storageKey)])
}

// CalcRootIfChanges returns the root that results from applying
// the given changes to the current image,
// and the transaction that [*Storage.ApplyChanges] can later commit.
//
// Main changes are applied in order, then child changes;
// for a repeated key the last change wins.
// The receiver is not modified.
func (s *Storage) CalcRootIfChanges(
	main []gchain.KeyValue, child []gchain.ChildStorageChanges,
) (gchain.Hash, *Transaction) {
	nextMain := maps.Clone(s.cur.main)
	nextChild := maps.Clone(s.cur.child)

	applyKVs(nextMain, main, true)

	// Child maps are shared with the current image until modified.
	touched := map[string]bool{}
	for _, cc := range child {
		k := string(cc.StorageKey)
		if !touched[k] {
			cm := maps.Clone(nextChild[k])
			if cm == nil {
				cm = map[string][]byte{}
			}
			nextChild[k] = cm
			touched[k] = true
		}
		applyKVs(nextChild[k], cc.Changes, false)
	}

	for k := range touched {
		cm := nextChild[k]
		if len(cm) == 0 {
			delete(nextChild, k)
			delete(nextMain, ChildStoragePrefix+k)
			continue
		}
		r := rootOf(cm)
		nextMain[ChildStoragePrefix+k] = r.root[:]
	}

	next := newImage(nextMain, nextChild)
	return next.root, &Transaction{
		owner: s,
		base:  s.gen,
		next:  next,
	}
}

// ApplyChanges commits tx, which must have been returned by
// the most recent call to CalcRootIfChanges on s with no commit since,
// and root must equal the transaction's root.
// Any other use is a bug and causes a panic.
func (s *Storage) ApplyChanges(root gchain.Hash, tx *Transaction) {
	if tx == nil {
		panic("BUG: ApplyChanges called with nil transaction")
	}
	if tx.owner != s {
		panic("BUG: ApplyChanges called with a transaction from a different storage")
	}
	if tx.base != s.gen {
		panic(fmt.Errorf(
			"BUG: ApplyChanges called with stale transaction (computed at generation %d, now %d)",
			tx.base, s.gen,
		))
	}
	if root != tx.next.root {
		panic(fmt.Errorf(
			"BUG: ApplyChanges root %s does not match transaction root %s",
			root, tx.next.root,
		))
	}

	s.cur = tx.next
	s.gen++
}

func applyKVs(dst map[string][]byte, kvs []gchain.KeyValue, skipDerived bool) {
	for _, kv := range kvs {
		k := string(kv.Key)
		if skipDerived && strings.HasPrefix(k, ChildStoragePrefix) {
			continue
		}
		if kv.Value == nil {
			delete(dst, k)
			continue
		}
		dst[k] = bytes.Clone(kv.Value)
	}
}

func newImage(main map[string][]byte, child map[string]map[string][]byte) *image {
	r := rootOf(main)
	return &image{
		main:  main,
		child: child,
		keys:  r.keys,
		tree:  r.tree,
		root:  r.root,
	}
}

func sortedPairs(m map[string][]byte) []gchain.KeyValue {
	keys := slices.Sorted(maps.Keys(m))
	out := make([]gchain.KeyValue, len(keys))
	for i, k := range keys {
		out[i] = gchain.KeyValue{Key: []byte(k), Value: bytes.Clone(m[k])}
	}
	return out
}
