package gtrie_test

import (
	"fmt"
	"testing"

	"github.com/gordian-engine/glight/gchain"
	"github.com/gordian-engine/glight/gtrie"
	"github.com/stretchr/testify/require"
)

func kv(k, v string) gchain.KeyValue {
	return gchain.KeyValue{Key: []byte(k), Value: []byte(v)}
}

func del(k string) gchain.KeyValue {
	return gchain.KeyValue{Key: []byte(k)}
}

func TestStorage_empty(t *testing.T) {
	t.Parallel()

	s := gtrie.New()
	require.Equal(t, gtrie.EmptyRoot, s.Root())
	require.Equal(t, gchain.Blake2b256(), s.Root())
	require.Empty(t, s.Pairs())

	root, _ := s.CalcRootIfChanges(nil, nil)
	require.Equal(t, gtrie.EmptyRoot, root)
}

func TestStorage_CalcRootIfChanges_doesNotMutate(t *testing.T) {
	t.Parallel()

	s := gtrie.New()
	root, tx := s.CalcRootIfChanges([]gchain.KeyValue{kv("a", "1")}, nil)
	require.NotEqual(t, gtrie.EmptyRoot, root)
	require.Equal(t, root, tx.Root())

	require.Equal(t, gtrie.EmptyRoot, s.Root())
	_, ok := s.Get([]byte("a"))
	require.False(t, ok)

	s.ApplyChanges(root, tx)
	require.Equal(t, root, s.Root())

	v, ok := s.Get([]byte("a"))
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)
}

func TestStorage_rootIsOrderIndependent(t *testing.T) {
	t.Parallel()

	a := gtrie.New()
	rootA, txA := a.CalcRootIfChanges([]gchain.KeyValue{kv("x", "1"), kv("y", "2"), kv("z", "3")}, nil)
	a.ApplyChanges(rootA, txA)

	b := gtrie.New()
	root1, tx1 := b.CalcRootIfChanges([]gchain.KeyValue{kv("z", "3"), kv("y", "0")}, nil)
	b.ApplyChanges(root1, tx1)
	root2, tx2 := b.CalcRootIfChanges([]gchain.KeyValue{kv("x", "1"), kv("y", "2")}, nil)
	b.ApplyChanges(root2, tx2)

	require.Equal(t, a.Root(), b.Root())
}

func TestStorage_deletion(t *testing.T) {
	t.Parallel()

	s := gtrie.New()
	root, tx := s.CalcRootIfChanges([]gchain.KeyValue{kv("a", "1"), kv("b", "2")}, nil)
	s.ApplyChanges(root, tx)

	root, tx = s.CalcRootIfChanges([]gchain.KeyValue{del("a"), del("b")}, nil)
	require.Equal(t, gtrie.EmptyRoot, root)
	s.ApplyChanges(root, tx)
	require.Empty(t, s.Pairs())

	// Deleting is different from setting an empty value.
	root, _ = s.CalcRootIfChanges([]gchain.KeyValue{{Key: []byte("a"), Value: []byte{}}}, nil)
	require.NotEqual(t, gtrie.EmptyRoot, root)
}

func TestStorage_childTries(t *testing.T) {
	t.Parallel()

	s := gtrie.New()
	child := []gchain.ChildStorageChanges{
		{StorageKey: []byte("c1"), Changes: []gchain.KeyValue{kv("k", "v")}},
	}
	root, tx := s.CalcRootIfChanges([]gchain.KeyValue{kv("main", "m")}, child)
	s.ApplyChanges(root, tx)

	v, ok := s.ChildGet([]byte("c1"), []byte("k"))
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)

	childRoot, ok := s.Get([]byte(gtrie.ChildStoragePrefix + "c1"))
	require.True(t, ok)
	require.Len(t, childRoot, gchain.HashSize)

	require.Equal(t, [][]byte{[]byte("c1")}, s.ChildKeys())
	require.Equal(t, []gchain.KeyValue{kv("k", "v")}, s.ChildPairs([]byte("c1")))

	t.Run("derived keys cannot be written directly", func(t *testing.T) {
		got, _ := s.CalcRootIfChanges(
			[]gchain.KeyValue{kv(gtrie.ChildStoragePrefix+"c1", "forged")}, nil,
		)
		require.Equal(t, s.Root(), got)
	})

	t.Run("emptied child trie removes its root", func(t *testing.T) {
		root, tx := s.CalcRootIfChanges(nil, []gchain.ChildStorageChanges{
			{StorageKey: []byte("c1"), Changes: []gchain.KeyValue{del("k")}},
		})
		s.ApplyChanges(root, tx)

		_, ok := s.Get([]byte(gtrie.ChildStoragePrefix + "c1"))
		require.False(t, ok)
		require.Empty(t, s.ChildKeys())
		require.Equal(t, []gchain.KeyValue{kv("main", "m")}, s.Pairs())
	})
}

func TestStorage_ApplyChanges_misuse(t *testing.T) {
	t.Parallel()

	t.Run("stale transaction", func(t *testing.T) {
		s := gtrie.New()
		r1, tx1 := s.CalcRootIfChanges([]gchain.KeyValue{kv("a", "1")}, nil)
		r2, tx2 := s.CalcRootIfChanges([]gchain.KeyValue{kv("b", "2")}, nil)
		s.ApplyChanges(r2, tx2)

		require.Panics(t, func() { s.ApplyChanges(r1, tx1) })
		require.Panics(t, func() { s.ApplyChanges(r2, tx2) })
	})

	t.Run("root mismatch", func(t *testing.T) {
		s := gtrie.New()
		_, tx := s.CalcRootIfChanges([]gchain.KeyValue{kv("a", "1")}, nil)
		require.Panics(t, func() { s.ApplyChanges(gtrie.EmptyRoot, tx) })
		require.Equal(t, gtrie.EmptyRoot, s.Root())
	})

	t.Run("foreign transaction", func(t *testing.T) {
		s1, s2 := gtrie.New(), gtrie.New()
		r, tx := s1.CalcRootIfChanges([]gchain.KeyValue{kv("a", "1")}, nil)
		require.Panics(t, func() { s2.ApplyChanges(r, tx) })
	})
}

func TestNewFromPairs(t *testing.T) {
	t.Parallel()

	s := gtrie.New()
	main := make([]gchain.KeyValue, 10)
	for i := range main {
		main[i] = kv(fmt.Sprintf("key-%02d", i), fmt.Sprintf("val-%d", i))
	}
	child := []gchain.ChildStorageChanges{
		{StorageKey: []byte("c"), Changes: []gchain.KeyValue{kv("ck", "cv")}},
	}
	root, tx := s.CalcRootIfChanges(main, child)
	s.ApplyChanges(root, tx)

	// Pairs includes the derived child root, which NewFromPairs ignores and recomputes.
	loaded, err := gtrie.NewFromPairs(s.Pairs(), []gchain.ChildStorageChanges{
		{StorageKey: []byte("c"), Changes: s.ChildPairs([]byte("c"))},
	})
	require.NoError(t, err)
	require.Equal(t, s.Root(), loaded.Root())

	_, err = gtrie.NewFromPairs([]gchain.KeyValue{del("x")}, nil)
	require.Error(t, err)
}
