package gstoretest

import (
	"context"
	"testing"

	"github.com/gordian-engine/glight/gchain"
	"github.com/gordian-engine/glight/gstore"
	"github.com/gordian-engine/glight/gtrie"
	"github.com/stretchr/testify/require"
)

type StateStoreFactory func(ctx context.Context, cleanup func(func())) (gstore.StateStore, error)

func TestStateStoreCompliance(t *testing.T, f StateStoreFactory) {
	t.Run("returns ErrStoreUninitialized before first save", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(ctx, t.Cleanup)
		require.NoError(t, err)

		_, _, _, err = s.LoadState(ctx)
		require.ErrorIs(t, err, gstore.ErrStoreUninitialized)

		_, _, err = s.LoadStateRoot(ctx)
		require.ErrorIs(t, err, gstore.ErrStoreUninitialized)
	})

	t.Run("first save may start at any block", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(ctx, t.Cleanup)
		require.NoError(t, err)

		root := gchain.Blake2b256([]byte("root"))
		require.NoError(t, s.SaveStateChanges(ctx, 12, root, gchain.StorageChanges{
			MainStorageChanges: []gchain.KeyValue{
				{Key: []byte("b"), Value: []byte("2")},
				{Key: []byte("a"), Value: []byte("1")},
			},
		}))

		n, gotRoot, pairs, err := s.LoadState(ctx)
		require.NoError(t, err)
		require.Equal(t, gchain.BlockNumber(12), n)
		require.Equal(t, root, gotRoot)
		require.Equal(t, []gstore.StatePair{
			{Key: []byte("a"), Value: []byte("1")},
			{Key: []byte("b"), Value: []byte("2")},
		}, pairs)
	})

	t.Run("pairs are ordered with main storage first", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(ctx, t.Cleanup)
		require.NoError(t, err)

		require.NoError(t, s.SaveStateChanges(ctx, 1, gchain.Hash{1}, gchain.StorageChanges{
			MainStorageChanges: []gchain.KeyValue{
				{Key: []byte("z"), Value: []byte("main")},
			},
			ChildStorageChanges: []gchain.ChildStorageChanges{
				{
					StorageKey: []byte("kid2"),
					Changes:    []gchain.KeyValue{{Key: []byte("a"), Value: []byte("k2a")}},
				},
				{
					StorageKey: []byte("kid1"),
					Changes: []gchain.KeyValue{
						{Key: []byte("y"), Value: []byte("k1y")},
						{Key: []byte("x"), Value: []byte("k1x")},
					},
				},
			},
		}))

		_, _, pairs, err := s.LoadState(ctx)
		require.NoError(t, err)
		require.Equal(t, []gstore.StatePair{
			{Key: []byte("z"), Value: []byte("main")},
			{ChildKey: []byte("kid1"), Key: []byte("x"), Value: []byte("k1x")},
			{ChildKey: []byte("kid1"), Key: []byte("y"), Value: []byte("k1y")},
			{ChildKey: []byte("kid2"), Key: []byte("a"), Value: []byte("k2a")},
		}, pairs)
	})

	t.Run("nil values delete and empty values are kept", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(ctx, t.Cleanup)
		require.NoError(t, err)

		require.NoError(t, s.SaveStateChanges(ctx, 1, gchain.Hash{1}, gchain.StorageChanges{
			MainStorageChanges: []gchain.KeyValue{
				{Key: []byte("gone"), Value: []byte("soon")},
				{Key: []byte("kept"), Value: []byte("here")},
			},
			ChildStorageChanges: []gchain.ChildStorageChanges{
				{
					StorageKey: []byte("kid"),
					Changes:    []gchain.KeyValue{{Key: []byte("only"), Value: []byte("entry")}},
				},
			},
		}))

		require.NoError(t, s.SaveStateChanges(ctx, 2, gchain.Hash{2}, gchain.StorageChanges{
			MainStorageChanges: []gchain.KeyValue{
				{Key: []byte("gone"), Value: nil},
				{Key: []byte("empty"), Value: []byte{}},
				{Key: []byte("never-existed"), Value: nil},
			},
			ChildStorageChanges: []gchain.ChildStorageChanges{
				{
					StorageKey: []byte("kid"),
					Changes:    []gchain.KeyValue{{Key: []byte("only"), Value: nil}},
				},
			},
		}))

		n, root, pairs, err := s.LoadState(ctx)
		require.NoError(t, err)
		require.Equal(t, gchain.BlockNumber(2), n)
		require.Equal(t, gchain.Hash{2}, root)

		require.Len(t, pairs, 2)
		require.Equal(t, "empty", string(pairs[0].Key))
		require.NotNil(t, pairs[0].Value)
		require.Empty(t, pairs[0].Value)
		require.Equal(t, gstore.StatePair{Key: []byte("kept"), Value: []byte("here")}, pairs[1])
	})

	t.Run("later changes to a key win within one block", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(ctx, t.Cleanup)
		require.NoError(t, err)

		require.NoError(t, s.SaveStateChanges(ctx, 1, gchain.Hash{1}, gchain.StorageChanges{
			MainStorageChanges: []gchain.KeyValue{
				{Key: []byte("k"), Value: []byte("first")},
				{Key: []byte("k"), Value: []byte("second")},
				{Key: []byte("d"), Value: []byte("x")},
				{Key: []byte("d"), Value: nil},
			},
		}))

		_, _, pairs, err := s.LoadState(ctx)
		require.NoError(t, err)
		require.Equal(t, []gstore.StatePair{{Key: []byte("k"), Value: []byte("second")}}, pairs)
	})

	t.Run("block number gaps are rejected without changes", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(ctx, t.Cleanup)
		require.NoError(t, err)

		require.NoError(t, s.SaveStateChanges(ctx, 5, gchain.Hash{5}, gchain.StorageChanges{
			MainStorageChanges: []gchain.KeyValue{{Key: []byte("k"), Value: []byte("5")}},
		}))

		bad := gchain.StorageChanges{
			MainStorageChanges: []gchain.KeyValue{{Key: []byte("k"), Value: []byte("bad")}},
		}

		err = s.SaveStateChanges(ctx, 7, gchain.Hash{7}, bad)
		require.ErrorIs(t, err, gstore.BlockNumberGapError{Want: 6, Got: 7})

		err = s.SaveStateChanges(ctx, 5, gchain.Hash{7}, bad)
		require.ErrorIs(t, err, gstore.BlockNumberGapError{Want: 6, Got: 5})

		n, root, pairs, err := s.LoadState(ctx)
		require.NoError(t, err)
		require.Equal(t, gchain.BlockNumber(5), n)
		require.Equal(t, gchain.Hash{5}, root)
		require.Equal(t, []gstore.StatePair{{Key: []byte("k"), Value: []byte("5")}}, pairs)

		require.NoError(t, s.SaveStateChanges(ctx, 6, gchain.Hash{6}, bad))

		n, root, err = s.LoadStateRoot(ctx)
		require.NoError(t, err)
		require.Equal(t, gchain.BlockNumber(6), n)
		require.Equal(t, gchain.Hash{6}, root)
	})

	t.Run("saved data is independent of original", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(ctx, t.Cleanup)
		require.NoError(t, err)

		key := []byte("key")
		val := []byte("hello")
		require.NoError(t, s.SaveStateChanges(ctx, 1, gchain.Hash{1}, gchain.StorageChanges{
			MainStorageChanges: []gchain.KeyValue{{Key: key, Value: val}},
		}))
		key[0] = 'm'
		val[0] = 'j'

		_, _, pairs, err := s.LoadState(ctx)
		require.NoError(t, err)
		require.Equal(t, []gstore.StatePair{{Key: []byte("key"), Value: []byte("hello")}}, pairs)

		// And the loaded pairs are independent of the store.
		pairs[0].Value[0] = 'y'
		_, _, pairs, err = s.LoadState(ctx)
		require.NoError(t, err)
		require.Equal(t, []byte("hello"), pairs[0].Value)
	})

	t.Run("empty child storage key is rejected", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(ctx, t.Cleanup)
		require.NoError(t, err)

		err = s.SaveStateChanges(ctx, 1, gchain.Hash{1}, gchain.StorageChanges{
			ChildStorageChanges: []gchain.ChildStorageChanges{
				{Changes: []gchain.KeyValue{{Key: []byte("k"), Value: []byte("v")}}},
			},
		})
		require.Error(t, err)

		_, _, _, err = s.LoadState(ctx)
		require.ErrorIs(t, err, gstore.ErrStoreUninitialized)
	})

	t.Run("loaded pairs rebuild the storage image", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(ctx, t.Cleanup)
		require.NoError(t, err)

		ref := gtrie.New()
		blocks := []gchain.StorageChanges{
			{
				MainStorageChanges: []gchain.KeyValue{
					{Key: []byte("alpha"), Value: []byte("1")},
					{Key: []byte("beta"), Value: []byte("2")},
				},
				ChildStorageChanges: []gchain.ChildStorageChanges{
					{StorageKey: []byte("c1"), Changes: []gchain.KeyValue{{Key: []byte("x"), Value: []byte("cx")}}},
					{StorageKey: []byte("c2"), Changes: []gchain.KeyValue{{Key: []byte("y"), Value: []byte("cy")}}},
				},
			},
			{
				MainStorageChanges: []gchain.KeyValue{
					{Key: []byte("alpha"), Value: nil},
					{Key: []byte("gamma"), Value: []byte("3")},
				},
				ChildStorageChanges: []gchain.ChildStorageChanges{
					{StorageKey: []byte("c2"), Changes: []gchain.KeyValue{{Key: []byte("y"), Value: nil}}},
				},
			},
		}

		for i, b := range blocks {
			root, tx := ref.CalcRootIfChanges(b.MainStorageChanges, b.ChildStorageChanges)
			ref.ApplyChanges(root, tx)

			// Include the derived child root entries, as a block's declared changes would.
			b.MainStorageChanges = append(b.MainStorageChanges, derivedChildRoots(ref, b)...)
			require.NoError(t, s.SaveStateChanges(ctx, gchain.BlockNumber(i+1), root, b))
		}

		n, root, pairs, err := s.LoadState(ctx)
		require.NoError(t, err)
		require.Equal(t, gchain.BlockNumber(len(blocks)), n)
		require.Equal(t, ref.Root(), root)

		rebuilt, err := gstore.NewStorageFromPairs(pairs)
		require.NoError(t, err)
		require.Equal(t, ref.Root(), rebuilt.Root())
		require.Equal(t, ref.Pairs(), rebuilt.Pairs())
		require.Equal(t, ref.ChildKeys(), rebuilt.ChildKeys())
	})
}

func derivedChildRoots(s *gtrie.Storage, b gchain.StorageChanges) []gchain.KeyValue {
	var out []gchain.KeyValue
	for _, cc := range b.ChildStorageChanges {
		k := []byte(gtrie.ChildStoragePrefix + string(cc.StorageKey))
		v, _ := s.Get(k)
		out = append(out, gchain.KeyValue{Key: k, Value: v})
	}
	return out
}
