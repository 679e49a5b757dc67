package gtrie_test

import (
	"fmt"
	"testing"

	"github.com/gordian-engine/glight/gchain"
	"github.com/gordian-engine/glight/gtrie"
	"github.com/stretchr/testify/require"
)

func populated(t *testing.T, n int) *gtrie.Storage {
	t.Helper()

	s := gtrie.New()
	kvs := make([]gchain.KeyValue, n)
	for i := range kvs {
		kvs[i] = kv(fmt.Sprintf("key-%03d", i), fmt.Sprintf("value-%d", i))
	}
	root, tx := s.CalcRootIfChanges(kvs, nil)
	s.ApplyChanges(root, tx)
	return s
}

func TestProve_roundTrip(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 2, 3, 7, 16, 33} {
		t.Run(fmt.Sprintf("pairs=%d", n), func(t *testing.T) {
			t.Parallel()

			s := populated(t, n)
			for i := 0; i < n; i++ {
				item := kv(fmt.Sprintf("key-%03d", i), fmt.Sprintf("value-%d", i))
				proof, err := s.Prove([][]byte{item.Key})
				require.NoError(t, err)
				require.Len(t, proof, 1)

				require.NoError(t, gtrie.VerifyProof(s.Root(), proof, []gchain.KeyValue{item}))
			}
		})
	}
}

func TestProve_multipleKeys(t *testing.T) {
	t.Parallel()

	s := populated(t, 9)
	items := []gchain.KeyValue{kv("key-001", "value-1"), kv("key-008", "value-8")}

	proof, err := s.Prove([][]byte{items[0].Key, items[1].Key})
	require.NoError(t, err)
	require.NoError(t, gtrie.VerifyProof(s.Root(), proof, items))

	// Verifying a subset is fine.
	require.NoError(t, gtrie.VerifyProof(s.Root(), proof, items[1:]))
}

func TestProve_missingKey(t *testing.T) {
	t.Parallel()

	s := populated(t, 3)
	_, err := s.Prove([][]byte{[]byte("absent")})
	require.ErrorIs(t, err, gtrie.ErrKeyNotFound)

	_, err = gtrie.New().Prove([][]byte{[]byte("absent")})
	require.ErrorIs(t, err, gtrie.ErrKeyNotFound)
}

func TestVerifyProof_failures(t *testing.T) {
	t.Parallel()

	s := populated(t, 5)
	item := kv("key-002", "value-2")
	proof, err := s.Prove([][]byte{item.Key})
	require.NoError(t, err)

	t.Run("missing key", func(t *testing.T) {
		err := gtrie.VerifyProof(s.Root(), proof, []gchain.KeyValue{kv("key-003", "value-3")})
		var e gtrie.ProofMissingKeyError
		require.ErrorAs(t, err, &e)
		require.Equal(t, []byte("key-003"), e.Key)
	})

	t.Run("value mismatch", func(t *testing.T) {
		err := gtrie.VerifyProof(s.Root(), proof, []gchain.KeyValue{kv("key-002", "other")})
		require.ErrorAs(t, err, new(gtrie.ProofValueMismatchError))
	})

	t.Run("wrong root", func(t *testing.T) {
		other := populated(t, 6)
		err := gtrie.VerifyProof(other.Root(), proof, []gchain.KeyValue{item})
		require.ErrorAs(t, err, new(gtrie.ProofRootMismatchError))
	})

	t.Run("stale proof after change", func(t *testing.T) {
		s := populated(t, 5)
		proof, err := s.Prove([][]byte{item.Key})
		require.NoError(t, err)

		root, tx := s.CalcRootIfChanges([]gchain.KeyValue{kv("key-004", "changed")}, nil)
		s.ApplyChanges(root, tx)

		err = gtrie.VerifyProof(s.Root(), proof, []gchain.KeyValue{item})
		require.ErrorAs(t, err, new(gtrie.ProofRootMismatchError))
	})

	t.Run("garbage node", func(t *testing.T) {
		err := gtrie.VerifyProof(s.Root(), gchain.StorageProof{{0xff}}, []gchain.KeyValue{item})
		require.ErrorAs(t, err, new(gtrie.ProofDecodeError))
	})
}
