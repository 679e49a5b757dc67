package gmerkle_test

import (
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/gordian-engine/glight/gmerkle"
	"github.com/stretchr/testify/require"
)

// Very simple implementation of MerkleScheme.
type sha256Scheme struct {
	M uint8 // Branch factor.

	// If set, prefix non-leaf hashes with two bytes, the depth and the row-index.
	HashPosition bool
}

func (s sha256Scheme) BranchFactor() uint8 {
	return s.M
}

func (s sha256Scheme) LeafID(_ int, leafData string) ([sha256.Size]byte, error) {
	return sha256.Sum256([]byte(leafData)), nil
}

func (s sha256Scheme) BranchID(depth, rowIdx int, childIDs [][sha256.Size]byte) ([sha256.Size]byte, error) {
	h := sha256.New()
	if s.HashPosition {
		h.Write([]byte{byte(depth), byte(rowIdx)})
	}
	for _, id := range childIDs {
		h.Write(id[:])
	}

	var out [sha256.Size]byte
	_ = h.Sum(out[:0])
	return out, nil
}

func TestMerkleTree_RootID(t *testing.T) {
	t.Run("complete first depth, binary tree", func(t *testing.T) {
		leaves := []string{"This", "is", "a", "test."}

		d0 := make([][sha256.Size]byte, 4)
		for i, leaf := range leaves {
			d0[i] = sha256.Sum256([]byte(leaf))
		}

		var in []byte
		in = append(in, d0[0][:]...)
		in = append(in, d0[1][:]...)
		left := sha256.Sum256(in)

		in = in[:0]
		in = append(in, d0[2][:]...)
		in = append(in, d0[3][:]...)
		right := sha256.Sum256(in)

		in = in[:0]
		in = append(in, left[:]...)
		in = append(in, right[:]...)
		root := sha256.Sum256(in)

		tree, err := gmerkle.NewMerkleTree[string, [sha256.Size]byte](sha256Scheme{M: 2}, leaves)
		require.NoError(t, err)

		require.Equal(t, root, tree.RootID())
		require.Equal(t, 4, tree.NLeaves())
	})

	t.Run("lone rightmost leaf is raised", func(t *testing.T) {
		leaves := []string{"only", "three", "leaves"}

		d0 := make([][sha256.Size]byte, 3)
		for i, leaf := range leaves {
			d0[i] = sha256.Sum256([]byte(leaf))
		}

		var in []byte
		in = append(in, d0[0][:]...)
		in = append(in, d0[1][:]...)
		left := sha256.Sum256(in)

		in = in[:0]
		in = append(in, left[:]...)
		in = append(in, d0[2][:]...)
		root := sha256.Sum256(in) // sha256( sha256(sha256("only") + sha256("three")) + sha256("leaves") )

		tree, err := gmerkle.NewMerkleTree[string, [sha256.Size]byte](sha256Scheme{M: 2}, leaves)
		require.NoError(t, err)

		require.Equal(t, root, tree.RootID())
	})

	t.Run("single leaf is the root", func(t *testing.T) {
		tree, err := gmerkle.NewMerkleTree[string, [sha256.Size]byte](sha256Scheme{M: 2}, []string{"alone"})
		require.NoError(t, err)

		require.Equal(t, sha256.Sum256([]byte("alone")), tree.RootID())
	})

	t.Run("incomplete first depth, 3-ary tree", func(t *testing.T) {
		leaves := []string{"just", "two"}

		var in []byte
		for _, leaf := range leaves {
			h := sha256.Sum256([]byte(leaf))
			in = append(in, h[:]...)
		}
		root := sha256.Sum256(in)

		tree, err := gmerkle.NewMerkleTree[string, [sha256.Size]byte](sha256Scheme{M: 3}, leaves)
		require.NoError(t, err)

		require.Equal(t, root, tree.RootID())
	})

	t.Run("no leaves", func(t *testing.T) {
		_, err := gmerkle.NewMerkleTree[string, [sha256.Size]byte](sha256Scheme{M: 2}, nil)
		require.ErrorIs(t, err, gmerkle.ErrNoLeaves)
	})

	t.Run("invalid branch factor", func(t *testing.T) {
		_, err := gmerkle.NewMerkleTree[string, [sha256.Size]byte](sha256Scheme{M: 1}, []string{"a", "b"})
		require.Error(t, err)
	})
}

func TestMerkleTree_Proof(t *testing.T) {
	for _, m := range []uint8{2, 3, 4} {
		for _, hashPosition := range []bool{false, true} {
			for nLeaves := 1; nLeaves <= 17; nLeaves++ {
				name := fmt.Sprintf("m=%d/position=%t/leaves=%d", m, hashPosition, nLeaves)
				t.Run(name, func(t *testing.T) {
					scheme := sha256Scheme{M: m, HashPosition: hashPosition}

					leaves := make([]string, nLeaves)
					for i := range leaves {
						leaves[i] = fmt.Sprintf("leaf-%d", i)
					}

					tree, err := gmerkle.NewMerkleTree[string, [sha256.Size]byte](scheme, leaves)
					require.NoError(t, err)

					for i, leaf := range leaves {
						p, err := tree.Proof(i)
						require.NoError(t, err)
						require.NoError(t, gmerkle.VerifyProof(scheme, tree.RootID(), leaf, p))

						require.ErrorIs(
							t,
							gmerkle.VerifyProof(scheme, tree.RootID(), leaf+"!", p),
							gmerkle.ErrRootMismatch,
						)
					}
				})
			}
		}
	}
}

func TestMerkleTree_Proof_outOfRange(t *testing.T) {
	tree, err := gmerkle.NewMerkleTree[string, [sha256.Size]byte](sha256Scheme{M: 2}, []string{"a", "b"})
	require.NoError(t, err)

	_, err = tree.Proof(2)
	require.Error(t, err)

	_, err = tree.Proof(-1)
	require.Error(t, err)
}

func TestVerifyProof_malformedStep(t *testing.T) {
	scheme := sha256Scheme{M: 2}
	tree, err := gmerkle.NewMerkleTree[string, [sha256.Size]byte](scheme, []string{"a", "b", "c"})
	require.NoError(t, err)

	p, err := tree.Proof(0)
	require.NoError(t, err)

	p.Steps[0].Position = 5
	require.Error(t, gmerkle.VerifyProof(scheme, tree.RootID(), "a", p))

	p.Steps[0].Position = 0
	p.Steps[0].Siblings = append(p.Steps[0].Siblings, p.Steps[0].Siblings[0])
	require.Error(t, gmerkle.VerifyProof(scheme, tree.RootID(), "a", p))
}
