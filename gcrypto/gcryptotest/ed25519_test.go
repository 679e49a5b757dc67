package gcryptotest_test

import (
	"context"
	"testing"

	"github.com/gordian-engine/glight/gcrypto"
	"github.com/gordian-engine/glight/gcrypto/gcryptotest"
	"github.com/stretchr/testify/require"
)

func TestDeterministicEd25519Signers(t *testing.T) {
	t.Parallel()

	s4 := gcryptotest.DeterministicEd25519Signers(4)

	for _, n := range []int{4, 2, 6} {
		again := gcryptotest.DeterministicEd25519Signers(n)
		requireSameSigners(t, s4[:min(n, 4)], again[:min(n, 4)])
	}

	t.Run("distinct keys", func(t *testing.T) {
		for i := range s4 {
			for j := i + 1; j < len(s4); j++ {
				require.False(t, s4[i].PubKey().Equal(s4[j].PubKey()))
			}
		}
	})

	t.Run("underlying byte slices are independent", func(t *testing.T) {
		a := gcryptotest.DeterministicEd25519Signers(1)
		b := gcryptotest.DeterministicEd25519Signers(1)

		pub1 := a[0].PubKey().PubKeyBytes()
		pub2 := b[0].PubKey().PubKeyBytes()
		pub2[0]++

		require.NotEqual(t, pub1, pub2)
	})
}

func requireSameSigners(t *testing.T, want, got []gcrypto.Ed25519Signer) {
	t.Helper()

	ctx := context.Background()
	for i := range want {
		require.Truef(
			t,
			want[i].PubKey().Equal(got[i].PubKey()),
			"got different public keys at index %d: %X -> %X",
			i, want[i].PubKey().PubKeyBytes(), got[i].PubKey().PubKeyBytes(),
		)

		sig1, err := want[i].Sign(ctx, []byte("test"))
		require.NoError(t, err)
		sig2, err := got[i].Sign(ctx, []byte("test"))
		require.NoError(t, err)
		require.Equal(t, sig1, sig2)
	}
}
