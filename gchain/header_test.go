package gchain_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/gordian-engine/glight/gchain"
	"github.com/gordian-engine/glight/gchain/gchaintest"
	"github.com/stretchr/testify/require"
)

func TestHeader_Encode(t *testing.T) {
	t.Parallel()

	h := gchain.Header{Number: 1}
	enc, err := h.Encode()
	require.NoError(t, err)

	// Parent hash, compact number, state root, extrinsics root, empty digest.
	want := make([]byte, 0, 98)
	want = append(want, make([]byte, 32)...)
	want = append(want, 0x04)
	want = append(want, make([]byte, 64)...)
	want = append(want, 0x00)
	require.Equal(t, want, enc)

	require.Equal(t, gchain.Blake2b256(want), h.Hash())
}

func TestHeader_EncodeHeadData(t *testing.T) {
	t.Parallel()

	h := gchain.Header{Number: 1}
	enc, err := h.Encode()
	require.NoError(t, err)
	require.Len(t, enc, 98)

	headData, err := h.EncodeHeadData()
	require.NoError(t, err)

	// 98 needs the two-byte compact mode: (98 << 2) | 1 = 0x0189.
	require.Equal(t, []byte{0x89, 0x01}, headData[:2])
	require.Equal(t, enc, headData[2:])

	got, err := gchain.DecodeHeadData(headData)
	require.NoError(t, err)
	require.Equal(t, h, got)

	// Head data is not a plain header.
	_, err = gchain.DecodeHeadData(enc)
	require.Error(t, err)
}

func TestDecodeHeader_roundTrip(t *testing.T) {
	t.Parallel()

	h := gchain.Header{
		ParentHash:     gchaintest.DeterministicHash("parent", 1),
		Number:         70_000,
		StateRoot:      gchaintest.DeterministicHash("state", 1),
		ExtrinsicsRoot: gchaintest.DeterministicHash("extrinsics", 1),
		Digest:         [][]byte{[]byte("pre-runtime"), []byte("seal")},
	}

	enc, err := h.Encode()
	require.NoError(t, err)

	got, err := gchain.DecodeHeader(enc)
	require.NoError(t, err)
	require.Equal(t, h, got)
	require.Equal(t, h.Hash(), got.Hash())
}

func TestHeader_Hash_distinguishesFields(t *testing.T) {
	t.Parallel()

	base := gchain.Header{Number: 5}
	withRoot := base
	withRoot.StateRoot = gchaintest.DeterministicHash("state", 5)
	withDigest := base
	withDigest.Digest = [][]byte{{1}}

	require.NotEqual(t, base.Hash(), withRoot.Hash())
	require.NotEqual(t, base.Hash(), withDigest.Hash())
	require.NotEqual(t, withRoot.Hash(), withDigest.Hash())
}

func TestHashFromBytes(t *testing.T) {
	t.Parallel()

	want := gchaintest.DeterministicHash("x", 0)
	got, err := gchain.HashFromBytes(want.Bytes())
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Equal(t, hex.EncodeToString(want[:]), got.String())

	_, err = gchain.HashFromBytes(bytes.Repeat([]byte{1}, 31))
	require.Error(t, err)

	require.True(t, gchain.Hash{}.IsZero())
	require.False(t, want.IsZero())
}
