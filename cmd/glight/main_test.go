package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gordian-engine/glight/gchain"
	"github.com/gordian-engine/glight/gchain/gchaintest"
	"github.com/gordian-engine/glight/gcrypto"
	"github.com/gordian-engine/glight/gfinality/gfinalitytest"
	"github.com/gordian-engine/glight/storagesync/storagesynctest"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_parasHeadsKey(t *testing.T) {
	t.Parallel()

	res := Run(t, "paras-heads-key", "2000")
	res.NoError(t)
	require.Equal(t, fmt.Sprintf("%x\n", gchain.ParasHeadsKey(2000)), res.Out.String())

	require.Error(t, Run(t, "paras-heads-key", "not-a-number").RunErr)
	require.Error(t, Run(t, "paras-heads-key").RunErr)
}

func TestRootCmd_authorityPubKey(t *testing.T) {
	t.Parallel()

	res := Run(t, "authority-pubkey", "alice")
	res.NoError(t)

	signer, err := gcrypto.SignerFromInsecurePassphrase(authorityPassphrasePrefix, "alice")
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("%x\n", signer.PubKey().PubKeyBytes()), res.Out.String())

	other := Run(t, "authority-pubkey", "bob")
	other.NoError(t)
	require.NotEqual(t, res.Out.String(), other.Out.String())
}

// soloFixture is a solochain whose finalized headers
// commit to the state produced by feeding its blocks to an empty storage.
type soloFixture struct {
	Auth    gfinalitytest.Authorities
	Genesis gchain.GenesisBlockInfo
	Headers []gchain.Header
	Blocks  []gchain.BlockHeaderWithChanges
}

func newSoloFixture(n int) soloFixture {
	auth := gfinalitytest.NewAuthorities(0, 0, 4)
	genesis, _ := auth.Genesis()

	f := storagesynctest.NewBlockFixture("cli", n)
	chain := gchaintest.NewHeaderChain(genesis.BlockHeader)
	headers := chain.Extend(gchaintest.StateRoots(f.Headers)...)

	blocks := make([]gchain.BlockHeaderWithChanges, n)
	for i := range blocks {
		blocks[i] = gchain.BlockHeaderWithChanges{
			BlockHeader:    headers[i],
			StorageChanges: f.Blocks[i].StorageChanges,
		}
	}

	return soloFixture{Auth: auth, Genesis: genesis, Headers: headers, Blocks: blocks}
}

func TestRootCmd_replaySolochain(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f := newSoloFixture(3)

	genesisPath := filepath.Join(dir, "genesis.hex")
	writeHexFile(t, genesisPath, f.Genesis)

	var w requestWriter
	w.Comment("all three headers, justified at the last")
	w.Add(t, kindSyncHeader, gchain.SyncHeaderReq{
		Headers: gchaintest.ToSync(f.Headers, f.Auth.Justify(f.Headers[2])),
	})
	w.Add(t, kindDispatchBlocks, gchain.DispatchBlockReq{Blocks: f.Blocks})
	reqPath := w.WriteFile(t, dir)

	dbPath := filepath.Join(dir, "state.sqlite")
	res := Run(t, "replay", "--db", dbPath, genesisPath, reqPath)
	res.NoError(t)

	wantRoot := f.Headers[2].StateRoot
	require.Equal(t, fmt.Sprintf(
		"next_header=4 next_para_header=0 next_block=4 state_root=%s\n", wantRoot,
	), res.Out.String())

	t.Run("stored state cannot be replayed onto", func(t *testing.T) {
		res := Run(t, "replay", "--db", dbPath, genesisPath, reqPath)
		require.ErrorContains(t, res.RunErr, "already holds synced state")
	})

	t.Run("snapshot round trip", func(t *testing.T) {
		snapPath := filepath.Join(t.TempDir(), "state.snap")

		res := Run(t, "snapshot-export", dbPath, snapPath)
		res.NoError(t)
		require.Equal(t, fmt.Sprintf("block=3 state_root=%s\n", wantRoot), res.Out.String())

		// Never overwrites.
		require.Error(t, Run(t, "snapshot-export", dbPath, snapPath).RunErr)

		res = Run(t, "snapshot-verify", snapPath)
		res.NoError(t)
		require.Contains(t, res.Out.String(), fmt.Sprintf("state_root=%s ", wantRoot))
		require.Contains(t, res.Out.String(), "child_tries=1")
	})

	t.Run("missing database", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "missing.sqlite")
		require.Error(t, Run(t, "snapshot-export", missing, filepath.Join(t.TempDir(), "out")).RunErr)

		_, err := os.Stat(missing)
		require.True(t, os.IsNotExist(err))
	})
}

func TestRootCmd_replayStopsAtRejectedRequest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f := newSoloFixture(2)

	genesisPath := filepath.Join(dir, "genesis.hex")
	writeHexFile(t, genesisPath, f.Genesis)

	// Block 2 declaring block 1's changes.
	bad := f.Blocks[1]
	bad.StorageChanges = f.Blocks[0].StorageChanges

	var w requestWriter
	w.Add(t, kindSyncHeader, gchain.SyncHeaderReq{
		Headers: gchaintest.ToSync(f.Headers, f.Auth.Justify(f.Headers[1])),
	})
	w.Add(t, kindDispatchBlocks, gchain.DispatchBlockReq{Blocks: []gchain.BlockHeaderWithChanges{f.Blocks[0], bad}})
	w.Add(t, kindSyncHeader, gchain.SyncHeaderReq{})
	reqPath := w.WriteFile(t, dir)

	res := Run(t, "replay", genesisPath, reqPath)
	require.ErrorContains(t, res.RunErr, "line 2 (dispatch_blocks)")
	require.ErrorContains(t, res.RunErr, "after applying 1 of 2 blocks")
	require.Empty(t, res.Out.String())
}

func TestRootCmd_replayMalformedInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f := newSoloFixture(1)

	genesisPath := filepath.Join(dir, "genesis.hex")
	writeHexFile(t, genesisPath, f.Genesis)

	for _, tc := range []struct {
		name, contents, wantErr string
	}{
		{name: "unknown kind", contents: "frobnicate 00\n", wantErr: "unknown request kind"},
		{name: "missing payload", contents: "sync_header\n", wantErr: "expected KIND HEX"},
		{name: "bad hex", contents: "sync_header zz\n", wantErr: "invalid hex"},
		{name: "bad encoding", contents: "dispatch_blocks 0c\n", wantErr: "line 1"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "requests.txt")
			require.NoError(t, os.WriteFile(p, []byte(tc.contents), 0o600))

			res := Run(t, "replay", genesisPath, p)
			require.ErrorContains(t, res.RunErr, tc.wantErr)
		})
	}

	t.Run("invalid mode", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "requests.txt")
		require.NoError(t, os.WriteFile(p, nil, 0o600))

		res := Run(t, "replay", "--mode", "sidechain", genesisPath, p)
		require.ErrorContains(t, res.RunErr, "unknown mode")
	})
}

func TestRootCmd_replayParachainFromConfigFile(t *testing.T) {
	t.Parallel()

	const paraID gchain.ParaID = 2000

	dir := t.TempDir()

	auth := gfinalitytest.NewAuthorities(0, 0, 4)
	para := storagesynctest.NewBlockFixture("para", 1)
	headData, err := para.Headers[0].EncodeHeadData()
	require.NoError(t, err)

	key := gchain.ParasHeadsKey(paraID)
	genesis, relayStorage := auth.Genesis()

	root, tx := relayStorage.CalcRootIfChanges([]gchain.KeyValue{{Key: key, Value: headData}}, nil)
	relayStorage.ApplyChanges(root, tx)
	proof, err := relayStorage.Prove([][]byte{key})
	require.NoError(t, err)

	relayChain := gchaintest.NewHeaderChain(genesis.BlockHeader)
	relayHeaders := relayChain.Extend(gchaintest.DeterministicHash("relay-state", 1), root)

	genesisPath := filepath.Join(dir, "genesis.hex")
	writeHexFile(t, genesisPath, genesis)

	var w requestWriter
	w.Add(t, kindSyncCombinedHeaders, gchain.SyncCombinedHeadersReq{
		RelaychainHeaders: gchaintest.ToSync(relayHeaders, auth.Justify(relayHeaders[1])),
		ParachainHeaders:  para.Headers,
		Proof:             proof,
	})
	w.Add(t, kindDispatchBlocks, gchain.DispatchBlockReq{Blocks: para.Blocks})
	reqPath := w.WriteFile(t, dir)

	cfgPath := filepath.Join(dir, "glight.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(
		"mode: parachain\npara-id: %d\n", paraID,
	)), 0o600))

	res := Run(t, "replay", "--config", cfgPath, genesisPath, reqPath)
	res.NoError(t)
	require.Equal(t, fmt.Sprintf(
		"next_header=3 next_para_header=2 next_block=2 state_root=%s\n", para.Headers[0].StateRoot,
	), res.Out.String())

	t.Run("flags override the config file", func(t *testing.T) {
		res := Run(t, "replay", "--config", cfgPath, "--para-id", "2001", genesisPath, reqPath)
		require.ErrorContains(t, res.RunErr, "line 1 (sync_combined_headers)")
	})
}
