package storagesync_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gordian-engine/glight/gchain"
	"github.com/gordian-engine/glight/gchain/gchaintest"
	"github.com/gordian-engine/glight/gtrie"
	"github.com/gordian-engine/glight/storagesync"
	"github.com/stretchr/testify/require"
)

func TestBlockSyncState_scenario(t *testing.T) {
	t.Parallel()

	f := newBlockFixture(t, "s", 3)
	v := &mockValidator{}
	s := storagesync.NewBlockSyncState(v, 7, 1, 1)
	var q storagesync.StateRootQueue
	storage := gtrie.New()

	last, err := s.SyncHeader(gchaintest.ToSync(f.Headers, justification), nil, &q)
	require.NoError(t, err)
	require.Equal(t, gchain.BlockNumber(3), last)
	require.Equal(t, gchain.BlockNumber(4), s.HeaderNumberNext())
	require.Equal(t, gchaintest.StateRoots(f.Headers), q.Roots())

	require.NoError(t, s.FeedBlock(&f.Blocks[0], &q, storage))
	require.Equal(t, gchain.BlockNumber(2), s.BlockNumberNext())
	require.Equal(t, 2, q.Len())
	require.Equal(t, f.Headers[0].StateRoot, storage.Root())

	err = s.FeedBlock(&f.Blocks[0], &q, storage)
	require.ErrorIs(t, err, storagesync.BlockNumberMismatchError{Want: 2, Got: 1})
	require.Equal(t, 2, q.Len())
	require.Equal(t, f.Headers[0].StateRoot, storage.Root())
}

func TestBlockSyncState_SyncHeader_submission(t *testing.T) {
	t.Parallel()

	f := newBlockFixture(t, "s", 4)
	v := &mockValidator{}
	s := storagesync.NewBlockSyncState(v, 7, 1, 1)
	var q storagesync.StateRootQueue

	change := &gchain.AuthoritySetChange{AuthoritySet: gchain.AuthoritySet{ID: 1}}
	_, err := s.SyncHeader(gchaintest.ToSync(f.Headers, justification), change, &q)
	require.NoError(t, err)

	require.Len(t, v.Submits, 1)
	call := v.Submits[0]
	require.Equal(t, uint64(7), call.BridgeID)
	require.Equal(t, f.Headers[3], call.Header)
	require.Equal(t, []gchain.Header{f.Headers[2], f.Headers[1], f.Headers[0]}, call.Ancestry)
	require.Equal(t, justification, call.FinalityProof)
	require.Same(t, change, call.Change)
}

func TestBlockSyncState_SyncHeader_singleHeader(t *testing.T) {
	t.Parallel()

	f := newBlockFixture(t, "s", 1)
	v := &mockValidator{}
	s := storagesync.NewBlockSyncState(v, 0, 1, 1)
	var q storagesync.StateRootQueue

	last, err := s.SyncHeader(gchaintest.ToSync(f.Headers, justification), nil, &q)
	require.NoError(t, err)
	require.Equal(t, gchain.BlockNumber(1), last)
	require.Empty(t, v.Submits[0].Ancestry)
}

func TestBlockSyncState_SyncHeader_rejections(t *testing.T) {
	t.Parallel()

	f := newBlockFixture(t, "s", 3)

	for _, tc := range []struct {
		name    string
		headers func() []gchain.HeaderToSync
		wantErr error
	}{
		{
			name:    "empty request",
			headers: func() []gchain.HeaderToSync { return nil },
			wantErr: storagesync.ErrEmptyRequest,
		},
		{
			name: "batch starts after next header",
			headers: func() []gchain.HeaderToSync {
				return gchaintest.ToSync(f.Headers[1:], justification)
			},
			wantErr: storagesync.BlockNumberMismatchError{Want: 1, Got: 2},
		},
		{
			name: "missing justification",
			headers: func() []gchain.HeaderToSync {
				hs := gchaintest.ToSync(f.Headers, nil)
				hs[0].Justification = justification
				return hs
			},
			wantErr: storagesync.ErrMissingJustification,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			v := &mockValidator{}
			s := storagesync.NewBlockSyncState(v, 0, 1, 1)
			var q storagesync.StateRootQueue

			_, err := s.SyncHeader(tc.headers(), nil, &q)
			require.ErrorIs(t, err, tc.wantErr)

			require.Equal(t, gchain.BlockNumber(1), s.HeaderNumberNext())
			require.Zero(t, q.Len())
			require.Empty(t, v.Submits)
		})
	}
}

func TestBlockSyncState_SyncHeader_hashBreak(t *testing.T) {
	t.Parallel()

	const n = 5
	f := newBlockFixture(t, "s", n)

	for i := 1; i < n; i++ {
		t.Run(fmt.Sprintf("break at index %d", i), func(t *testing.T) {
			headers := gchaintest.ToSync(f.Headers, justification)
			headers[i].Header.ParentHash = gchaintest.DeterministicHash("bogus", i)

			v := &mockValidator{}
			s := storagesync.NewBlockSyncState(v, 0, 1, 1)
			var q storagesync.StateRootQueue

			_, err := s.SyncHeader(headers, nil, &q)
			var e storagesync.HeaderHashMismatchError
			require.ErrorAs(t, err, &e)
			require.Equal(t, f.Headers[i].Number, e.Number)
			require.Equal(t, f.Headers[i-1].Hash(), e.Want)

			require.Equal(t, gchain.BlockNumber(1), s.HeaderNumberNext())
			require.Zero(t, q.Len())
			require.Empty(t, v.Submits)
		})
	}
}

func TestBlockSyncState_SyncHeader_validatorRejects(t *testing.T) {
	t.Parallel()

	f := newBlockFixture(t, "s", 2)
	rejection := errors.New("bad finality proof")
	v := &mockValidator{SubmitErr: rejection}
	s := storagesync.NewBlockSyncState(v, 0, 1, 1)
	var q storagesync.StateRootQueue

	_, err := s.SyncHeader(gchaintest.ToSync(f.Headers, justification), nil, &q)
	require.ErrorAs(t, err, new(storagesync.HeaderValidateFailedError))
	require.ErrorIs(t, err, rejection)

	require.Equal(t, gchain.BlockNumber(1), s.HeaderNumberNext())
	require.Zero(t, q.Len())
}

func TestBlockSyncState_FeedBlock(t *testing.T) {
	t.Parallel()

	t.Run("no state root", func(t *testing.T) {
		f := newBlockFixture(t, "s", 1)
		s := storagesync.NewBlockSyncState(&mockValidator{}, 0, 1, 1)
		var q storagesync.StateRootQueue
		storage := gtrie.New()

		require.ErrorIs(t, s.FeedBlock(&f.Blocks[0], &q, storage), storagesync.ErrNoStateRoot)
		require.Equal(t, gtrie.EmptyRoot, storage.Root())
		require.Equal(t, gchain.BlockNumber(1), s.BlockNumberNext())
	})

	t.Run("state root mismatch never mutates storage", func(t *testing.T) {
		f := newBlockFixture(t, "s", 2)
		s := storagesync.NewBlockSyncState(&mockValidator{}, 0, 1, 1)
		var q storagesync.StateRootQueue
		storage := gtrie.New()

		_, err := s.SyncHeader(gchaintest.ToSync(f.Headers, justification), nil, &q)
		require.NoError(t, err)

		// Block 1 declaring block 2's changes.
		wrong := f.Blocks[0]
		wrong.StorageChanges = f.Blocks[1].StorageChanges

		before := storage.Root()
		err = s.FeedBlock(&wrong, &q, storage)
		var e storagesync.StateRootMismatchError
		require.ErrorAs(t, err, &e)
		require.Equal(t, gchain.BlockNumber(1), e.Block)
		require.Equal(t, f.Headers[0].StateRoot, e.Expected)
		require.NotEqual(t, e.Expected, e.Actual)

		require.Equal(t, before, storage.Root())
		require.Equal(t, 2, q.Len())
		require.Equal(t, gchain.BlockNumber(1), s.BlockNumberNext())

		// The correct block still applies afterward.
		require.NoError(t, s.FeedBlock(&f.Blocks[0], &q, storage))
	})

	t.Run("block ahead of cursor", func(t *testing.T) {
		f := newBlockFixture(t, "s", 2)
		s := storagesync.NewBlockSyncState(&mockValidator{}, 0, 1, 1)
		var q storagesync.StateRootQueue
		storage := gtrie.New()

		_, err := s.SyncHeader(gchaintest.ToSync(f.Headers, justification), nil, &q)
		require.NoError(t, err)

		err = s.FeedBlock(&f.Blocks[1], &q, storage)
		require.ErrorIs(t, err, storagesync.BlockNumberMismatchError{Want: 1, Got: 2})
	})
}

func TestBlockSyncState_queueTracksProgress(t *testing.T) {
	t.Parallel()

	const n = 9
	f := newBlockFixture(t, "s", n)
	s := storagesync.NewBlockSyncState(&mockValidator{}, 0, 1, 1)
	var q storagesync.StateRootQueue
	storage := gtrie.New()

	// Sync in batches of three, feeding two blocks after each batch.
	accepted, fed := 0, 0
	for b := 0; b < n; b += 3 {
		last, err := s.SyncHeader(gchaintest.ToSync(f.Headers[b:b+3], justification), nil, &q)
		require.NoError(t, err)
		require.Equal(t, f.Headers[b+2].Number, last)
		accepted += 3

		for range 2 {
			require.NoError(t, s.FeedBlock(&f.Blocks[fed], &q, storage))
			require.Equal(t, f.Blocks[fed].BlockHeader.StateRoot, storage.Root())
			fed++
		}

		require.Equal(t, accepted-fed, q.Len())
		require.Equal(t, gchain.BlockNumber(accepted+1), s.HeaderNumberNext())
		require.Equal(t, gchain.BlockNumber(fed+1), s.BlockNumberNext())
	}

	for fed < n {
		require.NoError(t, s.FeedBlock(&f.Blocks[fed], &q, storage))
		fed++
	}
	require.Zero(t, q.Len())
	require.Equal(t, f.Headers[n-1].StateRoot, storage.Root())
}

func TestBlockSyncState_lastBlockNumber(t *testing.T) {
	t.Parallel()

	last := gchain.Header{
		Number:    gchain.MaxBlockNumber,
		StateRoot: gchaintest.DeterministicHash("last-root", 0),
	}

	t.Run("header", func(t *testing.T) {
		v := &mockValidator{}
		s := storagesync.NewBlockSyncState(v, 0, gchain.MaxBlockNumber, 1)
		var q storagesync.StateRootQueue

		_, err := s.SyncHeader(gchaintest.ToSync([]gchain.Header{last}, justification), nil, &q)
		require.ErrorIs(t, err, storagesync.BlockNumberOverflowError{Number: gchain.MaxBlockNumber})

		require.Equal(t, gchain.MaxBlockNumber, s.HeaderNumberNext())
		require.Zero(t, q.Len())
		require.Empty(t, v.Submits)
	})

	t.Run("block", func(t *testing.T) {
		s := storagesync.NewBlockSyncState(&mockValidator{}, 0, 1, gchain.MaxBlockNumber)
		var q storagesync.StateRootQueue
		q.Push(last.StateRoot)
		storage := gtrie.New()

		err := s.FeedBlock(&gchain.BlockHeaderWithChanges{BlockHeader: last}, &q, storage)
		require.ErrorIs(t, err, storagesync.BlockNumberOverflowError{Number: gchain.MaxBlockNumber})

		require.Equal(t, gchain.MaxBlockNumber, s.BlockNumberNext())
		require.Equal(t, 1, q.Len())
		require.Equal(t, gtrie.EmptyRoot, storage.Root())
	})
}
