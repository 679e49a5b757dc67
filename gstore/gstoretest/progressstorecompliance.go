package gstoretest

import (
	"context"
	"testing"

	"github.com/gordian-engine/glight/gstore"
	"github.com/stretchr/testify/require"
)

type ProgressStoreFactory func(ctx context.Context, cleanup func(func())) (gstore.ProgressStore, error)

func TestProgressStoreCompliance(t *testing.T, f ProgressStoreFactory) {
	t.Run("returns ErrStoreUninitialized before first save", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(ctx, t.Cleanup)
		require.NoError(t, err)

		_, err = s.LoadCounters(ctx)
		require.ErrorIs(t, err, gstore.ErrStoreUninitialized)
	})

	t.Run("returns stored value", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(ctx, t.Cleanup)
		require.NoError(t, err)

		want := gstore.Counters{NextHeaderNumber: 10, NextParaHeaderNumber: 3, NextBlockNumber: 7}
		require.NoError(t, s.SaveCounters(ctx, want))

		got, err := s.LoadCounters(ctx)
		require.NoError(t, err)
		require.Equal(t, want, got)

		want.NextBlockNumber = 10
		require.NoError(t, s.SaveCounters(ctx, want))

		got, err = s.LoadCounters(ctx)
		require.NoError(t, err)
		require.Equal(t, want, got)
	})

	t.Run("solochain counters with zero parachain number", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(ctx, t.Cleanup)
		require.NoError(t, err)

		want := gstore.Counters{NextHeaderNumber: 1, NextBlockNumber: 1}
		require.NoError(t, s.SaveCounters(ctx, want))

		got, err := s.LoadCounters(ctx)
		require.NoError(t, err)
		require.Equal(t, want, got)
	})
}
