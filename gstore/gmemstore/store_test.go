package gmemstore_test

import (
	"context"
	"testing"

	"github.com/gordian-engine/glight/gstore"
	"github.com/gordian-engine/glight/gstore/gmemstore"
	"github.com/gordian-engine/glight/gstore/gstoretest"
)

func TestStateStoreCompliance(t *testing.T) {
	t.Parallel()

	gstoretest.TestStateStoreCompliance(t, func(context.Context, func(func())) (gstore.StateStore, error) {
		return gmemstore.NewStateStore(), nil
	})
}

func TestProgressStoreCompliance(t *testing.T) {
	t.Parallel()

	gstoretest.TestProgressStoreCompliance(t, func(context.Context, func(func())) (gstore.ProgressStore, error) {
		return gmemstore.NewProgressStore(), nil
	})
}
