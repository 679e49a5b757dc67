package storagesync_test

import (
	"testing"

	"github.com/gordian-engine/glight/storagesync/storagesynctest"
)

type mockValidator = storagesynctest.MockValidator

var justification = storagesynctest.Justification

func newBlockFixture(t *testing.T, label string, n int) storagesynctest.BlockFixture {
	t.Helper()
	return storagesynctest.NewBlockFixture(label, n)
}
