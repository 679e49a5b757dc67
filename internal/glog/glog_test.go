package glog_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/gordian-engine/glight/internal/glog"
	"github.com/stretchr/testify/require"
)

func TestHex(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	log.Info("Test", "val", glog.Hex{0xde, 0xad})
	require.Contains(t, buf.String(), "val=dead")
}

func TestNE(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	type blockNumber uint32
	glog.NE(log, blockNumber(12), bytes.ErrTooLarge).Info("Rejected")
	require.Contains(t, buf.String(), "number=12")
	require.Contains(t, buf.String(), "err=")
}
