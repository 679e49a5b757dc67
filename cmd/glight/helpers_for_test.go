package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gordian-engine/glight/internal/gtest"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// RunResult is the outcome of one glight invocation.
type RunResult struct {
	Out, Err bytes.Buffer
	RunErr   error
}

func (r RunResult) NoError(t *testing.T) {
	t.Helper()
	require.NoErrorf(t, r.RunErr, "stderr: %s", r.Err.String())
}

// Run executes a fresh root command with the given arguments,
// independent of the process environment's glight configuration.
func Run(t *testing.T, args ...string) RunResult {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	v := viper.New()
	cmd := NewRootCmd(gtest.NewLogger(t), v)

	var res RunResult
	cmd.SetOut(&res.Out)
	cmd.SetErr(&res.Err)
	cmd.SetArgs(args)

	res.RunErr = Execute(ctx, cmd, v)
	return res
}

// requestWriter accumulates a requests file for the replay command.
type requestWriter struct {
	sb strings.Builder
}

type encoder interface {
	Encode() ([]byte, error)
}

func (w *requestWriter) Add(t *testing.T, kind string, req encoder) {
	t.Helper()

	b, err := req.Encode()
	require.NoError(t, err)
	fmt.Fprintf(&w.sb, "%s %x\n", kind, b)
}

func (w *requestWriter) Comment(text string) {
	fmt.Fprintf(&w.sb, "# %s\n\n", text)
}

func (w *requestWriter) WriteFile(t *testing.T, dir string) string {
	t.Helper()

	p := filepath.Join(dir, "requests.txt")
	require.NoError(t, os.WriteFile(p, []byte(w.sb.String()), 0o600))
	return p
}

func writeHexFile(t *testing.T, path string, req encoder) {
	t.Helper()

	b, err := req.Encode()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(hex.EncodeToString(b)+"\n"), 0o600))
}
