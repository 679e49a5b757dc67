package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/gordian-engine/glight/gchain"
	"github.com/gordian-engine/glight/gdriver"
	"github.com/gordian-engine/glight/gfinality"
	"github.com/gordian-engine/glight/gsqlite"
	"github.com/gordian-engine/glight/gstore"
	"github.com/gordian-engine/glight/storagesync"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Requests files hold one SCALE-encoded request per line,
// as the request kind followed by the hex encoding.
const (
	kindSyncHeader          = "sync_header"
	kindSyncParaHeader      = "sync_para_header"
	kindSyncCombinedHeaders = "sync_combined_headers"
	kindDispatchBlocks      = "dispatch_blocks"
)

// Large enough for a dispatch of many blocks with sizeable storage changes.
const maxRequestLine = 256 << 20

func NewReplayCmd(log *slog.Logger, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use: "replay GENESIS_FILE REQUESTS_FILE",

		Short: "Replay recorded sync requests from a trusted genesis",

		Long: `Replay recorded sync requests from a trusted genesis.

GENESIS_FILE holds the hex encoding of the SCALE-encoded genesis block info.

Each non-empty line of REQUESTS_FILE is one of:
  sync_header HEX
  sync_para_header HEX
  sync_combined_headers HEX
  dispatch_blocks HEX
where HEX is the hex encoding of the corresponding SCALE-encoded request.
Lines starting with # are ignored.

Replay stops at the first rejected request.
The synced state is saved to the database given by --db,
which must not already hold state;
with no --db, an in-memory database is used.
`,

		Args: cobra.ExactArgs(2),

		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := gdriver.ParseMode(v.GetString("mode"))
			if err != nil {
				return err
			}

			return runReplay(cmd.Context(), log, cmd.OutOrStdout(), replayConfig{
				Mode:   mode,
				ParaID: gchain.ParaID(v.GetUint32("para-id")),

				FirstParaHeader: gchain.BlockNumber(v.GetUint32("first-para-header")),

				DBPath: v.GetString("db"),

				GenesisPath:  args[0],
				RequestsPath: args[1],
			})
		},
	}

	f := cmd.Flags()
	f.String("mode", "solochain", "chain topology to synchronize (solochain or parachain)")
	f.Uint32("para-id", 0, "parachain ID whose heads are proven in relaychain state (parachain mode only)")
	f.Uint32("first-para-header", 1, "number of the first parachain header to sync (parachain mode only)")
	f.String("db", "", "path to the SQLite database to write synced state to")

	return cmd
}

type replayConfig struct {
	Mode   gdriver.Mode
	ParaID gchain.ParaID

	FirstParaHeader gchain.BlockNumber

	DBPath string

	GenesisPath  string
	RequestsPath string
}

func runReplay(ctx context.Context, log *slog.Logger, out io.Writer, cfg replayConfig) error {
	genesis, err := readGenesis(cfg.GenesisPath)
	if err != nil {
		return err
	}

	reqFile, err := os.Open(cfg.RequestsPath)
	if err != nil {
		return fmt.Errorf("failed to open requests file: %w", err)
	}
	defer reqFile.Close()

	validator := gfinality.NewValidator()
	bridgeID, err := validator.AddBridge(genesis)
	if err != nil {
		return fmt.Errorf("failed to add bridge from genesis: %w", err)
	}

	var store *gsqlite.Store
	if cfg.DBPath == "" {
		store, err = gsqlite.NewInMemStore(ctx)
	} else {
		store, err = gsqlite.NewOnDiskStore(ctx, cfg.DBPath)
	}
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("Failed to close store", "err", err)
		}
	}()

	// Validator state is not persisted,
	// so a store that already holds state cannot be continued.
	if _, _, _, err := store.LoadState(ctx); err == nil {
		return fmt.Errorf("database %s already holds synced state", cfg.DBPath)
	} else if !gstore.IsUninitialized(err) {
		return fmt.Errorf("failed to check existing state: %w", err)
	}

	// Headers and blocks resume right after genesis.
	// In parachain mode, blocks follow parachain headers instead.
	next := genesis.BlockHeader.Number + 1
	counters := storagesync.Counters{
		NextHeaderNumber: next,
		NextBlockNumber:  next,
	}
	if cfg.Mode == gdriver.ModeParachain {
		counters.NextParaHeaderNumber = cfg.FirstParaHeader
		counters.NextBlockNumber = cfg.FirstParaHeader
	}

	dCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	d, err := gdriver.NewDriver(dCtx, log.With("sys", "driver"), gdriver.Config{
		Mode: cfg.Mode,

		Validator: validator,
		BridgeID:  bridgeID,

		ParaID: cfg.ParaID,

		Counters: counters,

		StateStore:    store,
		ProgressStore: store,
	})
	if err != nil {
		return err
	}
	defer d.Wait()
	defer cancel()

	if err := replayRequests(ctx, log, d, reqFile); err != nil {
		return err
	}

	status, ok := d.Status(ctx)
	if !ok {
		return context.Cause(ctx)
	}

	c := status.Counters
	fmt.Fprintf(
		out,
		"next_header=%d next_para_header=%d next_block=%d state_root=%s\n",
		c.NextHeaderNumber, c.NextParaHeaderNumber, c.NextBlockNumber, status.StateRoot,
	)
	return nil
}

func readGenesis(path string) (gchain.GenesisBlockInfo, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return gchain.GenesisBlockInfo{}, fmt.Errorf("failed to read genesis file: %w", err)
	}

	b, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return gchain.GenesisBlockInfo{}, fmt.Errorf("genesis file is not hex: %w", err)
	}

	return gchain.DecodeGenesisBlockInfo(b)
}

// replayRequests feeds each request in r to d, stopping at the first failure.
func replayRequests(ctx context.Context, log *slog.Logger, d *gdriver.Driver, r io.Reader) error {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxRequestLine)

	line := 0
	for s.Scan() {
		line++

		text := strings.TrimSpace(s.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		kind, payload, ok := strings.Cut(text, " ")
		if !ok {
			return fmt.Errorf("line %d: expected KIND HEX", line)
		}
		b, err := hex.DecodeString(strings.TrimSpace(payload))
		if err != nil {
			return fmt.Errorf("line %d: invalid hex: %w", line, err)
		}

		if err := replayOne(ctx, d, kind, b); err != nil {
			log.Info("Replay stopped", "line", line, "kind", kind, "err", err)
			return fmt.Errorf("line %d (%s): %w", line, kind, err)
		}
	}

	return s.Err()
}

func replayOne(ctx context.Context, d *gdriver.Driver, kind string, b []byte) error {
	switch kind {
	case kindSyncHeader:
		req, err := gchain.DecodeSyncHeaderReq(b)
		if err != nil {
			return err
		}
		_, err = d.SyncHeader(ctx, req.Headers, req.AuthoritySetChange)
		return err

	case kindSyncParaHeader:
		req, err := gchain.DecodeSyncParachainHeaderReq(b)
		if err != nil {
			return err
		}
		_, err = d.SyncParachainHeader(ctx, req.Headers, req.Proof)
		return err

	case kindSyncCombinedHeaders:
		req, err := gchain.DecodeSyncCombinedHeadersReq(b)
		if err != nil {
			return err
		}
		_, err = d.SyncCombinedHeaders(ctx, req)
		return err

	case kindDispatchBlocks:
		req, err := gchain.DecodeDispatchBlockReq(b)
		if err != nil {
			return err
		}
		applied, err := d.DispatchBlocks(ctx, req.Blocks)
		if err != nil {
			return fmt.Errorf("after applying %d of %d blocks: %w", applied, len(req.Blocks), err)
		}
		return nil

	default:
		return errors.New("unknown request kind")
	}
}
