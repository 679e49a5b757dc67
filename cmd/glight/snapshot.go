package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gordian-engine/glight/gdriver"
	"github.com/gordian-engine/glight/gsnapshot"
	"github.com/gordian-engine/glight/gsqlite"
	"github.com/spf13/cobra"
)

func NewSnapshotExportCmd(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use: "snapshot-export DB OUT_FILE",

		Short: "Write a snapshot of the state saved in the given database",

		Args: cobra.ExactArgs(2),

		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openExistingStore(ctx, args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			storage, n, err := gdriver.LoadStorage(ctx, store)
			if err != nil {
				return err
			}

			f, err := os.OpenFile(args[1], os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
			if err != nil {
				return fmt.Errorf("failed to create snapshot file: %w", err)
			}

			if err := gsnapshot.Export(f, storage); err != nil {
				_ = f.Close()
				return fmt.Errorf("failed to write snapshot: %w", err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to close snapshot file: %w", err)
			}

			log.Info("Exported snapshot", "block", n, "root", storage.Root(), "path", args[1])
			fmt.Fprintf(cmd.OutOrStdout(), "block=%d state_root=%s\n", n, storage.Root())
			return nil
		},
	}
}

func NewSnapshotVerifyCmd(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use: "snapshot-verify SNAPSHOT_FILE",

		Short: "Check that a snapshot's pairs produce its recorded state root",

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			storage, err := gsnapshot.Import(f)
			if err != nil {
				return err
			}

			fmt.Fprintf(
				cmd.OutOrStdout(),
				"state_root=%s main_pairs=%d child_tries=%d\n",
				storage.Root(), len(storage.Pairs()), len(storage.ChildKeys()),
			)
			return nil
		},
	}
}

// openExistingStore opens the on-disk store at path,
// failing instead of creating a new database if none exists there.
func openExistingStore(ctx context.Context, path string) (*gsqlite.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	return gsqlite.NewOnDiskStore(ctx, path)
}
