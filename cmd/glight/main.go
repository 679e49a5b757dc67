// Command glight runs the storage synchronizer offline:
// replaying recorded sync requests into a SQLite store,
// exporting snapshots of the synced state,
// and serving the store's progress over HTTP.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := mainE(); err != nil {
		os.Exit(1)
	}
}

func mainE() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	v := viper.New()
	if err := Execute(ctx, NewRootCmd(logger, v), v); err != nil {
		logger.Info("Failure", "err", err)
		os.Stderr.Sync()
		return err
	}

	return nil
}

// Execute runs rootCmd with v reading GLIGHT_-prefixed environment variables.
// An environment variable overrides a config file value
// but not an explicitly set flag.
func Execute(ctx context.Context, rootCmd *cobra.Command, v *viper.Viper) error {
	v.SetEnvPrefix("glight")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return rootCmd.ExecuteContext(ctx)
}

func NewRootCmd(log *slog.Logger, v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use: "glight SUBCOMMAND",

		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},

		SilenceUsage: true,

		Long: `glight synchronizes a local storage image with a finalized remote chain.

Typical offline use:

1. Derive the storage key proving a parachain's head in relaychain state:
     $ glight paras-heads-key 2000
2. Replay recorded requests against a genesis into an on-disk store:
     $ glight replay --mode solochain --db state.sqlite genesis.hex requests.txt
3. Export or serve the result:
     $ glight snapshot-export state.sqlite state.snap
     $ glight status state.sqlite --listen 127.0.0.1:8080

Configuration values may also come from a file given with --config,
or from environment variables such as GLIGHT_MODE and GLIGHT_DB.
`,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}

			cfgPath := v.GetString("config")
			if cfgPath == "" {
				return nil
			}

			v.SetConfigFile(cfgPath)
			if err := v.ReadInConfig(); err != nil {
				return err
			}
			log.Debug("Read config file", "path", v.ConfigFileUsed())
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "path to a config file (any format viper supports)")

	rootCmd.AddCommand(
		NewParasHeadsKeyCmd(log),
		NewAuthorityPubKeyCmd(log),

		NewReplayCmd(log, v),

		NewSnapshotExportCmd(log),
		NewSnapshotVerifyCmd(log),

		NewStatusCmd(log, v),
	)

	return rootCmd
}
