package main

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/gordian-engine/glight/cmd/glight/internal/ghttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewStatusCmd(log *slog.Logger, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use: "status DB",

		Short: "Serve the synced state and progress saved in the given database over HTTP",

		Long: `Serve the synced state and progress saved in the given database over HTTP.

Routes:
  GET /v1/counters
  GET /v1/state
  GET /v1/storage/KEY_HEX
  GET /v1/storage/child/CHILD_KEY_HEX/KEY_HEX

The server runs until interrupted.
`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openExistingStore(ctx, args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			ln, err := net.Listen("tcp", v.GetString("listen"))
			if err != nil {
				return fmt.Errorf("failed to listen: %w", err)
			}

			// Print the address so a caller listening on :0 can find the server.
			fmt.Fprintf(cmd.OutOrStdout(), "http://%s\n", ln.Addr())

			h := ghttp.NewHTTPServer(ctx, log.With("sys", "http"), ghttp.HTTPServerConfig{
				Listener: ln,

				StateStore:    store,
				ProgressStore: store,
			})
			h.Wait()

			return nil
		},
	}

	cmd.Flags().String("listen", "127.0.0.1:8080", "TCP address for the HTTP server")

	return cmd
}
