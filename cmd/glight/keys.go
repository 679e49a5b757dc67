package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gordian-engine/glight/gchain"
	"github.com/gordian-engine/glight/gcrypto"
	"github.com/spf13/cobra"
)

func NewParasHeadsKeyCmd(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use: "paras-heads-key PARA_ID",

		Short: "Print the relaychain storage key holding the head of the given parachain",

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid parachain ID %q: %w", args[0], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%x\n", gchain.ParasHeadsKey(gchain.ParaID(id)))
			return nil
		},
	}
}

func NewAuthorityPubKeyCmd(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use: "authority-pubkey INSECURE_PASSPHRASE",

		Short: "Print the authority public key derived from the given insecure passphrase, for test networks",

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := gcrypto.SignerFromInsecurePassphrase(authorityPassphrasePrefix, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%x\n", signer.PubKey().PubKeyBytes())
			return nil
		},
	}
}

const authorityPassphrasePrefix = "glight-authority|"
