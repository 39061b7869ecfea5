package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"sealed-ballot/ballot"
	"sealed-ballot/encryption"
)

var keygenOpts struct {
	outDir string
	name   string
}

func init() {
	keygenCmd.Flags().StringVar(&keygenOpts.outDir, "out", ".", "Directory to write the key files to")
	keygenCmd.Flags().StringVar(&keygenOpts.name, "name", "voter", "File name prefix")
	rootCmd.AddCommand(keygenCmd)
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a voter key pair offline",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !ballot.ValidLabel(keygenOpts.name) {
			return errors.Errorf("invalid name %q", keygenOpts.name)
		}
		pair, err := encryption.IssueKeyPair()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(keygenOpts.outDir, 0o700); err != nil {
			return errors.Wrap(err, "failed to create output directory")
		}

		privatePath := filepath.Join(keygenOpts.outDir, keygenOpts.name+"_private.key")
		publicPath := filepath.Join(keygenOpts.outDir, keygenOpts.name+"_public.pem")
		if err := os.WriteFile(privatePath, []byte(pair.PrivateKeyPEM), 0o600); err != nil {
			return errors.Wrap(err, "failed to write private key")
		}
		if err := os.WriteFile(publicPath, []byte(pair.PublicKeyPEM), 0o644); err != nil {
			return errors.Wrap(err, "failed to write public key")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "private key: %s\npublic key:  %s\nfingerprint: %s\n",
			privatePath, publicPath, encryption.PublicKeyHash(pair.PublicKeyPEM))
		return nil
	},
}
