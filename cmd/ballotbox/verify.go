package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"sealed-ballot/encryption"
)

var verifyOpts struct {
	publicKeyFile string
	signature     string
}

func init() {
	verifyCmd.Flags().StringVar(&verifyOpts.publicKeyFile, "public-key", "", "Voter public key PEM file")
	verifyCmd.Flags().StringVar(&verifyOpts.signature, "signature", "", "Ballot signature (hex)")
	verifyCmd.MarkFlagRequired("public-key")
	verifyCmd.MarkFlagRequired("signature")
	rootCmd.AddCommand(verifyCmd)
}

var verifyCmd = &cobra.Command{
	Use:   "verify <canonical ballot>",
	Short: "Check a ballot signature against a voter public key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		publicKey, err := os.ReadFile(verifyOpts.publicKeyFile)
		if err != nil {
			return errors.Wrap(err, "failed to read public key")
		}
		signature, err := hex.DecodeString(verifyOpts.signature)
		if err != nil {
			return errors.Wrap(err, "signature is not hex")
		}
		if !encryption.Verify([]byte(args[0]), signature, publicKey) {
			return errors.New("signature does not verify")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "signature valid")
		return nil
	},
}
