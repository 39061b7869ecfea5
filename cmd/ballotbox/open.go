package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"sealed-ballot/encryption"
)

var (
	publishedRoot  string
	publishedCount int
)

func init() {
	auditCmd.Flags().StringVar(&publishedRoot, "root", "", "Published ledger root the stored ballots must reproduce")
	auditCmd.Flags().IntVar(&publishedCount, "count", 0, "Number of ballots the published root covers (default: all)")
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(auditCmd)
}

var openCmd = &cobra.Command{
	Use:   "open [envelope...]",
	Short: "Decrypt envelopes with the ballot secret key",
	Long: "Decrypt the given envelopes, or every stored ballot when none are given. " +
		"Needs the same secret key file the ballot box was sealing with.",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := cfg.LoadSecretKey()
		if err != nil {
			return err
		}
		sealer, err := encryption.NewSealer(key)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(args) > 0 {
			for _, envelope := range args {
				plaintext, err := sealer.Open(envelope)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(plaintext))
			}
			return nil
		}

		store, err := cfg.OpenStore()
		if err != nil {
			return err
		}
		defer store.Close()
		ballots, err := store.ListSealedBallots(context.Background())
		if err != nil {
			return err
		}
		for _, sb := range ballots {
			plaintext, err := sealer.Open(sb.Envelope)
			if err != nil {
				fmt.Fprintf(out, "%d\t%s\t<%v>\n", sb.Sequence, sb.ID, err)
				continue
			}
			fmt.Fprintf(out, "%d\t%s\t%s\n", sb.Sequence, sb.ID, plaintext)
		}
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Verify every stored ballot and print the audit report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		box, err := openBallotBox(ctx, false)
		if err != nil {
			return err
		}
		defer box.Close()

		report, err := box.service.Audit(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
		if publishedRoot == "" {
			return nil
		}

		count := publishedCount
		if count == 0 {
			count = report.LedgerSize
		}
		ok, err := box.service.MatchesLedger(ctx, publishedRoot, count)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Errorf("stored ballots do not reproduce published root %s at %d ballots", publishedRoot, count)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "published root matches at %d ballots\n", count)
		return nil
	},
}
