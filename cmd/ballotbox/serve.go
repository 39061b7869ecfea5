package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sealed-ballot/api"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ballot box HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
		defer stop()

		box, err := openBallotBox(ctx, true)
		if err != nil {
			return err
		}
		defer box.Close()

		server := api.NewServer(box.service, box.registry, box.logger, api.APIConfig{
			APIEndpoint: cfg.ListenAddress,
			EnableAudit: cfg.EnableAudit,
		})
		err = server.Serve(ctx)
		box.service.EndVotingSession()
		return err
	},
}

