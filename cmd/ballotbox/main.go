package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sealed-ballot/config"
	"sealed-ballot/encryption"
	"sealed-ballot/service"
	"sealed-ballot/storage"
)

var cfg = config.Default()

var rootCmd = &cobra.Command{
	Use:           "ballotbox",
	Short:         "Signed and sealed electronic ballot box",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return cfg.Validate()
	},
}

func init() {
	cfg.BindFlags(rootCmd.PersistentFlags())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type ballotBox struct {
	service  *service.VotingService
	store    storage.Store
	registry *prometheus.Registry
	logger   *zap.Logger
}

func (b *ballotBox) Close() {
	if err := b.store.Close(); err != nil {
		b.logger.Error("failed to close store", zap.Error(err))
	}
	b.logger.Sync()
}

// openBallotBox wires the configured store, keys and question set into a
// voting service. Only a box about to accept ballots may create the secret
// key; inspection commands need the existing one.
func openBallotBox(ctx context.Context, createKey bool) (_ *ballotBox, err error) {
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	definition, err := cfg.LoadDefinition()
	if err != nil {
		return nil, err
	}
	store, err := cfg.OpenStore()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			store.Close()
		}
	}()

	// The key has to match what the store already sealed
	var secretKey encryption.SecretKey
	if createKey {
		secretKey, err = cfg.PrepareSecretKey(ctx, store)
	} else {
		secretKey, err = cfg.LoadSecretKey()
	}
	if err != nil {
		return nil, err
	}
	if cfg.SecretKeyFile == "" {
		logger.Warn("no secret key file configured; envelopes sealed by this process cannot be opened after it exits")
	}
	sealer, err := encryption.NewSealer(secretKey)
	if err != nil {
		return nil, err
	}
	receipts, err := cfg.LoadReceiptSigner()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if cfg.RetainPlaintext {
		logger.Warn("plaintext retention enabled; canonical ballots are stored unencrypted next to their envelopes")
	}
	svc := service.NewVotingService(store, sealer, receipts, service.Options{
		Definition:      definition,
		Session:         service.NewVotingSession(cfg.SessionDuration),
		Metrics:         service.NewMetrics(registry),
		Logger:          logger,
		RetainPlaintext: cfg.RetainPlaintext,
	})
	logger.Info("ballot box ready",
		zap.String("storage", cfg.StorageDriver),
		zap.String("receipt_address", receipts.Address()),
		zap.Int("questions", len(definition.Questions)))

	return &ballotBox{service: svc, store: store, registry: registry, logger: logger}, nil
}
