package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	sponsor "github.com/maxlomu/blocksheep-wallet-test"
	privyhttp "github.com/maxlomu/blocksheep-wallet-test/http"
	"github.com/maxlomu/blocksheep-wallet-test/mechanisms/evm"
	"github.com/maxlomu/blocksheep-wallet-test/pkg/config"
	"github.com/maxlomu/blocksheep-wallet-test/pkg/gateway"
	"github.com/maxlomu/blocksheep-wallet-test/pkg/logging"
	"github.com/maxlomu/blocksheep-wallet-test/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sponsorship gateway",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(envFile, configFile)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration:\n%w", err)
		}

		logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, logger)
	},
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	gw, closeGateway, err := newGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeGateway()
	return gw.Serve(ctx, cfg.Addr())
}

// newGateway wires the provider client, pipeline, metrics and chain reader
// from cfg. The returned func releases the chain connection.
func newGateway(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*gateway.Gateway, func(), error) {
	// ========================================================================
	// Provider client
	// ========================================================================

	provider := privyhttp.NewPrivyClient(&privyhttp.PrivyConfig{
		AppID:     cfg.Privy.AppID,
		AppSecret: cfg.Privy.AppSecret,
		APIURL:    cfg.Privy.APIURL,
		AuthURL:   cfg.Privy.AuthURL,
		Timeout:   cfg.HTTP.Timeout,
		Retry: sponsor.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
		},
	})

	// ========================================================================
	// Pipeline
	// ========================================================================

	chainID := big.NewInt(cfg.Chain.ChainID)
	tx, err := evm.NewIncrementTransaction(cfg.Chain.ContractAddress, chainID)
	if err != nil {
		return nil, nil, err
	}

	opts := []sponsor.SponsorOption{
		sponsor.WithLogger(logger),
		sponsor.WithSessionSkew(cfg.Sponsor.SessionSkew),
	}
	if cfg.Sponsor.ProvisionServerWallet {
		opts = append(opts, sponsor.WithProvisioner(provider))
	}
	pipeline := sponsor.NewTransactionSponsor(provider, provider, provider, tx, opts...)

	m := metrics.New()
	m.Attach(pipeline)

	// ========================================================================
	// Chain reads
	// ========================================================================

	reader, closeReader, err := evm.DialCounterReader(ctx, cfg.Chain.RPCURL, cfg.Chain.ContractAddress)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("sponsorship configured",
		zap.String("contract", reader.Contract()),
		zap.String("caip2", evm.CAIP2(chainID)),
		zap.Bool("provisionServerWallet", cfg.Sponsor.ProvisionServerWallet),
		zap.Int("retryAttempts", cfg.Retry.MaxAttempts))

	gw := gateway.New(pipeline, reader,
		gateway.WithLogger(logger),
		gateway.WithMetrics(m),
		gateway.WithCORSOrigin(cfg.Server.CORSOrigin),
		gateway.WithRequestTimeout(cfg.Server.RequestTimeout))
	return gw, closeReader, nil
}
