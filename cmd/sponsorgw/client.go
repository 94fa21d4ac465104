package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	sponsor "github.com/maxlomu/blocksheep-wallet-test"
	"github.com/maxlomu/blocksheep-wallet-test/mechanisms/evm"
	"github.com/maxlomu/blocksheep-wallet-test/pkg/gatewayclient"
	"github.com/maxlomu/blocksheep-wallet-test/pkg/timing"
)

var (
	gatewayURL   string
	userAddress  string
	accessToken  string
	benchRuns    int
	benchPause   time.Duration
	benchTimeout time.Duration
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the contract counter as reported by a gateway",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := gatewayclient.New(&gatewayclient.Config{URL: gatewayURL})
		count, err := client.Count(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), count)
		return nil
	},
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Time sponsored increments through a gateway",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if userAddress == "" {
			return fmt.Errorf("--address is required")
		}
		if accessToken == "" {
			accessToken = os.Getenv("PRIVY_ACCESS_TOKEN")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		client := gatewayclient.New(&gatewayclient.Config{URL: gatewayURL, Timeout: benchTimeout})
		rec := timing.NewRecorder()

		err := gatewayclient.RunBench(ctx, client, rec, gatewayclient.BenchConfig{
			Request: sponsor.SponsorRequest{
				UserAddress:     userAddress,
				UserAccessToken: accessToken,
				FunctionName:    "increment",
			},
			Runs:     benchRuns,
			Interval: benchPause,
			OnSample: func(s timing.Sample) {
				fmt.Fprintf(out, "%s %dms %s\n", s.Status, timing.Milliseconds(s.Duration), timing.TruncateHash(s.TxHash))
			},
		})

		samples := rec.Samples()
		fmt.Fprintln(out)
		if rerr := timing.RenderSummary(out, rec.Summary()); rerr != nil {
			return rerr
		}
		fmt.Fprintln(out)
		if rerr := timing.RenderTable(out, samples, evm.ExplorerTxURL); rerr != nil {
			return rerr
		}
		if rerr := timing.RenderErrors(out, samples); rerr != nil {
			return rerr
		}
		if err != nil && ctx.Err() == nil {
			return err
		}

		if count, cerr := client.Count(context.WithoutCancel(ctx)); cerr == nil {
			fmt.Fprintf(out, "\nContract count: %s\n", count)
		}
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{countCmd, benchCmd} {
		cmd.Flags().StringVar(&gatewayURL, "gateway", gatewayclient.DefaultGatewayURL, "gateway base URL")
	}
	benchCmd.Flags().StringVar(&userAddress, "address", "", "user wallet address")
	benchCmd.Flags().StringVar(&accessToken, "token", "", "user access token (defaults to $PRIVY_ACCESS_TOKEN)")
	benchCmd.Flags().IntVar(&benchRuns, "runs", 1, "number of sequential sponsorships")
	benchCmd.Flags().DurationVar(&benchPause, "interval", 0, "pause between runs")
	benchCmd.Flags().DurationVar(&benchTimeout, "timeout", gatewayclient.DefaultTimeout, "per-request timeout")
}
