package gatewayclient

import (
	"context"
	"errors"
	"time"

	sponsor "github.com/maxlomu/blocksheep-wallet-test"
	"github.com/maxlomu/blocksheep-wallet-test/pkg/timing"
)

// BenchConfig drives a sequence of timed sponsorships
type BenchConfig struct {
	Request  sponsor.SponsorRequest
	Runs     int
	Interval time.Duration
	// OnSample is called after each run with the finished sample (optional)
	OnSample func(timing.Sample)
}

// RunBench performs cfg.Runs sponsorships one after another, recording each
// in rec. Failed runs are recorded, not returned; only context cancellation
// stops the loop early.
func RunBench(ctx context.Context, client *Client, rec *timing.Recorder, cfg BenchConfig) error {
	runs := cfg.Runs
	if runs < 1 {
		runs = 1
	}

	for i := range runs {
		if i > 0 && cfg.Interval > 0 {
			select {
			case <-time.After(cfg.Interval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		id := rec.Begin()
		resp, err := client.Sponsor(ctx, cfg.Request)
		if err != nil {
			msg := err.Error()
			var gwErr *GatewayError
			if errors.As(err, &gwErr) {
				msg = gwErr.Message
			}
			if ferr := rec.Fail(id, msg); ferr != nil {
				return ferr
			}
		} else if err := rec.Complete(id, resp.TxHash, resp.Sponsored); err != nil {
			return err
		}

		if cfg.OnSample != nil {
			if samples := rec.Samples(); len(samples) > 0 {
				cfg.OnSample(samples[0])
			}
		}
	}
	return nil
}
