package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

const healthPollInterval = 250 * time.Millisecond

func newHealthCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Long: `Check that the server is up and its ledger answers.

With --wait, keep polling until the server reports ok or the duration
runs out. Useful in scripts that start the server first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if wait < 0 {
				return fmt.Errorf("--wait must not be negative")
			}

			result, err := waitHealthy(cmd.Context(), wait)
			if err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 0, "Keep retrying for up to this long")

	return cmd
}

// waitHealthy polls the health endpoint until it succeeds or wait elapses.
// A zero wait makes exactly one attempt.
func waitHealthy(ctx context.Context, wait time.Duration) (HealthResult, error) {
	deadline := time.Now().Add(wait)
	for {
		var result HealthResult
		err := client.Get(ctx, "/api/v1/health", &result)
		if err == nil {
			return result, nil
		}
		if wait == 0 || time.Now().Add(healthPollInterval).After(deadline) {
			return result, err
		}

		select {
		case <-ctx.Done():
			return result, err
		case <-time.After(healthPollInterval):
		}
	}
}
