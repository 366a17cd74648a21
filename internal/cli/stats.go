package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var (
		page     int
		watch    bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show game statistics, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if page < 1 {
				return fmt.Errorf("--page must be at least 1")
			}
			if watch && interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}
			path := fmt.Sprintf("/api/v1/stats?page=%d", page)
			out := output(cmd)

			fetch := func() error {
				var result StatsPage
				if err := client.Get(cmd.Context(), path, &result); err != nil {
					return err
				}
				out.Print(result)
				return nil
			}

			if err := fetch(); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
					if err := fetch(); err != nil {
						if cmd.Context().Err() != nil {
							return nil
						}
						return err
					}
				}
			}
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Refresh until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "Refresh interval with --watch")

	return cmd
}
