package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "tictl",
		Short: "CLI tool for the ultratic session API",
		Long: `tictl is a CLI tool for interacting with the ultratic JSON API.

It keeps the session cookie in a file between runs, so a sequence of
commands behaves like one browser tab: login, record moves and winners,
start new games and page through the stats.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			bindEnv(cmd.Root().PersistentFlags())
			if err := cfg.validate(); err != nil {
				return err
			}

			cookie, err := cfg.LoadCookie()
			if err != nil {
				return err
			}

			// Create HTTP client
			client = NewClient(cfg.ServerURL, cfg.CookieName, cookie)
			client.onCookie = func(value string) error {
				if value == "" {
					return cfg.ClearCookie()
				}
				return cfg.SaveCookie(value)
			}
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	persistentFlags(rootCmd, cfg)

	// Add subcommands
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newWhoamiCmd())
	rootCmd.AddCommand(newMoveCmd())
	rootCmd.AddCommand(newWinnerCmd())
	rootCmd.AddCommand(newNewGameCmd())
	rootCmd.AddCommand(newGameCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newHealthCmd())

	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	return rootCmd
}

func output(cmd *cobra.Command) *Output {
	return NewOutput(cfg.Output, cmd.OutOrStdout())
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
