package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mcoot/ultratic/internal/model"
)

func newMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <board> <box> <turn>",
		Short: "Record a move in the current game",
		Long: `Record a move in the current game. The server stores what it is given
without checking it against the rules.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := []string{"boardIndex", "boxIndex", "turn"}
			req := make(map[string]int, len(names))
			for i, name := range names {
				n, err := strconv.Atoi(args[i])
				if err != nil {
					return fmt.Errorf("invalid %s %q: must be an integer", name, args[i])
				}
				req[name] = n
			}

			var result OutcomeResult
			if err := client.Post(cmd.Context(), "/api/v1/moves", req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newWinnerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "winner <none|cross|circle>",
		Short: "Record the outcome of the current game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			winner, err := model.ParseWinner(args[0])
			if err != nil {
				return err
			}

			req := map[string]int{"winner": int(winner)}
			var result OutcomeResult
			if err := client.Post(cmd.Context(), "/api/v1/games/current/winner", req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newNewGameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new-game",
		Short: "Start a new game in the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result OutcomeResult
			if err := client.Post(cmd.Context(), "/api/v1/games", nil, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newGameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "game",
		Short: "Show the current game and its moves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Game
			if err := client.Get(cmd.Context(), "/api/v1/games/current", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}
