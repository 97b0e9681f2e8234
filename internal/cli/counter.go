package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/RevCBH/flashrig/internal/config"
)

// NewCounterCmd creates the counter command
func NewCounterCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Show the completed-run counter",
		Long: `The counter counts successful full (both) runs with progress tracking
enabled. It is stored in the state file next to the remembered image paths.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.stateStore()
			if err != nil {
				return err
			}
			st, err := store.Load()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), st.Counter)
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <n>",
			Short: "Set the counter",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 0 {
					return fmt.Errorf("invalid counter value %q: must be a non-negative integer", args[0])
				}
				return app.setCounter(cmd, n)
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Reset the counter to zero",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.setCounter(cmd, 0)
			},
		},
	)

	return cmd
}

func (a *App) stateStore() (*config.StateStore, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	return config.NewStateStore(cfg.StateFile), nil
}

func (a *App) setCounter(cmd *cobra.Command, n int) error {
	store, err := a.stateStore()
	if err != nil {
		return err
	}
	if err := store.SaveCounter(n); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Counter set to %d\n", n)
	return nil
}
