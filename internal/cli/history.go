package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/RevCBH/flashrig/internal/history"
)

// NewHistoryCmd creates the history command
func NewHistoryCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded flash runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.openHistory()
			if err != nil {
				return err
			}
			defer db.Close()
			return listRuns(cmd.OutOrStdout(), db, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 for all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its event log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.openHistory()
			if err != nil {
				return err
			}
			defer db.Close()
			return showRun(cmd.OutOrStdout(), db, args[0])
		},
	})

	return cmd
}

func (a *App) openHistory() (*history.DB, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.HistoryDB == "" {
		return nil, errors.New("run history is disabled (history_db is empty)")
	}
	return history.Open(cfg.HistoryDB)
}

func listRuns(w io.Writer, db *history.DB, limit int) error {
	runs, err := db.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return nil
	}

	for _, run := range runs {
		fmt.Fprintln(w, FormatRunLine(run))
	}

	s, err := db.Summarize()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d runs: %d done, %d failed, %d running\n", s.Total, s.Done, s.Failed, s.Running)
	return nil
}

func showRun(w io.Writer, db *history.DB, id string) error {
	run, err := db.GetRun(id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}

	evs, err := db.ListEvents(id)
	if err != nil {
		return err
	}

	fmt.Fprint(w, FormatRunDetail(run, evs))
	return nil
}
