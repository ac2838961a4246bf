package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/slotplan/infra/store"
	"github.com/kilianp07/slotplan/pkg/export"
)

var (
	historyScenario string
	historyLimit    int
)

var historyCmd = &cobra.Command{
	Use:   "history <project>",
	Short: "List stored scheduling runs of a project",
	Args:  cobra.ExactArgs(1),
	RunE:  history,
}

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  show,
}

func init() {
	historyCmd.Flags().StringVarP(&historyScenario, "scenario", "s", "", "only list runs of this scenario")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of runs, 0 for all")
	historyCmd.AddCommand(showCmd)
	rootCmd.AddCommand(historyCmd)
}

func openStore() (*store.SQLiteStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.NewSQLiteStore(cfg.Store.Path)
}

func history(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	runs, err := st.Runs(cmd.Context(), args[0], historyScenario, historyLimit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN\tSCENARIO\tOK\tSTART\tEND\tUNSCHEDULED\tERRORS\tWARNINGS\tGENERATED")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.RunID, r.Scenario, r.OK, day(r.Start), day(r.End), r.Unscheduled, r.Errors, r.Warnings,
			r.GeneratedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func show(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	sch, err := st.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return export.WriteJSON(cmd.OutOrStdout(), []export.Schedule{sch})
}

func day(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}
