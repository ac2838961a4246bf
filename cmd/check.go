package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/slotplan/core/message"
	"github.com/kilianp07/slotplan/core/scheduler"
	"github.com/kilianp07/slotplan/pkg/projectfile"
)

var dryRun bool

var checkCmd = &cobra.Command{
	Use:   "check <project-file>",
	Short: "Validate a project file",
	Args:  cobra.ExactArgs(1),
	RunE:  check,
}

func init() {
	checkCmd.Flags().BoolVar(&dryRun, "dry-run", false, "also schedule the project and report its diagnostics")
	rootCmd.AddCommand(checkCmd)
}

func check(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := projectfile.Load(args[0])
	if err != nil {
		return err
	}
	printf(cmd, "%s: %d tasks, %d resources, %d scenarios\n", p.Name, len(p.Tasks()), len(p.Resources()), len(p.Scenarios))
	if !dryRun {
		return nil
	}

	var diags message.Collector
	opts := []scheduler.Option{
		scheduler.WithSink(&diags),
		scheduler.WithMaxDetailedWarnings(cfg.Scheduler.MaxDetailedWarnings),
	}
	if len(cfg.Scheduler.Scenarios) > 0 {
		opts = append(opts, scheduler.WithScenarios(cfg.Scheduler.Scenarios...))
	}
	res, err := scheduler.New(p, opts...).Schedule(context.Background())
	if err != nil {
		return err
	}
	for _, m := range diags.Messages() {
		printf(cmd, "%s\n", m)
	}
	if !res.OK() {
		return fmt.Errorf("%d errors, %d warnings", diags.Count(message.Error), diags.Count(message.Warning))
	}
	printf(cmd, "ok: %d warnings\n", diags.Count(message.Warning))
	return nil
}
