package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/slotplan/api/runs"
	"github.com/kilianp07/slotplan/app"
	"github.com/kilianp07/slotplan/infra/logger"
	"github.com/kilianp07/slotplan/infra/metrics"
	"github.com/kilianp07/slotplan/pkg/projectfile"
)

var (
	outFormat string
	outPath   string
	scenarios []string
	serve     bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule <project-file>",
	Short: "Schedule a project and write the resulting plan",
	Args:  cobra.ExactArgs(1),
	RunE:  schedule,
}

func init() {
	scheduleCmd.Flags().StringVarP(&outFormat, "format", "f", "", "report format: json or csv")
	scheduleCmd.Flags().StringVarP(&outPath, "output", "o", "", "report file, stdout when empty")
	scheduleCmd.Flags().StringSliceVarP(&scenarios, "scenario", "s", nil, "only schedule the named scenarios")
	scheduleCmd.Flags().BoolVar(&serve, "serve", false, "keep serving metrics after scheduling until interrupted")
	rootCmd.AddCommand(scheduleCmd)
}

func schedule(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("format") {
		cfg.Output.Format = outFormat
		cfg.Output.SetDefaults()
		if err := cfg.Output.Validate(); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("output") {
		cfg.Output.Path = outPath
	}
	if len(scenarios) > 0 {
		cfg.Scheduler.Scenarios = scenarios
	}
	log := logger.New("schedule-command")

	p, err := projectfile.Load(args[0])
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Errorf("service close: %v", err)
		}
	}()
	svc.Out = cmd.OutOrStdout()

	var promDone chan error
	if cfg.Metrics.Listen != "" {
		promDone = make(chan error, 1)
		var mounts []metrics.Mount
		if svc.Store != nil {
			mounts = append(mounts, metrics.Mount{Pattern: "/api/", Handler: runs.NewHandler(svc.Store, cfg.Store.APIToken)})
		}
		go func() { promDone <- metrics.StartPromServer(ctx, cfg.Metrics.Listen, mounts...) }()
	}

	res, err := svc.Run(ctx, p)
	if res != nil {
		for _, sc := range res.Scenarios {
			log.Infof("scenario %s: ok=%t unscheduled=%d errors=%d warnings=%d in %s",
				sc.Name, sc.OK, sc.Unscheduled, sc.Errors, sc.Warnings, sc.Duration)
		}
	}
	if promDone != nil {
		if serve {
			log.Infof("serving metrics on %s until interrupted", cfg.Metrics.Listen)
			<-ctx.Done()
		}
		stop()
		if perr := <-promDone; perr != nil {
			log.Errorf("prom server: %v", perr)
		}
	}
	if err != nil {
		return err
	}
	if !res.OK() {
		return errors.New("scheduling failed")
	}
	return nil
}

func printf(cmd *cobra.Command, format string, args ...any) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
