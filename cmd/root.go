package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/slotplan/config"
	"github.com/kilianp07/slotplan/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "slotplan",
	Short:         "Slot based project scheduler",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// loadConfig reads the configuration and applies its logging section.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Configure(cfg.Logging.Options())
	return cfg, nil
}
