package main

import (
	"fmt"
	"os"
	"strings"

	"CSU/internal/logger"
	"CSU/internal/system"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	jsonLogs   bool

	cfg *system.Config
	log logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "setup",
	Short: "Provision the openPDC configuration database and update its configuration files",
	Long: "setup provisions the configuration backend used by openPDC and points\n" +
		"openPDC.exe.config and its companion configuration files at it.\n" +
		"Without a subcommand the interactive wizard is started.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadEnvironment,
	RunE:              runWizard,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", system.DefaultConfigPath, "path to the setup configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json", false, "write logs as JSON")

	rootCmd.AddCommand(wizardCmd, provisionCmd, rollbackCmd, historyCmd, cipherCmd)
}

func loadEnvironment(cmd *cobra.Command, args []string) error {
	loaded, err := system.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	options := []logger.Option{logger.WithLevel(logger.ParseLevel(level))}
	if jsonLogs || strings.EqualFold(cfg.Log.Format, "json") {
		options = append(options, logger.WithFormatter(&logger.JSONFormatter{}))
	}
	log = logger.NewColoredLogger(options...)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if err != errSetupFailed {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
