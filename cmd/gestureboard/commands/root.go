package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayusman/gestureboard/internal/config"
	"github.com/ayusman/gestureboard/internal/log"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gestureboard",
	Short: "Play checkers with hand gestures",
	Long: `gestureboard tracks a hand or a colored marker in the webcam and turns
open/closed hand gestures into checkers moves on a browser board.

Configuration is read from ~/.gestureboard/config.yaml and can be
overridden with GESTUREBOARD_* environment variables.`,
	SilenceUsage: true,
}

// Command returns the root cobra command for mounting into a parent CLI.
func Command() *cobra.Command {
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.gestureboard/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(calibrateCmd)
	rootCmd.AddCommand(configCmd)
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath()
}

// loadConfig loads the configuration and initialises logging from it.
func loadConfig() (*config.Config, error) {
	path := configPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	log.Init(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}
