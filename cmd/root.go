package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// version is set at build time.
var version = "dev"

var rootCmdPersistentFlags struct {
	LogFile    string
	ConfigFile string
	LogLevel   string
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.LogFile, "log-file", "", "File to write logs to")
	rootCmd.PersistentFlags().StringVarP(&rootCmdPersistentFlags.ConfigFile, "config", "c", "", "Path to config file (default: search for config.yml in current dir, ~/.catalogsync, /etc/catalogsync)")
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

var rootCmd = &cobra.Command{
	Use:   "catalogsync",
	Short: "catalogsync mirrors the TMDb catalog into a local database",
	Long: `catalogsync periodically pulls genres, popular movies and popular shows with their cast,
seasons and episodes from TMDb into a local SQLite store, records every run and recomputes
read-side KPIs.`,
	Example: `catalogsync serve --config config.yml
  catalogsync run -c /path/to/config.yml --log-level debug
  catalogsync status`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		setLogLevel(rootCmdPersistentFlags.LogLevel)
		logToFile()
	},
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info", "":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Warnf("unknown log level %s, defaulting to info", level)
		log.SetLevel(log.InfoLevel)
	}
}

func logToFile() {
	if rootCmdPersistentFlags.LogFile == "" {
		log.Debug("no log file specified, logging to console only")
		return
	}
	file, err := os.OpenFile(rootCmdPersistentFlags.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		log.Errorf("failed to open log file: %v", err)
		return
	}

	// Create a multi-writer that writes to both console and file
	multiWriter := io.MultiWriter(os.Stderr, file)
	log.SetOutput(multiWriter)
	log.Info("logging to both console and file", "file", rootCmdPersistentFlags.LogFile)
}

func Execute() error {
	return fang.Execute(context.Background(), rootCmd, fang.WithVersion(version))
}
