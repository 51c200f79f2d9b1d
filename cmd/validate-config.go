package cmd

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/catalogsync/internal/config"
	"github.com/jon4hz/catalogsync/internal/engine"
	"github.com/spf13/cobra"
)

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate the configuration and print the effective settings",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
		if err != nil {
			log.Error("configuration is invalid", "error", err)
			return err
		}

		_, schedule := engine.Trigger(cfg.Schedule)
		fmt.Println("Configuration is valid.")
		fmt.Printf("  API base URL: %s\n", cfg.TMDb.BaseURL)
		fmt.Printf("  Schedule:     %s, run on startup: %t\n", schedule, cfg.Schedule.RunOnStartup)
		fmt.Printf("  Limits:       %d movies, %d shows, %d cast, %d episodes per season\n",
			cfg.DataLimits.Movies, cfg.DataLimits.Shows, cfg.DataLimits.MaxCast, cfg.DataLimits.EpisodesPerSeason)
		fmt.Printf("  Database:     %s\n", cfg.Database.Path)
		fmt.Printf("  Metrics DB:   %s\n", cfg.Monitoring.MetricsDBPath)
		fmt.Printf("  Cache:        %s\n", cfg.Cache.Type)
		fmt.Printf("  Email alerts: %t, KPIs: %t\n", cfg.Monitoring.EmailAlerts, cfg.KPI.Enabled)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateConfigCmd)
}
