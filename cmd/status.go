package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jon4hz/catalogsync/internal/engine"
	"github.com/jon4hz/catalogsync/internal/monitor"
	"github.com/mergestat/timediff"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show scheduler and last run status",
	Long:  `Show the configured schedule, the last recorded run, the next trigger time and storage usage.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := loadConfig()
		ctx := cmd.Context()

		mon, err := monitor.New(cfg.Monitoring.MetricsDBPath)
		if err != nil {
			return fmt.Errorf("failed to open metrics store: %w", err)
		}
		defer mon.Close() //nolint: errcheck

		status, err := engine.ReadStatus(ctx, cfg, mon, time.Now())
		if err != nil {
			return fmt.Errorf("failed to read status: %w", err)
		}

		fmt.Println("Scheduler Status:")
		fmt.Printf("  Schedule:   %s\n", status.Schedule)
		fmt.Printf("  Running:    %t\n", status.Running)
		fmt.Printf("  Total Runs: %s\n", humanize.Comma(status.TotalRuns))
		if status.LastRunTime != nil {
			fmt.Printf("  Last Run:   %s (%s)\n", status.LastRunTime.Local().Format(time.RFC3339), timediff.TimeDiff(*status.LastRunTime))
			fmt.Printf("  Last Status: %s\n", status.LastRunStatus)
		} else {
			fmt.Println("  Last Run:   never")
		}
		if status.NextRunTime != nil {
			fmt.Printf("  Next Run:   %s (%s)\n", status.NextRunTime.Format(time.RFC3339), timediff.TimeDiff(*status.NextRunTime))
		}

		fmt.Println("\nStorage:")
		for _, path := range []string{cfg.Database.Path, cfg.Monitoring.MetricsDBPath} {
			if info, err := os.Stat(path); err == nil {
				fmt.Printf("  %s: %s\n", path, humanize.Bytes(uint64(info.Size()))) //nolint:gosec
			}
		}
		if usage, err := disk.UsageWithContext(ctx, filepath.Dir(cfg.Database.Path)); err == nil {
			fmt.Printf("  Free disk:  %s of %s (%.1f%% used)\n",
				humanize.Bytes(usage.Free), humanize.Bytes(usage.Total), usage.UsedPercent)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
