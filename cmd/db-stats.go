package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var dbStatsFlags struct {
	Export string
}

var dbStatsCmd = &cobra.Command{
	Use:   "db-stats",
	Short: "Show database statistics",
	Long:  `Display catalog row counts, run statistics and the most frequent sync errors.`,
	Example: `catalogsync db-stats
catalogsync db-stats --export report.json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := loadConfig()
		ctx := cmd.Context()

		db, mon, closeStores, err := openStores(cfg)
		if err != nil {
			return err
		}
		defer closeStores()

		if dbStatsFlags.Export != "" {
			f, err := os.Create(dbStatsFlags.Export)
			if err != nil {
				return fmt.Errorf("failed to create export file: %w", err)
			}
			defer f.Close() //nolint: errcheck
			if err := mon.Export(ctx, f); err != nil {
				return fmt.Errorf("failed to export metrics: %w", err)
			}
			fmt.Printf("Metrics exported to %s\n", dbStatsFlags.Export)
			return nil
		}

		counts, err := db.GetCounts(ctx)
		if err != nil {
			return fmt.Errorf("failed to get catalog counts: %w", err)
		}
		fmt.Println("Catalog:")
		fmt.Printf("  Movies:   %s\n", humanize.Comma(counts.Movies))
		fmt.Printf("  Shows:    %s\n", humanize.Comma(counts.Shows))
		fmt.Printf("  People:   %s\n", humanize.Comma(counts.People))
		fmt.Printf("  Genres:   %s\n", humanize.Comma(counts.Genres))
		fmt.Printf("  Seasons:  %s\n", humanize.Comma(counts.Seasons))
		fmt.Printf("  Episodes: %s\n", humanize.Comma(counts.Episodes))
		fmt.Printf("  KPIs:     %s\n", humanize.Comma(counts.KPIs))

		for _, days := range []int{7, 30} {
			stats, err := mon.Statistics(ctx, days)
			if err != nil {
				return fmt.Errorf("failed to get run statistics: %w", err)
			}
			fmt.Printf("\nRuns (last %d days):\n", days)
			fmt.Printf("  Total: %d, successful: %d, failed: %d (%.1f%% success)\n",
				stats.TotalRuns, stats.SuccessfulRuns, stats.FailedRuns, stats.SuccessRate())
			if stats.AvgDurationSeconds != nil {
				fmt.Printf("  Average duration: %s\n", time.Duration(*stats.AvgDurationSeconds*float64(time.Second)).Round(time.Second))
			}
			fmt.Printf("  Movies processed: %d, shows processed: %d, API calls: %d, errors: %d\n",
				stats.TotalMoviesProcessed, stats.TotalShowsProcessed, stats.TotalAPICalls, stats.TotalErrors)
		}

		summary, err := mon.ErrorSummary(ctx, 7)
		if err == nil && len(summary) > 0 {
			fmt.Println("\nErrors (last 7 days):")
			for _, e := range summary {
				fmt.Printf("  %-20s %5d  last %s\n", e.ErrorType, e.Count, e.LastOccurrence.Format("2006-01-02 15:04:05"))
			}
		}

		runs, err := mon.RecentRuns(ctx, 5)
		if err == nil && len(runs) > 0 {
			fmt.Println("\nRecent Runs:")
			for _, run := range runs {
				fmt.Printf("  ID: %d, Started: %s, Status: %s, Movies: %d, Shows: %d, Errors: %d\n",
					run.ID, run.StartedAt.Format("2006-01-02 15:04:05"), run.Status,
					run.MoviesProcessed, run.ShowsProcessed, run.Errors)
			}
		}

		return nil
	},
}

func init() {
	dbStatsCmd.Flags().StringVar(&dbStatsFlags.Export, "export", "", "Write a JSON report of the run metrics to this file")
	rootCmd.AddCommand(dbStatsCmd)
}
