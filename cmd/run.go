package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/catalogsync/internal/engine"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one sync immediately and exit",
	Long:  `Run one complete sync (genres, movies, shows) and exit with a non-zero code when the run failed.`,
	Example: `catalogsync run
catalogsync run -c config.yml --log-level debug`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := loadConfig()

		db, mon, closeStores, err := openStores(cfg)
		if err != nil {
			return err
		}
		defer closeStores()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		e, err := engine.New(cfg, db, mon)
		if err != nil {
			return fmt.Errorf("failed to create engine: %w", err)
		}

		if n, err := mon.AbandonRunning(ctx); err == nil && n > 0 {
			log.Warn("Marked abandoned runs as failed", "count", n)
		}

		report, err := e.RunOnce(ctx)
		if report != nil {
			s := report.Stats
			fmt.Printf("Run %d (%s): %s\n", report.RunID, report.RunKey, report.Status)
			fmt.Printf("  Genres:  %d\n", s.GenresSynced)
			fmt.Printf("  Movies:  %d processed, %d inserted, %d updated, %d skipped, %d errors\n",
				s.Movies.Processed, s.Movies.Inserted, s.Movies.Updated, s.Movies.Skipped, s.Movies.Errors)
			fmt.Printf("  Shows:   %d processed, %d inserted, %d updated, %d skipped, %d errors\n",
				s.Shows.Processed, s.Shows.Inserted, s.Shows.Updated, s.Shows.Skipped, s.Shows.Errors)
			fmt.Printf("  People:  %d\n", s.PeopleSynced)
			fmt.Printf("  API calls: %d, duration: %s\n", s.APICalls, s.Duration.Round(time.Millisecond))
			if s.StaleRemoved > 0 {
				fmt.Printf("  Stale items removed: %d\n", s.StaleRemoved)
			}
			if report.KPI != nil {
				fmt.Printf("  KPIs computed: %d\n", report.KPI.Computed)
			}
		}
		if err != nil {
			return fmt.Errorf("sync run failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
