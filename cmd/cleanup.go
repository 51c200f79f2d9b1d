package cmd

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var cleanupFlags struct {
	Days   int
	Vacuum bool
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove catalog items that were not refreshed recently",
	Long: `Remove catalog items whose last update is older than the retention window, together with their
cast, seasons, episodes and genre links. People and genres are kept.`,
	Example: `catalogsync cleanup --days 30
catalogsync cleanup --vacuum`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := loadConfig()

		days := cleanupFlags.Days
		if days == 0 {
			days = cfg.DataQuality.CleanupStaleDays
		}
		if days <= 0 {
			return fmt.Errorf("no retention window: pass --days or set data_quality.cleanup_stale_days")
		}

		db, _, closeStores, err := openStores(cfg)
		if err != nil {
			return err
		}
		defer closeStores()

		cutoff := time.Now().AddDate(0, 0, -days)
		res, err := db.CleanupStale(cmd.Context(), cutoff)
		if err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
		fmt.Printf("Removed %d items (%d cast, %d seasons, %d episodes, %d genre links) not updated since %s\n",
			res.Items, res.Cast, res.Seasons, res.Episodes, res.Links, cutoff.Format("2006-01-02"))

		if cleanupFlags.Vacuum || cfg.Database.VacuumOnCompletion {
			log.Info("Vacuuming database")
			if err := db.Vacuum(cmd.Context()); err != nil {
				return fmt.Errorf("vacuum failed: %w", err)
			}
		}
		return nil
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupFlags.Days, "days", 0, "Retention window in days (default: data_quality.cleanup_stale_days)")
	cleanupCmd.Flags().BoolVar(&cleanupFlags.Vacuum, "vacuum", false, "Run VACUUM afterwards")
	rootCmd.AddCommand(cleanupCmd)
}
