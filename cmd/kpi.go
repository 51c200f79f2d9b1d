package cmd

import (
	"fmt"
	"sort"

	"github.com/jon4hz/catalogsync/internal/kpi"
	"github.com/spf13/cobra"
)

var kpiFlags struct {
	Category string
}

var kpiCmd = &cobra.Command{
	Use:   "kpi",
	Short: "Recompute the KPIs",
	Long:  `Recompute every KPI category, or a single one with --category. A failing category does not stop the others.`,
	Example: `catalogsync kpi
catalogsync kpi --category title_stats`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := loadConfig()

		db, _, closeStores, err := openStores(cfg)
		if err != nil {
			return err
		}
		defer closeStores()

		agg := kpi.New(db)
		var res *kpi.Result
		if kpiFlags.Category != "" {
			res, err = agg.ComputeCategory(cmd.Context(), kpiFlags.Category)
		} else {
			res, err = agg.Compute(cmd.Context())
		}
		if res != nil {
			fmt.Printf("KPIs computed: %d in %s\n", res.Computed, res.Duration)
			categories := make([]string, 0, len(res.Errors))
			for c := range res.Errors {
				categories = append(categories, c)
			}
			sort.Strings(categories)
			for _, c := range categories {
				fmt.Printf("  %s failed: %s\n", c, res.Errors[c])
			}
		}
		return err
	},
}

func init() {
	kpiCmd.Flags().StringVar(&kpiFlags.Category, "category", "", fmt.Sprintf("Only compute this category (%v)", kpi.Categories()))
	rootCmd.AddCommand(kpiCmd)
}
